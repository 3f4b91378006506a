// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package generation 解题模型调用：提示词进，文本出
package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"math-tutor/internal/model/llm"
	"math-tutor/internal/pipeline/common"
	"math-tutor/pkg/metrics"
	"math-tutor/pkg/tracing"
)

const (
	// DefaultModel OpenRouter 上的默认解题模型
	DefaultModel = "openai/gpt-3.5-turbo"
	// DefaultMaxTokens 单次解题输出上限
	DefaultMaxTokens = 1024
	// DefaultTemperature 解题温度
	DefaultTemperature = 0.1
)

// Completer 单轮补全
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config 生成模型配置
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature *float64 // nil 时为 DefaultTemperature，0 表示贪心解码
	Timeout     time.Duration
}

func (c *Config) withDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = llm.DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Temperature == nil {
		t := DefaultTemperature
		c.Temperature = &t
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
}

func (c Config) chatModelConfig() *openai.ChatModelConfig {
	c.withDefaults()
	maxTokens := c.MaxTokens
	temperature := float32(*c.Temperature)
	return &openai.ChatModelConfig{
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		Model:       c.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
		Timeout:     c.Timeout,
	}
}

// NewOpenRouterChatModel 基于 OpenAI 兼容协议连接 OpenRouter
func NewOpenRouterChatModel(ctx context.Context, cfg Config) (einomodel.BaseChatModel, error) {
	chatModel, err := openai.NewChatModel(ctx, cfg.chatModelConfig())
	if err != nil {
		return nil, fmt.Errorf("创建 ChatModel 失败: %w", err)
	}
	return chatModel, nil
}

// ChatModelCompleter 把提示词作为一条 user 消息交给 ChatModel，不重试
type ChatModelCompleter struct {
	model einomodel.BaseChatModel
	name  string
}

// NewChatModelCompleter name 仅用于日志与指标
func NewChatModelCompleter(m einomodel.BaseChatModel, name string) *ChatModelCompleter {
	return &ChatModelCompleter{model: m, name: name}
}

// Complete 实现 Completer
func (c *ChatModelCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracing.StartExternalSpan(ctx, "generation", c.name)
	msg, err := c.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		tracing.EndSpan(span, err)
		metrics.ExternalCallTotal.WithLabelValues("generation", "error").Inc()
		return "", fmt.Errorf("%w: %v", common.ErrGenerationFailed, err)
	}
	tracing.EndSpan(span, nil)
	metrics.ExternalCallTotal.WithLabelValues("generation", "ok").Inc()
	if msg == nil {
		return "", nil
	}
	return msg.Content, nil
}
