package llm

import (
	"context"
	"fmt"
	"net/http"

	"math-tutor/internal/pipeline/common"
)

// Client OpenAI 兼容的聊天接口，供护栏分类与反馈优化使用
type Client interface {
	// ChatWithContext 发送消息列表并返回首个 choice 的内容
	ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error)
	// Model 返回模型名称
	Model() string
	// Provider 返回提供商名称
	Provider() string
}

// GenerateOptions 生成选项
type GenerateOptions struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// Message 聊天消息
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// UserMessage 单条 user 消息
func UserMessage(content string) []Message {
	return []Message{{Role: "user", Content: content}}
}

// StatusError 上游返回非 2xx
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("LLM API 返回错误 (HTTP %d): %s", e.StatusCode, e.Body)
}

// Unauthorized 401，通常是 API Key 无效
func (e *StatusError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// Unwrap 401/403 对应 common.ErrUnauthorized，429 对应 common.ErrRateLimit
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return common.ErrUnauthorized
	case http.StatusTooManyRequests:
		return common.ErrRateLimit
	}
	return nil
}
