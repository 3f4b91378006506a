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

package generation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"math-tutor/internal/model/llm"
	"math-tutor/internal/pipeline/common"
)

type fakeChatModel struct {
	reply string
	err   error
	got   []*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.got = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func TestChatModelCompleter_SendsSingleUserMessage(t *testing.T) {
	m := &fakeChatModel{reply: "x = 2, so \\boxed{2}"}
	c := NewChatModelCompleter(m, "test")

	out, err := c.Complete(context.Background(), "Solve x + 1 = 3")
	require.NoError(t, err)
	assert.Equal(t, "x = 2, so \\boxed{2}", out)
	require.Len(t, m.got, 1)
	assert.Equal(t, schema.User, m.got[0].Role)
	assert.Equal(t, "Solve x + 1 = 3", m.got[0].Content)
}

func TestChatModelCompleter_WrapsError(t *testing.T) {
	c := NewChatModelCompleter(&fakeChatModel{err: errors.New("upstream 502")}, "test")
	_, err := c.Complete(context.Background(), "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrGenerationFailed)
	assert.Contains(t, err.Error(), "upstream 502")
}

func TestNewOpenRouterChatModel(t *testing.T) {
	m, err := NewOpenRouterChatModel(context.Background(), Config{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestConfig_Temperature(t *testing.T) {
	mc := Config{}.chatModelConfig()
	require.NotNil(t, mc.Temperature)
	assert.InDelta(t, DefaultTemperature, *mc.Temperature, 1e-6)
	assert.Equal(t, DefaultMaxTokens, *mc.MaxTokens)
	assert.Equal(t, DefaultModel, mc.Model)

	zero := 0.0
	mc = Config{Temperature: &zero}.chatModelConfig()
	assert.Zero(t, *mc.Temperature)

	warm := 0.7
	mc = Config{Temperature: &warm}.chatModelConfig()
	assert.InDelta(t, 0.7, *mc.Temperature, 1e-6)
}

func TestRateLimitedCompleter(t *testing.T) {
	var calls int32
	inner := CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "ok", nil
	})

	assert.IsType(t, CompleterFunc(nil), NewRateLimitedCompleter(inner, nil, "openrouter", 0))

	rl := llm.NewLLMRateLimiter(map[string]llm.LLMLimitConfig{
		"openrouter": {RequestsPerMinute: 6000, MaxConcurrent: 1},
	}, nil)
	c := NewRateLimitedCompleter(inner, rl, "openrouter", 16)
	for i := 0; i < 3; i++ {
		out, err := c.Complete(context.Background(), "q")
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, 0, rl.Stats("openrouter")["current_concurrent"])
}

func TestRateLimitedCompleter_ContextCancelled(t *testing.T) {
	rl := llm.NewLLMRateLimiter(map[string]llm.LLMLimitConfig{"p": {MaxConcurrent: 1}}, nil)
	require.NoError(t, rl.Wait(context.Background(), "p", 0))
	defer rl.Release("p")

	c := NewRateLimitedCompleter(CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		return "unreachable", nil
	}), rl, "p", 0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Complete(ctx, "q")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
