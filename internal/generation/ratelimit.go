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

	"math-tutor/internal/model/llm"
)

// RateLimitedCompleter 调用前按 provider 申请令牌与并发槽
type RateLimitedCompleter struct {
	inner     Completer
	limiter   *llm.LLMRateLimiter
	provider  string
	maxTokens int
}

// NewRateLimitedCompleter limiter 为 nil 时直接透传
func NewRateLimitedCompleter(inner Completer, limiter *llm.LLMRateLimiter, provider string, maxTokens int) Completer {
	if limiter == nil {
		return inner
	}
	return &RateLimitedCompleter{inner: inner, limiter: limiter, provider: provider, maxTokens: maxTokens}
}

// Complete 实现 Completer
func (c *RateLimitedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx, c.provider, llm.EstimateTokens(prompt, c.maxTokens)); err != nil {
		return "", err
	}
	defer c.limiter.Release(c.provider)
	return c.inner.Complete(ctx, prompt)
}

// CompleterFunc 便于测试与组合
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete 实现 Completer
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
