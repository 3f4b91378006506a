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

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"math-tutor/internal/pipeline/common"
)

func TestOpenAIClient_ChatWithContext(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"PASS"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("guard-model", "sk-test", srv.URL+"/", time.Second)
	out, err := c.ChatWithContext(context.Background(), UserMessage("is this math?"), GenerateOptions{MaxTokens: 30, Temperature: 0.1})
	require.NoError(t, err)
	assert.Equal(t, "PASS", out)
	assert.Equal(t, "guard-model", got["model"])
	assert.EqualValues(t, 30, got["max_tokens"])
	assert.InDelta(t, 0.1, got["temperature"], 1e-9)
	assert.True(t, c.Configured())
}

func TestOpenAIClient_StatusErrorNoRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("m", "bad", srv.URL, time.Second)
	_, err := c.ChatWithContext(context.Background(), UserMessage("x"), GenerateOptions{})
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.Unauthorized())
	assert.ErrorIs(t, err, common.ErrUnauthorized)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestStatusError_Sentinels(t *testing.T) {
	cases := []struct {
		code   int
		target error
	}{
		{code: http.StatusUnauthorized, target: common.ErrUnauthorized},
		{code: http.StatusForbidden, target: common.ErrUnauthorized},
		{code: http.StatusTooManyRequests, target: common.ErrRateLimit},
	}
	for _, tc := range cases {
		err := fmt.Errorf("guardrail: %w", &StatusError{StatusCode: tc.code})
		assert.ErrorIs(t, err, tc.target, "status %d", tc.code)
	}

	err := &StatusError{StatusCode: http.StatusServiceUnavailable}
	assert.NotErrorIs(t, err, common.ErrUnauthorized)
	assert.NotErrorIs(t, err, common.ErrRateLimit)
	assert.Nil(t, err.Unwrap())
}

func TestOpenAIClient_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIClient("m", "k", srv.URL, time.Second).ChatWithContext(context.Background(), UserMessage("x"), GenerateOptions{})
	assert.Error(t, err)
}

type fakeClient struct{ calls int32 }

func (f *fakeClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	return "ok", nil
}
func (f *fakeClient) Model() string    { return "fake" }
func (f *fakeClient) Provider() string { return "fake" }

func TestRateLimiter_ConcurrencySlot(t *testing.T) {
	rl := NewLLMRateLimiter(map[string]LLMLimitConfig{"fake": {MaxConcurrent: 1}}, nil)

	require.NoError(t, rl.Wait(context.Background(), "fake", 10))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.Wait(ctx, "fake", 10), "second caller must block while the slot is held")

	rl.Release("fake")
	require.NoError(t, rl.Wait(context.Background(), "fake", 10))
	rl.Release("fake")

	stats := rl.Stats("fake")
	assert.Equal(t, 20, stats["tokens_used_minute"])
	assert.Equal(t, 0, stats["current_concurrent"])
}

func TestRateLimitedClient_Delegates(t *testing.T) {
	inner := &fakeClient{}
	c := NewRateLimitedClient(inner, NewLLMRateLimiter(nil, nil))
	out, err := c.ChatWithContext(context.Background(), UserMessage("hello"), GenerateOptions{MaxTokens: 5})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.EqualValues(t, 1, inner.calls)

	plain := NewRateLimitedClient(inner, nil)
	_, err = plain.ChatWithContext(context.Background(), UserMessage("hello"), GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "fake", plain.Provider())
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 1, EstimateTokens("", 0))
	assert.Equal(t, 2+10, EstimateTokens("12345678", 10))
}
