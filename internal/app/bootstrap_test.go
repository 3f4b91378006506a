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

package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"math-tutor/internal/feedback"
	"math-tutor/internal/pipeline/common"
	"math-tutor/pkg/config"
	"math-tutor/pkg/log"
)

// memoryConfig 全部使用进程内后端，不依赖任何外部服务
func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Model: config.ModelConfig{
			LLM: config.LLMConfig{
				Model:          "openai/gpt-3.5-turbo",
				GuardrailModel: "anthropic/claude-3-sonnet-20240229",
				MaxTokens:      1024,
				Temperature:    0.1,
			},
			Embedding: config.EmbeddingConfig{BaseURL: "http://127.0.0.1:1/v1", Dimension: 8},
		},
		Guardrail: config.GuardrailConfig{Enabled: true},
		Retrieval: config.RetrievalConfig{TopK: 3, SimilarityThreshold: 0.5, ErrorPolicy: "fail_fast"},
		WebSearch: config.WebSearchConfig{MaxResults: 5},
		Feedback:  config.FeedbackConfig{Store: "memory"},
		Benchmark: config.BenchmarkConfig{
			DatasetPath: dir + "/dataset.json",
			ResultsPath: dir + "/benchmark_results.json",
		},
		Storage: config.StorageConfig{
			Vector: config.VectorConfig{Type: "memory"},
			Cache:  config.CacheConfig{Type: "memory"},
		},
		Secrets: config.SecretsConfig{Provider: "memory"},
		Log:     config.LogConfig{Level: "error"},
	}
}

func TestNewBootstrap_MemoryStack(t *testing.T) {
	b, err := NewBootstrap(context.Background(), memoryConfig(t))
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, Status{VectorBackend: "memory"}, b.Status())
	require.NotNil(t, b.Agent)
	require.NotNil(t, b.Feedback)
	require.NotNil(t, b.Benchmark)

	// 过短的问题在护栏阶段被拒绝，不触发任何外部调用
	resp, err := b.Agent.Process(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, common.RouteReject, resp.RouteUsed)
	require.NoError(t, b.Feedback.Cache(context.Background(), resp))
}

func TestNewBootstrap_SecretsFillStatus(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Model.LLM.APIKey = "sk-test"
	cfg.WebSearch.APIKey = "tvly-test"

	b, err := NewBootstrap(context.Background(), cfg)
	require.NoError(t, err)
	defer b.Close()

	st := b.Status()
	assert.True(t, st.GenerationConfigured)
	assert.True(t, st.SearchConfigured)
	assert.True(t, st.GuardrailLLMEnabled)
}

func TestNewBootstrap_MemorySecretsSeedKeys(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Secrets.Memory = map[string]string{
		"OPENROUTER_API_KEY": "sk-seed",
		"tavily_api_key":     "tvly-seed",
	}

	b, err := NewBootstrap(context.Background(), cfg)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, "sk-seed", cfg.Model.LLM.APIKey)
	assert.Equal(t, "tvly-seed", cfg.WebSearch.APIKey)
	st := b.Status()
	assert.True(t, st.GenerationConfigured)
	assert.True(t, st.SearchConfigured)
}

func TestNewBootstrap_Errors(t *testing.T) {
	_, err := NewBootstrap(context.Background(), nil)
	assert.Error(t, err)

	cfg := memoryConfig(t)
	cfg.Storage.Cache.Type = "memcached"
	_, err = NewBootstrap(context.Background(), cfg)
	assert.Error(t, err)

	cfg = memoryConfig(t)
	cfg.Secrets.Provider = "k8s"
	_, err = NewBootstrap(context.Background(), cfg)
	assert.Error(t, err)

	cfg = memoryConfig(t)
	cfg.ExampleBank.Path = t.TempDir() + "/missing.json"
	_, err = NewBootstrap(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewRefinerFromConfig(t *testing.T) {
	cfg := memoryConfig(t)
	logger := log.Nop()

	assert.IsType(t, feedback.TemplateRefiner{}, NewRefinerFromConfig(cfg, nil, logger))

	cfg.Feedback.Refiner = "llm"
	assert.IsType(t, feedback.TemplateRefiner{}, NewRefinerFromConfig(cfg, nil, logger), "no key falls back to template")

	cfg.Model.LLM.APIKey = "sk-test"
	assert.IsType(t, &feedback.LLMRefiner{}, NewRefinerFromConfig(cfg, nil, logger))
}

func TestNewLLMRateLimiter(t *testing.T) {
	assert.Nil(t, NewLLMRateLimiter(memoryConfig(t)))

	cfg := memoryConfig(t)
	cfg.RateLimits.LLM = map[string]config.LLMRateLimitConfig{
		"openrouter": {TokensPerMinute: 1000, RequestsPerMinute: 60, MaxConcurrent: 2},
	}
	limiter := NewLLMRateLimiter(cfg)
	require.NotNil(t, limiter)
	assert.NotNil(t, NewGuardrailClassifier(&config.Config{
		Guardrail: config.GuardrailConfig{Enabled: true},
		Model:     config.ModelConfig{LLM: config.LLMConfig{APIKey: "k"}},
	}, limiter))
}

func TestNewBootstrap_MissingDatasetOnlyWarns(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Knowledge.DatasetPath = t.TempDir() + "/none.json"

	b, err := NewBootstrap(context.Background(), cfg)
	require.NoError(t, err)
	defer b.Close()

	// 嵌入服务不可达时预加载失败也不影响启动
	cfg = memoryConfig(t)
	cfg.Knowledge.DatasetPath = "../knowledge/testdata/dataset.json"
	b2, err := NewBootstrap(context.Background(), cfg)
	require.NoError(t, err)
	defer b2.Close()
}
