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
	"fmt"
	"os"
	"sort"

	"math-tutor/internal/benchmark"
	"math-tutor/internal/einoext"
	"math-tutor/internal/examplebank"
	"math-tutor/internal/feedback"
	"math-tutor/internal/guardrail"
	"math-tutor/internal/knowledge"
	"math-tutor/internal/model/embedding"
	"math-tutor/internal/storage/cache"
	"math-tutor/internal/tutor"
	"math-tutor/internal/websearch"
	"math-tutor/pkg/config"
	"math-tutor/pkg/log"
	"math-tutor/pkg/secrets"
)

// secret store 中的 key
const (
	secretLLMKey       = "openrouter_api_key"
	secretSearchKey    = "tavily_api_key"
	secretEmbeddingKey = "embedding_api_key"
)

// Bootstrap 统一初始化：供 api 与 cli 复用，避免在 cmd 内写业务与 pipeline
type Bootstrap struct {
	Config    *config.Config
	Logger    *log.Logger
	Embedder  *embedding.Embedder
	Backend   *einoext.Backend
	Searcher  *knowledge.Searcher
	Loader    *knowledge.Loader
	Guardrail *guardrail.Filter
	Web       *websearch.TavilyClient
	Agent     *tutor.Agent
	Feedback  *feedback.Service
	Benchmark *benchmark.Runner
}

// Status 外部依赖配置状态，不含凭据本身
type Status struct {
	GenerationConfigured bool
	SearchConfigured     bool
	GuardrailLLMEnabled  bool
	VectorBackend        string
}

// NewBootstrap 根据配置创建 Bootstrap（凭据、知识库后端、各客户端、Orchestrator、反馈与评测）
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置为空")
	}
	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志failed: %w", err)
	}

	if err := resolveSecrets(ctx, cfg, logger); err != nil {
		return nil, err
	}

	b := &Bootstrap{Config: cfg, Logger: logger}
	if err := b.init(ctx); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Bootstrap) init(ctx context.Context) error {
	cfg, logger := b.Config, b.Logger

	emb, err := NewEmbedderFromConfig(cfg)
	if err != nil {
		return err
	}
	b.Embedder = emb

	backend, err := einoext.NewBackend(ctx, cfg.Storage.Vector, einoext.BackendOptions{
		TopK:      cfg.Retrieval.TopK,
		BatchSize: cfg.Knowledge.BatchSize,
		Dimension: cfg.Model.Embedding.Dimension,
	}, emb)
	if err != nil {
		return fmt.Errorf("初始化知识库后端failed: %w", err)
	}
	b.Backend = backend
	b.Searcher = knowledge.NewSearcher(backend.Retriever, emb, logger)
	b.Loader = knowledge.NewLoader(backend.Indexer, cfg.Knowledge.BatchSize, logger)
	logger.Info("知识库后端已就绪", "type", backend.Type, "collection", cfg.Storage.Vector.Collection)
	if backend.Type == "memory" {
		b.preloadKnowledge(ctx)
	}

	limiter := NewLLMRateLimiter(cfg)
	b.Guardrail = guardrail.NewFilter(guardrail.Config{
		Enabled:      cfg.Guardrail.Enabled,
		OutputStrict: cfg.Guardrail.OutputStrict,
	}, NewGuardrailClassifier(cfg, limiter), logger)

	b.Web = websearch.NewTavilyClient(websearch.Config{
		APIKey:  cfg.WebSearch.APIKey,
		BaseURL: cfg.WebSearch.BaseURL,
		Domains: cfg.WebSearch.Domains,
		Timeout: config.Duration(cfg.WebSearch.Timeout, 0),
	}, logger)

	completer, err := NewCompleterFromConfig(ctx, cfg, limiter)
	if err != nil {
		return err
	}

	examples, err := loadExamples(cfg.ExampleBank.Path)
	if err != nil {
		return err
	}

	agent, err := tutor.NewAgent(tutor.Config{
		TopK:                cfg.Retrieval.TopK,
		SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
		MaxWebResults:       cfg.WebSearch.MaxResults,
		ErrorPolicy:         cfg.Retrieval.ErrorPolicy,
	}, tutor.Deps{
		Guardrail: b.Guardrail,
		Knowledge: b.Searcher,
		Web:       b.Web,
		Completer: completer,
		Examples:  examples,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("初始化 tutor agent failed: %w", err)
	}
	b.Agent = agent

	responseCache, err := cache.NewCache(cfg.Storage.Cache)
	if err != nil {
		return fmt.Errorf("初始化应答缓存failed: %w", err)
	}
	logStore, err := feedback.NewLogStore(ctx, cfg.Feedback, logger)
	if err != nil {
		_ = responseCache.Close()
		return fmt.Errorf("初始化反馈日志failed: %w", err)
	}
	fb, err := feedback.NewService(ctx, feedback.Options{
		Cache:   responseCache,
		Store:   logStore,
		Refiner: NewRefinerFromConfig(cfg, limiter, logger),
		Logger:  logger,
	})
	if err != nil {
		_ = responseCache.Close()
		_ = logStore.Close()
		return err
	}
	b.Feedback = fb

	b.Benchmark = benchmark.NewRunner(benchmark.Config{
		DatasetPath: cfg.Benchmark.DatasetPath,
		ResultsPath: cfg.Benchmark.ResultsPath,
	}, agent, logger)
	return nil
}

// Status 当前配置下各外部依赖是否可用
func (b *Bootstrap) Status() Status {
	s := Status{
		GenerationConfigured: b.Config.Model.LLM.APIKey != "",
	}
	if b.Web != nil {
		s.SearchConfigured = b.Web.Configured()
	}
	if b.Guardrail != nil {
		s.GuardrailLLMEnabled = b.Guardrail.LLMEnabled()
	}
	if b.Backend != nil {
		s.VectorBackend = b.Backend.Type
	}
	return s
}

// Close 释放反馈存储、缓存与知识库连接
func (b *Bootstrap) Close() error {
	var firstErr error
	if b.Feedback != nil {
		if err := b.Feedback.Close(); err != nil {
			firstErr = err
		}
	}
	if b.Backend != nil {
		if err := b.Backend.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// preloadKnowledge 内存后端进程内为空，启动时写入题库；失败只告警，提问会走网络搜索
func (b *Bootstrap) preloadKnowledge(ctx context.Context) {
	path := b.Config.Knowledge.DatasetPath
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		b.Logger.Warn("题库文件不存在，内存知识库为空", "path", path)
		return
	}
	n, err := b.Loader.LoadFile(ctx, path)
	if err != nil {
		b.Logger.Warn("预加载题库失败", "path", path, "error", err)
		return
	}
	b.Logger.Info("题库已载入内存知识库", "path", path, "count", n)
}

func loadExamples(path string) (*examplebank.Bank, error) {
	if path == "" {
		return examplebank.Default()
	}
	bank, err := examplebank.Load(path)
	if err != nil {
		return nil, fmt.Errorf("加载示例库failed: %w", err)
	}
	return bank, nil
}

// resolveSecrets 对配置中仍为空的凭据从 secret store 补齐
func resolveSecrets(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	store, err := secrets.NewStore(secrets.Config{
		Provider: cfg.Secrets.Provider,
		Memory:   cfg.Secrets.Memory,
		Vault: secrets.VaultConfig{
			Address:    cfg.Secrets.Vault.Address,
			Token:      cfg.Secrets.Vault.Token,
			PathPrefix: cfg.Secrets.Vault.PathPrefix,
		},
	})
	if err != nil {
		return fmt.Errorf("初始化 secret store failed: %w", err)
	}
	missing := secrets.Resolve(ctx, store, map[string]*string{
		secretLLMKey:       &cfg.Model.LLM.APIKey,
		secretSearchKey:    &cfg.WebSearch.APIKey,
		secretEmbeddingKey: &cfg.Model.Embedding.APIKey,
	})
	sort.Strings(missing)
	for _, key := range missing {
		switch key {
		case secretLLMKey:
			logger.Warn("未配置 OPENROUTER_API_KEY，生成与 LLM 护栏将不可用")
		case secretSearchKey:
			logger.Warn("未配置 TAVILY_API_KEY，网络搜索将返回空结果")
		}
	}
	return nil
}
