package app

import (
	"context"
	"fmt"

	"math-tutor/internal/feedback"
	"math-tutor/internal/generation"
	"math-tutor/internal/model/embedding"
	"math-tutor/internal/model/llm"
	"math-tutor/pkg/config"
	"math-tutor/pkg/log"
)

// llmProvider 限流与指标中使用的 provider 名
const llmProvider = "openrouter"

// NewLLMRateLimiter 未配置 rate_limits.llm 时返回 nil（不限流）
func NewLLMRateLimiter(cfg *config.Config) *llm.LLMRateLimiter {
	if cfg == nil || len(cfg.RateLimits.LLM) == 0 {
		return nil
	}
	limits := make(map[string]llm.LLMLimitConfig, len(cfg.RateLimits.LLM))
	for provider, c := range cfg.RateLimits.LLM {
		limits[provider] = llm.LLMLimitConfig{
			TokensPerMinute:   c.TokensPerMinute,
			RequestsPerMinute: c.RequestsPerMinute,
			MaxConcurrent:     c.MaxConcurrent,
		}
	}
	return llm.NewLLMRateLimiter(limits, nil)
}

// NewGuardrailClassifier 护栏分类用的 LLM 客户端；关闭或无 API Key 时返回 nil
func NewGuardrailClassifier(cfg *config.Config, limiter *llm.LLMRateLimiter) llm.Client {
	if cfg == nil || !cfg.Guardrail.Enabled || cfg.Model.LLM.APIKey == "" {
		return nil
	}
	return withLimiter(llm.NewOpenAIClient(
		cfg.Model.LLM.GuardrailModel,
		cfg.Model.LLM.APIKey,
		cfg.Model.LLM.BaseURL,
		config.Duration(cfg.Model.LLM.Timeout, 0),
	), limiter)
}

// NewCompleterFromConfig 用 eino-ext openai ChatModel 连接 OpenRouter
func NewCompleterFromConfig(ctx context.Context, cfg *config.Config, limiter *llm.LLMRateLimiter) (generation.Completer, error) {
	temperature := cfg.Model.LLM.Temperature
	gc := generation.Config{
		APIKey:      cfg.Model.LLM.APIKey,
		BaseURL:     cfg.Model.LLM.BaseURL,
		Model:       cfg.Model.LLM.Model,
		MaxTokens:   cfg.Model.LLM.MaxTokens,
		Temperature: &temperature,
		Timeout:     config.Duration(cfg.Model.LLM.Timeout, 0),
	}
	chatModel, err := generation.NewOpenRouterChatModel(ctx, gc)
	if err != nil {
		return nil, err
	}
	completer := generation.NewChatModelCompleter(chatModel, cfg.Model.LLM.Model)
	return generation.NewRateLimitedCompleter(completer, limiter, llmProvider, cfg.Model.LLM.MaxTokens), nil
}

// NewEmbedderFromConfig 创建知识库检索与入库共用的 Embedder
func NewEmbedderFromConfig(cfg *config.Config) (*embedding.Embedder, error) {
	e := cfg.Model.Embedding
	emb, err := embedding.NewEmbedder(embedding.Config{
		APIKey:    e.APIKey,
		BaseURL:   e.BaseURL,
		Model:     e.Model,
		Dimension: e.Dimension,
		CacheSize: e.CacheSize,
		Timeout:   config.Duration(e.Timeout, 0),
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 Embedder 失败: %w", err)
	}
	return emb, nil
}

// NewRefinerFromConfig feedback.refiner=llm 且有 API Key 时使用模型改写，否则使用模板
func NewRefinerFromConfig(cfg *config.Config, limiter *llm.LLMRateLimiter, logger *log.Logger) feedback.Refiner {
	switch cfg.Feedback.Refiner {
	case "", "template":
		return feedback.TemplateRefiner{}
	case "llm":
		if cfg.Model.LLM.APIKey == "" {
			logger.Warn("feedback.refiner=llm 但未配置 API Key，使用模板改写")
			return feedback.TemplateRefiner{}
		}
		client := withLimiter(llm.NewOpenAIClient(
			cfg.Model.LLM.Model,
			cfg.Model.LLM.APIKey,
			cfg.Model.LLM.BaseURL,
			config.Duration(cfg.Model.LLM.Timeout, 0),
		), limiter)
		return feedback.NewLLMRefiner(client, cfg.Model.LLM.MaxTokens, cfg.Model.LLM.Temperature, logger)
	default:
		logger.Warn("未知的 feedback.refiner，使用模板改写", "refiner", cfg.Feedback.Refiner)
		return feedback.TemplateRefiner{}
	}
}

func withLimiter(c llm.Client, limiter *llm.LLMRateLimiter) llm.Client {
	if limiter == nil {
		return c
	}
	return llm.NewRateLimitedClient(c, limiter)
}
