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

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API         APIConfig         `mapstructure:"api"`
	Model       ModelConfig       `mapstructure:"model"`
	Guardrail   GuardrailConfig   `mapstructure:"guardrail"`
	Retrieval   RetrievalConfig   `mapstructure:"retrieval"`
	WebSearch   WebSearchConfig   `mapstructure:"web_search"`
	Knowledge   KnowledgeConfig   `mapstructure:"knowledge"`
	ExampleBank ExampleBankConfig `mapstructure:"example_bank"`
	Feedback    FeedbackConfig    `mapstructure:"feedback"`
	Benchmark   BenchmarkConfig   `mapstructure:"benchmark"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Secrets     SecretsConfig     `mapstructure:"secrets"`
	Log         LogConfig         `mapstructure:"log"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
	RateLimits  RateLimitsConfig  `mapstructure:"rate_limits"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port       int              `mapstructure:"port"`
	Host       string           `mapstructure:"host"`
	Timeout    string           `mapstructure:"timeout"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
	Grpc       GrpcConfig       `mapstructure:"grpc"`
}

// GrpcConfig gRPC 健康检查服务配置
type GrpcConfig struct {
	Enable bool `mapstructure:"enable"`
	Port   int  `mapstructure:"port"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	Auth          bool   `mapstructure:"auth"`
	RateLimit     bool   `mapstructure:"rate_limit"`
	RateLimitRPS  int    `mapstructure:"rate_limit_rps"`
	JWTKey        string `mapstructure:"jwt_key"`
	JWTTimeout    string `mapstructure:"jwt_timeout"`     // 如 "1h"
	JWTMaxRefresh string `mapstructure:"jwt_max_refresh"` // 如 "1h"
}

// ModelConfig 模型配置
type ModelConfig struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
}

// LLMConfig 生成与护栏分类共用的 OpenAI 兼容端点（默认 OpenRouter）
type LLMConfig struct {
	APIKey         string  `mapstructure:"api_key"`
	BaseURL        string  `mapstructure:"base_url"`
	Model          string  `mapstructure:"model"`
	GuardrailModel string  `mapstructure:"guardrail_model"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	Temperature    float64 `mapstructure:"temperature"`
	Timeout        string  `mapstructure:"timeout"`
}

// EmbeddingConfig Embedding 服务配置（OpenAI 兼容 /embeddings）
type EmbeddingConfig struct {
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	Dimension int    `mapstructure:"dimension"`
	CacheSize int    `mapstructure:"cache_size"`
	Timeout   string `mapstructure:"timeout"`
}

// GuardrailConfig 内容护栏配置
type GuardrailConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	OutputStrict bool `mapstructure:"output_strict"` // true 时输出缺少数学内容直接判失败
}

// RetrievalConfig 知识库检索与路由配置
type RetrievalConfig struct {
	TopK                int     `mapstructure:"top_k"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	ErrorPolicy         string  `mapstructure:"error_policy"` // fail_fast | fallback_web
}

// WebSearchConfig Tavily 网络搜索配置
type WebSearchConfig struct {
	APIKey     string   `mapstructure:"api_key"`
	BaseURL    string   `mapstructure:"base_url"`
	MaxResults int      `mapstructure:"max_results"`
	Domains    []string `mapstructure:"domains"`
	Timeout    string   `mapstructure:"timeout"`
}

// KnowledgeConfig 知识库数据集与入库配置
type KnowledgeConfig struct {
	DatasetPath string `mapstructure:"dataset_path"`
	BatchSize   int    `mapstructure:"batch_size"`
}

// ExampleBankConfig few-shot 示例库；Path 为空时使用内置示例
type ExampleBankConfig struct {
	Path string `mapstructure:"path"`
}

// FeedbackConfig 反馈日志与优化器配置
type FeedbackConfig struct {
	Store   string `mapstructure:"store"`   // memory | file | postgres
	Path    string `mapstructure:"path"`    // store=file 时的 JSON 文件
	DSN     string `mapstructure:"dsn"`     // store=postgres 时必填
	Refiner string `mapstructure:"refiner"` // template | llm
}

// BenchmarkConfig 基准评测配置
type BenchmarkConfig struct {
	DatasetPath string `mapstructure:"dataset_path"`
	ResultsPath string `mapstructure:"results_path"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Vector VectorConfig `mapstructure:"vector"`
	Cache  CacheConfig  `mapstructure:"cache"`
}

// VectorConfig 向量存储配置（memory 为内置内存；redis 使用 eino-ext；chromem 为嵌入式）
type VectorConfig struct {
	Type        string `mapstructure:"type"`
	Addr        string `mapstructure:"addr"`
	DB          string `mapstructure:"db"`           // Redis DB 编号，如 "0"
	Collection  string `mapstructure:"collection"`   // 知识库索引/集合名，入库与检索共用
	Password    string `mapstructure:"password"`     // Redis 密码，可选
	PersistPath string `mapstructure:"persist_path"` // chromem 持久化目录，空则纯内存
}

// CacheConfig 应答缓存配置（供反馈查找原始应答）
type CacheConfig struct {
	Type       string `mapstructure:"type"` // memory | redis
	Addr       string `mapstructure:"addr"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TTL        string `mapstructure:"ttl"`
	MaxEntries int    `mapstructure:"max_entries"`
}

// SecretsConfig 凭据来源；env 为默认，vault 时从 Vault 读取缺失的 key
type SecretsConfig struct {
	Provider string            `mapstructure:"provider"` // env | memory | vault
	Memory   map[string]string `mapstructure:"memory"`   // provider=memory 时预置的凭据，仅用于本地调试
	Vault    VaultConfig       `mapstructure:"vault"`
}

// VaultConfig Vault 连接配置
type VaultConfig struct {
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	PathPrefix string `mapstructure:"path_prefix"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// RateLimitsConfig LLM 调用限流（按 provider）
type RateLimitsConfig struct {
	LLM map[string]LLMRateLimitConfig `mapstructure:"llm"`
}

// LLMRateLimitConfig 单个 LLM Provider 的限流配置
type LLMRateLimitConfig struct {
	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// setDefaults 未配置项的默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8000)
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.timeout", "120s")
	v.SetDefault("api.cors.enable", true)
	v.SetDefault("api.cors.allow_origins", []string{"*"})
	v.SetDefault("api.middleware.rate_limit_rps", 20)
	v.SetDefault("api.middleware.jwt_timeout", "1h")
	v.SetDefault("api.middleware.jwt_max_refresh", "1h")
	v.SetDefault("api.grpc.port", 9090)

	v.SetDefault("model.llm.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("model.llm.model", "openai/gpt-3.5-turbo")
	v.SetDefault("model.llm.guardrail_model", "anthropic/claude-3-sonnet-20240229")
	v.SetDefault("model.llm.max_tokens", 1024)
	v.SetDefault("model.llm.temperature", 0.1)
	v.SetDefault("model.llm.timeout", "30s")
	v.SetDefault("model.embedding.base_url", "http://localhost:8081/v1")
	v.SetDefault("model.embedding.model", "sentence-transformers/all-MiniLM-L6-v2")
	v.SetDefault("model.embedding.dimension", 384)
	v.SetDefault("model.embedding.cache_size", 4096)
	v.SetDefault("model.embedding.timeout", "30s")

	v.SetDefault("guardrail.enabled", true)
	v.SetDefault("guardrail.output_strict", false)

	v.SetDefault("retrieval.top_k", 3)
	v.SetDefault("retrieval.similarity_threshold", 0.5)
	v.SetDefault("retrieval.error_policy", "fail_fast")

	v.SetDefault("web_search.base_url", "https://api.tavily.com")
	v.SetDefault("web_search.max_results", 5)
	v.SetDefault("web_search.timeout", "30s")

	v.SetDefault("knowledge.dataset_path", "data/dataset.json")
	v.SetDefault("knowledge.batch_size", 100)

	v.SetDefault("feedback.store", "file")
	v.SetDefault("feedback.path", "data/feedback.json")
	v.SetDefault("feedback.refiner", "template")

	v.SetDefault("benchmark.dataset_path", "data/dataset.json")
	v.SetDefault("benchmark.results_path", "logs/benchmark_results.json")

	v.SetDefault("storage.vector.type", "memory")
	v.SetDefault("storage.vector.collection", "math_knowledge_base")
	v.SetDefault("storage.cache.type", "memory")
	v.SetDefault("storage.cache.ttl", "24h")
	v.SetDefault("storage.cache.max_entries", 10000)

	v.SetDefault("secrets.provider", "env")
	v.SetDefault("secrets.vault.path_prefix", "secret")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("monitoring.prometheus.enable", true)
	v.SetDefault("monitoring.tracing.service_name", "math-tutor-api")
}

// envBindings 配置项到环境变量名的映射
var envBindings = map[string]string{
	"model.llm.api_key":         "OPENROUTER_API_KEY",
	"model.llm.model":           "LLM_MODEL",
	"model.llm.guardrail_model": "GUARDRAIL_MODEL",
	"model.llm.max_tokens":      "MAX_TOKENS",
	"model.llm.temperature":     "TEMPERATURE",
	"model.embedding.api_key":   "EMBEDDING_API_KEY",
	"model.embedding.model":     "EMBEDDING_MODEL",
	"web_search.api_key":        "TAVILY_API_KEY",
	"guardrail.enabled":         "GUARDRAIL_ENABLED",
	"log.level":                 "LOG_LEVEL",
	"storage.vector.collection": "QDRANT_COLLECTION_NAME",
}

// LoadConfig 加载配置文件；configPath 为空时只用默认值与环境变量
func LoadConfig(configPath string) (*Config, error) {
	// .env 不存在不是错误
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("无法读取 .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("绑定环境变量 %s 失败: %w", env, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("无法读取配置文件: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadAPIConfig 加载 API 配置（configs/api.yaml，不存在时退化为默认值）
func LoadAPIConfig() (*Config, error) {
	path := "configs/api.yaml"
	if p := os.Getenv("TUTOR_CONFIG"); p != "" {
		path = p
	}
	if _, err := os.Stat(path); err != nil {
		return LoadConfig("")
	}
	return LoadConfig(path)
}

// Validate 校验取值范围
func (c *Config) Validate() error {
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k 必须大于 0，当前: %d", c.Retrieval.TopK)
	}
	if c.Retrieval.SimilarityThreshold < 0 || c.Retrieval.SimilarityThreshold > 1 {
		return fmt.Errorf("retrieval.similarity_threshold 必须在 [0,1]，当前: %v", c.Retrieval.SimilarityThreshold)
	}
	switch c.Retrieval.ErrorPolicy {
	case "", "fail_fast", "fallback_web":
	default:
		return fmt.Errorf("不支持的 retrieval.error_policy: %s", c.Retrieval.ErrorPolicy)
	}
	return nil
}

// replaceEnvVars 展开凭据类字段中的 ${VAR}
func replaceEnvVars(config *Config) {
	for _, p := range []*string{
		&config.Model.LLM.APIKey,
		&config.Model.Embedding.APIKey,
		&config.WebSearch.APIKey,
		&config.Feedback.DSN,
		&config.API.Middleware.JWTKey,
		&config.Secrets.Vault.Token,
		&config.Storage.Cache.Password,
		&config.Storage.Vector.Password,
	} {
		*p = expandEnv(*p)
	}
}

func expandEnv(s string) string {
	if !strings.HasPrefix(s, "$") {
		return s
	}
	envVar := strings.TrimPrefix(strings.TrimSuffix(s, "}"), "${")
	envVar = strings.TrimPrefix(envVar, "$")
	return os.Getenv(envVar)
}

// Duration 解析时长字符串，无效或空时返回 defaultVal
func Duration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
