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

package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// DefaultRegistry 进程内默认注册表（/metrics 暴露）
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		QueryTotal, QueryDuration, StageDuration,
		GuardrailTotal, RetrievalBestScore, ConfidenceScore,
		ExternalCallTotal, FeedbackTotal, RateLimitWaitSeconds,
	)
}

// QueryTotal 处理完成的问题数（按路由）
var QueryTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tutor_query_total",
		Help: "处理完成的问题数（按路由）",
	},
	[]string{"route"}, // knowledge_base | web_search | reject | error
)

// QueryDuration 单个问题端到端耗时（秒）
var QueryDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "tutor_query_duration_seconds",
		Help:    "单个问题端到端耗时（秒）",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 40, 80},
	},
	[]string{"route"},
)

// StageDuration 状态机各阶段耗时（秒）
var StageDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "tutor_stage_duration_seconds",
		Help:    "状态机各阶段耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"stage"},
)

// GuardrailTotal 护栏判定次数
var GuardrailTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tutor_guardrail_total",
		Help: "护栏判定次数",
	},
	[]string{"direction", "decision"}, // input|output, pass|reject|fail_open
)

// RetrievalBestScore 路由时知识库最高相似度分布
var RetrievalBestScore = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "tutor_retrieval_best_score",
		Help:    "路由时知识库最高相似度",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	},
)

// ConfidenceScore 应答置信度分布
var ConfidenceScore = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "tutor_confidence_score",
		Help:    "应答置信度",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	},
	[]string{"route"},
)

// ExternalCallTotal 外部服务调用结果
var ExternalCallTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tutor_external_call_total",
		Help: "外部服务调用次数（按服务与结果）",
	},
	[]string{"service", "result"}, // llm|guardrail|search|embedding, ok|error
)

// FeedbackTotal 收到的反馈数
var FeedbackTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tutor_feedback_total",
		Help: "收到的反馈数",
	},
	[]string{"outcome"}, // recorded | unknown_query | refined
)

// RateLimitWaitSeconds 限流等待耗时
var RateLimitWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "tutor_rate_limit_wait_seconds",
		Help:    "限流等待耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"kind", "provider"},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
