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

// Package tutor 提问编排：护栏 -> 路由 -> 知识库/网络搜索 -> 解题 -> 输出护栏
package tutor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"math-tutor/internal/examplebank"
	"math-tutor/internal/generation"
	"math-tutor/internal/pipeline/common"
	"math-tutor/internal/websearch"
	"math-tutor/pkg/log"
	"math-tutor/pkg/metrics"
	"math-tutor/pkg/tracing"
)

// 检索失败时的处理策略
const (
	ErrorPolicyFailFast    = "fail_fast"
	ErrorPolicyFallbackWeb = "fallback_web"
)

// Guardrail 输入/输出护栏
type Guardrail interface {
	CheckInput(ctx context.Context, question string) common.GuardrailOutcome
	CheckOutput(response, question string) common.GuardrailOutcome
}

// KnowledgeSearcher 题库检索，结果按分数降序
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]common.RetrievedDocument, error)
}

// WebSearcher 网络搜索，失败时返回空结果
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) []common.WebResult
}

// Config 编排参数
type Config struct {
	TopK                int
	SimilarityThreshold float64
	MaxWebResults       int
	ErrorPolicy         string
}

func (c *Config) withDefaults() {
	if c.TopK <= 0 {
		c.TopK = 3
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = 0.5
	}
	if c.MaxWebResults <= 0 {
		c.MaxWebResults = 5
	}
	if c.ErrorPolicy == "" {
		c.ErrorPolicy = ErrorPolicyFailFast
	}
}

// Agent 无请求级可变状态，可并发处理多个提问
type Agent struct {
	cfg       Config
	guard     Guardrail
	knowledge KnowledgeSearcher
	web       WebSearcher
	completer generation.Completer
	example   examplebank.Example
	ids       *IDGenerator
	now       func() time.Time
	logger    *log.Logger
}

// Deps Agent 的外部依赖
type Deps struct {
	Guardrail Guardrail
	Knowledge KnowledgeSearcher
	Web       WebSearcher
	Completer generation.Completer
	Examples  *examplebank.Bank
	Logger    *log.Logger
	// Now 测试时注入时钟
	Now func() time.Time
}

// NewAgent 示例库必须包含 math/MCQ
func NewAgent(cfg Config, deps Deps) (*Agent, error) {
	if deps.Guardrail == nil || deps.Knowledge == nil || deps.Web == nil || deps.Completer == nil {
		return nil, fmt.Errorf("%w: tutor agent 缺少依赖", common.ErrInvalidInput)
	}
	cfg.withDefaults()
	if cfg.ErrorPolicy != ErrorPolicyFailFast && cfg.ErrorPolicy != ErrorPolicyFallbackWeb {
		return nil, fmt.Errorf("%w: 未知的 error_policy %q", common.ErrInvalidInput, cfg.ErrorPolicy)
	}
	example, err := deps.Examples.Require(string(common.SubjectMath), string(common.QuestionMCQ))
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Nop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Agent{
		cfg:       cfg,
		guard:     deps.Guardrail,
		knowledge: deps.Knowledge,
		web:       deps.Web,
		completer: deps.Completer,
		example:   example,
		ids:       NewIDGenerator(now),
		now:       now,
		logger:    logger,
	}, nil
}

// Process 驱动状态机直到 END；只有 fail_fast 下的检索错误会返回 error
func (a *Agent) Process(ctx context.Context, question string) (*common.QueryResponse, error) {
	st := NewAgentState(a.ids.Next(), question)
	ctx, span := tracing.StartQuerySpan(ctx, st.QueryID)
	start := time.Now()
	a.logger.Info("开始处理提问", "query_id", st.QueryID, "question", truncate(question, 100))

	for st.Stage != StageEnd {
		if err := a.Advance(ctx, st); err != nil {
			tracing.EndSpan(span, err)
			metrics.QueryTotal.WithLabelValues("error").Inc()
			return nil, err
		}
	}
	tracing.EndSpan(span, nil)

	route := string(st.Route)
	metrics.QueryTotal.WithLabelValues(route).Inc()
	metrics.QueryDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	metrics.ConfidenceScore.WithLabelValues(route).Observe(st.Confidence)
	a.logger.Info("提问处理完成", "query_id", st.QueryID, "route", route, "confidence", st.Confidence)
	return st.Response(a.now()), nil
}

// Advance 执行当前阶段并转移到 Next
func (a *Agent) Advance(ctx context.Context, st *AgentState) error {
	stage := st.Stage
	if stage == StageEnd {
		return nil
	}
	ctx, span := tracing.StartStageSpan(ctx, st.QueryID, strings.ToLower(string(stage)))
	start := time.Now()

	err := a.run(ctx, stage, st)

	metrics.StageDuration.WithLabelValues(strings.ToLower(string(stage))).Observe(time.Since(start).Seconds())
	tracing.EndSpan(span, err)
	if err != nil {
		return err
	}
	st.Stage = Next(stage, st)
	return nil
}

func (a *Agent) run(ctx context.Context, stage Stage, st *AgentState) error {
	switch stage {
	case StageStart:
		return nil
	case StageInputGuardrail:
		a.inputGuardrail(ctx, st)
	case StageRouter:
		return a.route(ctx, st)
	case StageKBRetrieval:
		a.logger.Info("使用知识库结果", "query_id", st.QueryID, "docs", len(st.RetrievedDocs))
	case StageWebSearch:
		a.webSearch(ctx, st)
	case StageSolutionGenerator:
		a.generate(ctx, st)
	case StageOutputGuardrail:
		a.outputGuardrail(st)
	default:
		return fmt.Errorf("unknown stage %q", stage)
	}
	return nil
}

func (a *Agent) inputGuardrail(ctx context.Context, st *AgentState) {
	out := a.guard.CheckInput(ctx, st.Question)
	st.GuardrailPassed = out.Passed
	if out.Passed {
		return
	}
	a.logger.Warn("输入护栏拒绝", "query_id", st.QueryID, "reason", out.Reason)
	st.Answer = fmt.Sprintf(rejectTemplate, out.Reason)
	st.Route = common.RouteReject
}

func (a *Agent) route(ctx context.Context, st *AgentState) error {
	docs, err := a.knowledge.Search(ctx, st.Question, a.cfg.TopK)
	if err != nil {
		if a.cfg.ErrorPolicy == ErrorPolicyFailFast {
			return err
		}
		a.logger.Error("知识库检索失败，改走网络搜索", "query_id", st.QueryID, "error", err)
		st.Route = common.RouteWebSearch
		return nil
	}

	if len(docs) == 0 {
		a.logger.Info("知识库无结果，改走网络搜索", "query_id", st.QueryID)
		st.Route = common.RouteWebSearch
		return nil
	}

	best := docs[0].Score
	metrics.RetrievalBestScore.Observe(best)
	a.logger.Info("知识库检索结果", "query_id", st.QueryID, "best_score", best, "threshold", a.cfg.SimilarityThreshold)
	for i, d := range docs {
		if i == 3 {
			break
		}
		a.logger.Info("候选题目", "rank", i+1, "score", d.Score, "subject", d.Subject, "question", truncate(d.Question, 50))
	}

	if best >= a.cfg.SimilarityThreshold {
		st.Route = common.RouteKnowledgeBase
		st.RetrievedDocs = docs
		return nil
	}
	st.Route = common.RouteWebSearch
	return nil
}

func (a *Agent) webSearch(ctx context.Context, st *AgentState) {
	a.logger.Info("执行网络搜索", "query_id", st.QueryID, "question", truncate(st.Question, 50))
	results := a.web.Search(ctx, st.Question, a.cfg.MaxWebResults)
	st.WebResults = results
	st.Sources = websearch.Sources(results)
}

func (a *Agent) generate(ctx context.Context, st *AgentState) {
	var promptCtx string
	if st.Route == common.RouteKnowledgeBase {
		promptCtx = buildKBContext(st.RetrievedDocs, a.example)
	} else {
		promptCtx = buildWebContext(st.WebResults, a.example)
	}

	solution, err := a.completer.Complete(ctx, buildPrompt(promptCtx, st.Question))
	if err != nil {
		a.logger.Error("生成解答失败", "query_id", st.QueryID, "error", err)
		st.Solution = "Error generating solution: " + err.Error()
		st.Answer = "Error occurred"
		st.Confidence = 0
		return
	}
	st.Solution = solution
	st.Answer = extractAnswer(solution)
	st.Confidence = confidence(st)
	a.logger.Info("解答生成完成", "query_id", st.QueryID, "answer", st.Answer, "chars", len(solution))
}

func (a *Agent) outputGuardrail(st *AgentState) {
	out := a.guard.CheckOutput(st.Solution, st.Question)
	if out.Passed {
		return
	}
	a.logger.Warn("输出护栏拒绝", "query_id", st.QueryID, "reason", out.Reason)
	st.Answer = outputRejected
	st.Confidence = 0
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
