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

// Package guardrail 输入/输出护栏：规则优先，LLM 分类兜底，分类失败时放行
package guardrail

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"math-tutor/internal/model/llm"
	"math-tutor/internal/pipeline/common"
	"math-tutor/pkg/log"
	"math-tutor/pkg/metrics"
)

// 拒绝原因
const (
	ReasonTooShort      = "Question is too short or empty"
	ReasonInappropriate = "Question contains inappropriate or potentially harmful content"
	ReasonFailedCheck   = "Question failed educational content check"
	ReasonNoMathContent = "Response lacks mathematical content"
)

var disallowedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(hack|hacking|crack|cracking|cheat|cheating|steal|stealing)\b`),
	regexp.MustCompile(`\b(porn|sex|adult|sexual)\b`),
	regexp.MustCompile(`\b(kill|murder|violence|attack|exploit)\b`),
	regexp.MustCompile(`\b(illegal|criminal|fraud|scam)\b`),
	regexp.MustCompile(`\bhow\s+to\s+(hack|crack|break|exploit)\b`),
}

var educationalKeywords = []string{
	"formula", "equation", "solve", "calculate", "trigonometry", "algebra",
	"geometry", "physics", "chemistry", "mathematics", "math", "derivative",
	"integral", "theorem", "proof", "explain", "what is",
}

var uncertaintyPhrases = []string{
	"i don't know",
	"i cannot answer",
	"insufficient information",
	"not available in my knowledge",
}

const classifierPrompt = `You are a strict content filter for an educational math tutoring system.

Analyze this question and determine if it is educational and appropriate:

Question: %s

This should PASS ONLY if:
- Directly related to mathematics, physics, chemistry, or science education
- Asking for mathematical formulas, concepts, or problem solving
- Appropriate educational content for students

This should FAIL if:
- Contains ANY harmful, offensive, or inappropriate content
- Asks about hacking, cracking, illegal activities, or security exploits
- Completely unrelated to mathematics or science education
- Could be used for harmful purposes
- Contains profanity or adult content

Be STRICT - when in doubt, FAIL the question.

Respond with ONLY "PASS" or "FAIL: <reason>"
`

// Config 护栏配置
type Config struct {
	// Enabled 是否启用 LLM 分类
	Enabled bool
	// OutputStrict 为 true 时输出缺少数学内容直接拒绝
	OutputStrict bool
}

// Filter 护栏过滤器，无内部可变状态，可并发使用
type Filter struct {
	cfg        Config
	classifier llm.Client
	logger     *log.Logger
}

// NewFilter classifier 为 nil 表示未配置分类服务，只跑规则
func NewFilter(cfg Config, classifier llm.Client, logger *log.Logger) *Filter {
	if logger == nil {
		logger = log.Nop()
	}
	switch {
	case cfg.Enabled && classifier == nil:
		logger.Warn("护栏 LLM 检查已启用但未配置 API Key，仅执行规则检查")
	case cfg.Enabled:
		logger.Info("护栏 LLM 检查已启用", "model", classifier.Model())
	default:
		logger.Warn("护栏 LLM 检查已关闭，仅执行规则检查")
	}
	return &Filter{cfg: cfg, classifier: classifier, logger: logger}
}

// LLMEnabled 是否会调用分类服务
func (f *Filter) LLMEnabled() bool {
	return f.cfg.Enabled && f.classifier != nil
}

// CheckInput 按顺序执行：长度、违禁模式、白名单、LLM 分类、默认放行
func (f *Filter) CheckInput(ctx context.Context, question string) common.GuardrailOutcome {
	out := f.checkInput(ctx, question)
	metrics.GuardrailTotal.WithLabelValues("input", decision(out)).Inc()
	return out
}

func (f *Filter) checkInput(ctx context.Context, question string) common.GuardrailOutcome {
	if utf8.RuneCountInString(strings.TrimSpace(question)) < 3 {
		return reject(ReasonTooShort)
	}

	lower := strings.ToLower(question)
	for _, p := range disallowedPatterns {
		if p.MatchString(lower) {
			f.logger.Warn("问题命中违禁模式", "pattern", p.String())
			return reject(ReasonInappropriate)
		}
	}

	for _, kw := range educationalKeywords {
		if strings.Contains(lower, kw) {
			f.logger.Debug("问题包含教育类关键词，直接放行", "keyword", kw)
			return pass()
		}
	}

	if f.LLMEnabled() {
		return f.classify(ctx, question)
	}
	return pass()
}

func (f *Filter) classify(ctx context.Context, question string) common.GuardrailOutcome {
	reply, err := f.classifier.ChatWithContext(ctx, llm.UserMessage(fmt.Sprintf(classifierPrompt, question)), llm.GenerateOptions{
		Temperature: 0.1,
		MaxTokens:   30,
	})
	if err != nil {
		var statusErr *llm.StatusError
		switch {
		case errors.Is(err, common.ErrUnauthorized):
			f.logger.Error("护栏 API 认证失败，请检查 OPENROUTER_API_KEY")
			metrics.ExternalCallTotal.WithLabelValues("guardrail", "unauthorized").Inc()
		case errors.Is(err, common.ErrRateLimit):
			f.logger.Warn("护栏 API 触发速率限制 (429)")
			metrics.ExternalCallTotal.WithLabelValues("guardrail", "rate_limited").Inc()
		case errors.As(err, &statusErr):
			f.logger.Error("护栏 API 返回错误", "status", statusErr.StatusCode)
			metrics.ExternalCallTotal.WithLabelValues("guardrail", "error").Inc()
		default:
			f.logger.Error("护栏 LLM 检查失败", "error", err)
			metrics.ExternalCallTotal.WithLabelValues("guardrail", "error").Inc()
		}
		return pass()
	}
	metrics.ExternalCallTotal.WithLabelValues("guardrail", "ok").Inc()

	content := strings.TrimSpace(reply)
	if strings.HasPrefix(content, "PASS") {
		return pass()
	}
	reason := strings.TrimSpace(strings.ReplaceAll(content, "FAIL:", ""))
	if reason == "" {
		reason = ReasonFailedCheck
	}
	return reject(reason)
}

// CheckOutput 检查生成内容是否像一份数学解答
func (f *Filter) CheckOutput(response, question string) common.GuardrailOutcome {
	lower := strings.ToLower(response)
	uncertain := containsAny(lower, uncertaintyPhrases)
	hasMath := strings.Contains(response, "=") ||
		strings.Contains(response, `\boxed`) ||
		containsAny(lower, []string{"therefore", "solution:", "step"})

	out := pass()
	if !hasMath && !uncertain {
		f.logger.Warn("输出缺少数学内容", "question", truncate(question, 100))
		if f.cfg.OutputStrict {
			out = reject(ReasonNoMathContent)
		}
	}
	metrics.GuardrailTotal.WithLabelValues("output", decision(out)).Inc()
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func pass() common.GuardrailOutcome { return common.GuardrailOutcome{Passed: true} }

func reject(reason string) common.GuardrailOutcome {
	return common.GuardrailOutcome{Passed: false, Reason: reason}
}

func decision(o common.GuardrailOutcome) string {
	if o.Passed {
		return "pass"
	}
	return "fail"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
