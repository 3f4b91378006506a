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

package feedback

import (
	"context"
	"fmt"
	"strings"

	"math-tutor/internal/model/llm"
	"math-tutor/pkg/log"
)

// Refiner 根据人工反馈改写解答
type Refiner interface {
	Refine(ctx context.Context, question, originalSolution, feedbackText, suggestedAnswer string) (string, error)
}

const (
	templateNote = "Please note: Advanced optimization requires an LLM refinement backend."
	fallbackNote = "Note: This is a simplified refinement as LLM optimization encountered an issue."
)

func templateRefinement(question, feedbackText, suggestedAnswer, note string) string {
	suggested := ""
	if suggestedAnswer != "" {
		suggested = "Suggested answer: " + suggestedAnswer
	}
	return fmt.Sprintf("Based on your feedback: %s\n\nHere's an improved approach to the original question: %s\n\n%s\n\n%s",
		feedbackText, question, suggested, note)
}

// TemplateRefiner 不调用模型的默认实现
type TemplateRefiner struct{}

func (TemplateRefiner) Refine(ctx context.Context, question, originalSolution, feedbackText, suggestedAnswer string) (string, error) {
	return templateRefinement(question, feedbackText, suggestedAnswer, templateNote), nil
}

// LLMRefiner 让模型基于反馈重写解答，失败时退回模板
type LLMRefiner struct {
	client  llm.Client
	options llm.GenerateOptions
	logger  *log.Logger
}

// NewLLMRefiner maxTokens<=0 时为 1024
func NewLLMRefiner(client llm.Client, maxTokens int, temperature float64, logger *log.Logger) *LLMRefiner {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &LLMRefiner{
		client:  client,
		options: llm.GenerateOptions{MaxTokens: maxTokens, Temperature: temperature},
		logger:  logger,
	}
}

func (r *LLMRefiner) Refine(ctx context.Context, question, originalSolution, feedbackText, suggestedAnswer string) (string, error) {
	out, err := r.client.ChatWithContext(ctx, llm.UserMessage(refinementPrompt(question, originalSolution, feedbackText, suggestedAnswer)), r.options)
	if err == nil && strings.TrimSpace(out) != "" {
		return out, nil
	}
	if err != nil {
		r.logger.Error("反馈优化调用 LLM 失败，使用模板", "error", err)
	}
	return templateRefinement(question, feedbackText, suggestedAnswer, fallbackNote), nil
}

func refinementPrompt(question, originalSolution, feedbackText, suggestedAnswer string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original Question: %s\n\nOriginal Answer: %s\n\nHuman Feedback: %s\n", question, originalSolution, feedbackText)
	if suggestedAnswer != "" {
		fmt.Fprintf(&b, "\nSuggested Correct Answer: %s", suggestedAnswer)
	}
	b.WriteString("\n\nBased on the feedback, provide an improved step-by-step solution that addresses the issues mentioned.\n")
	b.WriteString("Ensure the solution is mathematically correct and pedagogically clear.\n")
	return b.String()
}
