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

package tutor

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"math-tutor/internal/examplebank"
	"math-tutor/internal/pipeline/common"
	"math-tutor/internal/websearch"
)

const (
	answerNotFound = "Answer not found"
	rejectTemplate = "I cannot process this question. Reason: %s"
	outputRejected = "I generated a response but it didn't pass quality checks. Please rephrase your question."
)

var boxedAnswer = regexp.MustCompile(`\\boxed\{([^}]+)\}`)

// buildKBContext 取前两道相似题，附格式示例
func buildKBContext(docs []common.RetrievedDocument, ex examplebank.Example) string {
	var b strings.Builder
	b.WriteString("You are a mathematical professor helping students. Here are similar problems:\n\n")
	for i, d := range docs {
		if i == 2 {
			break
		}
		fmt.Fprintf(&b, "Question: %s\nAnswer: %s\n\n", d.Question, d.Gold)
	}
	fmt.Fprintf(&b, "\nExample of how to format your solution:\n\nProblem: %s\n\nSolution: %s\n\n", ex.Problem, ex.Solution)
	return b.String()
}

func buildWebContext(results []common.WebResult, ex examplebank.Example) string {
	var b strings.Builder
	b.WriteString("You are a mathematical professor. Use these web resources:\n\n")
	b.WriteString(websearch.FormatResults(results))
	fmt.Fprintf(&b, "\nExample solution format:\n\nProblem: %s\n\nSolution: %s\n\n", ex.Problem, ex.Solution)
	return b.String()
}

func buildPrompt(context, question string) string {
	var b strings.Builder
	b.WriteString(context)
	b.WriteString("\n\nNow solve this question with detailed step-by-step explanation:\n\n")
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nProvide:\n")
	b.WriteString("1. A clear step-by-step solution\n")
	b.WriteString("2. Mathematical reasoning for each step\n")
	b.WriteString("3. Final answer in \\boxed{} format\n\n")
	b.WriteString("Solution:")
	return b.String()
}

// extractAnswer 取第一个 \boxed{...} 的内容
func extractAnswer(solution string) string {
	m := boxedAnswer.FindStringSubmatch(solution)
	if m == nil {
		return answerNotFound
	}
	return m[1]
}

// confidence KB 取最高相似度（上限 0.95），web 视是否有结果取 0.7/0.3，带 \boxed 再加 0.05
func confidence(st *AgentState) float64 {
	c := 0.5
	switch st.Route {
	case common.RouteKnowledgeBase:
		if len(st.RetrievedDocs) > 0 {
			c = math.Min(st.RetrievedDocs[0].Score, 0.95)
		}
	default:
		if len(st.WebResults) > 0 {
			c = 0.7
		} else {
			c = 0.3
		}
	}
	if strings.Contains(st.Solution, `\boxed`) {
		c += 0.05
	}
	if math.IsNaN(c) || math.IsInf(c, 0) {
		c = 0.5
	}
	c = math.Max(0, math.Min(1, c))
	return math.Round(c*100) / 100
}
