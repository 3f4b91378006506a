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

package benchmark

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"math-tutor/internal/pipeline/common"
)

var (
	boxedPattern    = regexp.MustCompile(`\\boxed\{([^}]+)\}`)
	answerIsPattern = regexp.MustCompile(`(?i)answer is[:\s]+([A-Z0-9.]+)`)
)

// ExtractAnswer 依次尝试 \boxed{...} 与 "answer is X"，都没有时返回空串
func ExtractAnswer(solution string) string {
	if m := boxedPattern.FindStringSubmatch(solution); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := answerIsPattern.FindStringSubmatch(solution); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// CompareAnswers 单选精确匹配，多选比较选项集合，其余按数值（容差 0.01）比较
func CompareAnswers(predicted, gold, questionType string) bool {
	predicted = strings.ToUpper(strings.TrimSpace(predicted))
	gold = strings.ToUpper(strings.TrimSpace(gold))

	switch common.QuestionType(questionType) {
	case common.QuestionMCQ:
		return predicted == gold
	case common.QuestionMCQMultiple:
		return sameRuneSet(predicted, gold)
	default:
		p, perr := strconv.ParseFloat(predicted, 64)
		g, gerr := strconv.ParseFloat(gold, 64)
		if perr != nil || gerr != nil {
			return predicted == gold
		}
		return math.Abs(p-g) < 0.01
	}
}

func sameRuneSet(a, b string) bool {
	set := func(s string) map[rune]struct{} {
		out := make(map[rune]struct{})
		for _, r := range strings.ReplaceAll(s, " ", "") {
			out[r] = struct{}{}
		}
		return out
	}
	sa, sb := set(a), set(b)
	if len(sa) != len(sb) {
		return false
	}
	for r := range sa {
		if _, ok := sb[r]; !ok {
			return false
		}
	}
	return true
}
