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

package websearch

import (
	"fmt"
	"strings"

	"math-tutor/internal/pipeline/common"
)

// snippetRunes 每条结果在上下文中保留的正文长度
const snippetRunes = 300

// FormatResults 把搜索结果排版为提示词上下文
func FormatResults(results []common.WebResult) string {
	if len(results) == 0 {
		return "No web search results found."
	}
	var b strings.Builder
	b.WriteString("Web Search Results:\n\n")
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n", i+1, orDefault(r.Title, "No title"))
		fmt.Fprintf(&b, "   URL: %s\n", orDefault(r.URL, "No URL"))
		fmt.Fprintf(&b, "   Content: %s...\n\n", truncateRunes(orDefault(r.Content, "No content"), snippetRunes))
	}
	return b.String()
}

// Sources 每条结果一个 URL，缺失时为空串
func Sources(results []common.WebResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.URL
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
