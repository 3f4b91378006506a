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

// Package examplebank 解题格式示例库，按 学科/题型 索引，加载后只读
package examplebank

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

//go:embed few_shot_examples.json
var defaultBank []byte

// Example 一道示例题及其标准解答格式
type Example struct {
	Problem  string `json:"problem"`
	Solution string `json:"solution"`
}

// Bank subject -> type -> Example
type Bank struct {
	entries map[string]map[string]Example
}

// Default 返回内置示例库
func Default() (*Bank, error) {
	return Parse(defaultBank)
}

// Load path 为空时使用内置示例库
func Load(path string) (*Bank, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取示例库失败: %w", err)
	}
	return Parse(data)
}

// Parse 解析 {subject:{type:{problem,solution}}}
func Parse(data []byte) (*Bank, error) {
	entries := make(map[string]map[string]Example)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("解析示例库失败: %w", err)
	}
	return &Bank{entries: entries}, nil
}

// Lookup 按学科与题型查找
func (b *Bank) Lookup(subject, qtype string) (Example, bool) {
	if b == nil {
		return Example{}, false
	}
	ex, ok := b.entries[subject][qtype]
	return ex, ok
}

// Require 与 Lookup 相同，缺失时返回错误，供启动期校验
func (b *Bank) Require(subject, qtype string) (Example, error) {
	ex, ok := b.Lookup(subject, qtype)
	if !ok {
		return Example{}, fmt.Errorf("示例库缺少条目 %s/%s", subject, qtype)
	}
	return ex, nil
}

// Subjects 已收录的学科，按字母序
func (b *Bank) Subjects() []string {
	out := make([]string, 0, len(b.entries))
	for s := range b.entries {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
