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

// Package benchmark 在 JEE Bench 风格数据集上逐题评测编排器
package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"math-tutor/internal/knowledge"
	"math-tutor/internal/pipeline/common"
	"math-tutor/pkg/log"
)

// Processor 被评测的提问处理器
type Processor interface {
	Process(ctx context.Context, question string) (*common.QueryResponse, error)
}

// Config 数据集与结果文件路径
type Config struct {
	DatasetPath string
	ResultsPath string
}

// Runner 顺序评测，不并发
type Runner struct {
	cfg       Config
	processor Processor
	logger    *log.Logger
}

// NewRunner 路径为空时使用 data/dataset.json 与 logs/benchmark_results.json
func NewRunner(cfg Config, processor Processor, logger *log.Logger) *Runner {
	if cfg.DatasetPath == "" {
		cfg.DatasetPath = "data/dataset.json"
	}
	if cfg.ResultsPath == "" {
		cfg.ResultsPath = "logs/benchmark_results.json"
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Runner{cfg: cfg, processor: processor, logger: logger}
}

type tally struct {
	total, correct int
}

// Run 按学科过滤、按 NumSamples 截断后逐题评测；出错的题只计入总数
func (r *Runner) Run(ctx context.Context, req common.BenchmarkRequest) (*common.BenchmarkResult, error) {
	dataset, err := knowledge.ReadDataset(r.cfg.DatasetPath)
	if err != nil {
		return nil, err
	}
	dataset = selectItems(dataset, req.Subjects, req.NumSamples)
	r.logger.Info("开始基准评测", "questions", len(dataset))

	var (
		total, correct int
		bySubject      = map[string]*tally{}
		byType         = map[string]*tally{}
		routes         = map[string]int{}
		elapsed        time.Duration
		answered       int
	)
	for i, item := range dataset {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		resp, err := r.processor.Process(ctx, item.Question)
		total++
		if err != nil {
			r.logger.Error("评测题目出错", "index", i+1, "error", err)
			continue
		}

		predicted := ExtractAnswer(resp.StepByStepSolution)
		ok := CompareAnswers(predicted, item.Gold, item.Type)
		if ok {
			correct++
		}
		bump(bySubject, item.Subject, ok)
		bump(byType, item.Type, ok)
		routes[string(resp.RouteUsed)]++
		elapsed += time.Since(start)
		answered++

		r.logger.Info("评测进度", "index", i+1, "of", len(dataset), "correct", ok, "predicted", predicted, "gold", item.Gold)
	}

	result := &common.BenchmarkResult{
		TotalQuestions:      total,
		CorrectAnswers:      correct,
		Accuracy:            ratio(correct, total),
		SubjectWiseAccuracy: accuracies(bySubject),
		TypeWiseAccuracy:    accuracies(byType),
		RouteDistribution:   routes,
	}
	if answered > 0 {
		result.AvgResponseTime = elapsed.Seconds() / float64(answered)
	}

	if err := r.save(result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Runner) save(result *common.BenchmarkResult) error {
	if err := os.MkdirAll(filepath.Dir(r.cfg.ResultsPath), 0o755); err != nil {
		return fmt.Errorf("创建结果目录失败: %w", err)
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(r.cfg.ResultsPath, data, 0o644); err != nil {
		return fmt.Errorf("写入评测结果失败: %w", err)
	}
	r.logger.Info("评测结果已保存", "path", r.cfg.ResultsPath)
	return nil
}

func selectItems(items []common.DatasetItem, subjects []string, limit int) []common.DatasetItem {
	if len(subjects) > 0 {
		want := make(map[string]bool, len(subjects))
		for _, s := range subjects {
			want[s] = true
		}
		filtered := make([]common.DatasetItem, 0, len(items))
		for _, it := range items {
			if want[it.Subject] {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func bump(m map[string]*tally, key string, ok bool) {
	t, exists := m[key]
	if !exists {
		t = &tally{}
		m[key] = t
	}
	t.total++
	if ok {
		t.correct++
	}
}

func accuracies(m map[string]*tally) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, t := range m {
		out[k] = ratio(t.correct, t.total)
	}
	return out
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
