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
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"math-tutor/internal/pipeline/common"
)

func TestExtractAnswer(t *testing.T) {
	tests := []struct {
		solution string
		want     string
	}{
		{solution: `so the result is \boxed{ 42 }`, want: "42"},
		{solution: `\boxed{A} then \boxed{B}`, want: "A"},
		{solution: "Therefore the answer is: C", want: "C"},
		{solution: "The Answer Is 3.14 exactly", want: "3.14"},
		{solution: "no idea", want: ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ExtractAnswer(tc.solution), tc.solution)
	}
}

func TestCompareAnswers(t *testing.T) {
	tests := []struct {
		name      string
		predicted string
		gold      string
		qtype     string
		want      bool
	}{
		{name: "mcq case-insensitive", predicted: " b ", gold: "B", qtype: "MCQ", want: true},
		{name: "mcq mismatch", predicted: "A", gold: "B", qtype: "MCQ", want: false},
		{name: "multiple order-insensitive", predicted: "D A B", gold: "ABD", qtype: "MCQ(multiple)", want: true},
		{name: "multiple subset", predicted: "AB", gold: "ABD", qtype: "MCQ(multiple)", want: false},
		{name: "numeric tolerance", predicted: "3.141", gold: "3.14", qtype: "Numeric", want: true},
		{name: "numeric outside tolerance", predicted: "3.16", gold: "3.14", qtype: "Numeric", want: false},
		{name: "integer", predicted: "24", gold: "24.0", qtype: "Integer", want: true},
		{name: "non-numeric falls back to string", predicted: "x+1", gold: "X+1", qtype: "Integer", want: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CompareAnswers(tc.predicted, tc.gold, tc.qtype))
		})
	}
}

type scriptedProcessor map[string]*common.QueryResponse

func (p scriptedProcessor) Process(ctx context.Context, q string) (*common.QueryResponse, error) {
	resp, ok := p[q]
	if !ok {
		return nil, errors.New("upstream failure")
	}
	return resp, nil
}

func writeDataset(t *testing.T, items []common.DatasetItem) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.json")
	data, err := json.Marshal(items)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRunner_Run(t *testing.T) {
	dataset := writeDataset(t, []common.DatasetItem{
		{Question: "m1", Gold: "B", Subject: "math", Type: "MCQ", Index: 1},
		{Question: "m2", Gold: "24", Subject: "math", Type: "Integer", Index: 2},
		{Question: "p1", Gold: "6", Subject: "phy", Type: "Numeric", Index: 3},
		{Question: "c1", Gold: "AB", Subject: "chem", Type: "MCQ(multiple)", Index: 4},
	})
	proc := scriptedProcessor{
		"m1": {StepByStepSolution: `\boxed{B}`, RouteUsed: common.RouteKnowledgeBase},
		"m2": {StepByStepSolution: "the answer is 25", RouteUsed: common.RouteWebSearch},
		"c1": {StepByStepSolution: `\boxed{BA}`, RouteUsed: common.RouteKnowledgeBase},
	}
	results := filepath.Join(t.TempDir(), "logs", "benchmark_results.json")

	r := NewRunner(Config{DatasetPath: dataset, ResultsPath: results}, proc, nil)
	got, err := r.Run(context.Background(), common.BenchmarkRequest{})
	require.NoError(t, err)

	assert.Equal(t, 4, got.TotalQuestions)
	assert.Equal(t, 2, got.CorrectAnswers)
	assert.InDelta(t, 0.5, got.Accuracy, 1e-9)
	assert.Equal(t, map[string]float64{"math": 0.5, "chem": 1}, got.SubjectWiseAccuracy)
	assert.Equal(t, map[string]float64{"MCQ": 1, "Integer": 0, "MCQ(multiple)": 1}, got.TypeWiseAccuracy)
	assert.Equal(t, map[string]int{"knowledge_base": 2, "web_search": 1}, got.RouteDistribution)
	assert.GreaterOrEqual(t, got.AvgResponseTime, 0.0)

	data, err := os.ReadFile(results)
	require.NoError(t, err)
	var saved common.BenchmarkResult
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, 4, saved.TotalQuestions)
}

func TestRunner_FiltersSubjectsAndLimits(t *testing.T) {
	dataset := writeDataset(t, []common.DatasetItem{
		{Question: "m1", Gold: "B", Subject: "math", Type: "MCQ"},
		{Question: "p1", Gold: "6", Subject: "phy", Type: "Numeric"},
		{Question: "p2", Gold: "7", Subject: "phy", Type: "Numeric"},
	})
	proc := scriptedProcessor{
		"p1": {StepByStepSolution: `\boxed{6}`, RouteUsed: common.RouteWebSearch},
		"p2": {StepByStepSolution: `\boxed{7}`, RouteUsed: common.RouteWebSearch},
	}
	r := NewRunner(Config{DatasetPath: dataset, ResultsPath: filepath.Join(t.TempDir(), "out.json")}, proc, nil)

	got, err := r.Run(context.Background(), common.BenchmarkRequest{NumSamples: 1, Subjects: []string{"phy"}})
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalQuestions)
	assert.Equal(t, 1, got.CorrectAnswers)
	assert.Equal(t, map[string]int{"web_search": 1}, got.RouteDistribution)
}

func TestRunner_MissingDataset(t *testing.T) {
	r := NewRunner(Config{DatasetPath: filepath.Join(t.TempDir(), "missing.json")}, scriptedProcessor{}, nil)
	_, err := r.Run(context.Background(), common.BenchmarkRequest{})
	assert.Error(t, err)
}

func TestRunner_StopsOnCancelledContext(t *testing.T) {
	dataset := writeDataset(t, []common.DatasetItem{{Question: "m1", Gold: "B", Subject: "math", Type: "MCQ"}})
	r := NewRunner(Config{DatasetPath: dataset, ResultsPath: filepath.Join(t.TempDir(), "out.json")}, scriptedProcessor{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx, common.BenchmarkRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}
