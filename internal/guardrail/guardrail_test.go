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

package guardrail

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"math-tutor/internal/model/llm"
	"math-tutor/pkg/metrics"
)

type fakeClassifier struct {
	reply string
	err   error
	calls int
	last  []llm.Message
	opts  llm.GenerateOptions
}

func (f *fakeClassifier) ChatWithContext(ctx context.Context, messages []llm.Message, options llm.GenerateOptions) (string, error) {
	f.calls++
	f.last = messages
	f.opts = options
	return f.reply, f.err
}

func (f *fakeClassifier) Model() string    { return "fake-guard" }
func (f *fakeClassifier) Provider() string { return "fake" }

func TestCheckInput_Rules(t *testing.T) {
	tests := []struct {
		name     string
		question string
		passed   bool
		reason   string
	}{
		{name: "empty", question: "", reason: ReasonTooShort},
		{name: "whitespace padded", question: "  ab  ", reason: ReasonTooShort},
		{name: "two runes multibyte", question: "π²", reason: ReasonTooShort},
		{name: "two runes integral", question: "∫x", reason: ReasonTooShort},
		{name: "hacking", question: "How to hack my school's grading system", reason: ReasonInappropriate},
		{name: "blocked beats allow-list", question: "Explain how to cheat on a math exam", reason: ReasonInappropriate},
		{name: "how to break", question: "how  to break into a car", reason: ReasonInappropriate},
		{name: "keyword inside word does not block", question: "Solve for the hacksaw blade length", passed: true},
		{name: "allow-list", question: "What is the derivative of x^2?", passed: true},
		{name: "allow-list mixed case", question: "SOLVE 2x = 4", passed: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cls := &fakeClassifier{reply: "FAIL: nope"}
			f := NewFilter(Config{Enabled: true}, cls, nil)
			out := f.CheckInput(context.Background(), tc.question)
			assert.Equal(t, tc.passed, out.Passed)
			assert.Equal(t, tc.reason, out.Reason)
			assert.Zero(t, cls.calls)
		})
	}
}

func TestCheckInput_Classifier(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		err    error
		passed bool
		reason string
	}{
		{name: "pass", reply: "  PASS", passed: true},
		{name: "fail with reason", reply: "FAIL: unrelated to science", reason: "unrelated to science"},
		{name: "fail without reason", reply: "FAIL:", reason: ReasonFailedCheck},
		{name: "unexpected reply", reply: "maybe", reason: "maybe"},
		{name: "unauthorized fails open", err: &llm.StatusError{StatusCode: 401}, passed: true},
		{name: "forbidden fails open", err: &llm.StatusError{StatusCode: 403}, passed: true},
		{name: "rate limited fails open", err: &llm.StatusError{StatusCode: 429}, passed: true},
		{name: "server error fails open", err: &llm.StatusError{StatusCode: 503}, passed: true},
		{name: "transport error fails open", err: errors.New("dial tcp: timeout"), passed: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cls := &fakeClassifier{reply: tc.reply, err: tc.err}
			f := NewFilter(Config{Enabled: true}, cls, nil)
			out := f.CheckInput(context.Background(), "Who painted the Mona Lisa?")
			assert.Equal(t, tc.passed, out.Passed)
			assert.Equal(t, tc.reason, out.Reason)
			require.Equal(t, 1, cls.calls)
			assert.Equal(t, 30, cls.opts.MaxTokens)
			assert.InDelta(t, 0.1, cls.opts.Temperature, 1e-9)
			require.Len(t, cls.last, 1)
			assert.Contains(t, cls.last[0].Content, "Question: Who painted the Mona Lisa?")
			assert.Contains(t, cls.last[0].Content, `Respond with ONLY "PASS" or "FAIL: <reason>"`)
		})
	}
}

func TestCheckInput_ClassifierDisabled(t *testing.T) {
	cls := &fakeClassifier{reply: "FAIL: x"}

	f := NewFilter(Config{Enabled: false}, cls, nil)
	assert.False(t, f.LLMEnabled())
	assert.True(t, f.CheckInput(context.Background(), "Who painted the Mona Lisa?").Passed)
	assert.Zero(t, cls.calls)

	noKey := NewFilter(Config{Enabled: true}, nil, nil)
	assert.False(t, noKey.LLMEnabled())
	assert.True(t, noKey.CheckInput(context.Background(), "Who painted the Mona Lisa?").Passed)
}

func TestCheckOutput(t *testing.T) {
	lenient := NewFilter(Config{}, nil, nil)
	strict := NewFilter(Config{OutputStrict: true}, nil, nil)

	tests := []struct {
		name       string
		response   string
		strictPass bool
	}{
		{name: "boxed", response: "so \\boxed{4}", strictPass: true},
		{name: "equals", response: "x=2", strictPass: true},
		{name: "steps", response: "Step 1: add", strictPass: true},
		{name: "uncertain", response: "I don't know the answer", strictPass: true},
		{name: "no math", response: "The Mona Lisa is a painting.", strictPass: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, lenient.CheckOutput(tc.response, "q").Passed)
			out := strict.CheckOutput(tc.response, "q")
			assert.Equal(t, tc.strictPass, out.Passed)
			if !tc.strictPass {
				assert.Equal(t, ReasonNoMathContent, out.Reason)
			}
		})
	}
}

func TestCheckInput_ClassifierErrorsCountedBySentinel(t *testing.T) {
	tests := []struct {
		err    error
		status string
	}{
		{err: &llm.StatusError{StatusCode: 403}, status: "unauthorized"},
		{err: fmt.Errorf("限流: %w", &llm.StatusError{StatusCode: 429}), status: "rate_limited"},
		{err: &llm.StatusError{StatusCode: 500}, status: "error"},
	}
	for _, tc := range tests {
		counter := metrics.ExternalCallTotal.WithLabelValues("guardrail", tc.status)
		before := testutil.ToFloat64(counter)
		f := NewFilter(Config{Enabled: true}, &fakeClassifier{err: tc.err}, nil)
		out := f.CheckInput(context.Background(), "Who painted the Mona Lisa?")
		assert.True(t, out.Passed)
		assert.Equal(t, before+1, testutil.ToFloat64(counter), "status %s", tc.status)
	}
}
