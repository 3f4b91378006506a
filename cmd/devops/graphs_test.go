package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"math-tutor/internal/pipeline/common"
)

type stubAgent struct{ got string }

func (a *stubAgent) Process(ctx context.Context, q string) (*common.QueryResponse, error) {
	a.got = q
	return &common.QueryResponse{Question: q, Answer: "A", RouteUsed: common.RouteKnowledgeBase}, nil
}

type stubGuard struct{ pass bool }

func (g stubGuard) CheckInput(ctx context.Context, q string) common.GuardrailOutcome {
	if g.pass {
		return common.GuardrailOutcome{Passed: true}
	}
	return common.GuardrailOutcome{Reason: "off topic"}
}

type stubSearcher struct{ calls int }

func (s *stubSearcher) Search(ctx context.Context, q string, k int) ([]common.RetrievedDocument, error) {
	s.calls++
	return []common.RetrievedDocument{{Question: q, Score: 0.9}}, nil
}

func TestTutorGraph(t *testing.T) {
	ctx := context.Background()
	agent := &stubAgent{}
	r, err := compileTutorGraph(ctx, agent)
	require.NoError(t, err)

	resp, err := r.Invoke(ctx, &DevInput{Question: "  What is 2+2?  "})
	require.NoError(t, err)
	assert.Equal(t, "What is 2+2?", agent.got)
	assert.Equal(t, "A", resp.Answer)

	_, err = r.Invoke(ctx, &DevInput{Question: " "})
	assert.Error(t, err)
}

func TestSearchGraph(t *testing.T) {
	ctx := context.Background()
	s := &stubSearcher{}

	r, err := compileSearchGraph(ctx, stubGuard{pass: true}, s, 3)
	require.NoError(t, err)
	out, err := r.Invoke(ctx, &DevInput{Question: "derivative of x^2"})
	require.NoError(t, err)
	assert.True(t, out.Guardrail.Passed)
	require.Len(t, out.Docs, 1)

	r, err = compileSearchGraph(ctx, stubGuard{}, s, 3)
	require.NoError(t, err)
	out, err = r.Invoke(ctx, &DevInput{Question: "weather"})
	require.NoError(t, err)
	assert.False(t, out.Guardrail.Passed)
	assert.Empty(t, out.Docs)
	assert.Equal(t, 1, s.calls)
}
