package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"math-tutor/internal/feedback"
	"math-tutor/internal/pipeline/common"
)

// fakeAPI 记录收到的请求并返回固定应答
type fakeAPI struct {
	question string
	feedback common.FeedbackRequest
}

func (f *fakeAPI) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/query", func(w http.ResponseWriter, r *http.Request) {
		var req common.QueryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.question = req.Question
		_ = json.NewEncoder(w).Encode(common.QueryResponse{
			QueryID:            "20261016123045123456",
			Question:           req.Question,
			Answer:             "4",
			StepByStepSolution: "2 + 2 = 4",
			RouteUsed:          common.RouteKnowledgeBase,
			ConfidenceScore:    0.9,
			Sources:            []string{"Knowledge Base"},
		})
	})
	mux.HandleFunc("/api/feedback", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.feedback))
		_ = json.NewEncoder(w).Encode(common.FeedbackResponse{Success: true, Message: "Feedback received and processed"})
	})
	mux.HandleFunc("/api/metrics", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(common.MetricsResponse{TotalQueries: 3, FeedbackCount: 2, AvgRating: 4.5})
	})
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"down"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAsk(t *testing.T) {
	api := &fakeAPI{}
	srv := api.server(t)

	out, err := run(t, "--api-url", srv.URL, "ask", "What", "is", "2+2?")
	require.NoError(t, err)
	assert.Equal(t, "What is 2+2?", api.question)
	assert.Contains(t, out, "Answer:     4")
	assert.Contains(t, out, "Route:      knowledge_base")
	assert.Contains(t, out, "  - Knowledge Base")
}

func TestAsk_JSON(t *testing.T) {
	srv := (&fakeAPI{}).server(t)

	out, err := run(t, "--api-url", srv.URL, "ask", "--json", "What is 2+2?")
	require.NoError(t, err)
	var resp common.QueryResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "20261016123045123456", resp.QueryID)
}

func TestFeedback(t *testing.T) {
	api := &fakeAPI{}
	srv := api.server(t)

	out, err := run(t, "--api-url", srv.URL, "feedback", "20261016123045123456",
		"--rating", "2", "--text", "wrong", "--suggest", "B")
	require.NoError(t, err)
	assert.Contains(t, out, "Feedback received and processed")
	assert.Equal(t, common.FeedbackRequest{
		QueryID:         "20261016123045123456",
		Rating:          2,
		FeedbackText:    "wrong",
		SuggestedAnswer: "B",
	}, api.feedback)
}

func TestFeedback_RatingOutOfRange(t *testing.T) {
	srv := (&fakeAPI{}).server(t)

	_, err := run(t, "--api-url", srv.URL, "feedback", "q1", "--rating", "9")
	assert.Error(t, err)
}

func TestMetrics(t *testing.T) {
	srv := (&fakeAPI{}).server(t)

	out, err := run(t, "--api-url", srv.URL, "metrics")
	require.NoError(t, err)
	assert.Contains(t, out, "Total queries:      3")
	assert.Contains(t, out, "Average rating:     4.50")
}

func TestHealth_ServerError(t *testing.T) {
	srv := (&fakeAPI{}).server(t)

	_, err := run(t, "--api-url", srv.URL, "health")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestFeedbackLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback.json")
	doc := feedback.Document{
		Feedback: []common.FeedbackEntry{{
			QueryID:          "q1",
			Rating:           4,
			IsCorrect:        true,
			FeedbackText:     "clear",
			OriginalQuestion: string(bytes.Repeat([]byte("x"), 120)),
			OriginalAnswer:   "A",
			RouteUsed:        common.RouteKnowledgeBase,
		}},
		Statistics: &common.FeedbackStatistics{
			TotalFeedback: 1,
			Accuracy:      1,
			AvgRating:     4,
			RoutePerformance: map[string]*common.RouteStats{
				"knowledge_base": {Total: 1, Correct: 1},
			},
		},
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	out, err := run(t, "feedback-log", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Total Feedbacks:  1")
	assert.Contains(t, out, "Overall Accuracy: 100.0%")
	assert.Contains(t, out, "knowledge_base: 1/1 (100.0%)")
	assert.Contains(t, out, "Comment:   clear")
	assert.Contains(t, out, string(bytes.Repeat([]byte("x"), 100))+"...")
}

func TestFeedbackLog_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "none.json")

	out, err := run(t, "feedback-log", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No feedback file found")
}

func TestPrintFeedbackLog_Empty(t *testing.T) {
	var buf bytes.Buffer
	printFeedbackLog(&buf, "f.json", &feedback.Document{})
	assert.Contains(t, buf.String(), "No feedbacks submitted yet.")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "数学...", truncate("数学问题", 2))
}
