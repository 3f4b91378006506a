package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"math-tutor/internal/feedback"
	"math-tutor/internal/pipeline/common"
)

var rule = strings.Repeat("=", 80)

func printResponse(w io.Writer, r *common.QueryResponse) {
	fmt.Fprintf(w, "Query ID:   %s\n", r.QueryID)
	fmt.Fprintf(w, "Route:      %s\n", r.RouteUsed)
	fmt.Fprintf(w, "Confidence: %.2f\n", r.ConfidenceScore)
	fmt.Fprintf(w, "Answer:     %s\n", r.Answer)
	if r.StepByStepSolution != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Solution:")
		fmt.Fprintln(w, r.StepByStepSolution)
	}
	if len(r.Sources) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Sources:")
		for _, s := range r.Sources {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
}

func printMetrics(w io.Writer, m *common.MetricsResponse) {
	fmt.Fprintf(w, "Total queries:      %d\n", m.TotalQueries)
	fmt.Fprintf(w, "Knowledge base:     %d\n", m.KBQueries)
	fmt.Fprintf(w, "Web search:         %d\n", m.WebSearchQueries)
	fmt.Fprintf(w, "Rejected:           %d\n", m.RejectedQueries)
	fmt.Fprintf(w, "Feedback count:     %d\n", m.FeedbackCount)
	fmt.Fprintf(w, "Average rating:     %.2f\n", m.AvgRating)
	fmt.Fprintf(w, "Average confidence: %.2f\n", m.AvgConfidence)
}

func printSearchResults(w io.Writer, query string, docs []common.RetrievedDocument) {
	fmt.Fprintf(w, "Query: %s\n", query)
	if len(docs) == 0 {
		fmt.Fprintln(w, "No matching questions found")
		return
	}
	for i, d := range docs {
		fmt.Fprintf(w, "%d. Score: %.3f | Subject: %s | Type: %s\n", i+1, d.Score, d.Subject, d.Type)
		fmt.Fprintf(w, "   Question: %s\n", truncate(d.Question, 100))
		fmt.Fprintf(w, "   Gold: %s\n", d.Gold)
	}
}

func printBenchmark(w io.Writer, r *common.BenchmarkResult) {
	fmt.Fprintf(w, "Accuracy: %.2f%% (%d/%d)\n", r.Accuracy*100, r.CorrectAnswers, r.TotalQuestions)
	fmt.Fprintf(w, "Average response time: %.2fs\n", r.AvgResponseTime)
	printRatios(w, "Subject accuracy", r.SubjectWiseAccuracy)
	printRatios(w, "Type accuracy", r.TypeWiseAccuracy)
	if len(r.RouteDistribution) > 0 {
		fmt.Fprintln(w, "Routes:")
		for _, k := range sortedKeys(r.RouteDistribution) {
			fmt.Fprintf(w, "  %s: %d\n", k, r.RouteDistribution[k])
		}
	}
}

func printRatios(w io.Writer, title string, m map[string]float64) {
	if len(m) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
	for _, k := range sortedKeys(m) {
		fmt.Fprintf(w, "  %s: %.2f%%\n", k, m[k]*100)
	}
}

// printFeedbackLog 汇总在前，逐条明细在后
func printFeedbackLog(w io.Writer, path string, doc *feedback.Document) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "FEEDBACK LOG: %s\n", path)
	fmt.Fprintln(w, rule)

	if s := doc.Statistics; s != nil {
		fmt.Fprintln(w, "SUMMARY")
		fmt.Fprintf(w, "  Total Feedbacks:  %d\n", s.TotalFeedback)
		fmt.Fprintf(w, "  Overall Accuracy: %.1f%%\n", s.Accuracy*100)
		fmt.Fprintf(w, "  Average Rating:   %.1f/5.0\n", s.AvgRating)
		if !s.LastUpdated.IsZero() {
			fmt.Fprintf(w, "  Last Updated:     %s\n", s.LastUpdated.Format("2006-01-02 15:04:05"))
		}
		if len(s.RoutePerformance) > 0 {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "ROUTE PERFORMANCE")
			for _, route := range sortedKeys(s.RoutePerformance) {
				rs := s.RoutePerformance[route]
				pct := 0.0
				if rs.Total > 0 {
					pct = float64(rs.Correct) / float64(rs.Total) * 100
				}
				fmt.Fprintf(w, "  %s: %d/%d (%.1f%%)\n", route, rs.Correct, rs.Total, pct)
			}
		}
		fmt.Fprintln(w)
	}

	if len(doc.Feedback) == 0 {
		fmt.Fprintln(w, "No feedbacks submitted yet.")
		return
	}
	fmt.Fprintf(w, "INDIVIDUAL FEEDBACKS (%d)\n", len(doc.Feedback))
	for i, e := range doc.Feedback {
		fmt.Fprintln(w, strings.Repeat("-", 80))
		fmt.Fprintf(w, "#%d  Query ID: %s\n", i+1, e.QueryID)
		fmt.Fprintf(w, "  Timestamp: %s\n", e.Timestamp.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "  Question:  %s\n", truncate(e.OriginalQuestion, 100))
		fmt.Fprintf(w, "  Answer:    %s\n", e.OriginalAnswer)
		fmt.Fprintf(w, "  Route:     %s\n", e.RouteUsed)
		fmt.Fprintf(w, "  Rating:    %d/5\n", e.Rating)
		fmt.Fprintf(w, "  Correct:   %s\n", yesNo(e.IsCorrect))
		if e.FeedbackText != "" {
			fmt.Fprintf(w, "  Comment:   %s\n", e.FeedbackText)
		}
		if e.SuggestedAnswer != "" {
			fmt.Fprintf(w, "  Suggested: %s\n", e.SuggestedAnswer)
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
