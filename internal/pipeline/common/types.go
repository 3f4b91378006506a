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

package common

import (
	"time"
)

// RouteDecision 问题最终走的路由
type RouteDecision string

const (
	RouteKnowledgeBase RouteDecision = "knowledge_base"
	RouteWebSearch     RouteDecision = "web_search"
	RouteReject        RouteDecision = "reject"
)

// QuestionType 题型
type QuestionType string

const (
	QuestionMCQ         QuestionType = "MCQ"
	QuestionMCQMultiple QuestionType = "MCQ(multiple)"
	QuestionInteger     QuestionType = "Integer"
	QuestionNumeric     QuestionType = "Numeric"
)

// Subject 学科
type Subject string

const (
	SubjectPhysics   Subject = "phy"
	SubjectChemistry Subject = "chem"
	SubjectMath      Subject = "math"
)

// QueryRequest 提问请求
type QueryRequest struct {
	Question  string `json:"question"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// RetrievedDocument 知识库命中的题目，Score 在 [0,1]
type RetrievedDocument struct {
	Question    string  `json:"question"`
	Gold        string  `json:"gold"`
	Subject     string  `json:"subject"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

// WebResult 网络搜索结果，保持服务商返回顺序
type WebResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// GuardrailOutcome 护栏判定；Passed 为 false 时 Reason 必不为空
type GuardrailOutcome struct {
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
}

// QueryResponse 结构化应答
type QueryResponse struct {
	QueryID            string              `json:"query_id"`
	Question           string              `json:"question"`
	Answer             string              `json:"answer"`
	StepByStepSolution string              `json:"step_by_step_solution"`
	RouteUsed          RouteDecision       `json:"route_used"`
	RetrievedDocs      []RetrievedDocument `json:"retrieved_docs"`
	ConfidenceScore    float64             `json:"confidence_score"`
	Sources            []string            `json:"sources"`
	Timestamp          time.Time           `json:"timestamp"`
}

// FeedbackRequest 用户反馈
type FeedbackRequest struct {
	QueryID         string `json:"query_id" validate:"required"`
	Rating          int    `json:"rating" validate:"min=1,max=5"`
	FeedbackText    string `json:"feedback_text,omitempty"`
	IsCorrect       bool   `json:"is_correct"`
	SuggestedAnswer string `json:"suggested_answer,omitempty"`
}

// FeedbackResponse 反馈接口应答
type FeedbackResponse struct {
	Success         bool           `json:"success"`
	Message         string         `json:"message"`
	UpdatedResponse *QueryResponse `json:"updated_response"`
}

// FeedbackEntry 反馈日志中的一条记录
type FeedbackEntry struct {
	QueryID          string        `json:"query_id"`
	Timestamp        time.Time     `json:"timestamp"`
	Rating           int           `json:"rating"`
	IsCorrect        bool          `json:"is_correct"`
	FeedbackText     string        `json:"feedback_text"`
	SuggestedAnswer  string        `json:"suggested_answer"`
	OriginalQuestion string        `json:"original_question"`
	OriginalAnswer   string        `json:"original_answer"`
	RouteUsed        RouteDecision `json:"route_used"`
}

// RouteStats 单个路由的反馈统计
type RouteStats struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
}

// FeedbackStatistics 由完整反馈日志重新计算的汇总
type FeedbackStatistics struct {
	TotalFeedback    int                    `json:"total_feedback"`
	Accuracy         float64                `json:"accuracy"`
	AvgRating        float64                `json:"avg_rating"`
	RoutePerformance map[string]*RouteStats `json:"route_performance"`
	LastUpdated      time.Time              `json:"last_updated"`
}

// MetricsResponse /api/metrics 应答，全部来自反馈统计
type MetricsResponse struct {
	TotalQueries     int     `json:"total_queries"`
	KBQueries        int     `json:"kb_queries"`
	WebSearchQueries int     `json:"web_search_queries"`
	RejectedQueries  int     `json:"rejected_queries"`
	AvgConfidence    float64 `json:"avg_confidence"`
	AvgResponseTime  float64 `json:"avg_response_time"`
	FeedbackCount    int     `json:"feedback_count"`
	AvgRating        float64 `json:"avg_rating"`
}

// BenchmarkRequest 基准评测请求
type BenchmarkRequest struct {
	NumSamples int      `json:"num_samples,omitempty" validate:"gte=0"`
	Subjects   []string `json:"subjects,omitempty"`
}

// BenchmarkResult 基准评测结果
type BenchmarkResult struct {
	TotalQuestions      int                `json:"total_questions"`
	CorrectAnswers      int                `json:"correct_answers"`
	Accuracy            float64            `json:"accuracy"`
	SubjectWiseAccuracy map[string]float64 `json:"subject_wise_accuracy"`
	TypeWiseAccuracy    map[string]float64 `json:"type_wise_accuracy"`
	AvgResponseTime     float64            `json:"avg_response_time"`
	RouteDistribution   map[string]int     `json:"route_distribution"`
}

// DatasetItem dataset.json 中的一道题
type DatasetItem struct {
	Question    string `json:"question"`
	Gold        string `json:"gold"`
	Subject     string `json:"subject"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Index       int    `json:"index"`
}
