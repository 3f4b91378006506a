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

package feedback

import (
	"math"
	"time"

	"math-tutor/internal/pipeline/common"
)

// ComputeStatistics 由完整反馈日志重新计算汇总，entries 为空时返回零值统计
func ComputeStatistics(entries []common.FeedbackEntry, now time.Time) common.FeedbackStatistics {
	stats := common.FeedbackStatistics{
		RoutePerformance: make(map[string]*common.RouteStats),
		LastUpdated:      now,
	}
	if len(entries) == 0 {
		return stats
	}

	correct, ratingSum := 0, 0
	for _, e := range entries {
		ratingSum += e.Rating
		route := string(e.RouteUsed)
		rs, ok := stats.RoutePerformance[route]
		if !ok {
			rs = &common.RouteStats{}
			stats.RoutePerformance[route] = rs
		}
		rs.Total++
		if e.IsCorrect {
			correct++
			rs.Correct++
		}
	}
	total := len(entries)
	stats.TotalFeedback = total
	stats.Accuracy = float64(correct) / float64(total)
	stats.AvgRating = float64(ratingSum) / float64(total)
	return stats
}

// ToMetrics 把反馈统计映射为 /api/metrics 应答；置信度与耗时不在反馈日志中，固定为 0
func ToMetrics(stats common.FeedbackStatistics) common.MetricsResponse {
	routeTotal := func(r common.RouteDecision) int {
		if rs, ok := stats.RoutePerformance[string(r)]; ok && rs != nil {
			return rs.Total
		}
		return 0
	}
	return common.MetricsResponse{
		TotalQueries:     stats.TotalFeedback,
		KBQueries:        routeTotal(common.RouteKnowledgeBase),
		WebSearchQueries: routeTotal(common.RouteWebSearch),
		RejectedQueries:  routeTotal(common.RouteReject),
		FeedbackCount:    stats.TotalFeedback,
		AvgRating:        stats.AvgRating,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
