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

// Package feedback 人工反馈闭环：缓存应答、记录反馈、重算统计、按需改写解答
package feedback

import (
	"context"
	"math"
	"sync"
	"time"

	"math-tutor/internal/pipeline/common"
	"math-tutor/internal/storage/cache"
	"math-tutor/pkg/errors"
	"math-tutor/pkg/log"
	"math-tutor/pkg/metrics"
)

// Service 反馈服务；mu 只保护 entries 与 stats 的读改写，缓存自身并发安全
type Service struct {
	mu      sync.Mutex
	cache   cache.Store
	store   LogStore
	refiner Refiner
	entries []common.FeedbackEntry
	stats   common.FeedbackStatistics
	now     func() time.Time
	logger  *log.Logger
}

// Options Service 依赖
type Options struct {
	Cache   cache.Store
	Store   LogStore
	Refiner Refiner
	Logger  *log.Logger
	Now     func() time.Time
}

// NewService 从日志存储恢复历史反馈并计算统计
func NewService(ctx context.Context, opts Options) (*Service, error) {
	if opts.Cache == nil {
		opts.Cache = cache.NewMemoryStore(0, 0)
	}
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Refiner == nil {
		opts.Refiner = TemplateRefiner{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	entries, err := opts.Store.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "加载反馈日志失败")
	}
	s := &Service{
		cache:   opts.Cache,
		store:   opts.Store,
		refiner: opts.Refiner,
		entries: entries,
		now:     opts.Now,
		logger:  opts.Logger,
	}
	s.stats = ComputeStatistics(entries, s.now())
	if len(entries) > 0 {
		s.logger.Info("已加载历史反馈", "count", len(entries))
	}
	return s, nil
}

// Cache 缓存应答，供之后的反馈按 query id 查找
func (s *Service) Cache(ctx context.Context, resp *common.QueryResponse) error {
	if resp == nil {
		return nil
	}
	return s.cache.Set(ctx, resp.QueryID, resp, 0)
}

// Submit 记录反馈；query id 未知时返回 (nil, nil)。答案被判错且附带说明或建议答案时返回改写后的应答
func (s *Service) Submit(ctx context.Context, req common.FeedbackRequest) (*common.QueryResponse, error) {
	var original common.QueryResponse
	if err := s.cache.Get(ctx, req.QueryID, &original); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			s.logger.Warn("未找到原始应答，忽略反馈", "query_id", req.QueryID)
			metrics.FeedbackTotal.WithLabelValues("unknown_query").Inc()
			return nil, nil
		}
		return nil, errors.Wrap(err, "读取应答缓存失败")
	}

	entry := common.FeedbackEntry{
		QueryID:          req.QueryID,
		Timestamp:        s.now(),
		Rating:           req.Rating,
		IsCorrect:        req.IsCorrect,
		FeedbackText:     req.FeedbackText,
		SuggestedAnswer:  req.SuggestedAnswer,
		OriginalQuestion: original.Question,
		OriginalAnswer:   original.Answer,
		RouteUsed:        original.RouteUsed,
	}
	if err := s.record(ctx, entry); err != nil {
		return nil, err
	}
	metrics.FeedbackTotal.WithLabelValues("recorded").Inc()
	s.logger.Info("已记录反馈", "query_id", req.QueryID, "rating", req.Rating, "is_correct", req.IsCorrect)

	if req.IsCorrect || (req.FeedbackText == "" && req.SuggestedAnswer == "") {
		return nil, nil
	}

	refined, err := s.refiner.Refine(ctx, original.Question, original.StepByStepSolution, req.FeedbackText, req.SuggestedAnswer)
	if err != nil {
		return nil, errors.Wrap(err, "改写解答失败")
	}
	answer := original.Answer
	if req.SuggestedAnswer != "" {
		answer = req.SuggestedAnswer
	}
	metrics.FeedbackTotal.WithLabelValues("refined").Inc()
	return &common.QueryResponse{
		QueryID:            original.QueryID + "_refined",
		Question:           original.Question,
		Answer:             answer,
		StepByStepSolution: refined,
		RouteUsed:          original.RouteUsed,
		RetrievedDocs:      original.RetrievedDocs,
		ConfidenceScore:    round2(math.Min(original.ConfidenceScore+0.1, 1.0)),
		Sources:            original.Sources,
		Timestamp:          s.now(),
	}, nil
}

// record 在锁内追加反馈、重算统计并落盘
func (s *Service) record(ctx context.Context, entry common.FeedbackEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := append(append([]common.FeedbackEntry{}, s.entries...), entry)
	stats := ComputeStatistics(entries, s.now())
	if err := s.store.Record(ctx, entry, stats); err != nil {
		return errors.Wrap(err, "保存反馈失败")
	}
	s.entries = entries
	s.stats = stats
	return nil
}

// Statistics 当前统计快照
func (s *Service) Statistics() common.FeedbackStatistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.stats
	out.RoutePerformance = make(map[string]*common.RouteStats, len(s.stats.RoutePerformance))
	for k, v := range s.stats.RoutePerformance {
		rs := *v
		out.RoutePerformance[k] = &rs
	}
	return out
}

// Metrics /api/metrics 应答
func (s *Service) Metrics() common.MetricsResponse {
	return ToMetrics(s.Statistics())
}

// TrainingData 带建议答案的反馈，可用于离线优化提示词
func (s *Service) TrainingData() []common.FeedbackEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]common.FeedbackEntry, 0)
	for _, e := range s.entries {
		if e.SuggestedAnswer != "" {
			out = append(out, e)
		}
	}
	return out
}

// Close 关闭缓存与日志存储
func (s *Service) Close() error {
	cerr := s.cache.Close()
	if err := s.store.Close(); err != nil {
		return err
	}
	return cerr
}
