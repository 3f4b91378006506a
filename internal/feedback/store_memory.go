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
	"context"
	"sync"

	"math-tutor/internal/pipeline/common"
)

// MemoryStore 进程内反馈日志，重启即丢失
type MemoryStore struct {
	mu      sync.RWMutex
	entries []common.FeedbackEntry
	stats   common.FeedbackStatistics
}

// NewMemoryStore 创建内存日志
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) ([]common.FeedbackEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]common.FeedbackEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *MemoryStore) Record(ctx context.Context, entry common.FeedbackEntry, stats common.FeedbackStatistics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	s.stats = stats
	return nil
}

func (s *MemoryStore) Close() error { return nil }
