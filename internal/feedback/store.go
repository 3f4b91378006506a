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
	"fmt"

	"math-tutor/internal/pipeline/common"
	"math-tutor/pkg/config"
	"math-tutor/pkg/log"
)

// LogStore 反馈日志持久化
type LogStore interface {
	// Load 按写入顺序返回全部反馈
	Load(ctx context.Context) ([]common.FeedbackEntry, error)
	// Record 追加一条反馈并保存重新计算后的统计
	Record(ctx context.Context, entry common.FeedbackEntry, stats common.FeedbackStatistics) error
	// Close 释放连接
	Close() error
}

// NewLogStore 根据 feedback.store 创建日志存储
func NewLogStore(ctx context.Context, cfg config.FeedbackConfig, logger *log.Logger) (LogStore, error) {
	switch cfg.Store {
	case "", "file":
		path := cfg.Path
		if path == "" {
			path = "data/feedback.json"
		}
		return NewFileStore(path)
	case "memory":
		return NewMemoryStore(), nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("feedback.store=postgres 需要配置 feedback.dsn")
		}
		return OpenPostgresStore(ctx, cfg.DSN, logger)
	default:
		return nil, fmt.Errorf("unsupported feedback store: %s", cfg.Store)
	}
}
