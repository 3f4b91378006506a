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
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"math-tutor/internal/pipeline/common"
	"math-tutor/pkg/log"
)

// DB PostgresStore 所需的最小接口，*pgxpool.Pool 与 pgxmock 均满足
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS feedback_entries (
  id BIGSERIAL PRIMARY KEY,
  query_id TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  rating INT NOT NULL,
  is_correct BOOLEAN NOT NULL,
  feedback_text TEXT NOT NULL DEFAULT '',
  suggested_answer TEXT NOT NULL DEFAULT '',
  original_question TEXT NOT NULL,
  original_answer TEXT NOT NULL,
  route_used TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS feedback_statistics (
  id INT PRIMARY KEY,
  payload JSONB NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
}

const (
	insertEntrySQL   = `INSERT INTO feedback_entries (query_id, created_at, rating, is_correct, feedback_text, suggested_answer, original_question, original_answer, route_used) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	upsertStatsSQL   = `INSERT INTO feedback_statistics (id, payload, updated_at) VALUES (1, $1, $2) ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`
	selectEntriesSQL = `SELECT query_id, created_at, rating, is_correct, feedback_text, suggested_answer, original_question, original_answer, route_used FROM feedback_entries ORDER BY id`
)

// PostgresStore 反馈日志存于 feedback_entries，统计快照 upsert 到 feedback_statistics
type PostgresStore struct {
	db    DB
	close func()
}

// OpenPostgresStore 建立连接池并确保表存在
func OpenPostgresStore(ctx context.Context, dsn string, logger *log.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("连接 PostgreSQL 失败: %w", err)
	}
	s := &PostgresStore{db: pool, close: pool.Close}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if logger != nil {
		logger.Info("反馈日志使用 PostgreSQL 存储")
	}
	return s, nil
}

// NewPostgresStore 使用已有连接
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema 建表，可重复执行
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("创建反馈表失败: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) ([]common.FeedbackEntry, error) {
	rows, err := s.db.Query(ctx, selectEntriesSQL)
	if err != nil {
		return nil, fmt.Errorf("查询反馈失败: %w", err)
	}
	defer rows.Close()

	entries := []common.FeedbackEntry{}
	for rows.Next() {
		var e common.FeedbackEntry
		var route string
		if err := rows.Scan(&e.QueryID, &e.Timestamp, &e.Rating, &e.IsCorrect, &e.FeedbackText,
			&e.SuggestedAnswer, &e.OriginalQuestion, &e.OriginalAnswer, &route); err != nil {
			return nil, fmt.Errorf("读取反馈失败: %w", err)
		}
		e.RouteUsed = common.RouteDecision(route)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) Record(ctx context.Context, entry common.FeedbackEntry, stats common.FeedbackStatistics) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, insertEntrySQL,
		entry.QueryID, entry.Timestamp, entry.Rating, entry.IsCorrect, entry.FeedbackText,
		entry.SuggestedAnswer, entry.OriginalQuestion, entry.OriginalAnswer, string(entry.RouteUsed),
	); err != nil {
		return fmt.Errorf("写入反馈失败: %w", err)
	}
	if _, err := tx.Exec(ctx, upsertStatsSQL, payload, stats.LastUpdated.UTC().Truncate(time.Microsecond)); err != nil {
		return fmt.Errorf("更新反馈统计失败: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}
