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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"math-tutor/internal/pipeline/common"
)

// Document data/feedback.json 的文件结构
type Document struct {
	Feedback   []common.FeedbackEntry     `json:"feedback"`
	Statistics *common.FeedbackStatistics `json:"statistics"`
}

// ReadDocument 读取反馈文件；文件不存在时返回空文档
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Document{Feedback: []common.FeedbackEntry{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取反馈文件失败: %w", err)
	}
	doc := &Document{}
	if len(data) == 0 {
		doc.Feedback = []common.FeedbackEntry{}
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("解析反馈文件失败: %w", err)
	}
	if doc.Feedback == nil {
		doc.Feedback = []common.FeedbackEntry{}
	}
	return doc, nil
}

// FileStore 每次写入整体重写 JSON 文件（先写临时文件再 rename）
type FileStore struct {
	mu   sync.Mutex
	path string
	doc  *Document
}

// NewFileStore 目录不存在时自动创建
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建反馈目录失败: %w", err)
	}
	doc, err := ReadDocument(path)
	if err != nil {
		return nil, err
	}
	return &FileStore{path: path, doc: doc}, nil
}

func (s *FileStore) Load(ctx context.Context) ([]common.FeedbackEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]common.FeedbackEntry, len(s.doc.Feedback))
	copy(out, s.doc.Feedback)
	return out, nil
}

func (s *FileStore) Record(ctx context.Context, entry common.FeedbackEntry, stats common.FeedbackStatistics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := &Document{
		Feedback:   append(append([]common.FeedbackEntry{}, s.doc.Feedback...), entry),
		Statistics: &stats,
	}
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化反馈文件失败: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("写入反馈文件失败: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("写入反馈文件失败: %w", err)
	}
	s.doc = next
	return nil
}

func (s *FileStore) Close() error { return nil }
