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

package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	einoindexer "github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/schema"

	"math-tutor/internal/pipeline/common"
	"math-tutor/pkg/log"
)

// Loader 把 dataset.json 写入向量库
type Loader struct {
	indexer   einoindexer.Indexer
	batchSize int
	logger    *log.Logger
}

// NewLoader batchSize<=0 时为 100
func NewLoader(indexer einoindexer.Indexer, batchSize int, logger *log.Logger) *Loader {
	if batchSize <= 0 {
		batchSize = 100
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Loader{indexer: indexer, batchSize: batchSize, logger: logger}
}

// ReadDataset 读取题库 JSON 数组
func ReadDataset(path string) ([]common.DatasetItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrLoadingFailed, err)
	}
	var items []common.DatasetItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: 解析 %s: %v", common.ErrLoadingFailed, path, err)
	}
	return items, nil
}

// ToDocument 题目转为 Eino 文档，ID 为 kb-<index>
func ToDocument(item common.DatasetItem) *schema.Document {
	return &schema.Document{
		ID:      "kb-" + strconv.Itoa(item.Index),
		Content: item.Question,
		MetaData: map[string]any{
			"question":    item.Question,
			"gold":        item.Gold,
			"subject":     item.Subject,
			"type":        item.Type,
			"description": item.Description,
			"index":       strconv.Itoa(item.Index),
		},
	}
}

// LoadFile 读取并入库，返回写入条数
func (l *Loader) LoadFile(ctx context.Context, path string) (int, error) {
	items, err := ReadDataset(path)
	if err != nil {
		return 0, err
	}
	l.logger.Info("读取题库", "path", path, "questions", len(items))
	return l.Load(ctx, items)
}

// Load 按批写入；某批失败时返回已写入条数和错误
func (l *Loader) Load(ctx context.Context, items []common.DatasetItem) (int, error) {
	indexed := 0
	for start := 0; start < len(items); start += l.batchSize {
		end := start + l.batchSize
		if end > len(items) {
			end = len(items)
		}
		docs := make([]*schema.Document, 0, end-start)
		for _, item := range items[start:end] {
			docs = append(docs, ToDocument(item))
		}
		ids, err := l.indexer.Store(ctx, docs)
		if err != nil {
			return indexed, common.NewPipelineError("indexing", fmt.Sprintf("第 %d 批写入失败", start/l.batchSize+1), fmt.Errorf("%w: %v", common.ErrIndexingFailed, err))
		}
		indexed += len(ids)
		l.logger.Info("写入一批题目", "batch", start/l.batchSize+1, "count", len(ids))
	}
	l.logger.Info("题库入库完成", "total", indexed)
	return indexed, nil
}
