package vector

import (
	"context"
)

// Store 向量存储接口
type Store interface {
	// Create 创建向量索引
	Create(ctx context.Context, index *Index) error
	// Upsert 写入向量，ID 相同则覆盖
	Upsert(ctx context.Context, indexName string, vectors []*Vector) error
	// Search 按余弦相似度检索
	Search(ctx context.Context, indexName string, query []float64, options *SearchOptions) ([]*SearchResult, error)
	// Count 索引内向量数
	Count(ctx context.Context, indexName string) (int, error)
	// ListIndexes 列出所有索引
	ListIndexes(ctx context.Context) ([]string, error)
	// Close 关闭存储连接
	Close() error
}

// Index 向量索引
type Index struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"` // 0 表示由第一条向量决定
}

// Vector 向量数据
type Vector struct {
	ID       string            `json:"id"`
	Values   []float64         `json:"values"`
	Metadata map[string]string `json:"metadata"`
}

// SearchOptions 搜索选项
type SearchOptions struct {
	TopK      int               `json:"top_k"`
	Filter    map[string]string `json:"filter"`    // 元数据精确匹配
	Threshold float64           `json:"threshold"` // 低于该分数的结果丢弃
}

// SearchResult 搜索结果，Score 为余弦相似度
type SearchResult struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata"`
}
