package retrieval

import (
	"context"

	"doc-qa-api/internal/domain/entity"
)

// VectorSearchResult 向量检索命中
type VectorSearchResult struct {
	ID           string
	Score        float32 // COSINE 相似度，越大越相近
	DocumentID   string
	Filename     string
	Seq          int64
	Text         string
	WindowText   string
	WindowAnchor int64
}

// VectorStore 向量索引端口。不同 strategy 的数据相互隔离；
// Upsert 写入单文档的全部分块，要么全部可见要么全部不可见。
type VectorStore interface {
	EnsureCollection(ctx context.Context) error

	// Upsert 写入一个文档在某策略下的全部分块
	Upsert(ctx context.Context, strategy string, chunks []entity.Chunk, vectors [][]float32) error

	// Search 在指定策略分区内检索；分区不存在时返回空结果
	Search(ctx context.Context, strategy string, vector []float32, topK int) ([]*VectorSearchResult, error)

	// DeleteByDocument 删除某文档在某策略下的全部分块
	DeleteByDocument(ctx context.Context, strategy, documentID string) error

	// Clear 清空某策略的全部数据（重建时使用）
	Clear(ctx context.Context, strategy string) error
}
