// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"context"
	"fmt"

	milvusentity "github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"doc-qa-api/internal/application/retrieval"
	"doc-qa-api/internal/domain/entity"
)

var searchOutputFields = []string{
	"id", "document_id", "filename", "seq", "window_anchor", "text_content", "window_text",
}

// Repository 向量索引仓储，实现 retrieval.VectorStore
type Repository struct {
	client    *Client
	dimension int
}

// NewRepository 创建向量索引仓储
func NewRepository(client *Client, dimension int) *Repository {
	return &Repository{client: client, dimension: dimension}
}

// EnsureCollection 确保 doc_chunks 集合与索引可用（不存在则创建）。
// 约束：不会做 drop/rebuild 等破坏性操作。
func (r *Repository) EnsureCollection(ctx context.Context) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}

	exists, err := r.client.HasCollection(ctx, CollectionDocChunks)
	if err != nil {
		return err
	}
	if !exists {
		if err := r.createCollection(ctx); err != nil {
			return err
		}
		// 新建集合时创建索引；若失败，允许后续由运维介入。
		_ = r.createIndex(ctx)
	}

	// 尝试确保集合已加载（若已加载，Milvus 会返回成功）
	return r.client.LoadCollection(ctx, CollectionDocChunks)
}

// Upsert 写入一个文档在某策略下的全部分块。
// 单次 Insert 调用写入全部列，分块要么整体可见要么整体不可见。
func (r *Repository) Upsert(ctx context.Context, strategy string, chunks []entity.Chunk, vectors [][]float32) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.Upsert",
		trace.WithAttributes(
			attribute.String("strategy", strategy),
			attribute.Int("count", len(chunks)),
		))
	defer span.End()

	if len(chunks) == 0 {
		return nil
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("chunk/vector count mismatch: %d != %d", len(chunks), len(vectors))
	}

	collName := r.client.CollectionName(CollectionDocChunks)
	partitionName := PartitionName(strategy)

	// 确保分区存在
	has, _ := r.client.milvus.HasPartition(ctx, collName, partitionName)
	if !has {
		if err := r.client.milvus.CreatePartition(ctx, collName, partitionName); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create partition: %w", err)
		}
	}

	ids := make([]string, len(chunks))
	documentIDs := make([]string, len(chunks))
	filenames := make([]string, len(chunks))
	strategies := make([]string, len(chunks))
	seqs := make([]int64, len(chunks))
	anchors := make([]int64, len(chunks))
	texts := make([]string, len(chunks))
	windows := make([]string, len(chunks))

	for i, c := range chunks {
		ids[i] = c.ID
		documentIDs[i] = c.DocumentID
		filenames[i] = c.Metadata.Filename
		strategies[i] = strategy
		seqs[i] = int64(c.Seq)
		anchors[i] = int64(c.Metadata.WindowAnchor)
		texts[i] = c.Text
		windows[i] = c.WindowText
	}

	idCol := milvusentity.NewColumnVarChar("id", ids)
	vectorCol := milvusentity.NewColumnFloatVector("vector", r.dimension, vectors)
	docCol := milvusentity.NewColumnVarChar("document_id", documentIDs)
	fileCol := milvusentity.NewColumnVarChar("filename", filenames)
	strategyCol := milvusentity.NewColumnVarChar("strategy", strategies)
	seqCol := milvusentity.NewColumnInt64("seq", seqs)
	anchorCol := milvusentity.NewColumnInt64("window_anchor", anchors)
	textCol := milvusentity.NewColumnVarChar("text_content", texts)
	windowCol := milvusentity.NewColumnVarChar("window_text", windows)

	_, err := r.client.milvus.Insert(ctx, collName, partitionName,
		idCol, vectorCol, docCol, fileCol, strategyCol, seqCol, anchorCol, textCol, windowCol)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	return nil
}

// Search 在策略分区内检索。分区尚未创建时返回空结果，
// 避免 Milvus 报 partition not found。
func (r *Repository) Search(ctx context.Context, strategy string, vector []float32, topK int) ([]*retrieval.VectorSearchResult, error) {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return nil, fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.Search",
		trace.WithAttributes(
			attribute.String("strategy", strategy),
			attribute.Int("top_k", topK),
		))
	defer span.End()

	collName := r.client.CollectionName(CollectionDocChunks)
	partitionName := PartitionName(strategy)

	if has, err := r.client.milvus.HasPartition(ctx, collName, partitionName); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to check partition: %w", err)
	} else if !has {
		return []*retrieval.VectorSearchResult{}, nil
	}

	filter := fmt.Sprintf(`strategy == "%s"`, strategy)

	sp, err := milvusentity.NewIndexHNSWSearchParam(128)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	results, err := r.client.milvus.Search(ctx,
		collName,
		[]string{partitionName},
		filter,
		searchOutputFields,
		[]milvusentity.Vector{milvusentity.FloatVector(vector)},
		"vector",
		milvusentity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var searchResults []*retrieval.VectorSearchResult
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			sr := &retrieval.VectorSearchResult{
				Score: result.Scores[i],
			}

			if idCol, ok := result.Fields.GetColumn("id").(*milvusentity.ColumnVarChar); ok {
				sr.ID = idCol.Data()[i]
			}
			if docCol, ok := result.Fields.GetColumn("document_id").(*milvusentity.ColumnVarChar); ok {
				sr.DocumentID = docCol.Data()[i]
			}
			if fileCol, ok := result.Fields.GetColumn("filename").(*milvusentity.ColumnVarChar); ok {
				sr.Filename = fileCol.Data()[i]
			}
			if seqCol, ok := result.Fields.GetColumn("seq").(*milvusentity.ColumnInt64); ok {
				sr.Seq = seqCol.Data()[i]
			}
			if anchorCol, ok := result.Fields.GetColumn("window_anchor").(*milvusentity.ColumnInt64); ok {
				sr.WindowAnchor = anchorCol.Data()[i]
			}
			if textCol, ok := result.Fields.GetColumn("text_content").(*milvusentity.ColumnVarChar); ok {
				sr.Text = textCol.Data()[i]
			}
			if windowCol, ok := result.Fields.GetColumn("window_text").(*milvusentity.ColumnVarChar); ok {
				sr.WindowText = windowCol.Data()[i]
			}

			searchResults = append(searchResults, sr)
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(searchResults)))
	return searchResults, nil
}

// DeleteByDocument 删除某文档在某策略下的全部分块。分区不存在时为 no-op。
func (r *Repository) DeleteByDocument(ctx context.Context, strategy, documentID string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.DeleteByDocument",
		trace.WithAttributes(
			attribute.String("strategy", strategy),
			attribute.String("document_id", documentID),
		))
	defer span.End()

	collName := r.client.CollectionName(CollectionDocChunks)
	partitionName := PartitionName(strategy)

	if has, err := r.client.milvus.HasPartition(ctx, collName, partitionName); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to check partition: %w", err)
	} else if !has {
		return nil
	}

	filter := fmt.Sprintf(`document_id == "%s"`, documentID)
	if err := r.client.milvus.Delete(ctx, collName, partitionName, filter); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// Clear 清空某策略分区的全部数据（重建时使用）
func (r *Repository) Clear(ctx context.Context, strategy string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.Clear",
		trace.WithAttributes(attribute.String("strategy", strategy)))
	defer span.End()

	collName := r.client.CollectionName(CollectionDocChunks)
	partitionName := PartitionName(strategy)

	if has, err := r.client.milvus.HasPartition(ctx, collName, partitionName); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to check partition: %w", err)
	} else if !has {
		return nil
	}

	filter := fmt.Sprintf(`strategy == "%s"`, strategy)
	if err := r.client.milvus.Delete(ctx, collName, partitionName, filter); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to clear strategy partition: %w", err)
	}
	return nil
}

// createCollection 创建集合
func (r *Repository) createCollection(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "milvus.CreateCollection",
		trace.WithAttributes(attribute.String("collection", CollectionDocChunks)))
	defer span.End()

	schema := DocChunksSchema(r.dimension)
	schema.CollectionName = r.client.CollectionName(CollectionDocChunks)

	if err := r.client.milvus.CreateCollection(ctx, schema, milvusentity.DefaultShardNumber); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// createIndex 创建 HNSW 索引
func (r *Repository) createIndex(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "milvus.CreateIndex",
		trace.WithAttributes(attribute.String("collection", CollectionDocChunks)))
	defer span.End()

	collName := r.client.CollectionName(CollectionDocChunks)

	idx, err := milvusentity.NewIndexHNSW(
		milvusentity.COSINE,
		r.client.config.HNSWM,
		r.client.config.HNSWEfConstruction,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := r.client.milvus.CreateIndex(ctx, collName, "vector", idx, false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}
