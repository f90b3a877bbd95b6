package retrieval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/embedding"

	"doc-qa-api/internal/domain/entity"
	"doc-qa-api/internal/domain/repository"
	apperrors "doc-qa-api/pkg/errors"
	"doc-qa-api/pkg/logger"
	"doc-qa-api/pkg/metrics"
)

const defaultEmbeddingBatch = 32

// Indexer 索引管理器：编排分块、嵌入与向量写入，
// 并维护各策略的构建状态与当前默认策略。
type Indexer struct {
	registry  *Registry
	embedder  embedding.Embedder
	vector    VectorStore
	meta      repository.MetadataRepository
	batchSize int

	mu      sync.Mutex
	built   map[string]bool
	current string
}

// NewIndexer 创建索引管理器
func NewIndexer(registry *Registry, embedder embedding.Embedder, vector VectorStore, meta repository.MetadataRepository, batchSize int) *Indexer {
	bs := batchSize
	if bs <= 0 {
		bs = defaultEmbeddingBatch
	}
	return &Indexer{
		registry:  registry,
		embedder:  embedder,
		vector:    vector,
		meta:      meta,
		batchSize: bs,
		built:     make(map[string]bool),
	}
}

// BuildOrExtend 为一批文档构建或扩展某策略的索引。
// clear 为 true 时先清空该策略的已有数据；策略名非法时不做任何修改。
// 单个文档失败不影响其余文档，失败详情记入返回的汇总。
func (ix *Indexer) BuildOrExtend(ctx context.Context, docs []*entity.Document, strategyName string, clear bool) (*IndexSummary, error) {
	strategy, err := ix.registry.Get(strategyName)
	if err != nil {
		return nil, err
	}
	strategyName = strategy.Name()
	ctx = logger.WithContext(ctx, logger.StrategyKey, strategyName)

	if err := ix.vector.EnsureCollection(ctx); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeVectorStoreError, "ensure collection failed")
	}
	if clear {
		if err := ix.vector.Clear(ctx, strategyName); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeVectorStoreError, "clear strategy data failed")
		}
		if err := ix.meta.DeleteByStrategy(ctx, strategyName); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeMetadataStoreError, "clear strategy metadata failed")
		}
	}

	summary := &IndexSummary{
		Strategy:       strategyName,
		TotalDocuments: len(docs),
		Cleared:        clear,
	}
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		numChunks, err := ix.ingestDocument(ctx, doc, strategy)
		result := DocumentResult{
			DocumentID: doc.ID,
			Filename:   doc.Filename,
			NumChunks:  numChunks,
		}
		if err != nil {
			result.Status = entity.DocumentStatusFailed
			result.NumChunks = 0
			result.Error = err.Error()
			summary.Failed++
			metrics.IngestDocumentsTotal.WithLabelValues(strategyName, "failed").Inc()
			logger.Error(ctx, "document ingestion failed", err,
				"document_id", doc.ID,
				"retryable", apperrors.Retryable(err))
		} else {
			result.Status = entity.DocumentStatusProcessed
			summary.Processed++
			summary.TotalChunks += numChunks
			metrics.IngestDocumentsTotal.WithLabelValues(strategyName, "processed").Inc()
			metrics.IngestChunksTotal.WithLabelValues(strategyName).Add(float64(numChunks))
		}
		summary.Documents = append(summary.Documents, result)
	}

	if summary.Processed > 0 {
		ix.markBuilt(strategyName)
	}
	logger.Info(ctx, "index build finished",
		"processed", summary.Processed,
		"failed", summary.Failed,
		"total_chunks", summary.TotalChunks,
		"cleared", clear)
	return summary, nil
}

// ingestDocument 处理单个文档：记录 -> 分块 -> 嵌入 -> 写入 -> 终态。
// 任何一步失败整个文档回退为 failed，不写入部分向量数据。
func (ix *Indexer) ingestDocument(ctx context.Context, doc *entity.Document, strategy Strategy) (int, error) {
	start := time.Now()
	ctx = logger.WithContext(ctx, logger.DocumentIDKey, doc.ID)

	record := &entity.DocumentMetadataRecord{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		FilePath:   doc.FilePath,
		Status:     entity.DocumentStatusProcessing,
		Strategy:   strategy.Name(),
	}
	if err := ix.meta.Insert(ctx, record); err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeMetadataStoreError, "insert processing record failed")
	}

	chunks, sourceUnits, err := strategy.Split(doc)
	if err != nil {
		return 0, ix.fail(ctx, doc.ID, strategy.Name(), err)
	}
	if len(chunks) == 0 {
		return 0, ix.fail(ctx, doc.ID, strategy.Name(), apperrors.ErrChunkingFailed.WithDetail("no chunks produced"))
	}

	vectors, err := ix.embedChunks(ctx, chunks, strategy)
	if err != nil {
		return 0, ix.fail(ctx, doc.ID, strategy.Name(), err)
	}

	if err := ix.vector.Upsert(ctx, strategy.Name(), chunks, vectors); err != nil {
		return 0, ix.fail(ctx, doc.ID, strategy.Name(), apperrors.Wrap(err, apperrors.CodeVectorStoreError, "vector upsert failed"))
	}

	if err := ix.meta.UpdateStatus(ctx, doc.ID, strategy.Name(), entity.DocumentStatusProcessed, sourceUnits, len(chunks), ""); err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeMetadataStoreError, "update processed status failed")
	}

	metrics.IngestDuration.WithLabelValues(strategy.Name()).Observe(time.Since(start).Seconds())
	logger.Info(ctx, "document ingested", "num_chunks", len(chunks), "source_units", sourceUnits)
	return len(chunks), nil
}

// fail 将处理记录置为 failed 并透传原始错误
func (ix *Indexer) fail(ctx context.Context, documentID, strategyName string, cause error) error {
	if err := ix.meta.UpdateStatus(ctx, documentID, strategyName, entity.DocumentStatusFailed, 0, 0, cause.Error()); err != nil {
		logger.Error(ctx, "update failed status failed", err)
	}
	return cause
}

// embedChunks 分批嵌入全部分块，任一批失败即整体失败
func (ix *Indexer) embedChunks(ctx context.Context, chunks []entity.Chunk, strategy Strategy) ([][]float32, error) {
	texts := make([]string, 0, len(chunks))
	for i := range chunks {
		texts = append(texts, strategy.EmbedText(&chunks[i]))
	}

	vectors := make([][]float32, 0, len(chunks))
	for begin := 0; begin < len(texts); begin += ix.batchSize {
		end := begin + ix.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		start := time.Now()
		v64, err := ix.embedder.EmbedStrings(ctx, texts[begin:end])
		metrics.EmbeddingDuration.WithLabelValues().Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.EmbeddingBatchesTotal.WithLabelValues("error").Inc()
			return nil, apperrors.Wrap(err, apperrors.CodeEmbeddingFailed, "embed batch failed")
		}
		if len(v64) != end-begin {
			metrics.EmbeddingBatchesTotal.WithLabelValues("error").Inc()
			return nil, apperrors.ErrEmbeddingFailed.WithDetail(fmt.Sprintf("expected %d vectors, got %d", end-begin, len(v64)))
		}
		metrics.EmbeddingBatchesTotal.WithLabelValues("ok").Inc()

		for _, vec := range v64 {
			v32 := make([]float32, len(vec))
			for i, x := range vec {
				v32[i] = float32(x)
			}
			vectors = append(vectors, v32)
		}
	}
	return vectors, nil
}

// RestoreState 从元数据存储恢复各策略的构建状态（服务重启后调用）。
// 以最近一条 processed 记录的策略作为当前默认策略。
func (ix *Indexer) RestoreState(ctx context.Context) error {
	records, err := ix.meta.FindAll(ctx)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeMetadataStoreError, "load metadata records failed")
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, r := range records {
		if r == nil || r.Status != entity.DocumentStatusProcessed {
			continue
		}
		if _, err := ix.registry.Get(r.Strategy); err != nil {
			continue
		}
		ix.built[r.Strategy] = true
		ix.current = r.Strategy
	}
	return nil
}

// markBuilt 标记策略已建索引，并更新当前默认策略（后写者生效）
func (ix *Indexer) markBuilt(name string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.built[name] = true
	ix.current = name
}

// IsBuilt 查询某策略是否已有可检索的索引
func (ix *Indexer) IsBuilt(name string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.built[name]
}

// Current 返回最近一次成功构建的策略名，未构建时为空
func (ix *Indexer) Current() string {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.current
}

// BuiltStrategies 返回已构建索引的策略集合，顺序与注册顺序一致
func (ix *Indexer) BuiltStrategies() []string {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	out := make([]string, 0, len(ix.built))
	for _, name := range ix.registry.Names() {
		if ix.built[name] {
			out = append(out, name)
		}
	}
	return out
}
