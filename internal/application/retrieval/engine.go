package retrieval

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"

	"doc-qa-api/internal/domain/entity"
	apperrors "doc-qa-api/pkg/errors"
	"doc-qa-api/pkg/metrics"
)

const (
	defaultTopK = 5
	maxTopK     = 50
)

// Engine 检索引擎：嵌入问题，在指定策略分区内做向量检索并做上下文展开
type Engine struct {
	registry *Registry
	indexer  *Indexer
	embedder embedding.Embedder
	vector   VectorStore

	defaultTopK int
	maxTopK     int
}

// NewEngine 创建检索引擎
func NewEngine(registry *Registry, indexer *Indexer, embedder embedding.Embedder, vector VectorStore, defTopK, maxK int) *Engine {
	if defTopK <= 0 {
		defTopK = defaultTopK
	}
	if maxK <= 0 {
		maxK = maxTopK
	}
	return &Engine{
		registry:    registry,
		indexer:     indexer,
		embedder:    embedder,
		vector:      vector,
		defaultTopK: defTopK,
		maxTopK:     maxK,
	}
}

// Retrieve 检索与问题最相关的分块。
// strategyName 为空时使用最近一次成功构建的策略；
// 结果按相似度降序稳定排序（同分保持存储返回顺序），数量不超过 topK。
func (e *Engine) Retrieve(ctx context.Context, question, strategyName string, topK int) ([]entity.ScoredChunk, *Diagnostics, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, nil, apperrors.ErrInvalidParam.WithDetail("question is empty")
	}
	if strategyName == "" {
		strategyName = e.indexer.Current()
	}
	strategy, err := e.registry.Get(strategyName)
	if err != nil {
		return nil, nil, err
	}
	strategyName = strategy.Name()
	if !e.indexer.IsBuilt(strategyName) {
		return nil, nil, apperrors.ErrStrategyNotBuilt.WithDetail(strategyName)
	}
	if topK <= 0 {
		topK = e.defaultTopK
	}
	if topK > e.maxTopK {
		topK = e.maxTopK
	}

	diag := &Diagnostics{Strategy: strategyName, TopK: topK}

	start := time.Now()
	vec, err := e.embedQuestion(ctx, question)
	if err != nil {
		metrics.VectorSearchTotal.WithLabelValues(strategyName, "error").Inc()
		return nil, nil, err
	}
	hits, err := e.vector.Search(ctx, strategyName, vec, topK)
	diag.RetrievalMs = time.Since(start).Milliseconds()
	metrics.VectorSearchDuration.WithLabelValues(strategyName).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.VectorSearchTotal.WithLabelValues(strategyName, "error").Inc()
		return nil, nil, apperrors.Wrap(err, apperrors.CodeVectorStoreError, "vector search failed")
	}
	metrics.VectorSearchTotal.WithLabelValues(strategyName, "ok").Inc()
	diag.Candidates = len(hits)

	results := make([]entity.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		if h == nil {
			continue
		}
		results = append(results, entity.ScoredChunk{
			Chunk: entity.Chunk{
				ID:         h.ID,
				DocumentID: h.DocumentID,
				Strategy:   strategyName,
				Seq:        int(h.Seq),
				Text:       h.Text,
				WindowText: h.WindowText,
				Metadata: entity.ChunkMetadata{
					Filename:     h.Filename,
					DocumentID:   h.DocumentID,
					Strategy:     strategyName,
					WindowAnchor: int(h.WindowAnchor),
				},
			},
			Score: float64(h.Score), // COSINE 度量返回相似度，越大越相近
		})
	}

	// 相似度降序，同分保持存储返回顺序
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}

	// 检索后处理只替换文本载荷，不改变排序与数量
	results = strategy.ExpandContext(results)
	return results, diag, nil
}

func (e *Engine) embedQuestion(ctx context.Context, question string) ([]float32, error) {
	v64, err := e.embedder.EmbedStrings(ctx, []string{question})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeEmbeddingFailed, "embed question failed")
	}
	if len(v64) == 0 {
		return nil, apperrors.ErrEmbeddingFailed.WithDetail("empty embedding result")
	}
	vec := v64[0]
	out := make([]float32, 0, len(vec))
	for _, x := range vec {
		out = append(out, float32(x))
	}
	return out, nil
}
