package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "doc-qa-api/pkg/errors"
)

func newTestEngine(t *testing.T, vector *fakeVectorStore) (*Engine, *Indexer) {
	t.Helper()
	registry, err := NewRegistry(testChunkingConfig())
	require.NoError(t, err)
	embedder := &fakeEmbedder{}
	ix := NewIndexer(registry, embedder, vector, &fakeMetaRepo{}, 2)
	return NewEngine(registry, ix, embedder, vector, 5, 10), ix
}

func TestEngine_EmptyQuestion(t *testing.T) {
	e, _ := newTestEngine(t, &fakeVectorStore{})

	_, _, err := e.Retrieve(context.Background(), "  ", StrategyVectorStore, 5)

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParam))
}

func TestEngine_NoIndexBuilt(t *testing.T) {
	e, _ := newTestEngine(t, &fakeVectorStore{})

	// 显式策略未构建
	_, _, err := e.Retrieve(context.Background(), "question?", StrategyVectorStore, 5)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeStrategyNotBuilt))

	// 无当前策略时空策略名同样失败
	_, _, err = e.Retrieve(context.Background(), "question?", "", 5)
	require.Error(t, err)
}

func TestEngine_UnknownStrategy(t *testing.T) {
	e, _ := newTestEngine(t, &fakeVectorStore{})

	_, _, err := e.Retrieve(context.Background(), "question?", "bm25", 5)

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnknownStrategy))
}

func TestEngine_OrderingAndScore(t *testing.T) {
	// COSINE 返回相似度（越大越相近）；同分保持存储返回顺序
	vector := &fakeVectorStore{
		searchHits: []*VectorSearchResult{
			{ID: "mid", Score: 0.60, DocumentID: "docA", Seq: 2, Text: "a2"},
			{ID: "best", Score: 0.95, DocumentID: "docB", Seq: 3, Text: "b3"},
			{ID: "tie1", Score: 0.40, DocumentID: "docB", Seq: 0, Text: "b0"},
			{ID: "tie2", Score: 0.40, DocumentID: "docA", Seq: 5, Text: "a5"},
			{ID: "low", Score: 0.10, DocumentID: "docA", Seq: 1, Text: "a1"},
		},
	}
	e, ix := newTestEngine(t, vector)
	ix.markBuilt(StrategyVectorStore)

	results, diag, err := e.Retrieve(context.Background(), "question?", StrategyVectorStore, 10)
	require.NoError(t, err)
	require.Len(t, results, 5)

	// 最相似命中排第一，得分即存储返回的相似度
	assert.Equal(t, "best", results[0].Chunk.ID)
	assert.InDelta(t, 0.95, results[0].Score, 1e-6)
	assert.Equal(t, "mid", results[1].Chunk.ID)

	// 同分不重排：docB 的命中先于 document_id 更小的 docA
	assert.Equal(t, "tie1", results[2].Chunk.ID)
	assert.Equal(t, "tie2", results[3].Chunk.ID)
	assert.Equal(t, "low", results[4].Chunk.ID)

	require.NotNil(t, diag)
	assert.Equal(t, StrategyVectorStore, diag.Strategy)
	assert.Equal(t, 5, diag.Candidates)
	assert.Equal(t, 10, diag.TopK)
}

func TestEngine_StoreRankingPreserved(t *testing.T) {
	// 存储已按相似度降序返回时，排序不得颠倒结果
	vector := &fakeVectorStore{
		searchHits: []*VectorSearchResult{
			{ID: "first", Score: 0.95, DocumentID: "doc", Seq: 0, Text: "t0"},
			{ID: "second", Score: 0.60, DocumentID: "doc", Seq: 1, Text: "t1"},
			{ID: "third", Score: 0.10, DocumentID: "doc", Seq: 2, Text: "t2"},
		},
	}
	e, ix := newTestEngine(t, vector)
	ix.markBuilt(StrategyVectorStore)

	results, _, err := e.Retrieve(context.Background(), "question?", StrategyVectorStore, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "first", results[0].Chunk.ID)
	assert.Equal(t, "second", results[1].Chunk.ID)
	assert.Equal(t, "third", results[2].Chunk.ID)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestEngine_TopKClamping(t *testing.T) {
	hits := make([]*VectorSearchResult, 0, 8)
	for i := 0; i < 8; i++ {
		hits = append(hits, &VectorSearchResult{
			ID: string(rune('a' + i)), Score: 1 - float32(i)*0.01, DocumentID: "doc", Seq: int64(i), Text: "t",
		})
	}
	vector := &fakeVectorStore{searchHits: hits}
	e, ix := newTestEngine(t, vector)
	ix.markBuilt(StrategyVectorStore)

	// topK <= 0 回落到默认值 5
	results, diag, err := e.Retrieve(context.Background(), "q?", StrategyVectorStore, 0)
	require.NoError(t, err)
	assert.Len(t, results, 5)
	assert.Equal(t, 5, diag.TopK)

	// topK 超过上限 10 被收紧
	_, diag, err = e.Retrieve(context.Background(), "q?", StrategyVectorStore, 100)
	require.NoError(t, err)
	assert.Equal(t, 10, diag.TopK)
}

func TestEngine_DefaultStrategyFallsBackToCurrent(t *testing.T) {
	vector := &fakeVectorStore{
		searchHits: []*VectorSearchResult{
			{ID: "c1", Score: 0.8, DocumentID: "doc", Seq: 0, Text: "anchor", WindowText: "window around anchor"},
		},
	}
	e, ix := newTestEngine(t, vector)
	ix.markBuilt(StrategySentenceWindow)

	results, diag, err := e.Retrieve(context.Background(), "q?", "", 5)
	require.NoError(t, err)
	assert.Equal(t, StrategySentenceWindow, diag.Strategy)

	// 句子窗口策略检索后用窗口文本替换锚句
	require.Len(t, results, 1)
	assert.Equal(t, "window around anchor", results[0].Chunk.Text)
}

func TestEngine_ExpansionNeverExceedsTopK(t *testing.T) {
	hits := []*VectorSearchResult{
		{ID: "c1", Score: 0.9, DocumentID: "doc", Seq: 0, Text: "s0", WindowText: "w0"},
		{ID: "c2", Score: 0.8, DocumentID: "doc", Seq: 1, Text: "s1", WindowText: "w1"},
		{ID: "c3", Score: 0.7, DocumentID: "doc", Seq: 2, Text: "s2", WindowText: "w2"},
	}
	vector := &fakeVectorStore{searchHits: hits}
	e, ix := newTestEngine(t, vector)
	ix.markBuilt(StrategySentenceWindow)

	results, _, err := e.Retrieve(context.Background(), "q?", StrategySentenceWindow, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "w0", results[0].Chunk.Text)
	assert.Equal(t, "w1", results[1].Chunk.Text)
}
