package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-qa-api/internal/config"
	"doc-qa-api/internal/domain/entity"
	apperrors "doc-qa-api/pkg/errors"
)

func testChunkingConfig() config.ChunkingConfig {
	return config.ChunkingConfig{
		ChunkSize:          100,
		ChunkOverlap:       20,
		SentenceWindowSize: 1,
	}
}

func TestNewRegistry_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ChunkingConfig
	}{
		{"zero chunk size", config.ChunkingConfig{ChunkSize: 0, ChunkOverlap: 0}},
		{"negative overlap", config.ChunkingConfig{ChunkSize: 100, ChunkOverlap: -1}},
		{"overlap equals chunk size", config.ChunkingConfig{ChunkSize: 100, ChunkOverlap: 100}},
		{"negative window", config.ChunkingConfig{ChunkSize: 100, ChunkOverlap: 10, SentenceWindowSize: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.cfg)
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, apperrors.CodeChunkingFailed))
		})
	}
}

func TestRegistry_GetAndNames(t *testing.T) {
	registry, err := NewRegistry(testChunkingConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{StrategyVectorStore, StrategySentenceWindow}, registry.Names())

	s, err := registry.Get(StrategyVectorStore)
	require.NoError(t, err)
	assert.Equal(t, StrategyVectorStore, s.Name())

	s, err = registry.Get(" sentence_window ")
	require.NoError(t, err)
	assert.Equal(t, StrategySentenceWindow, s.Name())

	_, err = registry.Get("bm25")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnknownStrategy))
}

func TestPlainStrategy_Split(t *testing.T) {
	registry, err := NewRegistry(testChunkingConfig())
	require.NoError(t, err)
	s, err := registry.Get(StrategyVectorStore)
	require.NoError(t, err)

	doc := entity.NewDocument("a.txt", "/tmp/a.txt", "First sentence. Second sentence. Third sentence.", ".txt")

	chunks, sourceUnits, err := s.Split(doc)
	require.NoError(t, err)
	assert.Equal(t, 3, sourceUnits)
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.Equal(t, i, c.Seq)
		assert.Equal(t, doc.ID, c.DocumentID)
		assert.Equal(t, StrategyVectorStore, c.Strategy)
		assert.Equal(t, "a.txt", c.Metadata.Filename)
		assert.NotEmpty(t, c.ID)
		assert.Empty(t, c.WindowText)
		assert.Equal(t, c.Text, s.EmbedText(&chunks[i]))
	}
}

func TestPlainStrategy_EmptyDocument(t *testing.T) {
	registry, err := NewRegistry(testChunkingConfig())
	require.NoError(t, err)
	s, err := registry.Get(StrategyVectorStore)
	require.NoError(t, err)

	_, _, err = s.Split(entity.NewDocument("empty.txt", "", "   ", ".txt"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeChunkingFailed))
}

func TestSentenceWindowStrategy_Split(t *testing.T) {
	registry, err := NewRegistry(testChunkingConfig())
	require.NoError(t, err)
	s, err := registry.Get(StrategySentenceWindow)
	require.NoError(t, err)

	doc := entity.NewDocument("b.txt", "", "One. Two. Three. Four.", ".txt")

	chunks, sourceUnits, err := s.Split(doc)
	require.NoError(t, err)
	assert.Equal(t, 4, sourceUnits)
	require.Len(t, chunks, 4)

	// 每句一个分块，锚句序号与窗口文本正确
	assert.Equal(t, "One.", chunks[0].Text)
	assert.Equal(t, "One. Two.", chunks[0].WindowText)
	assert.Equal(t, 0, chunks[0].Metadata.WindowAnchor)

	assert.Equal(t, "Two.", chunks[1].Text)
	assert.Equal(t, "One. Two. Three.", chunks[1].WindowText)
	assert.Equal(t, 1, chunks[1].Metadata.WindowAnchor)

	assert.Equal(t, "Four.", chunks[3].Text)
	assert.Equal(t, "Three. Four.", chunks[3].WindowText)

	// 只嵌入锚句
	assert.Equal(t, "Two.", s.EmbedText(&chunks[1]))
}

func TestSentenceWindowStrategy_ExpandContext(t *testing.T) {
	registry, err := NewRegistry(testChunkingConfig())
	require.NoError(t, err)
	s, err := registry.Get(StrategySentenceWindow)
	require.NoError(t, err)

	in := []entity.ScoredChunk{
		{Chunk: entity.Chunk{ID: "c1", Text: "Two.", WindowText: "One. Two. Three."}, Score: 0.9},
		{Chunk: entity.Chunk{ID: "c2", Text: "Five.", WindowText: ""}, Score: 0.8},
	}

	out := s.ExpandContext(in)

	require.Len(t, out, 2)
	assert.Equal(t, "One. Two. Three.", out[0].Chunk.Text)
	assert.Equal(t, 0.9, out[0].Score)
	// 无窗口文本时保留原文
	assert.Equal(t, "Five.", out[1].Chunk.Text)
	// 排序与数量不变
	assert.Equal(t, "c1", out[0].Chunk.ID)
	assert.Equal(t, "c2", out[1].Chunk.ID)
}

func TestPlainStrategy_ExpandContextIsNoop(t *testing.T) {
	registry, err := NewRegistry(testChunkingConfig())
	require.NoError(t, err)
	s, err := registry.Get(StrategyVectorStore)
	require.NoError(t, err)

	in := []entity.ScoredChunk{{Chunk: entity.Chunk{ID: "c1", Text: "text"}, Score: 0.5}}
	assert.Equal(t, in, s.ExpandContext(in))
}
