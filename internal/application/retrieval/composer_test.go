package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-qa-api/internal/domain/entity"
)

func scoredChunk(id, filename, text string, seq int, score float64) entity.ScoredChunk {
	return entity.ScoredChunk{
		Chunk: entity.Chunk{
			ID:         id,
			DocumentID: "doc-1",
			Seq:        seq,
			Text:       text,
			Metadata:   entity.ChunkMetadata{Filename: filename, DocumentID: "doc-1"},
		},
		Score: score,
	}
}

func TestBuildGroundingPrompt(t *testing.T) {
	chunks := []entity.ScoredChunk{
		scoredChunk("c1", "a.txt", "First  chunk\ntext", 0, 0.9),
		scoredChunk("c2", "b.txt", "Second chunk", 1, 0.8),
		scoredChunk("c1", "a.txt", "First  chunk\ntext", 0, 0.9), // 重复分块
	}

	prompt := BuildGroundingPrompt("  What is this?  ", chunks)

	// 重复分块只编号一次，空白折叠为单行
	assert.Contains(t, prompt, "[1] (a.txt) First chunk text")
	assert.Contains(t, prompt, "[2] (b.txt) Second chunk")
	assert.NotContains(t, prompt, "[3]")
	assert.Contains(t, prompt, "Question: What is this?")
	assert.True(t, strings.HasSuffix(prompt, "Answer:"))
}

func TestBuildGroundingPrompt_NoContext(t *testing.T) {
	prompt := BuildGroundingPrompt("anything?", nil)

	assert.Contains(t, prompt, "(no relevant context found)")
	assert.NotContains(t, prompt, "[1]")
}

func TestComposer_Success(t *testing.T) {
	c := NewComposer(&fakeGenerator{answer: "  The answer. [1]  "})
	chunks := []entity.ScoredChunk{scoredChunk("c1", "a.txt", "context text", 0, 0.9)}
	diag := &Diagnostics{Strategy: StrategyVectorStore, TopK: 5}

	result := c.Compose(context.Background(), "q?", StrategyVectorStore, chunks, diag)

	require.NotNil(t, result)
	assert.Equal(t, "The answer. [1]", result.Answer)
	assert.Equal(t, StrategyVectorStore, result.Strategy)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "c1", result.Sources[0].ChunkID)
	assert.Equal(t, "a.txt", result.Sources[0].Filename)
	assert.Equal(t, 0.9, result.Sources[0].Score)
	assert.Empty(t, result.Error)
	assert.Empty(t, diag.GenerationFail)
	assert.GreaterOrEqual(t, diag.GenerationMs, int64(0))
}

func TestComposer_GenerationFailureDegrades(t *testing.T) {
	c := NewComposer(&fakeGenerator{err: errors.New("llm timeout")})
	chunks := []entity.ScoredChunk{scoredChunk("c1", "a.txt", "context", 0, 0.9)}
	diag := &Diagnostics{}

	result := c.Compose(context.Background(), "q?", StrategyVectorStore, chunks, diag)

	// 生成失败降级为致歉回答，不返回错误；失败原因写入结果本身
	require.NotNil(t, result)
	assert.Equal(t, apologyAnswer, result.Answer)
	assert.Empty(t, result.Sources)
	assert.Equal(t, "llm timeout", result.Error)
	assert.Equal(t, "llm timeout", diag.GenerationFail)
}

func TestComposer_GenerationFailureWithoutDiagnostics(t *testing.T) {
	c := NewComposer(&fakeGenerator{err: errors.New("llm timeout")})
	chunks := []entity.ScoredChunk{scoredChunk("c1", "a.txt", "context", 0, 0.9)}

	// 未请求诊断信息时失败原因依然可见
	result := c.Compose(context.Background(), "q?", StrategyVectorStore, chunks, nil)

	require.NotNil(t, result)
	assert.Equal(t, apologyAnswer, result.Answer)
	assert.Equal(t, "llm timeout", result.Error)
	assert.Nil(t, result.Diagnostics)
}

func TestComposer_EmptyAnswerFallsBack(t *testing.T) {
	c := NewComposer(&fakeGenerator{answer: "   "})
	chunks := []entity.ScoredChunk{scoredChunk("c1", "a.txt", "context", 0, 0.9)}

	result := c.Compose(context.Background(), "q?", StrategyVectorStore, chunks, nil)

	assert.Equal(t, apologyAnswer, result.Answer)
	// 生成本身成功，引用仍然保留，不标记失败
	assert.Empty(t, result.Error)
	assert.Len(t, result.Sources, 1)
}

func TestBuildSources_SnippetTruncation(t *testing.T) {
	long := strings.Repeat("长", maxSnippetRunes+50)
	sources := buildSources([]entity.ScoredChunk{scoredChunk("c1", "a.txt", long, 0, 0.5)})

	require.Len(t, sources, 1)
	runes := []rune(sources[0].Snippet)
	assert.Len(t, runes, maxSnippetRunes+1) // 截断后以省略号结尾
	assert.Equal(t, '…', runes[len(runes)-1])
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 5))
	assert.Equal(t, "ab…", truncateRunes("abcdef", 2))
	assert.Equal(t, "一二…", truncateRunes("一二三四", 2))
}
