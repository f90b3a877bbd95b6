package retrieval

import (
	"context"
	"strings"
	"time"

	"doc-qa-api/internal/domain/entity"
	"doc-qa-api/pkg/logger"
	"doc-qa-api/pkg/metrics"
)

// Generator 答案生成端口
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const apologyAnswer = "I'm sorry, I couldn't generate an answer for this question right now. Please try again later."

// Composer 答案合成器。Compose 永不返回错误：
// 生成失败时降级为致歉回答，原因记入诊断信息。
type Composer struct {
	generator Generator
}

// NewComposer 创建答案合成器
func NewComposer(generator Generator) *Composer {
	return &Composer{generator: generator}
}

// Compose 基于检索到的分块合成答案
func (c *Composer) Compose(ctx context.Context, question, strategyName string, chunks []entity.ScoredChunk, diag *Diagnostics) *QueryResult {
	prompt := BuildGroundingPrompt(question, chunks)

	start := time.Now()
	answer, err := c.generator.Generate(ctx, prompt)
	elapsed := time.Since(start)
	metrics.GenerationDuration.WithLabelValues().Observe(elapsed.Seconds())
	if diag != nil {
		diag.GenerationMs = elapsed.Milliseconds()
	}

	result := &QueryResult{
		Strategy:    strategyName,
		Sources:     []Source{},
		Diagnostics: diag,
	}
	if err != nil {
		metrics.GenerationTotal.WithLabelValues("error").Inc()
		logger.Error(ctx, "answer generation failed", err, "strategy", strategyName)
		result.Answer = apologyAnswer
		result.Error = err.Error()
		if diag != nil {
			diag.GenerationFail = err.Error()
		}
		return result
	}
	metrics.GenerationTotal.WithLabelValues("ok").Inc()

	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = apologyAnswer
	}
	result.Answer = answer
	result.Sources = buildSources(chunks)
	return result
}

// buildSources 按检索顺序生成引用列表，片段截断到固定长度
func buildSources(chunks []entity.ScoredChunk) []Source {
	sources := make([]Source, 0, len(chunks))
	for _, sc := range chunks {
		sources = append(sources, Source{
			ChunkID:    sc.Chunk.ID,
			DocumentID: sc.Chunk.DocumentID,
			Filename:   sc.Chunk.Metadata.Filename,
			Seq:        sc.Chunk.Seq,
			Score:      sc.Score,
			Snippet:    truncateRunes(compactOneLine(sc.Chunk.Text), maxSnippetRunes),
		})
	}
	return sources
}
