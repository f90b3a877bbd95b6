// Package retrieval 实现文档问答的核心流程：分块、嵌入、索引构建与检索
package retrieval

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"doc-qa-api/internal/config"
	"doc-qa-api/internal/domain/entity"
	apperrors "doc-qa-api/pkg/errors"
)

// 内置策略名
const (
	StrategyVectorStore    = "vector_store"
	StrategySentenceWindow = "sentence_window"
)

// Strategy 一种分块/检索策略。Split 产出的分块顺序即 Seq 顺序。
type Strategy interface {
	Name() string
	// Split 将文档切分为有序分块，返回分块与源句子数
	Split(doc *entity.Document) ([]entity.Chunk, int, error)
	// EmbedText 返回分块参与嵌入的文本
	EmbedText(c *entity.Chunk) string
	// ExpandContext 检索后处理：仅替换文本载荷，不改变排序与数量
	ExpandContext(results []entity.ScoredChunk) []entity.ScoredChunk
}

// Registry 策略注册表，构造后只读
type Registry struct {
	strategies map[string]Strategy
	order      []string
}

// NewRegistry 按分块配置创建注册表，非法参数组合直接拒绝
func NewRegistry(cfg config.ChunkingConfig) (*Registry, error) {
	if cfg.ChunkSize <= 0 {
		return nil, apperrors.ErrChunkingFailed.WithDetail(fmt.Sprintf("chunk_size must be > 0, got %d", cfg.ChunkSize))
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, apperrors.ErrChunkingFailed.WithDetail(fmt.Sprintf("chunk_overlap must be in [0, chunk_size), got %d", cfg.ChunkOverlap))
	}
	if cfg.SentenceWindowSize < 0 {
		return nil, apperrors.ErrChunkingFailed.WithDetail(fmt.Sprintf("sentence_window_size must be >= 0, got %d", cfg.SentenceWindowSize))
	}

	r := &Registry{strategies: make(map[string]Strategy)}
	r.register(&plainStrategy{chunkSize: cfg.ChunkSize, overlap: cfg.ChunkOverlap})
	r.register(&sentenceWindowStrategy{windowSize: cfg.SentenceWindowSize})
	return r, nil
}

func (r *Registry) register(s Strategy) {
	r.strategies[s.Name()] = s
	r.order = append(r.order, s.Name())
}

// Get 按名称返回策略，未注册的名称返回 ErrUnknownStrategy
func (r *Registry) Get(name string) (Strategy, error) {
	s, ok := r.strategies[strings.TrimSpace(name)]
	if !ok {
		return nil, apperrors.ErrUnknownStrategy.WithDetail(name)
	}
	return s, nil
}

// Names 返回注册顺序下的全部策略名
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// plainStrategy 固定大小分块策略：句子边界聚合 + 尾部重叠
type plainStrategy struct {
	chunkSize int
	overlap   int
}

func (s *plainStrategy) Name() string { return StrategyVectorStore }

func (s *plainStrategy) Split(doc *entity.Document) ([]entity.Chunk, int, error) {
	text := strings.TrimSpace(doc.RawText)
	if text == "" {
		return nil, 0, apperrors.ErrChunkingFailed.WithDetail("document text is empty")
	}
	sentences := splitSentences(text)
	pieces := chunkBySentences(sentences, s.chunkSize, s.overlap)

	chunks := make([]entity.Chunk, 0, len(pieces))
	for i, p := range pieces {
		chunks = append(chunks, entity.Chunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Strategy:   s.Name(),
			Seq:        i,
			Text:       p,
			Metadata: entity.ChunkMetadata{
				Filename:   doc.Filename,
				DocumentID: doc.ID,
				Strategy:   s.Name(),
			},
		})
	}
	return chunks, len(sentences), nil
}

func (s *plainStrategy) EmbedText(c *entity.Chunk) string { return c.Text }

func (s *plainStrategy) ExpandContext(results []entity.ScoredChunk) []entity.ScoredChunk {
	return results
}

// sentenceWindowStrategy 句子窗口策略：逐句嵌入，
// 检索后用预存的 ±windowSize 邻句窗口替换单句文本。
type sentenceWindowStrategy struct {
	windowSize int
}

func (s *sentenceWindowStrategy) Name() string { return StrategySentenceWindow }

func (s *sentenceWindowStrategy) Split(doc *entity.Document) ([]entity.Chunk, int, error) {
	text := strings.TrimSpace(doc.RawText)
	if text == "" {
		return nil, 0, apperrors.ErrChunkingFailed.WithDetail("document text is empty")
	}
	sentences := splitSentences(text)

	chunks := make([]entity.Chunk, 0, len(sentences))
	for i, sent := range sentences {
		chunks = append(chunks, entity.Chunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Strategy:   s.Name(),
			Seq:        i,
			Text:       sent,
			WindowText: windowAround(sentences, i, s.windowSize),
			Metadata: entity.ChunkMetadata{
				Filename:     doc.Filename,
				DocumentID:   doc.ID,
				Strategy:     s.Name(),
				WindowAnchor: i,
			},
		})
	}
	return chunks, len(sentences), nil
}

// EmbedText 只嵌入锚句本身，窗口文本不参与相似度计算
func (s *sentenceWindowStrategy) EmbedText(c *entity.Chunk) string { return c.Text }

func (s *sentenceWindowStrategy) ExpandContext(results []entity.ScoredChunk) []entity.ScoredChunk {
	out := make([]entity.ScoredChunk, len(results))
	for i, r := range results {
		if w := strings.TrimSpace(r.Chunk.WindowText); w != "" {
			r.Chunk.Text = w
		}
		out[i] = r
	}
	return out
}
