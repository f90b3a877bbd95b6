package entity

// ChunkMetadata 随分块写入向量索引的溯源信息
type ChunkMetadata struct {
	Filename   string `json:"filename"`
	DocumentID string `json:"document_id"`
	Strategy   string `json:"strategy"`
	// WindowAnchor 句子窗口策略下锚句在原文中的序号
	WindowAnchor int `json:"window_anchor,omitempty"`
}

// Chunk 检索单元。由分块器为某一策略生成，创建后不可变；
// DocumentID 是指向来源文档的回引，不表示所有权。
type Chunk struct {
	ID         string
	DocumentID string
	Strategy   string
	// Seq 在 (document, strategy) 内稳定且唯一
	Seq int
	// Text 参与嵌入与检索的文本
	Text string
	// WindowText 句子窗口策略的上下文载荷，不参与嵌入
	WindowText string
	Metadata   ChunkMetadata
}

// ScoredChunk 带相似度得分的检索结果
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}
