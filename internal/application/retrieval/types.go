package retrieval

import (
	"doc-qa-api/internal/domain/entity"
)

// DocumentResult 单文档入库结果
type DocumentResult struct {
	DocumentID string                `json:"document_id"`
	Filename   string                `json:"filename"`
	Status     entity.DocumentStatus `json:"status"`
	NumChunks  int                   `json:"num_chunks"`
	Error      string                `json:"error,omitempty"`
}

// IndexSummary 一次索引构建的汇总
type IndexSummary struct {
	Strategy       string           `json:"strategy"`
	TotalDocuments int              `json:"total_documents"`
	Processed      int              `json:"processed"`
	Failed         int              `json:"failed"`
	TotalChunks    int              `json:"total_chunks"`
	Cleared        bool             `json:"cleared"`
	Documents      []DocumentResult `json:"documents"`
}

// Source 答案引用来源
type Source struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Seq        int     `json:"seq"`
	Score      float64 `json:"score"`
	Snippet    string  `json:"snippet"`
}

// Diagnostics 单次问答的诊断信息
type Diagnostics struct {
	Strategy       string `json:"strategy"`
	TopK           int    `json:"top_k"`
	Candidates     int    `json:"candidates"`
	RetrievalMs    int64  `json:"retrieval_ms"`
	GenerationMs   int64  `json:"generation_ms"`
	GenerationFail string `json:"generation_error,omitempty"`
}

// QueryResult 一次问答的完整结果。
// Error 在答案为降级回答时携带生成失败原因，与诊断信息无关，始终返回。
type QueryResult struct {
	Answer      string       `json:"answer"`
	Strategy    string       `json:"strategy"`
	Sources     []Source     `json:"sources"`
	Error       string       `json:"error,omitempty"`
	Diagnostics *Diagnostics `json:"diagnostics,omitempty"`
}
