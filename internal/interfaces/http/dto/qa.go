package dto

// QueryRequest 问答请求
type QueryRequest struct {
	Question string `json:"question" binding:"required"`
	Strategy string `json:"strategy"`
	TopK     int    `json:"top_k"`
	// EnableEvaluation 返回检索/生成诊断信息
	EnableEvaluation bool `json:"enable_evaluation"`
}

// CompareRequest 多策略对比请求
type CompareRequest struct {
	Question   string   `json:"question" binding:"required"`
	Strategies []string `json:"strategies"`
	TopK       int      `json:"top_k"`
}
