package handler

import (
	"github.com/gin-gonic/gin"

	"doc-qa-api/internal/application/qa"
	"doc-qa-api/internal/interfaces/http/dto"
)

// QAHandler 问答处理器
type QAHandler struct {
	svc *qa.Service
}

// NewQAHandler 创建问答处理器
func NewQAHandler(svc *qa.Service) *QAHandler {
	return &QAHandler{svc: svc}
}

// Query 问答查询
// @Summary 问答查询
// @Description 基于已建索引回答问题
// @Tags QA
// @Accept json
// @Produce json
// @Param request body dto.QueryRequest true "问答请求"
// @Success 200 {object} retrieval.QueryResult
// @Router /v1/qa/query [post]
func (h *QAHandler) Query(c *gin.Context) {
	var req dto.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.svc.Query(c.Request.Context(), qa.QueryInput{
		Question:           req.Question,
		Strategy:           req.Strategy,
		TopK:               req.TopK,
		IncludeDiagnostics: req.EnableEvaluation,
	})
	if err != nil {
		dto.AppError(c, err)
		return
	}

	dto.Success(c, result)
}

// Compare 多策略对比
// @Summary 多策略对比
// @Description 用多个策略回答同一问题并汇总对比
// @Tags QA
// @Accept json
// @Produce json
// @Param request body dto.CompareRequest true "对比请求"
// @Success 200 {object} qa.CompareResult
// @Router /v1/qa/compare [post]
func (h *QAHandler) Compare(c *gin.Context) {
	var req dto.CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.svc.CompareStrategies(c.Request.Context(), req.Question, req.Strategies, req.TopK)
	if err != nil {
		dto.AppError(c, err)
		return
	}

	dto.Success(c, result)
}

// Strategies 策略概览
// @Summary 策略概览
// @Description 返回可用策略、已建索引策略与当前默认策略
// @Tags QA
// @Produce json
// @Success 200 {object} qa.StrategiesInfo
// @Router /v1/qa/strategies [get]
func (h *QAHandler) Strategies(c *gin.Context) {
	dto.Success(c, h.svc.ListStrategies(c.Request.Context()))
}
