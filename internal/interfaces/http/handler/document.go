// Package handler 提供 HTTP 请求处理器
package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"doc-qa-api/internal/application/document"
	"doc-qa-api/internal/application/retrieval"
	"doc-qa-api/internal/interfaces/http/dto"
	apperrors "doc-qa-api/pkg/errors"
)

// DocumentHandler 文档处理器
type DocumentHandler struct {
	svc *document.Service
}

// NewDocumentHandler 创建文档处理器
func NewDocumentHandler(svc *document.Service) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

// Upload 上传文档并建立索引
// @Summary 上传文档
// @Description 上传一批文档并在指定策略下建立索引
// @Tags Document
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "待索引的文档"
// @Param strategy formData string false "分块策略，默认 vector_store"
// @Param clear formData bool false "是否先清空该策略的已有索引"
// @Success 201 {object} dto.UploadResponse
// @Router /v1/documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		dto.BadRequest(c, "invalid multipart form: "+err.Error())
		return
	}

	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		dto.BadRequest(c, "no files uploaded")
		return
	}

	strategy := c.PostForm("strategy")
	if strategy == "" {
		strategy = c.Query("strategy")
	}
	if strategy == "" {
		strategy = retrieval.StrategyVectorStore
	}

	clear, _ := strconv.ParseBool(c.DefaultPostForm("clear", c.DefaultQuery("clear", "false")))

	files := make([]document.UploadFile, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			dto.BadRequest(c, "cannot open uploaded file: "+err.Error())
			return
		}
		defer f.Close()
		files = append(files, document.UploadFile{
			Filename: fh.Filename,
			Size:     fh.Size,
			Reader:   f,
		})
	}

	summary, err := h.svc.UploadAndIndex(c.Request.Context(), files, strategy, clear)
	if err != nil {
		dto.AppError(c, err)
		return
	}

	dto.Created(c, dto.UploadResponse{Summary: summary})
}

// List 文档列表
// @Summary 文档列表
// @Description 返回全部文档处理记录
// @Tags Document
// @Produce json
// @Success 200 {object} dto.DocumentListResponse
// @Router /v1/documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	records, err := h.svc.List(c.Request.Context())
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Success(c, dto.FromMetadataRecords(records))
}

// Delete 删除文档
// @Summary 删除文档
// @Description 删除文档的向量分块与处理记录
// @Tags Document
// @Produce json
// @Param id path string true "文档 ID"
// @Success 200 {object} dto.DeleteResponse
// @Router /v1/documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	documentID := c.Param("id")

	deleted, err := h.svc.Delete(c.Request.Context(), documentID)
	if err != nil {
		dto.AppError(c, err)
		return
	}
	if !deleted {
		dto.AppError(c, apperrors.ErrDocumentNotFound.WithDetail(documentID))
		return
	}

	dto.Success(c, dto.DeleteResponse{DocumentID: documentID, Deleted: true})
}
