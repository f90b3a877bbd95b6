// Package document 提供文档上传、查询与删除的应用服务
package document

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"doc-qa-api/internal/application/retrieval"
	"doc-qa-api/internal/config"
	"doc-qa-api/internal/domain/entity"
	"doc-qa-api/internal/domain/repository"
	apperrors "doc-qa-api/pkg/errors"
	"doc-qa-api/pkg/logger"
)

// AnswerInvalidator 文档集变化后使答案缓存失效
type AnswerInvalidator interface {
	InvalidateAnswers(ctx context.Context) error
}

// UploadFile 一个待上传的文件
type UploadFile struct {
	Filename string
	Size     int64
	Reader   io.Reader
}

// Service 文档应用服务
type Service struct {
	uploadCfg config.UploadConfig
	registry  *retrieval.Registry
	indexer   *retrieval.Indexer
	meta      repository.MetadataRepository
	vector    retrieval.VectorStore
	cache     AnswerInvalidator
}

// NewService 创建文档应用服务
func NewService(uploadCfg config.UploadConfig, registry *retrieval.Registry, indexer *retrieval.Indexer, meta repository.MetadataRepository, vector retrieval.VectorStore, cache AnswerInvalidator) *Service {
	return &Service{
		uploadCfg: uploadCfg,
		registry:  registry,
		indexer:   indexer,
		meta:      meta,
		vector:    vector,
		cache:     cache,
	}
}

// UploadAndIndex 校验并落盘一批文件，然后在指定策略下建立索引。
// 策略名非法或任一文件校验失败时整批拒绝，不产生任何副作用。
// 同名文件重复上传会再次入库，不做去重。
func (s *Service) UploadAndIndex(ctx context.Context, files []UploadFile, strategyName string, clear bool) (*retrieval.IndexSummary, error) {
	if _, err := s.registry.Get(strategyName); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, apperrors.ErrInvalidParam.WithDetail("no files uploaded")
	}
	for _, f := range files {
		if err := s.validateFile(f); err != nil {
			return nil, err
		}
	}

	docs := make([]*entity.Document, 0, len(files))
	for _, f := range files {
		doc, err := s.saveFile(ctx, f)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	summary, err := s.indexer.BuildOrExtend(ctx, docs, strategyName, clear)
	if err != nil {
		return nil, err
	}

	if err := s.cache.InvalidateAnswers(ctx); err != nil {
		logger.Warn(ctx, "invalidate answer cache failed", "error", err.Error())
	}
	return summary, nil
}

// List 返回全部文档处理记录
func (s *Service) List(ctx context.Context) ([]*entity.DocumentMetadataRecord, error) {
	records, err := s.meta.FindAll(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeMetadataStoreError, "list documents failed")
	}
	return records, nil
}

// Delete 删除文档：先清理所有策略下的向量分块，再删除处理记录与磁盘文件。
// 文档不存在（或已删除）时返回 false。
func (s *Service) Delete(ctx context.Context, documentID string) (bool, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return false, apperrors.ErrInvalidParam.WithDetail("document_id is required")
	}
	ctx = logger.WithContext(ctx, logger.DocumentIDKey, documentID)

	records, err := s.meta.FindByIDs(ctx, []string{documentID})
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.CodeMetadataStoreError, "load document records failed")
	}

	for _, name := range s.registry.Names() {
		if err := s.vector.DeleteByDocument(ctx, name, documentID); err != nil {
			return false, apperrors.Wrap(err, apperrors.CodeVectorStoreError, "delete vector chunks failed")
		}
	}

	deleted, err := s.meta.Delete(ctx, documentID)
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.CodeMetadataStoreError, "delete document records failed")
	}
	if !deleted {
		return false, nil
	}

	// 磁盘文件清理失败不阻断删除
	for _, r := range records {
		if r == nil || r.FilePath == "" {
			continue
		}
		if err := os.Remove(r.FilePath); err != nil && !os.IsNotExist(err) {
			logger.Warn(ctx, "remove uploaded file failed", "path", r.FilePath, "error", err.Error())
		}
	}

	if err := s.cache.InvalidateAnswers(ctx); err != nil {
		logger.Warn(ctx, "invalidate answer cache failed", "error", err.Error())
	}
	logger.Info(ctx, "document deleted")
	return true, nil
}

// validateFile 校验扩展名与大小
func (s *Service) validateFile(f UploadFile) error {
	ext := strings.ToLower(filepath.Ext(f.Filename))
	if ext == "" || !s.extensionAllowed(ext) {
		return apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("file type %q is not allowed", ext))
	}
	if f.Size <= 0 {
		return apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("file %q is empty", f.Filename))
	}
	if f.Size > s.uploadCfg.MaxFileSizeBytes {
		return apperrors.ErrInvalidParam.WithDetail(
			fmt.Sprintf("file %q exceeds size limit of %d bytes", f.Filename, s.uploadCfg.MaxFileSizeBytes))
	}
	return nil
}

func (s *Service) extensionAllowed(ext string) bool {
	for _, allowed := range s.uploadCfg.AllowedExtensions {
		if strings.EqualFold(allowed, ext) {
			return true
		}
	}
	return false
}

// saveFile 将上传内容写入上传目录并构造文档实体
func (s *Service) saveFile(ctx context.Context, f UploadFile) (*entity.Document, error) {
	if err := os.MkdirAll(s.uploadCfg.Dir, 0o755); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "create upload dir failed")
	}

	// 文件名加 uuid 前缀，避免同名覆盖
	stored := fmt.Sprintf("%s_%s", uuid.NewString(), filepath.Base(f.Filename))
	path := filepath.Join(s.uploadCfg.Dir, stored)

	content, err := io.ReadAll(io.LimitReader(f.Reader, s.uploadCfg.MaxFileSizeBytes+1))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "read uploaded file failed")
	}
	if int64(len(content)) > s.uploadCfg.MaxFileSizeBytes {
		return nil, apperrors.ErrInvalidParam.WithDetail(
			fmt.Sprintf("file %q exceeds size limit of %d bytes", f.Filename, s.uploadCfg.MaxFileSizeBytes))
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "write uploaded file failed")
	}

	ext := strings.ToLower(filepath.Ext(f.Filename))
	doc := entity.NewDocument(filepath.Base(f.Filename), path, string(content), ext)
	logger.Debug(ctx, "file stored", "document_id", doc.ID, "path", path, "bytes", len(content))
	return doc, nil
}
