// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"doc-qa-api/internal/domain/entity"
)

// MetadataRepository 文档处理记录仓储接口
type MetadataRepository interface {
	// Insert 追加一条处理记录
	Insert(ctx context.Context, record *entity.DocumentMetadataRecord) error

	// UpdateStatus 更新处理状态（terminal 状态只能由 processing 迁移而来）
	UpdateStatus(ctx context.Context, documentID, strategy string, status entity.DocumentStatus, numSourceUnits, numChunks int, failReason string) error

	// FindAll 返回全部处理记录（按创建时间升序）
	FindAll(ctx context.Context) ([]*entity.DocumentMetadataRecord, error)

	// FindByIDs 根据 document_id 集合返回处理记录
	FindByIDs(ctx context.Context, documentIDs []string) ([]*entity.DocumentMetadataRecord, error)

	// Delete 删除文档的全部处理记录；不存在时返回 false
	Delete(ctx context.Context, documentID string) (bool, error)

	// DeleteByStrategy 删除某一策略的全部处理记录（clear 重建时使用）
	DeleteByStrategy(ctx context.Context, strategy string) error
}
