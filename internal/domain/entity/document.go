// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
)

// DocumentStatus 文档处理状态
type DocumentStatus string

const (
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusProcessed  DocumentStatus = "processed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document 文档实体。上传时创建，分块后不再修改。
type Document struct {
	ID       string `json:"document_id"`
	Filename string `json:"filename"`
	FilePath string `json:"file_path"`
	RawText  string `json:"-"`
	FileType string `json:"file_type"`
}

// NewDocument 创建新文档
func NewDocument(filename, filePath, rawText, fileType string) *Document {
	return &Document{
		ID:       uuid.NewString(),
		Filename: filename,
		FilePath: filePath,
		RawText:  rawText,
		FileType: fileType,
	}
}

// DocumentMetadataRecord 文档处理记录。每次处理尝试一条；
// 状态流转 processing -> processed|failed，终态后仅允许删除。
type DocumentMetadataRecord struct {
	ID             int64          `json:"-" gorm:"primaryKey;autoIncrement"`
	DocumentID     string         `json:"document_id" gorm:"type:uuid;index;not null"`
	Filename       string         `json:"filename" gorm:"type:varchar(512);not null"`
	FilePath       string         `json:"file_path" gorm:"type:varchar(1024)"`
	NumSourceUnits int            `json:"num_source_units" gorm:"default:0"`
	NumChunks      int            `json:"num_chunks" gorm:"default:0"`
	Status         DocumentStatus `json:"status" gorm:"type:varchar(32);not null"`
	Strategy       string         `json:"strategy" gorm:"type:varchar(64);index;not null"`
	FailReason     string         `json:"fail_reason,omitempty" gorm:"type:text"`
	CreatedAt      time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (DocumentMetadataRecord) TableName() string {
	return "document_metadata"
}

// Terminal 检查记录是否处于终态
func (r *DocumentMetadataRecord) Terminal() bool {
	return r.Status == DocumentStatusProcessed || r.Status == DocumentStatusFailed
}
