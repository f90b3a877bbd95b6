package dto

import (
	"time"

	"doc-qa-api/internal/application/retrieval"
	"doc-qa-api/internal/domain/entity"
)

// UploadResponse 文档上传与建索引响应
type UploadResponse struct {
	Summary *retrieval.IndexSummary `json:"summary"`
}

// DocumentRecord 文档处理记录
type DocumentRecord struct {
	DocumentID     string    `json:"document_id"`
	Filename       string    `json:"filename"`
	Strategy       string    `json:"strategy"`
	Status         string    `json:"status"`
	NumSourceUnits int       `json:"num_source_units"`
	NumChunks      int       `json:"num_chunks"`
	FailReason     string    `json:"fail_reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DocumentListResponse 文档列表响应
type DocumentListResponse struct {
	Documents []DocumentRecord `json:"documents"`
	Total     int              `json:"total"`
}

// DeleteResponse 文档删除响应
type DeleteResponse struct {
	DocumentID string `json:"document_id"`
	Deleted    bool   `json:"deleted"`
}

// FromMetadataRecords 将领域记录转换为响应对象
func FromMetadataRecords(records []*entity.DocumentMetadataRecord) DocumentListResponse {
	out := make([]DocumentRecord, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		out = append(out, DocumentRecord{
			DocumentID:     r.DocumentID,
			Filename:       r.Filename,
			Strategy:       r.Strategy,
			Status:         string(r.Status),
			NumSourceUnits: r.NumSourceUnits,
			NumChunks:      r.NumChunks,
			FailReason:     r.FailReason,
			CreatedAt:      r.CreatedAt,
			UpdatedAt:      r.UpdatedAt,
		})
	}
	return DocumentListResponse{Documents: out, Total: len(out)}
}
