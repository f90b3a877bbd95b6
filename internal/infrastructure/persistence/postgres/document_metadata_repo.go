// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"doc-qa-api/internal/domain/entity"
)

// DocumentMetadataRepository 文档处理记录仓储实现
type DocumentMetadataRepository struct {
	client *Client
}

// NewDocumentMetadataRepository 创建文档处理记录仓储
func NewDocumentMetadataRepository(client *Client) *DocumentMetadataRepository {
	return &DocumentMetadataRepository{client: client}
}

// Insert 追加一条处理记录
func (r *DocumentMetadataRepository) Insert(ctx context.Context, record *entity.DocumentMetadataRecord) error {
	ctx, span := tracer.Start(ctx, "postgres.DocumentMetadataRepository.Insert")
	defer span.End()

	query := `
		INSERT INTO document_metadata (document_id, filename, file_path, num_source_units, num_chunks, status, strategy, fail_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := r.client.sqlDB.QueryRowContext(ctx, query,
		record.DocumentID, record.Filename, record.FilePath,
		record.NumSourceUnits, record.NumChunks,
		string(record.Status), record.Strategy, record.FailReason,
	).Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)

	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert metadata record: %w", err)
	}

	return nil
}

// UpdateStatus 更新处理状态。只允许从 processing 迁移到终态，
// 终态记录不会被再次改写。
func (r *DocumentMetadataRepository) UpdateStatus(ctx context.Context, documentID, strategy string, status entity.DocumentStatus, numSourceUnits, numChunks int, failReason string) error {
	ctx, span := tracer.Start(ctx, "postgres.DocumentMetadataRepository.UpdateStatus")
	defer span.End()

	query := `
		UPDATE document_metadata
		SET status = $1, num_source_units = $2, num_chunks = $3, fail_reason = $4, updated_at = NOW()
		WHERE document_id = $5 AND strategy = $6 AND status = 'processing'
	`

	result, err := r.client.sqlDB.ExecContext(ctx, query,
		string(status), numSourceUnits, numChunks, failReason, documentID, strategy,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update metadata status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no processing record for document %s under strategy %s", documentID, strategy)
	}

	return nil
}

// FindAll 返回全部处理记录（按创建时间升序）
func (r *DocumentMetadataRepository) FindAll(ctx context.Context) ([]*entity.DocumentMetadataRecord, error) {
	ctx, span := tracer.Start(ctx, "postgres.DocumentMetadataRepository.FindAll")
	defer span.End()

	query := `
		SELECT id, document_id, filename, file_path, num_source_units, num_chunks, status, strategy, fail_reason, created_at, updated_at
		FROM document_metadata
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.client.sqlDB.QueryContext(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list metadata records: %w", err)
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

// FindByIDs 根据 document_id 集合返回处理记录
func (r *DocumentMetadataRepository) FindByIDs(ctx context.Context, documentIDs []string) ([]*entity.DocumentMetadataRecord, error) {
	ctx, span := tracer.Start(ctx, "postgres.DocumentMetadataRepository.FindByIDs")
	defer span.End()

	if len(documentIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, document_id, filename, file_path, num_source_units, num_chunks, status, strategy, fail_reason, created_at, updated_at
		FROM document_metadata
		WHERE document_id = ANY($1)
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.client.sqlDB.QueryContext(ctx, query, pq.Array(documentIDs))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to find metadata records: %w", err)
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

// Delete 删除文档的全部处理记录；没有记录时返回 false
func (r *DocumentMetadataRepository) Delete(ctx context.Context, documentID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.DocumentMetadataRepository.Delete")
	defer span.End()

	query := `DELETE FROM document_metadata WHERE document_id = $1`
	result, err := r.client.sqlDB.ExecContext(ctx, query, documentID)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to delete metadata records: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// DeleteByStrategy 删除某一策略的全部处理记录（clear 重建时使用）
func (r *DocumentMetadataRepository) DeleteByStrategy(ctx context.Context, strategy string) error {
	ctx, span := tracer.Start(ctx, "postgres.DocumentMetadataRepository.DeleteByStrategy")
	defer span.End()

	query := `DELETE FROM document_metadata WHERE strategy = $1`
	if _, err := r.client.sqlDB.ExecContext(ctx, query, strategy); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete strategy metadata: %w", err)
	}
	return nil
}

// scanRecords 从多行结果扫描
func (r *DocumentMetadataRepository) scanRecords(rows *sql.Rows) ([]*entity.DocumentMetadataRecord, error) {
	var records []*entity.DocumentMetadataRecord
	for rows.Next() {
		var record entity.DocumentMetadataRecord
		var status string

		err := rows.Scan(
			&record.ID, &record.DocumentID, &record.Filename, &record.FilePath,
			&record.NumSourceUnits, &record.NumChunks, &status, &record.Strategy,
			&record.FailReason, &record.CreatedAt, &record.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan metadata record: %w", err)
		}

		record.Status = entity.DocumentStatus(status)
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate metadata records: %w", err)
	}
	return records, nil
}
