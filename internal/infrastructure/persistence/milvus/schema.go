// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// CollectionDocChunks 文档分块集合
const CollectionDocChunks = "doc_chunks"

// DocChunksSchema 文档分块 Collection Schema。
// window_text 仅作为上下文载荷存储，不参与向量检索。
func DocChunksSchema(dimension int) *entity.Schema {
	return &entity.Schema{
		CollectionName: CollectionDocChunks,
		Description:    "Document chunks for semantic retrieval",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", dimension),
				},
			},
			{
				Name:     "document_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "filename",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "strategy",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "seq",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "window_anchor",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "text_content",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
			{
				Name:     "window_text",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
		},
	}
}

// PartitionName 策略分区名称；策略间数据通过分区隔离
func PartitionName(strategy string) string {
	return "strategy_" + strings.ReplaceAll(strings.TrimSpace(strategy), "-", "_")
}
