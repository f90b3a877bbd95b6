package document

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-qa-api/internal/application/retrieval"
	"doc-qa-api/internal/config"
	"doc-qa-api/internal/domain/entity"
	apperrors "doc-qa-api/pkg/errors"
)

type stubEmbedder struct{}

func (stubEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, 2}
	}
	return out, nil
}

type memVectorStore struct {
	mu      sync.Mutex
	deletes []string
}

func (m *memVectorStore) EnsureCollection(context.Context) error { return nil }
func (m *memVectorStore) Upsert(context.Context, string, []entity.Chunk, [][]float32) error {
	return nil
}
func (m *memVectorStore) Search(context.Context, string, []float32, int) ([]*retrieval.VectorSearchResult, error) {
	return nil, nil
}
func (m *memVectorStore) DeleteByDocument(_ context.Context, strategy, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, strategy+"/"+documentID)
	return nil
}
func (m *memVectorStore) Clear(context.Context, string) error { return nil }

type memMetaRepo struct {
	mu      sync.Mutex
	records []*entity.DocumentMetadataRecord
}

func (m *memMetaRepo) Insert(_ context.Context, r *entity.DocumentMetadataRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *r
	m.records = append(m.records, &clone)
	return nil
}

func (m *memMetaRepo) UpdateStatus(_ context.Context, documentID, strategy string, status entity.DocumentStatus, numSourceUnits, numChunks int, failReason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.DocumentID == documentID && r.Strategy == strategy && r.Status == entity.DocumentStatusProcessing {
			r.Status = status
			r.NumSourceUnits = numSourceUnits
			r.NumChunks = numChunks
			r.FailReason = failReason
			return nil
		}
	}
	return nil
}

func (m *memMetaRepo) FindAll(context.Context) ([]*entity.DocumentMetadataRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.DocumentMetadataRecord, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *memMetaRepo) FindByIDs(_ context.Context, ids []string) ([]*entity.DocumentMetadataRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []*entity.DocumentMetadataRecord
	for _, r := range m.records {
		if want[r.DocumentID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memMetaRepo) Delete(_ context.Context, documentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*entity.DocumentMetadataRecord
	deleted := false
	for _, r := range m.records {
		if r.DocumentID == documentID {
			deleted = true
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return deleted, nil
}

func (m *memMetaRepo) DeleteByStrategy(_ context.Context, strategy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*entity.DocumentMetadataRecord
	for _, r := range m.records {
		if r.Strategy != strategy {
			kept = append(kept, r)
		}
	}
	m.records = kept
	return nil
}

type countingInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (c *countingInvalidator) InvalidateAnswers(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return nil
}

func newTestService(t *testing.T) (*Service, *memMetaRepo, *memVectorStore, *countingInvalidator) {
	t.Helper()
	registry, err := retrieval.NewRegistry(config.ChunkingConfig{ChunkSize: 100, ChunkOverlap: 20, SentenceWindowSize: 1})
	require.NoError(t, err)

	meta := &memMetaRepo{}
	vector := &memVectorStore{}
	cache := &countingInvalidator{}
	indexer := retrieval.NewIndexer(registry, stubEmbedder{}, vector, meta, 4)

	uploadCfg := config.UploadConfig{
		Dir:               t.TempDir(),
		AllowedExtensions: []string{".txt", ".md"},
		MaxFileSizeBytes:  1024,
	}
	return NewService(uploadCfg, registry, indexer, meta, vector, cache), meta, vector, cache
}

func TestUploadAndIndex_Success(t *testing.T) {
	svc, meta, _, cache := newTestService(t)

	files := []UploadFile{
		{Filename: "notes.txt", Size: 20, Reader: strings.NewReader("One. Two. Three.")},
		{Filename: "readme.md", Size: 15, Reader: strings.NewReader("Intro. Detail.")},
	}

	summary, err := svc.UploadAndIndex(context.Background(), files, retrieval.StrategyVectorStore, false)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Zero(t, summary.Failed)

	records, _ := meta.FindAll(context.Background())
	assert.Len(t, records, 2)
	assert.Equal(t, 1, cache.calls)
}

func TestUploadAndIndex_UnknownStrategyRejectsBatch(t *testing.T) {
	svc, meta, _, cache := newTestService(t)

	files := []UploadFile{{Filename: "a.txt", Size: 5, Reader: strings.NewReader("Text.")}}
	_, err := svc.UploadAndIndex(context.Background(), files, "bogus", false)

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnknownStrategy))
	records, _ := meta.FindAll(context.Background())
	assert.Empty(t, records)
	assert.Zero(t, cache.calls)
}

func TestUploadAndIndex_ValidationRejectsWholeBatch(t *testing.T) {
	svc, meta, _, _ := newTestService(t)

	tests := []struct {
		name  string
		files []UploadFile
	}{
		{
			name:  "no files",
			files: nil,
		},
		{
			name: "disallowed extension",
			files: []UploadFile{
				{Filename: "ok.txt", Size: 5, Reader: strings.NewReader("Text.")},
				{Filename: "binary.exe", Size: 5, Reader: strings.NewReader("xxxxx")},
			},
		},
		{
			name: "no extension",
			files: []UploadFile{
				{Filename: "README", Size: 5, Reader: strings.NewReader("Text.")},
			},
		},
		{
			name: "empty file",
			files: []UploadFile{
				{Filename: "empty.txt", Size: 0, Reader: strings.NewReader("")},
			},
		},
		{
			name: "oversize file",
			files: []UploadFile{
				{Filename: "big.txt", Size: 4096, Reader: strings.NewReader("whatever")},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UploadAndIndex(context.Background(), tt.files, retrieval.StrategyVectorStore, false)
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParam))
		})
	}

	// 整批拒绝：没有任何文件入库
	records, _ := meta.FindAll(context.Background())
	assert.Empty(t, records)
}

func TestDelete(t *testing.T) {
	svc, _, vector, cache := newTestService(t)

	files := []UploadFile{{Filename: "a.txt", Size: 10, Reader: strings.NewReader("One. Two.")}}
	summary, err := svc.UploadAndIndex(context.Background(), files, retrieval.StrategyVectorStore, false)
	require.NoError(t, err)
	require.Len(t, summary.Documents, 1)
	docID := summary.Documents[0].DocumentID

	deleted, err := svc.Delete(context.Background(), docID)
	require.NoError(t, err)
	assert.True(t, deleted)

	// 所有策略下的向量分块都被清理
	assert.Contains(t, vector.deletes, retrieval.StrategyVectorStore+"/"+docID)
	assert.Contains(t, vector.deletes, retrieval.StrategySentenceWindow+"/"+docID)
	assert.Equal(t, 2, cache.calls) // upload + delete

	// 重复删除返回 false
	deleted, err = svc.Delete(context.Background(), docID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDelete_EmptyID(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Delete(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParam))
}

func TestList(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	records, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)

	files := []UploadFile{{Filename: "a.txt", Size: 10, Reader: strings.NewReader("One. Two.")}}
	_, err = svc.UploadAndIndex(context.Background(), files, retrieval.StrategyVectorStore, false)
	require.NoError(t, err)

	records, err = svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, entity.DocumentStatusProcessed, records[0].Status)
}
