package retrieval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/embedding"

	"doc-qa-api/internal/domain/entity"
)

// fakeEmbedder 确定性嵌入器：向量首维为文本长度，便于断言
type fakeEmbedder struct {
	mu      sync.Mutex
	calls   int
	failAt  int // 第 N 次调用失败（从 1 开始），0 表示不失败
	failErr error
}

func (f *fakeEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAt > 0 && f.calls >= f.failAt {
		if f.failErr != nil {
			return nil, f.failErr
		}
		return nil, fmt.Errorf("embedding backend unavailable")
	}
	out := make([][]float64, 0, len(texts))
	for _, t := range texts {
		out = append(out, []float64{float64(len(t)), 0.5})
	}
	return out, nil
}

type upsertCall struct {
	strategy string
	chunks   []entity.Chunk
	vectors  [][]float32
}

// fakeVectorStore 记录调用的内存向量存储
type fakeVectorStore struct {
	mu sync.Mutex

	ensureCalls int
	clearCalls  []string
	upserts     []upsertCall
	deletes     []string // "strategy/documentID"

	searchHits []*VectorSearchResult
	searchErr  error
	upsertErr  error
}

func (f *fakeVectorStore) EnsureCollection(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureCalls++
	return nil
}

func (f *fakeVectorStore) Upsert(_ context.Context, strategy string, chunks []entity.Chunk, vectors [][]float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, upsertCall{strategy: strategy, chunks: chunks, vectors: vectors})
	return nil
}

func (f *fakeVectorStore) Search(_ context.Context, strategy string, _ []float32, topK int) ([]*VectorSearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	hits := f.searchHits
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (f *fakeVectorStore) DeleteByDocument(_ context.Context, strategy, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, strategy+"/"+documentID)
	return nil
}

func (f *fakeVectorStore) Clear(_ context.Context, strategy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearCalls = append(f.clearCalls, strategy)
	return nil
}

// fakeMetaRepo 内存元数据仓储
type fakeMetaRepo struct {
	mu      sync.Mutex
	records []*entity.DocumentMetadataRecord
	nextID  int64
}

func (f *fakeMetaRepo) Insert(_ context.Context, record *entity.DocumentMetadataRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	record.ID = f.nextID
	record.CreatedAt = time.Now()
	record.UpdatedAt = record.CreatedAt
	clone := *record
	f.records = append(f.records, &clone)
	return nil
}

func (f *fakeMetaRepo) UpdateStatus(_ context.Context, documentID, strategy string, status entity.DocumentStatus, numSourceUnits, numChunks int, failReason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.DocumentID == documentID && r.Strategy == strategy && r.Status == entity.DocumentStatusProcessing {
			r.Status = status
			r.NumSourceUnits = numSourceUnits
			r.NumChunks = numChunks
			r.FailReason = failReason
			r.UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("no processing record for document %s strategy %s", documentID, strategy)
}

func (f *fakeMetaRepo) FindAll(context.Context) ([]*entity.DocumentMetadataRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*entity.DocumentMetadataRecord, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeMetaRepo) FindByIDs(_ context.Context, documentIDs []string) ([]*entity.DocumentMetadataRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := make(map[string]bool, len(documentIDs))
	for _, id := range documentIDs {
		want[id] = true
	}
	var out []*entity.DocumentMetadataRecord
	for _, r := range f.records {
		if want[r.DocumentID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeMetaRepo) Delete(_ context.Context, documentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []*entity.DocumentMetadataRecord
	deleted := false
	for _, r := range f.records {
		if r.DocumentID == documentID {
			deleted = true
			continue
		}
		kept = append(kept, r)
	}
	f.records = kept
	return deleted, nil
}

func (f *fakeMetaRepo) DeleteByStrategy(_ context.Context, strategy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []*entity.DocumentMetadataRecord
	for _, r := range f.records {
		if r.Strategy != strategy {
			kept = append(kept, r)
		}
	}
	f.records = kept
	return nil
}

// fakeGenerator 可配置的答案生成器
type fakeGenerator struct {
	answer string
	err    error
}

func (f *fakeGenerator) Generate(context.Context, string) (string, error) {
	return f.answer, f.err
}
