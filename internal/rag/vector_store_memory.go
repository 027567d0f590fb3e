package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	apperrors "github.com/docuhub/backend-go/internal/errors"
)

// memoryVectorStore 进程内余弦相似度索引
type memoryVectorStore struct {
	mu         sync.RWMutex
	dimensions int
	entries    map[string]IndexEntry
}

// NewMemoryVectorStore 创建内存向量存储
func NewMemoryVectorStore(dimensions int) VectorStore {
	return &memoryVectorStore{
		dimensions: dimensions,
		entries:    make(map[string]IndexEntry),
	}
}

func entryKey(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s#%d", documentID, chunkIndex)
}

func (s *memoryVectorStore) Upsert(ctx context.Context, entries []IndexEntry) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewIndexUnavailable("upsert canceled", false).WithCause(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range entries {
		if s.dimensions > 0 && len(entry.Embedding) != s.dimensions {
			return apperrors.NewInvalidConfiguration(
				fmt.Sprintf("embedding dimension mismatch: index expects %d, got %d", s.dimensions, len(entry.Embedding)))
		}
		vec := make([]float32, len(entry.Embedding))
		copy(vec, entry.Embedding)
		entry.Embedding = vec
		s.entries[entryKey(entry.DocumentID, entry.ChunkIndex)] = entry
	}
	return nil
}

func (s *memoryVectorStore) Query(ctx context.Context, query VectorQuery) ([]ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewIndexUnavailable("query canceled", false).WithCause(err)
	}
	if query.TopK <= 0 || len(query.Vector) == 0 {
		return nil, nil
	}
	if s.dimensions > 0 && len(query.Vector) != s.dimensions {
		return nil, apperrors.NewInvalidConfiguration(
			fmt.Sprintf("query dimension mismatch: index expects %d, got %d", s.dimensions, len(query.Vector)))
	}

	var scope map[string]bool
	if len(query.DocumentIDs) > 0 {
		scope = make(map[string]bool, len(query.DocumentIDs))
		for _, id := range query.DocumentIDs {
			scope[id] = true
		}
	}

	s.mu.RLock()
	results := make([]ScoredChunk, 0, len(s.entries))
	for _, entry := range s.entries {
		if scope != nil && !scope[entry.DocumentID] {
			continue
		}
		results = append(results, ScoredChunk{
			Chunk: Chunk{
				DocumentID: entry.DocumentID,
				Index:      entry.ChunkIndex,
				Text:       entry.Text,
				Start:      entry.Start,
				End:        entry.End,
			},
			Score: cosineSimilarity(query.Vector, entry.Embedding),
		})
	}
	s.mu.RUnlock()

	// 得分降序，同分时按(文档ID, 切片序号)升序保证稳定
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Chunk.DocumentID != results[j].Chunk.DocumentID {
			return results[i].Chunk.DocumentID < results[j].Chunk.DocumentID
		}
		return results[i].Chunk.Index < results[j].Chunk.Index
	})

	if len(results) > query.TopK {
		results = results[:query.TopK]
	}
	return results, nil
}

func (s *memoryVectorStore) DeleteDocument(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewIndexUnavailable("delete canceled", false).WithCause(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.entries {
		if entry.DocumentID == documentID {
			delete(s.entries, key)
		}
	}
	return nil
}

func (s *memoryVectorStore) Ready() bool {
	return true
}

// cosineSimilarity 余弦相似度，零向量得分为0
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
