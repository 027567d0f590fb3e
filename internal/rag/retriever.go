package rag

import (
	"context"
	"sort"

	apperrors "github.com/docuhub/backend-go/internal/errors"
)

// Retriever 问题向量化后在索引中检索最相近切片
type Retriever struct {
	embedder Embedder
	store    VectorStore
}

// NewRetriever 创建检索器
func NewRetriever(embedder Embedder, store VectorStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Retrieve 返回与问题最相近的topK个切片，得分降序
// topK<=0或索引为空时返回空结果且不报错。
func (r *Retriever) Retrieve(ctx context.Context, question string, topK int, documentIDs []string) ([]ScoredChunk, error) {
	if topK <= 0 {
		return nil, nil
	}

	vectors, err := r.embedder.EmbedBatch(ctx, []string{question})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, apperrors.NewEmbeddingServiceError("question embedding missing from response", false)
	}

	matches, err := r.store.Query(ctx, VectorQuery{
		Vector:      vectors[0],
		TopK:        topK,
		DocumentIDs: documentIDs,
	})
	if err != nil {
		return nil, err
	}

	sortMatches(matches)
	return matches, nil
}

// sortMatches 得分降序，同分时按(文档ID, 切片序号)升序
func sortMatches(matches []ScoredChunk) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].Chunk.DocumentID != matches[j].Chunk.DocumentID {
			return matches[i].Chunk.DocumentID < matches[j].Chunk.DocumentID
		}
		return matches[i].Chunk.Index < matches[j].Chunk.Index
	})
}
