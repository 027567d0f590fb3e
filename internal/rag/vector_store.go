package rag

import "context"

// IndexEntry 向量索引中的一条切片记录
type IndexEntry struct {
	DocumentID string
	ChunkIndex int
	Text       string
	Start      int
	End        int
	Embedding  []float32
}

// ScoredChunk 带相似度得分的检索结果
type ScoredChunk struct {
	Chunk Chunk
	Score float32
}

// VectorQuery 向量检索请求
type VectorQuery struct {
	Vector []float32
	TopK   int
	// 可选的文档范围过滤，为空表示全库
	DocumentIDs []string
}

// VectorStore 向量索引接口，相似度固定为余弦相似度
type VectorStore interface {
	// Upsert 写入或覆盖切片，以(DocumentID, ChunkIndex)为键
	Upsert(ctx context.Context, entries []IndexEntry) error
	// Query 按余弦相似度返回TopK个最相近切片，得分降序
	Query(ctx context.Context, query VectorQuery) ([]ScoredChunk, error)
	// DeleteDocument 删除指定文档的全部切片
	DeleteDocument(ctx context.Context, documentID string) error
	Ready() bool
}
