package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/docuhub/backend-go/internal/errors"
)

// chunkEmbeddingRow pgvector后端的存储行
type chunkEmbeddingRow struct {
	ID         string          `gorm:"column:id;primaryKey;size:256"`
	DocumentID string          `gorm:"column:document_id;size:128;index"`
	ChunkIndex int             `gorm:"column:chunk_index"`
	Content    string          `gorm:"column:content;type:text"`
	StartPos   int             `gorm:"column:start_offset"`
	EndPos     int             `gorm:"column:end_offset"`
	// 向量列的维度由建表DDL按配置确定
	Embedding  pgvector.Vector `gorm:"column:embedding"`
}

// TableName 指定表名
func (chunkEmbeddingRow) TableName() string {
	return "chunk_embeddings"
}

type pgvectorStore struct {
	db         *gorm.DB
	dimensions int
	timeout    time.Duration
}

// NewPgvectorStore 创建基于Postgres/pgvector的向量存储
func NewPgvectorStore(db *gorm.DB, dimensions int, timeout time.Duration) (VectorStore, error) {
	if db == nil {
		return nil, apperrors.NewInvalidConfiguration("pgvector store requires a database connection")
	}
	if dimensions <= 0 {
		dimensions = 1536
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &pgvectorStore{db: db, dimensions: dimensions, timeout: timeout}, nil
}

func (s *pgvectorStore) Upsert(ctx context.Context, entries []IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows := make([]chunkEmbeddingRow, len(entries))
	for i, entry := range entries {
		if len(entry.Embedding) != s.dimensions {
			return apperrors.NewInvalidConfiguration(
				fmt.Sprintf("embedding dimension mismatch: index expects %d, got %d", s.dimensions, len(entry.Embedding)))
		}
		rows[i] = chunkEmbeddingRow{
			ID:         fmt.Sprintf("%s#%d", entry.DocumentID, entry.ChunkIndex),
			DocumentID: entry.DocumentID,
			ChunkIndex: entry.ChunkIndex,
			Content:    entry.Text,
			StartPos:   entry.Start,
			EndPos:     entry.End,
			Embedding:  pgvector.NewVector(entry.Embedding),
		}
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&rows).Error
	if err != nil {
		return apperrors.NewIndexUnavailable("pgvector upsert failed", true).WithCause(err)
	}
	return nil
}

func (s *pgvectorStore) Query(ctx context.Context, query VectorQuery) ([]ScoredChunk, error) {
	if query.TopK <= 0 || len(query.Vector) == 0 {
		return nil, nil
	}
	if len(query.Vector) != s.dimensions {
		return nil, apperrors.NewInvalidConfiguration(
			fmt.Sprintf("query dimension mismatch: index expects %d, got %d", s.dimensions, len(query.Vector)))
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type scoredRow struct {
		chunkEmbeddingRow
		Similarity float32
	}
	var results []scoredRow

	queryVector := pgvector.NewVector(query.Vector)
	// 余弦距离 <=> 满足 similarity = 1 - distance
	tx := s.db.WithContext(ctx).
		Table("chunk_embeddings").
		Select("chunk_embeddings.*, 1 - (embedding <=> ?) as similarity", queryVector)
	if len(query.DocumentIDs) > 0 {
		tx = tx.Where("document_id IN ?", query.DocumentIDs)
	}
	err := tx.
		Order("similarity DESC").
		Order("document_id asc").
		Order("chunk_index asc").
		Limit(query.TopK).
		Scan(&results).Error
	if err != nil {
		return nil, apperrors.NewIndexUnavailable("pgvector search failed", true).WithCause(err)
	}

	matches := make([]ScoredChunk, len(results))
	for i, row := range results {
		matches[i] = ScoredChunk{
			Chunk: Chunk{
				DocumentID: row.DocumentID,
				Index:      row.ChunkIndex,
				Text:       row.Content,
				Start:      row.StartPos,
				End:        row.EndPos,
			},
			Score: row.Similarity,
		}
	}
	return matches, nil
}

func (s *pgvectorStore) DeleteDocument(ctx context.Context, documentID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Delete(&chunkEmbeddingRow{}).Error
	if err != nil {
		return apperrors.NewIndexUnavailable("pgvector delete failed", true).WithCause(err)
	}
	return nil
}

func (s *pgvectorStore) Ready() bool {
	sqlDB, err := s.db.DB()
	if err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx) == nil
}
