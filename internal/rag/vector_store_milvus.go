package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	apperrors "github.com/docuhub/backend-go/internal/errors"
	"github.com/docuhub/backend-go/internal/logger"
)

// MilvusOptions Milvus客户端配置
type MilvusOptions struct {
	Address    string
	Username   string
	Password   string
	Collection string
	Dimensions int
	Timeout    time.Duration
}

type milvusVectorStore struct {
	milvusClient client.Client
	collection   string
	dimensions   int
	timeout      time.Duration
}

// NewMilvusVectorStore 创建Milvus向量存储，集合使用HNSW/COSINE索引
func NewMilvusVectorStore(ctx context.Context, opts MilvusOptions) (VectorStore, error) {
	if opts.Address == "" {
		opts.Address = "localhost:19530"
	}
	if opts.Collection == "" {
		opts.Collection = "docqa_chunks"
	}
	if opts.Dimensions == 0 {
		opts.Dimensions = 1536
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}

	milvusClient, err := client.NewClient(ctx, client.Config{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
	})
	if err != nil {
		return nil, apperrors.NewIndexUnavailable("failed to connect to milvus", true).WithCause(err)
	}

	store := &milvusVectorStore{
		milvusClient: milvusClient,
		collection:   opts.Collection,
		dimensions:   opts.Dimensions,
		timeout:      opts.Timeout,
	}
	if err := store.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *milvusVectorStore) ensureCollection(ctx context.Context) error {
	hasCollection, err := s.milvusClient.HasCollection(ctx, s.collection)
	if err != nil {
		return apperrors.NewIndexUnavailable("failed to check collection", true).WithCause(err)
	}
	if hasCollection {
		return nil
	}

	schema := &entity.Schema{
		CollectionName: s.collection,
		Description:    "document chunk vectors",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": "256"},
			},
			{
				Name:       "document_id",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "128"},
			},
			{
				Name:     "chunk_index",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:       "content",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "65535"},
			},
			{
				Name:     "start_offset",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "end_offset",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:       "vector",
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": fmt.Sprintf("%d", s.dimensions)},
			},
		},
	}

	if err := s.milvusClient.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return apperrors.NewIndexUnavailable("failed to create collection", true).WithCause(err)
	}

	var index entity.Index
	index, indexErr := entity.NewIndexHNSW(entity.COSINE, 8, 64)
	if indexErr != nil {
		// HNSW不可用时退回IVF_FLAT
		index, indexErr = entity.NewIndexIvfFlat(entity.COSINE, 128)
		if indexErr != nil {
			return apperrors.NewIndexUnavailable("failed to build index definition", false).WithCause(indexErr)
		}
	}
	if err := s.milvusClient.CreateIndex(ctx, s.collection, "vector", index, false); err != nil {
		logger.Warn("failed to create milvus index", zap.String("collection", s.collection), zap.Error(err))
	}
	if err := s.milvusClient.LoadCollection(ctx, s.collection, false); err != nil {
		logger.Warn("failed to load milvus collection", zap.String("collection", s.collection), zap.Error(err))
	}
	return nil
}

func milvusEntryID(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s#%d", documentID, chunkIndex)
}

func (s *milvusVectorStore) Upsert(ctx context.Context, entries []IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ids := make([]string, len(entries))
	documentIDs := make([]string, len(entries))
	chunkIndexes := make([]int64, len(entries))
	contents := make([]string, len(entries))
	startOffsets := make([]int64, len(entries))
	endOffsets := make([]int64, len(entries))
	vectors := make([][]float32, len(entries))

	for i, entry := range entries {
		if len(entry.Embedding) != s.dimensions {
			return apperrors.NewInvalidConfiguration(
				fmt.Sprintf("embedding dimension mismatch: index expects %d, got %d", s.dimensions, len(entry.Embedding)))
		}
		ids[i] = milvusEntryID(entry.DocumentID, entry.ChunkIndex)
		documentIDs[i] = entry.DocumentID
		chunkIndexes[i] = int64(entry.ChunkIndex)
		contents[i] = entry.Text
		startOffsets[i] = int64(entry.Start)
		endOffsets[i] = int64(entry.End)
		vectors[i] = entry.Embedding
	}

	_, err := s.milvusClient.Upsert(ctx, s.collection, "",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnVarChar("document_id", documentIDs),
		entity.NewColumnInt64("chunk_index", chunkIndexes),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnInt64("start_offset", startOffsets),
		entity.NewColumnInt64("end_offset", endOffsets),
		entity.NewColumnFloatVector("vector", s.dimensions, vectors),
	)
	if err != nil {
		return apperrors.NewIndexUnavailable("milvus upsert failed", true).WithCause(err)
	}

	if err := s.milvusClient.Flush(ctx, s.collection, false); err != nil {
		logger.Warn("failed to flush milvus collection", zap.String("collection", s.collection), zap.Error(err))
	}
	return nil
}

func (s *milvusVectorStore) Query(ctx context.Context, query VectorQuery) ([]ScoredChunk, error) {
	if query.TopK <= 0 || len(query.Vector) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	expr := ""
	if len(query.DocumentIDs) > 0 {
		quoted := make([]string, len(query.DocumentIDs))
		for i, id := range query.DocumentIDs {
			quoted[i] = fmt.Sprintf("%q", id)
		}
		expr = fmt.Sprintf("document_id in [%s]", strings.Join(quoted, ", "))
	}

	sp, _ := entity.NewIndexHNSWSearchParam(64)
	searchResults, err := s.milvusClient.Search(
		ctx,
		s.collection,
		[]string{},
		expr,
		[]string{"document_id", "chunk_index", "content", "start_offset", "end_offset"},
		[]entity.Vector{entity.FloatVector(query.Vector)},
		"vector",
		entity.COSINE,
		query.TopK,
		sp,
	)
	if err != nil {
		return nil, apperrors.NewIndexUnavailable("milvus search failed", true).WithCause(err)
	}
	if len(searchResults) == 0 {
		return []ScoredChunk{}, nil
	}

	result := searchResults[0]
	if result.Err != nil {
		return nil, apperrors.NewIndexUnavailable("milvus search failed", true).WithCause(result.Err)
	}
	if result.ResultCount == 0 {
		return []ScoredChunk{}, nil
	}

	var documentIDs, contents []string
	var chunkIndexes, startOffsets, endOffsets []int64
	for _, field := range result.Fields {
		switch field.Name() {
		case "document_id":
			if col, ok := field.(*entity.ColumnVarChar); ok {
				documentIDs = col.Data()
			}
		case "chunk_index":
			if col, ok := field.(*entity.ColumnInt64); ok {
				chunkIndexes = col.Data()
			}
		case "content":
			if col, ok := field.(*entity.ColumnVarChar); ok {
				contents = col.Data()
			}
		case "start_offset":
			if col, ok := field.(*entity.ColumnInt64); ok {
				startOffsets = col.Data()
			}
		case "end_offset":
			if col, ok := field.(*entity.ColumnInt64); ok {
				endOffsets = col.Data()
			}
		}
	}

	matches := make([]ScoredChunk, 0, result.ResultCount)
	for i := 0; i < result.ResultCount; i++ {
		match := ScoredChunk{}
		if i < len(documentIDs) {
			match.Chunk.DocumentID = documentIDs[i]
		}
		if i < len(chunkIndexes) {
			match.Chunk.Index = int(chunkIndexes[i])
		}
		if i < len(contents) {
			match.Chunk.Text = contents[i]
		}
		if i < len(startOffsets) {
			match.Chunk.Start = int(startOffsets[i])
		}
		if i < len(endOffsets) {
			match.Chunk.End = int(endOffsets[i])
		}
		if i < len(result.Scores) {
			match.Score = result.Scores[i]
		}
		matches = append(matches, match)
	}
	return matches, nil
}

func (s *milvusVectorStore) DeleteDocument(ctx context.Context, documentID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	expr := fmt.Sprintf("document_id == %q", documentID)
	if err := s.milvusClient.Delete(ctx, s.collection, "", expr); err != nil {
		return apperrors.NewIndexUnavailable("milvus delete failed", true).WithCause(err)
	}
	if err := s.milvusClient.Flush(ctx, s.collection, false); err != nil {
		logger.Warn("failed to flush after delete", zap.String("collection", s.collection), zap.Error(err))
	}
	return nil
}

func (s *milvusVectorStore) Ready() bool {
	if s.milvusClient == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.milvusClient.ListCollections(ctx)
	return err == nil
}
