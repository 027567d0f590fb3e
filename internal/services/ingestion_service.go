package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/docuhub/backend-go/internal/errors"
	"github.com/docuhub/backend-go/internal/logger"
	"github.com/docuhub/backend-go/internal/metrics"
	"github.com/docuhub/backend-go/internal/models"
	"github.com/docuhub/backend-go/internal/rag"
	"github.com/docuhub/backend-go/internal/repository"
)

// Upload 一份待入库的文档
type Upload struct {
	Filename string
	MimeType string
	Data     []byte
}

// IngestResult 单文档入库结果
type IngestResult struct {
	DocumentID string
	Filename   string
	ChunkCount int
	Err        error
}

// IngestionService 文档入库流水线：提取 -> 切分 -> 批量向量化 -> 写索引
type IngestionService struct {
	extractor *rag.ExtractorManager
	chunker   *rag.Chunker
	embedder  rag.Embedder
	store     rag.VectorStore
	docRepo   repository.DocumentRepository
	retry     rag.RetryPolicy
	batchSize int
}

// NewIngestionService 创建入库服务，docRepo可为nil表示不记录状态
func NewIngestionService(
	extractor *rag.ExtractorManager,
	chunker *rag.Chunker,
	embedder rag.Embedder,
	store rag.VectorStore,
	docRepo repository.DocumentRepository,
	retry rag.RetryPolicy,
	batchSize int,
) *IngestionService {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &IngestionService{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		docRepo:   docRepo,
		retry:     retry,
		batchSize: batchSize,
	}
}

// Ingest 同步入库单份文档，成功后文档立即可检索
func (s *IngestionService) Ingest(ctx context.Context, upload Upload) (*IngestResult, error) {
	documentID := uuid.NewString()
	result := &IngestResult{DocumentID: documentID, Filename: upload.Filename}

	docType, ok := rag.DetectType(upload.Filename, upload.MimeType)
	if !ok {
		result.Err = apperrors.NewUnsupportedFormat("unrecognized document format: " + upload.Filename)
		metrics.DocumentsIngested.WithLabelValues(metrics.OutcomeFailed).Inc()
		return result, result.Err
	}

	s.recordCreate(ctx, documentID, upload.Filename, string(docType))

	text, err := s.extractor.Extract(docType, upload.Data)
	if err != nil {
		return s.fail(ctx, result, err)
	}

	chunks := s.chunker.Split(documentID, text)
	if len(chunks) == 0 {
		return s.fail(ctx, result, apperrors.NewUnsupportedFormat("document produced no chunks"))
	}

	s.recordStatus(ctx, documentID, models.DocumentStatusProcessing, "", 0)

	entries, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return s.fail(ctx, result, err)
	}

	// 单文档一次写入，失败时补偿删除避免残留部分切片
	err = s.retry.Do(ctx, "vector_upsert", func(ctx context.Context) error {
		return s.store.Upsert(ctx, entries)
	})
	if err != nil {
		s.compensate(documentID)
		return s.fail(ctx, result, err)
	}

	result.ChunkCount = len(chunks)
	s.recordStatus(ctx, documentID, models.DocumentStatusCompleted, "", len(chunks))
	metrics.DocumentsIngested.WithLabelValues(metrics.OutcomeCompleted).Inc()
	metrics.ChunksIndexed.Add(float64(len(chunks)))

	logger.Info("document ingested",
		zap.String("document_id", documentID),
		zap.String("filename", upload.Filename),
		zap.Int("chunks", len(chunks)))
	return result, nil
}

// IngestBatch 批量入库，单文档失败不影响其余文档
func (s *IngestionService) IngestBatch(ctx context.Context, uploads []Upload) []IngestResult {
	results := make([]IngestResult, 0, len(uploads))
	for _, upload := range uploads {
		result, err := s.Ingest(ctx, upload)
		if err != nil {
			logger.Warn("document ingestion failed",
				zap.String("filename", upload.Filename),
				zap.Error(err))
		}
		results = append(results, *result)
	}
	return results
}

// DeleteDocument 从索引与状态表中移除文档
func (s *IngestionService) DeleteDocument(ctx context.Context, documentID string) error {
	if err := s.store.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	if s.docRepo != nil {
		return s.docRepo.Delete(ctx, documentID)
	}
	return nil
}

// embedChunks 分批向量化，每批一次API调用
func (s *IngestionService) embedChunks(ctx context.Context, chunks []rag.Chunk) ([]rag.IndexEntry, error) {
	entries := make([]rag.IndexEntry, 0, len(chunks))
	for start := 0; start < len(chunks); start += s.batchSize {
		end := start + s.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, ch := range batch {
			texts[i] = ch.Text
		}

		var vectors [][]float32
		err := s.retry.Do(ctx, "embed_batch", func(ctx context.Context) error {
			var embedErr error
			vectors, embedErr = s.embedder.EmbedBatch(ctx, texts)
			return embedErr
		})
		if err != nil {
			return nil, err
		}

		for i, ch := range batch {
			entries = append(entries, rag.IndexEntry{
				DocumentID: ch.DocumentID,
				ChunkIndex: ch.Index,
				Text:       ch.Text,
				Start:      ch.Start,
				End:        ch.End,
				Embedding:  vectors[i],
			})
		}
	}
	return entries, nil
}

// compensate 入库失败后清掉可能已写入的切片
func (s *IngestionService) compensate(documentID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.store.DeleteDocument(ctx, documentID); err != nil {
		logger.Warn("failed to clean up partial document",
			zap.String("document_id", documentID),
			zap.Error(err))
	}
}

func (s *IngestionService) fail(ctx context.Context, result *IngestResult, err error) (*IngestResult, error) {
	result.Err = err
	s.recordStatus(ctx, result.DocumentID, models.DocumentStatusFailed, err.Error(), 0)
	metrics.DocumentsIngested.WithLabelValues(metrics.OutcomeFailed).Inc()
	return result, err
}

func (s *IngestionService) recordCreate(ctx context.Context, documentID, filename, docType string) {
	if s.docRepo == nil {
		return
	}
	err := s.docRepo.Create(ctx, &models.QADocument{
		DocumentID: documentID,
		Filename:   filename,
		Type:       docType,
		Status:     models.DocumentStatusPending,
	})
	if err != nil {
		logger.Warn("failed to create document record", zap.String("document_id", documentID), zap.Error(err))
	}
}

func (s *IngestionService) recordStatus(ctx context.Context, documentID, status, failReason string, chunkCount int) {
	if s.docRepo == nil {
		return
	}
	if err := s.docRepo.UpdateStatus(ctx, documentID, status, failReason, chunkCount); err != nil {
		logger.Warn("failed to update document status",
			zap.String("document_id", documentID),
			zap.String("status", status),
			zap.Error(err))
	}
}
