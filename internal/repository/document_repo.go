package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	apperrors "github.com/docuhub/backend-go/internal/errors"
	"github.com/docuhub/backend-go/internal/models"
)

// DocumentRepository 文档索引状态存取接口
type DocumentRepository interface {
	Create(ctx context.Context, doc *models.QADocument) error
	UpdateStatus(ctx context.Context, documentID, status, failReason string, chunkCount int) error
	Get(ctx context.Context, documentID string) (*models.QADocument, error)
	ListCompletedIDs(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, documentID string) error
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建文档仓储
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, doc *models.QADocument) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return apperrors.NewIndexUnavailable("failed to create document record", true).WithCause(err)
	}
	return nil
}

func (r *documentRepository) UpdateStatus(ctx context.Context, documentID, status, failReason string, chunkCount int) error {
	updates := map[string]interface{}{
		"status":      status,
		"fail_reason": failReason,
		"chunk_count": chunkCount,
	}
	result := r.db.WithContext(ctx).
		Model(&models.QADocument{}).
		Where("document_id = ?", documentID).
		Updates(updates)
	if result.Error != nil {
		return apperrors.NewIndexUnavailable("failed to update document status", true).WithCause(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewIndexUnavailable("document record not found: "+documentID, false)
	}
	return nil
}

func (r *documentRepository) Get(ctx context.Context, documentID string) (*models.QADocument, error) {
	var doc models.QADocument
	err := r.db.WithContext(ctx).Where("document_id = ?", documentID).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.NewIndexUnavailable("failed to load document record", true).WithCause(err)
	}
	return &doc, nil
}

func (r *documentRepository) ListCompletedIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.QADocument{}).
		Where("status = ?", models.DocumentStatusCompleted).
		Order("document_id asc").
		Pluck("document_id", &ids).Error
	if err != nil {
		return nil, apperrors.NewIndexUnavailable("failed to list completed documents", true).WithCause(err)
	}
	return ids, nil
}

func (r *documentRepository) Delete(ctx context.Context, documentID string) error {
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Delete(&models.QADocument{}).Error
	if err != nil {
		return apperrors.NewIndexUnavailable("failed to delete document record", true).WithCause(err)
	}
	return nil
}
