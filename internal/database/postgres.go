package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/docuhub/backend-go/internal/config"
	apperrors "github.com/docuhub/backend-go/internal/errors"
	"github.com/docuhub/backend-go/internal/logger"
	"github.com/docuhub/backend-go/internal/models"
)

// DB 全局数据库连接
var DB *gorm.DB

// InitDB 初始化Postgres连接并迁移表
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg == nil {
		return nil, apperrors.NewInvalidConfiguration("config not loaded")
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, apperrors.NewIndexUnavailable("failed to connect to database", true).WithCause(err)
	}

	// 设置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := autoMigrate(db, cfg); err != nil {
		return nil, err
	}

	DB = db
	logger.Info("database connected")
	return db, nil
}

// autoMigrate 迁移文档状态表，pgvector后端还需vector扩展与切片表
func autoMigrate(db *gorm.DB, cfg *config.Config) error {
	if err := db.AutoMigrate(&models.QADocument{}); err != nil {
		return apperrors.NewIndexUnavailable("failed to migrate qa_documents", false).WithCause(err)
	}

	if cfg.VectorStore.Provider == "pgvector" {
		if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return apperrors.NewIndexUnavailable("failed to enable pgvector extension", false).WithCause(err)
		}
		if err := db.Exec(fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS chunk_embeddings (
				id varchar(256) PRIMARY KEY,
				document_id varchar(128) NOT NULL,
				chunk_index integer NOT NULL,
				content text NOT NULL,
				start_offset integer NOT NULL,
				end_offset integer NOT NULL,
				embedding vector(%d) NOT NULL
			)
		`, cfg.Embedding.Dimensions)).Error; err != nil {
			return apperrors.NewIndexUnavailable("failed to create chunk_embeddings", false).WithCause(err)
		}
		if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_chunk_embeddings_document_id ON chunk_embeddings (document_id)").Error; err != nil {
			logger.Warn("failed to create chunk_embeddings index")
		}
	}
	return nil
}

// CloseDB 关闭数据库连接
func CloseDB() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
