package di

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"gorm.io/gorm"

	"github.com/docuhub/backend-go/internal/config"
	"github.com/docuhub/backend-go/internal/database"
	apperrors "github.com/docuhub/backend-go/internal/errors"
	"github.com/docuhub/backend-go/internal/rag"
	"github.com/docuhub/backend-go/internal/repository"
	"github.com/docuhub/backend-go/internal/services"
)

// RegisterProviders 注册所有依赖提供者
func RegisterProviders(container *dig.Container, configPath string) error {
	providers := []interface{}{
		func() (*config.Config, error) {
			return config.LoadConfig(configPath)
		},

		func(cfg *config.Config) (*gorm.DB, error) {
			if !cfg.Database.Enabled {
				return nil, nil
			}
			return database.InitDB(cfg)
		},

		func(cfg *config.Config) (*redis.Client, error) {
			if !cfg.Redis.Enabled {
				return nil, nil
			}
			return database.InitRedis(cfg)
		},

		func(db *gorm.DB) repository.DocumentRepository {
			if db == nil {
				return nil
			}
			return repository.NewDocumentRepository(db)
		},

		func(cfg *config.Config) (*rag.Chunker, error) {
			return rag.NewChunker(cfg.Chunking.Size, cfg.Chunking.Overlap)
		},

		func(cfg *config.Config) rag.Embedder {
			return rag.NewOpenAIEmbedder(rag.OpenAIEmbedderOptions{
				APIKey:     cfg.Embedding.APIKey,
				BaseURL:    cfg.Embedding.BaseURL,
				Model:      cfg.Embedding.Model,
				Dimensions: cfg.Embedding.Dimensions,
				Timeout:    cfg.Embedding.Timeout,
			})
		},

		newVectorStore,

		func() *rag.ExtractorManager {
			return rag.NewExtractorManager()
		},

		rag.NewRetriever,

		func(cfg *config.Config) *rag.Synthesizer {
			return rag.NewOpenAISynthesizer(cfg.Generation.APIKey, cfg.Generation.BaseURL, rag.SynthesizerOptions{
				Model:           cfg.Generation.Model,
				Temperature:     cfg.Generation.Temperature,
				MaxContextChars: cfg.Generation.MaxContextChars,
				Timeout:         cfg.Generation.Timeout,
			})
		},

		func(cfg *config.Config) rag.RetryPolicy {
			return rag.RetryPolicy{
				MaxAttempts:  cfg.Retry.MaxAttempts,
				InitialDelay: cfg.Retry.InitialDelay,
				MaxDelay:     cfg.Retry.MaxDelay,
				Multiplier:   cfg.Retry.Multiplier,
			}
		},

		func(cfg *config.Config, redisClient *redis.Client) *services.SessionService {
			return services.NewSessionService(redisClient, cfg.Redis.TTL)
		},

		func(cfg *config.Config, extractor *rag.ExtractorManager, chunker *rag.Chunker,
			embedder rag.Embedder, store rag.VectorStore,
			docRepo repository.DocumentRepository, retry rag.RetryPolicy) *services.IngestionService {
			return services.NewIngestionService(extractor, chunker, embedder, store, docRepo, retry, cfg.Embedding.BatchSize)
		},

		func(cfg *config.Config, retriever *rag.Retriever, synthesizer *rag.Synthesizer,
			sessions *services.SessionService, docRepo repository.DocumentRepository,
			retry rag.RetryPolicy) *services.QAService {
			return services.NewQAService(retriever, synthesizer, sessions, docRepo, retry,
				cfg.Retrieval.TopK, cfg.Generation.ReformulateQuery)
		},
	}

	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return err
		}
	}
	return nil
}

// newVectorStore 按配置选择向量存储后端
func newVectorStore(cfg *config.Config, db *gorm.DB) (rag.VectorStore, error) {
	switch cfg.VectorStore.Provider {
	case "milvus":
		return rag.NewMilvusVectorStore(context.Background(), rag.MilvusOptions{
			Address:    cfg.VectorStore.Milvus.Address,
			Username:   cfg.VectorStore.Milvus.Username,
			Password:   cfg.VectorStore.Milvus.Password,
			Collection: cfg.VectorStore.Collection,
			Dimensions: cfg.Embedding.Dimensions,
			Timeout:    cfg.VectorStore.Timeout,
		})
	case "pgvector":
		if db == nil {
			return nil, apperrors.NewInvalidConfiguration("pgvector provider requires database.enabled")
		}
		return rag.NewPgvectorStore(db, cfg.Embedding.Dimensions, cfg.VectorStore.Timeout)
	case "memory":
		return rag.NewMemoryVectorStore(cfg.Embedding.Dimensions), nil
	default:
		return nil, apperrors.NewInvalidConfiguration(
			fmt.Sprintf("unknown vector store provider: %s", cfg.VectorStore.Provider))
	}
}
