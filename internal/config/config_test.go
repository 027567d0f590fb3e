package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/docuhub/backend-go/internal/errors"
)

func validConfig() *Config {
	return &Config{
		App:       AppConfig{Name: "docqa", LogLevel: "info"},
		Chunking:  ChunkingConfig{Size: 800, Overlap: 120},
		Retrieval: RetrievalConfig{TopK: 5},
		Embedding: EmbeddingConfig{
			Model: "text-embedding-3-small", Dimensions: 1536,
			BatchSize: 64, Timeout: 30 * time.Second,
		},
		Generation: GenerationConfig{
			Model: "gpt-4o-mini", Temperature: 0.1,
			MaxContextChars: 12000, Timeout: 60 * time.Second,
		},
		VectorStore: VectorStoreConfig{
			Provider: "memory", Collection: "docqa_chunks", Timeout: 10 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts: 3, InitialDelay: 200 * time.Millisecond,
			MaxDelay: 5 * time.Second, Multiplier: 2.0,
		},
	}
}

// TestValidateOK 测试合法配置
func TestValidateOK(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

// TestValidateChunking 测试切分参数校验
func TestValidateChunking(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{"valid", 20, 5, false},
		{"zero overlap", 20, 0, false},
		{"overlap equals size", 20, 20, true},
		{"overlap exceeds size", 20, 25, true},
		{"zero size", 0, 0, true},
		{"negative overlap", 20, -1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Chunking.Size = tt.size
			cfg.Chunking.Overlap = tt.overlap
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidConfiguration))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestValidateProvider 测试向量存储提供方校验
func TestValidateProvider(t *testing.T) {
	cfg := validConfig()
	cfg.VectorStore.Provider = "weaviate"
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidConfiguration))
}

// TestLoadConfigDefaults 测试默认值加载
func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 800, cfg.Chunking.Size)
	assert.Equal(t, 120, cfg.Chunking.Overlap)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, "memory", cfg.VectorStore.Provider)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}
