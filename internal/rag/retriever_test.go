package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/docuhub/backend-go/internal/errors"
)

// stubEmbedder 返回固定向量
type stubEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vector
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int { return len(s.vector) }
func (s *stubEmbedder) Ready() bool     { return true }

// TestRetrieveTopK 测试topK截断与排序
func TestRetrieveTopK(t *testing.T) {
	store := NewMemoryVectorStore(3)
	seedStore(t, store)

	r := NewRetriever(&stubEmbedder{vector: []float32{1, 0, 0}}, store)
	matches, err := r.Retrieve(context.Background(), "what color is the sky?", 2, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "sky", matches[0].Chunk.Text)
	assert.Equal(t, "sea", matches[1].Chunk.Text)
}

// TestRetrieveRankStability 测试同一问题结果稳定
func TestRetrieveRankStability(t *testing.T) {
	store := NewMemoryVectorStore(3)
	seedStore(t, store)

	r := NewRetriever(&stubEmbedder{vector: []float32{0.5, 0.5, 0}}, store)
	first, err := r.Retrieve(context.Background(), "q", 4, nil)
	require.NoError(t, err)
	second, err := r.Retrieve(context.Background(), "q", 4, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

// TestRetrieveScope 测试文档范围过滤
func TestRetrieveScope(t *testing.T) {
	store := NewMemoryVectorStore(3)
	seedStore(t, store)

	r := NewRetriever(&stubEmbedder{vector: []float32{1, 0, 0}}, store)
	matches, err := r.Retrieve(context.Background(), "q", 10, []string{"doc-b"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "doc-b", matches[0].Chunk.DocumentID)
}

// TestRetrieveKNonPositive 测试k<=0不触发任何调用
func TestRetrieveKNonPositive(t *testing.T) {
	emb := &stubEmbedder{vector: []float32{1, 0, 0}}
	r := NewRetriever(emb, NewMemoryVectorStore(3))

	matches, err := r.Retrieve(context.Background(), "q", 0, nil)
	assert.NoError(t, err)
	assert.Empty(t, matches)
	assert.Equal(t, 0, emb.calls)

	matches, err = r.Retrieve(context.Background(), "q", -1, nil)
	assert.NoError(t, err)
	assert.Empty(t, matches)
	assert.Equal(t, 0, emb.calls)
}

// TestRetrieveEmptyIndex 测试空索引
func TestRetrieveEmptyIndex(t *testing.T) {
	r := NewRetriever(&stubEmbedder{vector: []float32{1, 0, 0}}, NewMemoryVectorStore(3))

	matches, err := r.Retrieve(context.Background(), "q", 5, nil)
	assert.NoError(t, err)
	assert.Empty(t, matches)
}

// TestRetrieveEmbedderFailure 测试向量化失败透传
func TestRetrieveEmbedderFailure(t *testing.T) {
	emb := &stubEmbedder{err: apperrors.NewEmbeddingServiceError("rate limited", true)}
	r := NewRetriever(emb, NewMemoryVectorStore(3))

	_, err := r.Retrieve(context.Background(), "q", 5, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindEmbeddingService))
	assert.True(t, apperrors.IsRetryable(err))
}
