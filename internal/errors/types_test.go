package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestAppErrorUnwrap 测试错误链
func TestAppErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewIndexUnavailable("milvus unreachable", true).WithCause(cause)

	assert.Equal(t, "milvus unreachable: connection refused", err.Error())
	assert.True(t, stderrors.Is(err, cause))
}

// TestIsKind 测试类别匹配
func TestIsKind(t *testing.T) {
	err := fmt.Errorf("ingest: %w", NewUnsupportedFormat("no extractable text"))

	assert.True(t, IsKind(err, KindUnsupportedFormat))
	assert.False(t, IsKind(err, KindEmbeddingService))
	assert.False(t, IsKind(stderrors.New("plain"), KindUnsupportedFormat))
}

// TestErrorsIsByKind 测试errors.Is按Kind匹配
func TestErrorsIsByKind(t *testing.T) {
	err := NewEmbeddingServiceError("rate limited", true)
	assert.True(t, stderrors.Is(err, &AppError{Kind: KindEmbeddingService}))
	assert.False(t, stderrors.Is(err, &AppError{Kind: KindGenerationService}))
}

// TestIsRetryable 测试重试分类
func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", NewEmbeddingServiceError("429", true), true},
		{"auth failure", NewEmbeddingServiceError("invalid api key", false), false},
		{"index down", NewIndexUnavailable("timeout", true), true},
		{"config", NewInvalidConfiguration("overlap >= size"), false},
		{"wrapped retryable", fmt.Errorf("retrieve: %w", NewIndexUnavailable("503", true)), true},
		{"plain error", stderrors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

// TestUserMessage 测试用户提示翻译
func TestUserMessage(t *testing.T) {
	assert.Contains(t, UserMessage(NewUnsupportedFormat("x")), "提取文本")
	assert.Contains(t, UserMessage(NewContextTooLarge("x")), "超出模型处理能力")
	assert.Contains(t, UserMessage(stderrors.New("x")), "内部错误")
}
