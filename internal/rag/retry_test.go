package rag

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/docuhub/backend-go/internal/errors"
)

func fastPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  maxAttempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

// TestRetrySucceedsAfterTransient 测试瞬时故障后成功
func TestRetrySucceedsAfterTransient(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return apperrors.NewIndexUnavailable("timeout", true)
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

// TestRetryStopsOnNonRetryable 测试不可重试错误立即返回
func TestRetryStopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := fastPolicy(5).Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return apperrors.NewEmbeddingServiceError("invalid api key", false)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

// TestRetryExhaustsAttempts 测试重试耗尽后返回最后错误
func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return apperrors.NewGenerationServiceError("503", true)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, apperrors.IsKind(err, apperrors.KindGenerationService))
}

// TestRetryPlainErrorNotRetried 测试普通错误不重试
func TestRetryPlainErrorNotRetried(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return errors.New("plain failure")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

// TestRetryContextCanceled 测试取消后不再重试
func TestRetryContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	policy := RetryPolicy{MaxAttempts: 5, InitialDelay: 50 * time.Millisecond, Multiplier: 2}
	err := policy.Do(ctx, "op", func(ctx context.Context) error {
		calls++
		cancel()
		return apperrors.NewIndexUnavailable("timeout", true)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
