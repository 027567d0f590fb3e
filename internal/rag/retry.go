package rag

import (
	"context"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/docuhub/backend-go/internal/errors"
	"github.com/docuhub/backend-go/internal/logger"
)

// RetryPolicy 外部调用重试策略，仅对可重试错误生效
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryPolicy 默认重试策略
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

// Do 执行操作，指数退避重试瞬时故障
func (p RetryPolicy) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.InitialDelay
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if !apperrors.IsRetryable(err) || attempt == attempts {
			return err
		}

		logger.Warn("retrying after transient failure",
			zap.String("operation", name),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * p.Multiplier)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return err
}
