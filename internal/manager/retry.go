package manager

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/font-hub/font-hub/internal/font"
)

// RetryPolicy 控制样式表抓取与变体下载的重试。MaxRetries 为 0 表示只尝试一次。
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
}

// retryable 只对超时、不可达、429 与 5xx 重试；NotFound 与其它 4xx 直接失败。
func retryable(err error) bool {
	var netErr *font.NetworkError
	if errors.As(err, &netErr) {
		return netErr.Retryable()
	}
	return false
}

func (m *Manager) withRetry(ctx context.Context, fields logrus.Fields, fn func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = m.retry.InitialBackoff
	policy.MaxElapsedTime = 0
	policy.Reset()

	var b backoff.BackOff = policy
	if m.retry.MaxRetries >= 0 {
		b = backoff.WithMaxRetries(b, uint64(m.retry.MaxRetries))
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		m.metrics.Retry()
		m.logger.WithFields(fields).WithFields(logrus.Fields{
			"attempt": attempt,
			"wait_ms": wait.Milliseconds(),
			"error":   err.Error(),
		}).Warn("upstream_retry")
	}
	return backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify)
}
