package llm

import (
	"context"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
)

// RetryPolicy bounds retries around the provider call.
type RetryPolicy struct {
	Attempts  uint
	BaseDelay time.Duration
	Retryable func(err error) bool
	OnRetry   func(attempt uint, err error)
}

// DefaultRetryPolicy retries transient failures three times with exponential backoff from one second.
func DefaultRetryPolicy() (p RetryPolicy) {
	p = RetryPolicy{
		Attempts:  3,
		BaseDelay: time.Second,
		Retryable: IsTransient,
	}
	return p
}

// Do runs fn until it succeeds, returns a non-retryable error, or attempts run out.
// The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) (err error) {
	attempts := p.Attempts
	if attempts == 0 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(p.BaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(retryable),
		retry.LastErrorOnly(true),
	}
	if p.OnRetry != nil {
		opts = append(opts, retry.OnRetry(p.OnRetry))
	}

	err = retry.Do(fn, opts...)
	return err
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) (transient bool) {
	var te *TransientError
	transient = errors.As(err, &te)
	return transient
}

// IsRetryableStatus reports whether an HTTP status is transient: 429 or any 5xx.
func IsRetryableStatus(status int) (retryable bool) {
	retryable = status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
	return retryable
}
