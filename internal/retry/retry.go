package retry

import (
	"context"
	"errors"
	"time"
)

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent 标记不值得重试的错误（例如下游 4xx）
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Budget 给 Do 的总时长上限：每次尝试 perAttempt，加上两次尝试之间的退避
func Budget(attempts int, perAttempt, baseDelay time.Duration) time.Duration {
	attempts = max(attempts, 1)
	total := time.Duration(attempts) * perAttempt
	delay := baseDelay
	for i := 1; i < attempts; i++ {
		total += delay
		delay *= 2
	}
	return total
}

// Do executes fn up to attempts times with exponential backoff.
// It stops early if the context is canceled or fn returns a Permanent error.
func Do(ctx context.Context, attempts int, baseDelay time.Duration, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	delay := baseDelay

	for i := 0; i < attempts; i++ {
		if e := ctx.Err(); e != nil {
			if err != nil {
				return errors.Join(err, e)
			}
			return e
		}

		if err = fn(ctx); err == nil {
			return nil
		}
		if IsPermanent(err) || i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
