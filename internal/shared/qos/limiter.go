package qos

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter shapes the combined throughput of every connection that shares it.
// A nil *Limiter is valid and never blocks.
type Limiter struct {
	rl *rate.Limiter
}

// NewLimiter returns a limiter allowing bandwidth bytes per second, or nil
// when bandwidth is not positive. A burst of 0 defaults to twice the bandwidth.
func NewLimiter(bandwidth int64, burst int) *Limiter {
	if bandwidth <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = int(bandwidth * 2)
	}
	return &Limiter{rl: rate.NewLimiter(rate.Limit(bandwidth), burst)}
}

func (l *Limiter) Limited() bool {
	return l != nil && l.rl != nil
}

func (l *Limiter) Burst() int {
	if !l.Limited() {
		return 0
	}
	return l.rl.Burst()
}

// Bandwidth returns the configured rate in bytes per second.
func (l *Limiter) Bandwidth() int64 {
	if !l.Limited() {
		return 0
	}
	return int64(l.rl.Limit())
}

// WaitN blocks until n bytes may pass. Requests larger than the burst are
// split into burst-sized reservations.
func (l *Limiter) WaitN(ctx context.Context, n int) error {
	if !l.Limited() {
		return nil
	}
	burst := l.rl.Burst()
	for n > 0 {
		step := min(n, burst)
		if err := l.rl.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}
