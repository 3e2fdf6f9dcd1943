package httputil

import (
	"context"
	"sync/atomic"
)

// Limiter caps concurrent outbound calls. The gateway holds one slot per
// in-flight upstream model request so a slow upstream cannot pile up
// goroutines behind it.
type Limiter struct {
	slots    chan struct{}
	rejected atomic.Int64
}

// NewLimiter creates a limiter with the given capacity.
func NewLimiter(capacity int) *Limiter {
	if capacity <= 0 {
		capacity = 64
	}
	return &Limiter{
		slots: make(chan struct{}, capacity),
	}
}

// TryAcquire grabs a slot without blocking. Returns false when at capacity;
// callers should shed the request rather than queue it.
func (l *Limiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		return true
	default:
		l.rejected.Add(1)
		return false
	}
}

// Acquire blocks until a slot is available or the context is cancelled.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot. Must pair with a successful TryAcquire or Acquire.
func (l *Limiter) Release() {
	select {
	case <-l.slots:
	default:
	}
}

// Rejected returns how many calls were shed at capacity.
func (l *Limiter) Rejected() int64 {
	return l.rejected.Load()
}

// InUse returns the number of slots currently held.
func (l *Limiter) InUse() int {
	return len(l.slots)
}

// Stats returns a snapshot for the health endpoint.
func (l *Limiter) Stats() LimiterStats {
	return LimiterStats{
		Capacity:  cap(l.slots),
		InUse:     len(l.slots),
		Available: cap(l.slots) - len(l.slots),
		Rejected:  l.rejected.Load(),
	}
}

// LimiterStats provides limiter metrics for monitoring.
type LimiterStats struct {
	Capacity  int   `json:"capacity"`
	InUse     int   `json:"in_use"`
	Available int   `json:"available"`
	Rejected  int64 `json:"rejected"`
}
