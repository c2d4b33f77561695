package helpers

import (
	"sync/atomic"
	"time"
)

// Limited exponential backoff for retry delays.
// Failure() returns delay before next attempt and multiplies it by K for later.
// Reset() after success.
type Backoff struct {
	next int64 // atomic align

	Min time.Duration
	Max time.Duration
	K   float32
	Res time.Duration // delay resolution for nice logs, default=1ms
}

// Use scenario:
// for {
//   err := op()
//   if err == nil { backoff.Reset(); continue }
//   time.Sleep(backoff.Failure())
// }
func (b *Backoff) Failure() time.Duration {
	current := time.Duration(atomic.LoadInt64(&b.next))
	if current == 0 {
		current = b.Min
	}
	current = b.limit(current)
	next := b.limit(time.Duration(float32(current) * b.k()))
	atomic.StoreInt64(&b.next, int64(next))
	return current
}

func (b *Backoff) Reset() {
	atomic.StoreInt64(&b.next, 0)
}

func (b *Backoff) k() float32 {
	if b.K <= 1 {
		return 2
	}
	return b.K
}

func (b *Backoff) limit(d time.Duration) time.Duration {
	if d < b.Min {
		d = b.Min
	}
	if b.Max != 0 && d > b.Max {
		d = b.Max
	}
	return b.round(d)
}

func (b *Backoff) round(d time.Duration) time.Duration {
	res := b.Res
	if res == 0 {
		res = 1 * time.Millisecond
	}
	return d / res * res
}
