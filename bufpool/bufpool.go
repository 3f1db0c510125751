// Package bufpool implements the process-wide bounded buffer pool that backs
// the stream bridge (C5). It bounds aggregate buffer memory independently of
// the number of live connections: at most MaxBuffers buffers of Size bytes
// are ever outstanding, and the (N+1)-th acquirer blocks until one is
// released.
package bufpool

import "context"

const (
	// DefaultBufferSize is the default capacity of a pooled buffer, matching
	// the configuration default documented for buffer_size.
	DefaultBufferSize = 8 * 1024
	// DefaultMaxBuffers bounds the number of buffers the pool will allocate
	// before Acquire starts blocking.
	DefaultMaxBuffers = 32
)

// Buffer is an exclusively-owned byte region on loan from a Pool. Callers
// must call Release exactly once when done; after Release, b.Bytes must not
// be used.
type Buffer struct {
	Bytes []byte
	pool  *Pool
}

// Release returns the buffer to its pool, clearing its contents first so the
// next acquirer always observes a zeroed region.
func (b *Buffer) Release() {
	if b == nil || b.pool == nil {
		return
	}
	clear(b.Bytes)
	select {
	case b.pool.free <- b.Bytes:
	default:
		// Pool is shutting down or the free channel is unexpectedly full;
		// drop the buffer rather than block the releaser.
	}
	<-b.pool.gate
	b.pool = nil
}

// Pool is a fixed-capacity, reusable byte-buffer pool. The zero value is not
// usable; construct with New.
type Pool struct {
	size int
	gate chan struct{} // one token per outstanding buffer slot
	free chan []byte   // buffers available for immediate reuse
}

// New creates a Pool that hands out buffers of size bytes, capping the
// number of simultaneously outstanding buffers at maxBuffers.
func New(size, maxBuffers int) *Pool {
	if size <= 0 {
		size = DefaultBufferSize
	}
	if maxBuffers <= 0 {
		maxBuffers = DefaultMaxBuffers
	}
	return &Pool{
		size: size,
		gate: make(chan struct{}, maxBuffers),
		free: make(chan []byte, maxBuffers),
	}
}

// Size returns the capacity in bytes of buffers this pool hands out.
func (p *Pool) Size() int { return p.size }

// Acquire blocks until a buffer slot is available, then returns it. It only
// returns an error if ctx is cancelled first.
func (p *Pool) Acquire(ctx context.Context) (*Buffer, error) {
	select {
	case p.gate <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return p.take(), nil
}

// TryAcquire attempts to obtain a buffer without blocking. It returns nil if
// the pool is currently exhausted.
func (p *Pool) TryAcquire() *Buffer {
	select {
	case p.gate <- struct{}{}:
		return p.take()
	default:
		return nil
	}
}

// take must only be called after a gate token has been claimed.
func (p *Pool) take() *Buffer {
	select {
	case b := <-p.free:
		return &Buffer{Bytes: b, pool: p}
	default:
		return &Buffer{Bytes: make([]byte, p.size), pool: p}
	}
}
