// Package bridge implements the stream bridge (C5): the bidirectional byte
// pump that ties a client connection to its dialed upstream connection once
// a handshake (if any) has completed.
package bridge

import (
	"context"
	"io"
	"net"

	"github.com/jerryr7/quantum-safe-proxy/bufpool"
	"github.com/jerryr7/quantum-safe-proxy/qserrors"
)

// Stats reports the byte counts a completed Run moved in each direction.
type Stats struct {
	ClientToUpstream int64
	UpstreamToClient int64
}

// direction identifies which way a pump goroutine copies bytes, so its
// result can be attributed to the right Stats field regardless of which
// pump happens to finish first.
type direction int

const (
	clientToUpstream direction = iota
	upstreamToClient
)

// pumpResult carries one pump goroutine's outcome tagged with its
// direction, since the two goroutines may report on resc in either order.
type pumpResult struct {
	dir direction
	n   int64
	err error
}

// Run pumps bytes between left and right until one side closes or errs, then
// closes both halves and returns the first error encountered (io.EOF is
// reported as nil: a clean half-close is not a bridge failure). Run blocks
// until both pump directions have exited, so the caller's task-tracking
// entry can be released as soon as Run returns.
//
// Each direction acquires its own buffer from pool and hands it to
// io.CopyBuffer (which bypasses the buffer when src implements io.WriterTo or
// dst implements io.ReaderFrom); the buffer is returned to pool as soon as
// that direction's copy exits instead of only after both directions finish.
func Run(ctx context.Context, left, right net.Conn, pool *bufpool.Pool) (Stats, error) {
	resc := make(chan pumpResult, 2)

	go pump(ctx, left, right, pool, upstreamToClient, resc)
	go pump(ctx, right, left, pool, clientToUpstream, resc)

	var firstErr error
	var stats Stats
	for i := 0; i < 2; i++ {
		r := <-resc
		if r.err != nil && firstErr == nil {
			firstErr = r.err
		}
		switch r.dir {
		case clientToUpstream:
			stats.ClientToUpstream = r.n
		case upstreamToClient:
			stats.UpstreamToClient = r.n
		}
	}

	left.Close()
	right.Close()

	return stats, firstErr
}

// pump copies from src to dst using a pooled buffer, reporting its byte
// count, terminal error (nil on a clean io.EOF), and direction on resc.
// Closing dst's write half as soon as src reaches EOF propagates the
// half-close to the other pump goroutine promptly instead of waiting for
// Run's final Close calls.
func pump(ctx context.Context, dst, src net.Conn, pool *bufpool.Pool, dir direction, resc chan<- pumpResult) {
	buf, err := pool.Acquire(ctx)
	if err != nil {
		resc <- pumpResult{dir: dir, err: qserrors.IO("acquire bridge buffer", err)}
		return
	}
	defer buf.Release()

	n, err := io.CopyBuffer(dst, src, buf.Bytes)
	if cw, ok := dst.(interface{ CloseWrite() error }); ok {
		cw.CloseWrite()
	}
	if err != nil && err != io.EOF {
		resc <- pumpResult{dir: dir, n: n, err: qserrors.IO("bridge copy", err)}
		return
	}
	resc <- pumpResult{dir: dir, n: n}
}
