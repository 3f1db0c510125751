// Package proxy implements the connection handler (C6) and the proxy
// supervisor (C7): the per-connection accept-handshake-dial-bridge sequence
// and the message-driven goroutine that owns the listening socket and the
// set of in-flight connections.
package proxy

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/jerryr7/quantum-safe-proxy/bridge"
	"github.com/jerryr7/quantum-safe-proxy/bufpool"
	"github.com/jerryr7/quantum-safe-proxy/qserrors"
	"github.com/jerryr7/quantum-safe-proxy/sniff"
	"go.uber.org/zap"
)

// sniffTimeout bounds how long the connection handler waits for enough
// bytes to classify the connection before giving up and treating it as
// non-TLS.
const sniffTimeout = 300 * time.Millisecond

// Handle implements C6's sequence: sniff, TLS handshake, dial
// upstream, bridge. It returns a non-fatal error describing why the
// connection was rejected or how it failed; the caller (the supervisor's
// per-connection goroutine) never propagates this error beyond logging it.
func Handle(ctx context.Context, raw net.Conn, targetAddr string, tlsConfig *tls.Config, dialTimeout time.Duration, pool *bufpool.Pool, log *zap.Logger) (bridge.Stats, error) {
	br := bufio.NewReader(raw)

	result, err := sniff.Detect(raw, br, sniffTimeout)
	if err != nil {
		return bridge.Stats{}, qserrors.IO("sniff", err)
	}
	switch result.Classification {
	case sniff.NonTLS:
		return bridge.Stats{}, qserrors.NonTLSConnection(result.Reason)
	case sniff.NeedMoreData:
		// A sniff timeout without enough bytes to classify is itself treated
		// as a rejection rather than an optimistic pass-through to the TLS
		// handshake.
		return bridge.Stats{}, qserrors.NonTLSConnection("insufficient data before sniff timeout")
	}

	conn := &peekedConn{Conn: raw, r: br}
	tlsConn := tls.Server(conn, tlsConfig)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return bridge.Stats{}, qserrors.TLSHandshake("handshake", err)
	}

	if log != nil {
		state := tlsConn.ConnectionState()
		if len(state.PeerCertificates) > 0 {
			log.Debug("peer certificate presented",
				zap.String("subject", state.PeerCertificates[0].Subject.String()))
		}
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	upstream, err := dialer.DialContext(ctx, "tcp", targetAddr)
	if err != nil {
		return bridge.Stats{}, qserrors.IO("dial upstream", err)
	}

	return bridge.Run(ctx, tlsConn, upstream, pool)
}

// peekedConn wraps a net.Conn so that the sniffer's Peek doesn't throw away
// bytes: all subsequent reads go through the buffered reader that already
// holds them, while writes and everything else pass straight to the
// underlying connection.
type peekedConn struct {
	net.Conn
	r *bufio.Reader
}

func (p *peekedConn) Read(b []byte) (int, error) {
	return p.r.Read(b)
}
