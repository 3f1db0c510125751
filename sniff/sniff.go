// Package sniff implements the pre-handshake protocol sniffer (C2): a
// non-destructive peek of the first bytes of an accepted connection, used to
// reject non-TLS traffic before the (PQC-costly) handshake is attempted.
package sniff

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"net"
	"time"
)

// Classification is the result of sniffing a connection's initial bytes.
type Classification int

const (
	// NeedMoreData means fewer than minRecordHeader bytes became visible
	// within the deadline.
	NeedMoreData Classification = iota
	// NonTLS means the bytes are conclusively not a TLS handshake record.
	NonTLS
	// TLS means the bytes look like the start of a TLS handshake record.
	TLS
)

func (c Classification) String() string {
	switch c {
	case TLS:
		return "tls"
	case NonTLS:
		return "non-tls"
	default:
		return "need-more-data"
	}
}

const (
	contentTypeHandshake = 0x16

	minRecordHeader = 5
	maxPeek         = 16

	minRecordLength = 4
	maxRecordLength = 16384
)

// validVersions enumerates the TLS record-layer version bytes (major.minor)
// this sniffer accepts as plausibly-TLS: SSLv3 through TLS 1.3's wire value.
var validVersions = map[[2]byte]string{
	{3, 0}: "SSLv3",
	{3, 1}: "TLS1.0",
	{3, 2}: "TLS1.1",
	{3, 3}: "TLS1.2",
	{3, 4}: "TLS1.3",
}

// Result carries the classification plus diagnostic detail.
type Result struct {
	Classification Classification
	// Reason explains a NonTLS classification, e.g. "non-TLS first byte".
	Reason string
	// Version is set when Classification is TLS and a version byte pair was
	// recognized.
	Version string
}

// Detect classifies the connection's first bytes without consuming them. br
// must be a *bufio.Reader (or equivalent) wrapping conn, so that bytes
// peeked here remain available to the subsequent TLS handshake read. conn is
// used only to bound the peek with a read deadline; it is restored to no
// deadline before Detect returns.
func Detect(conn net.Conn, br *bufio.Reader, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		timeout = 200 * time.Millisecond
	}

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return Result{}, fmt.Errorf("setting sniff deadline: %w", err)
	}
	defer conn.SetReadDeadline(time.Time{}) //nolint:errcheck // best-effort clear

	b, err := br.Peek(maxPeek)
	if len(b) < minRecordHeader {
		if isTimeout(err) {
			return Result{Classification: NeedMoreData}, nil
		}
		if err != nil {
			return Result{}, err
		}
		return Result{Classification: NeedMoreData}, nil
	}

	return classify(b), nil
}

func classify(b []byte) Result {
	if b[0] != contentTypeHandshake {
		return Result{Classification: NonTLS, Reason: "non-TLS first byte"}
	}

	versionKey := [2]byte{b[1], b[2]}
	versionName, ok := validVersions[versionKey]
	if !ok {
		return Result{Classification: NonTLS, Reason: "invalid version"}
	}

	recordLen := binary.BigEndian.Uint16(b[3:5])
	if recordLen < minRecordLength || recordLen > maxRecordLength {
		return Result{Classification: NonTLS, Reason: "invalid length"}
	}

	return Result{Classification: TLS, Version: versionName}
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	te, ok := err.(timeouter)
	return ok && te.Timeout()
}
