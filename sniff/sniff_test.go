package sniff

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func detectBytes(t *testing.T, payload []byte, timeout time.Duration) Result {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})

	go func() {
		client.Write(payload) //nolint:errcheck
	}()

	br := bufio.NewReader(server)
	res, err := Detect(server, br, timeout)
	require.NoError(t, err)
	return res
}

func TestDetectTLSHandshakeRecord(t *testing.T) {
	payload := []byte{0x16, 0x03, 0x03, 0x00, 0x31, 0x01, 0x00, 0x00, 0x2D, 0x03, 0x03}
	res := detectBytes(t, payload, time.Second)
	assert.Equal(t, TLS, res.Classification)
	assert.Equal(t, "TLS1.2", res.Version)
}

func TestDetectNonTLSFirstByte(t *testing.T) {
	payload := []byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n")
	res := detectBytes(t, payload, time.Second)
	assert.Equal(t, NonTLS, res.Classification)
	assert.Equal(t, "non-TLS first byte", res.Reason)
}

func TestDetectInvalidVersion(t *testing.T) {
	payload := []byte{0x16, 0x09, 0x09, 0x00, 0x10, 0, 0, 0, 0, 0, 0}
	res := detectBytes(t, payload, time.Second)
	assert.Equal(t, NonTLS, res.Classification)
	assert.Equal(t, "invalid version", res.Reason)
}

func TestDetectInvalidLength(t *testing.T) {
	// record length field (bytes 3-4) = 0xFFFF, far outside [4, 16384]
	payload := []byte{0x16, 0x03, 0x03, 0xFF, 0xFF, 0, 0, 0, 0, 0, 0}
	res := detectBytes(t, payload, time.Second)
	assert.Equal(t, NonTLS, res.Classification)
	assert.Equal(t, "invalid length", res.Reason)
}

func TestDetectNeedMoreDataOnTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		time.Sleep(200 * time.Millisecond)
		client.Write([]byte{0x16, 0x03}) //nolint:errcheck
	}()

	br := bufio.NewReader(server)
	res, err := Detect(server, br, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, NeedMoreData, res.Classification)
}

func TestDetectIsPureFunctionOfPrefix(t *testing.T) {
	// Same prefix classified twice (with extra trailing bytes varied) must
	// agree: classification depends only on the first 5 bytes.
	prefix := []byte{0x16, 0x03, 0x03, 0x00, 0x10}
	a := detectBytes(t, append(append([]byte{}, prefix...), 1, 2, 3), time.Second)
	b := detectBytes(t, append(append([]byte{}, prefix...), 9, 9, 9, 9, 9), time.Second)
	assert.Equal(t, a.Classification, b.Classification)
	assert.Equal(t, a.Version, b.Version)
}
