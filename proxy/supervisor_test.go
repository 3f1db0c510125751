package proxy

import (
	"context"
	"crypto/tls"
	"net"
	"testing"
	"time"

	"github.com/jerryr7/quantum-safe-proxy/bufpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestSupervisorAcceptsAndDrainsCleanly(t *testing.T) {
	upstreamAddr := listenUpstreamEcho(t)
	tlsCfg := selfSignedTLSConfig(t)
	pool := bufpool.New(1024, 4)

	sup := New(upstreamAddr, tlsCfg, time.Second, pool, nil)
	listenAddr := freeAddr(t)

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- sup.Run(context.Background(), listenAddr)
	}()

	// Give the listener a moment to bind.
	require.Eventually(t, func() bool { return sup.State() == StateRunning }, time.Second, 5*time.Millisecond)

	conn, err := tls.Dial("tcp", listenAddr, &tls.Config{InsecureSkipVerify: true})
	require.NoError(t, err)

	done := make(chan struct{})
	sup.Control() <- Shutdown{Deadline: 2 * time.Second, Done: done}

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("supervisor did not finish draining")
	}

	conn.Close()

	select {
	case err := <-runErrCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after drain completed")
	}
	assert.Equal(t, StateStopped, sup.State())
}

func TestSupervisorRejectsNewConnectionsWhileDraining(t *testing.T) {
	upstreamAddr := listenUpstreamEcho(t)
	tlsCfg := selfSignedTLSConfig(t)
	pool := bufpool.New(1024, 4)

	sup := New(upstreamAddr, tlsCfg, time.Second, pool, nil)
	listenAddr := freeAddr(t)

	go sup.Run(context.Background(), listenAddr)
	require.Eventually(t, func() bool { return sup.State() == StateRunning }, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	sup.Control() <- Shutdown{Deadline: time.Second, Done: done}

	conn, dialErr := net.DialTimeout("tcp", listenAddr, time.Second)
	if dialErr == nil {
		buf := make([]byte, 16)
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, readErr := conn.Read(buf)
		assert.Error(t, readErr, "connection accepted while draining should be closed immediately")
		conn.Close()
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not finish draining")
	}
	assert.Equal(t, StateStopped, sup.State())
}

func TestSupervisorUpdateConfigAffectsOnlyFutureConnections(t *testing.T) {
	upstreamA := listenUpstreamEcho(t)
	tlsCfg := selfSignedTLSConfig(t)
	pool := bufpool.New(1024, 4)

	sup := New(upstreamA, tlsCfg, time.Second, pool, nil)
	listenAddr := freeAddr(t)

	go sup.Run(context.Background(), listenAddr)
	require.Eventually(t, func() bool { return sup.State() == StateRunning }, time.Second, 5*time.Millisecond)

	upstreamB := listenUpstreamEcho(t)
	sup.Control() <- UpdateConfig{TargetAddr: upstreamB, TLSConfig: tlsCfg, DialTimeout: time.Second, Pool: pool}

	require.Eventually(t, func() bool { return sup.targetAddr == upstreamB }, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	sup.Control() <- Shutdown{Deadline: time.Second, Done: done}
	<-done
}

func TestStateStringsAreHumanReadable(t *testing.T) {
	assert.Equal(t, "init", StateInit.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "draining", StateDraining.String())
	assert.Equal(t, "stopped", StateStopped.String())
}
