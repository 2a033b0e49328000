package main

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func memoryEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("RECON_TIMEZONE", "UTC")
}

func TestRunUnknownCommand(t *testing.T) {
	memoryEnv(t)
	require.Equal(t, 2, run([]string{"reindex"}))
}

func TestServeReturnsWhenListenFails(t *testing.T) {
	memoryEnv(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	t.Setenv("APP_ADDR", ln.Addr().String())

	done := make(chan int, 1)
	go func() { done <- run([]string{"serve"}) }()
	select {
	case code := <-done:
		require.Equal(t, 1, code)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after the listener failed")
	}
}
