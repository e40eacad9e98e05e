package listener

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindLoopback(t *testing.T) {
	lns, err := Bind(context.Background(), []string{"127.0.0.1"}, "0")
	require.NoError(t, err)
	require.Len(t, lns, 1)
	defer lns[0].Close()
	assert.Equal(t, "127.0.0.1", lns[0].Addr().(*net.TCPAddr).IP.String())
}

func TestBindDropsFailedCandidates(t *testing.T) {
	taken, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()
	_, port, _ := net.SplitHostPort(taken.Addr().String())

	// 127.0.0.1 is busy on that port; 127.0.0.2 is free.
	lns, err := Bind(context.Background(), []string{"127.0.0.1", "127.0.0.2"}, port)
	require.NoError(t, err)
	require.Len(t, lns, 1)
	defer lns[0].Close()
	assert.Equal(t, "127.0.0.2", lns[0].Addr().(*net.TCPAddr).IP.String())
}

func TestBindServiceUnavailable(t *testing.T) {
	taken, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()
	_, port, _ := net.SplitHostPort(taken.Addr().String())

	_, err = Bind(context.Background(), []string{"127.0.0.1"}, port)
	assert.ErrorIs(t, err, ErrServiceUnavailable)

	_, err = Bind(context.Background(), []string{"192.0.2.1"}, "0")
	assert.ErrorIs(t, err, ErrServiceUnavailable, "TEST-NET address is not local")
}

func TestProducerMultiplexesListeners(t *testing.T) {
	lns, err := Bind(context.Background(), []string{"127.0.0.1", "127.0.0.2"}, "0")
	require.NoError(t, err)
	require.Len(t, lns, 2)

	accepted := make(chan net.Conn, 8)
	p := NewProducer(lns, func(c net.Conn) bool {
		accepted <- c
		return true
	})
	done := make(chan error, 1)
	go func() { done <- p.Run() }()

	for _, ln := range lns {
		for range 2 {
			c, err := net.Dial("tcp4", ln.Addr().String())
			require.NoError(t, err)
			defer c.Close()
		}
	}
	for range 4 {
		select {
		case c := <-accepted:
			c.Close()
		case <-time.After(2 * time.Second):
			t.Fatal("connection not forwarded to sink")
		}
	}

	p.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}

func TestProducerStopsWhenSinkRefuses(t *testing.T) {
	lns, err := Bind(context.Background(), []string{"127.0.0.1"}, "0")
	require.NoError(t, err)

	p := NewProducer(lns, func(net.Conn) bool { return false })
	done := make(chan error, 1)
	go func() { done <- p.Run() }()

	c, err := net.Dial("tcp4", lns[0].Addr().String())
	require.NoError(t, err)
	defer c.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestProducerFatalOnForeignClose(t *testing.T) {
	lns, err := Bind(context.Background(), []string{"127.0.0.1"}, "0")
	require.NoError(t, err)

	p := NewProducer(lns, func(net.Conn) bool { return true })
	done := make(chan error, 1)
	go func() { done <- p.Run() }()

	// Closing the listener behind the producer's back is an accept failure.
	lns[0].Close()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, net.ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not fail")
	}
}
