// Package listener binds the collector's listening sockets and feeds
// accepted connections into the work queue.
package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/gyaneshwarpardhi/atmsvr/internal/metrics"
)

// ErrServiceUnavailable means no candidate address could be listened on.
var ErrServiceUnavailable = errors.New("no way to create the service")

// DefaultHosts are the bind hosts used when none are configured.
var DefaultHosts = []string{"0.0.0.0"}

// Bind listens on port at every address the hosts resolve to. Candidates
// that fail are logged and dropped; at least one must survive.
func Bind(ctx context.Context, hosts []string, port string) ([]net.Listener, error) {
	if len(hosts) == 0 {
		hosts = DefaultHosts
	}

	var candidates []string
	for _, host := range hosts {
		addrs, err := resolve(ctx, host)
		if err != nil {
			slog.Warn("bind host skipped", "host", host, "err", err)
			continue
		}
		for _, a := range addrs {
			candidates = append(candidates, net.JoinHostPort(a, port))
		}
	}

	var lc net.ListenConfig
	listeners := make([]net.Listener, 0, len(candidates))
	for _, addr := range candidates {
		ln, err := lc.Listen(ctx, network(addr), addr)
		if err != nil {
			slog.Warn("listen failed", "addr", addr, "err", err)
			continue
		}
		slog.Info("listening", "addr", ln.Addr().String())
		listeners = append(listeners, ln)
	}
	if len(listeners) == 0 {
		return nil, fmt.Errorf("%w: port %s (%d candidates)", ErrServiceUnavailable, port, len(candidates))
	}
	return listeners, nil
}

func resolve(ctx context.Context, host string) ([]string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []string{ip.String()}, nil
	}
	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		out = append(out, ip.IP.String())
	}
	return out, nil
}

func network(hostport string) string {
	host, _, _ := net.SplitHostPort(hostport)
	if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
		return "tcp6"
	}
	return "tcp4"
}

// Sink receives accepted connections. It reports false once it no longer
// accepts work.
type Sink func(net.Conn) bool

// Producer multiplexes a set of listeners into a single stream of accepted
// connections.
type Producer struct {
	listeners []net.Listener
	sink      Sink

	closeOnce sync.Once
	closing   chan struct{}
}

// NewProducer creates a producer over listeners pushing into sink.
func NewProducer(listeners []net.Listener, sink Sink) *Producer {
	return &Producer{
		listeners: listeners,
		sink:      sink,
		closing:   make(chan struct{}),
	}
}

type acceptResult struct {
	conn net.Conn
	err  error
	ln   net.Listener
}

// Run accepts until Close is called or an accept fails. The returned error
// is nil after Close and fatal otherwise.
func (p *Producer) Run() error {
	ready := make(chan acceptResult)
	var wg sync.WaitGroup
	for _, ln := range p.listeners {
		wg.Add(1)
		go func(ln net.Listener) {
			defer wg.Done()
			p.acceptLoop(ln, ready)
		}(ln)
	}
	defer wg.Wait()
	defer p.Close()

	for {
		var r acceptResult
		select {
		case r = <-ready:
		case <-p.closing:
			return nil
		}
		if r.err != nil {
			if errors.Is(r.err, net.ErrClosed) {
				select {
				case <-p.closing:
					return nil
				default:
				}
			}
			return fmt.Errorf("accept on %s: %w", r.ln.Addr(), r.err)
		}
		metrics.ConnectionsAccepted.Inc()
		if !p.sink(r.conn) {
			r.conn.Close()
			return nil
		}
	}
}

// acceptLoop waits for connections on one listener and hands each to Run.
// Timeouts are the runtime's "would block" and are retried.
func (p *Producer) acceptLoop(ln net.Listener, ready chan<- acceptResult) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
		}
		select {
		case ready <- acceptResult{conn: conn, err: err, ln: ln}:
		case <-p.closing:
			if conn != nil {
				conn.Close()
			}
			return
		}
		if err != nil {
			return
		}
	}
}

// Close stops the producer and closes every listener.
func (p *Producer) Close() {
	p.closeOnce.Do(func() {
		close(p.closing)
		for _, ln := range p.listeners {
			ln.Close()
		}
	})
}
