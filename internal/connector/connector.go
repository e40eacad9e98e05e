// Package connector opens short-lived TCP connections to the collector,
// failing over across every IPv4 address the host name resolves to.
package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/gyaneshwarpardhi/atmsvr/internal/event"
	"github.com/gyaneshwarpardhi/atmsvr/internal/metrics"
)

var (
	ErrResolve         = errors.New("cannot resolve collector address")
	ErrNoReachableHost = errors.New("could not connect to the collector")
)

// DialFunc opens a TCP connection to raddr, optionally bound to laddr.
type DialFunc func(ctx context.Context, laddr, raddr *net.TCPAddr) (net.Conn, error)

// LookupFunc resolves host to candidate IPv4 addresses.
type LookupFunc func(ctx context.Context, host string) ([]net.IP, error)

// Connector resolves the collector address on every call and hands a fresh
// connection to exactly one unit of work.
type Connector struct {
	host      string
	port      int
	localPort int
	lookup    LookupFunc
	dial      DialFunc
}

// Option customizes a Connector.
type Option func(*Connector)

// WithLocalPort binds every outbound socket to the given local port.
func WithLocalPort(port int) Option {
	return func(c *Connector) { c.localPort = port }
}

// WithLookup replaces the DNS resolver.
func WithLookup(fn LookupFunc) Option {
	return func(c *Connector) { c.lookup = fn }
}

// WithDial replaces the socket dialer.
func WithDial(fn DialFunc) Option {
	return func(c *Connector) { c.dial = fn }
}

// New creates a Connector for host:port.
func New(host string, port string, opts ...Option) (*Connector, error) {
	p, err := strconv.Atoi(port)
	if err != nil || p <= 0 || p > 65535 {
		return nil, fmt.Errorf("invalid port %q", port)
	}
	c := &Connector{
		host:   host,
		port:   p,
		lookup: lookupIPv4,
		dial:   dialTCP,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithConnection connects to the first reachable candidate, runs fn on the
// connection and closes it whatever fn returns.
func (c *Connector) WithConnection(ctx context.Context, fn func(net.Conn) error) (err error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return err
	}
	metrics.OutboundOpen.Inc()
	defer func() {
		cerr := conn.Close()
		metrics.OutboundOpen.Dec()
		if err == nil && cerr != nil {
			err = fmt.Errorf("close: %w", cerr)
		}
	}()
	return fn(conn)
}

func (c *Connector) connect(ctx context.Context) (net.Conn, error) {
	ips, err := c.lookup(ctx, c.host)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrResolve, c.host, err)
	}

	var laddr *net.TCPAddr
	if c.localPort != 0 {
		laddr = &net.TCPAddr{IP: net.IPv4zero, Port: c.localPort}
	}

	for _, ip := range ips {
		raddr := &net.TCPAddr{IP: ip, Port: c.port}
		conn, err := c.dial(ctx, laddr, raddr)
		if err != nil {
			metrics.ConnectFailures.Inc()
			slog.Warn("connect failed, trying next address", "addr", raddr.String(), "err", err)
			continue
		}
		return conn, nil
	}
	return nil, fmt.Errorf("%w %s:%d (%d candidates)", ErrNoReachableHost, c.host, c.port, len(ips))
}

func lookupIPv4(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return []net.IP{v4}, nil
		}
		return nil, fmt.Errorf("%s is not an IPv4 address", host)
	}
	return net.DefaultResolver.LookupIP(ctx, "ip4", host)
}

func dialTCP(ctx context.Context, laddr, raddr *net.TCPAddr) (net.Conn, error) {
	d := net.Dialer{Control: reuseAddr}
	if laddr != nil {
		d.LocalAddr = laddr
	}
	return d.DialContext(ctx, "tcp4", raddr.String())
}

// reuseAddr lets back-to-back connections from a fixed local port rebind
// while the previous socket sits in TIME_WAIT.
func reuseAddr(_, _ string, rc syscall.RawConn) error {
	var serr error
	err := rc.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return serr
}

// Sender transmits each event over its own connection.
type Sender struct {
	c *Connector
}

// NewSender wraps c as a one-event-per-connection sender.
func NewSender(c *Connector) *Sender {
	return &Sender{c: c}
}

// Send connects, writes ev and closes.
func (s *Sender) Send(ctx context.Context, ev event.Event) error {
	err := s.c.WithConnection(ctx, func(conn net.Conn) error {
		return event.Encode(conn, ev)
	})
	if err != nil {
		return err
	}
	metrics.EventsSent.WithLabelValues(ev.Type.String()).Inc()
	return nil
}
