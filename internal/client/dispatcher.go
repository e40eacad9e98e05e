// Package client implements the ATM side: a heartbeat task and a stdin
// reader task that share one connection at a time to the collector.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/atmsvr/internal/event"
)

// DefaultHeartbeatInterval is the pause between two heartbeats.
const DefaultHeartbeatInterval = 30 * time.Second

// Sender delivers one event to the collector.
type Sender interface {
	Send(ctx context.Context, ev event.Event) error
}

// Config tunes a Dispatcher.
type Config struct {
	Origin            uint32
	HeartbeatInterval time.Duration
	// Freeform treats each input line as a bare message, stamped with the
	// current time and a random serial.
	Freeform bool
	Location *time.Location
}

// Dispatcher owns the ATM's send path. Every send holds mu from connect to
// close, so the process never has two outbound connections open.
type Dispatcher struct {
	sender Sender
	conf   Config
	now    func() time.Time

	mu sync.Mutex
}

// New creates a Dispatcher. A zero Origin is replaced by a random one.
func New(sender Sender, conf Config) *Dispatcher {
	if conf.Origin == 0 {
		conf.Origin = rand.Uint32()
	}
	if conf.HeartbeatInterval <= 0 {
		conf.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if conf.Location == nil {
		conf.Location = time.Local
	}
	return &Dispatcher{sender: sender, conf: conf, now: time.Now}
}

// Origin returns the terminal id stamped on every event.
func (d *Dispatcher) Origin() uint32 {
	return d.conf.Origin
}

// send runs one connect/send/close cycle under the dispatcher lock.
func (d *Dispatcher) send(ctx context.Context, ev event.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sender.Send(ctx, ev)
}

// Heartbeat emits a heartbeat every interval until ctx is done or a send
// fails. The first heartbeat goes out immediately.
func (d *Dispatcher) Heartbeat(ctx context.Context) error {
	for {
		ev := event.Event{
			Origin:    d.conf.Origin,
			Timestamp: uint64(d.now().Unix()),
			Type:      event.TypeHeartbeat,
			Serial:    rand.Uint32(),
		}
		if err := d.send(ctx, ev); err != nil {
			return fmt.Errorf("heartbeat: %w", err)
		}
		slog.Debug("heartbeat sent", "serial", ev.Serial)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.conf.HeartbeatInterval):
		}
	}
}

// ReadInput sends one event per line of r. It returns nil at end of input,
// an ErrDataFormat error on the first malformed line, or the first send error.
func (d *Dispatcher) ReadInput(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev, err := d.lineEvent(sc.Text())
		if err != nil {
			return err
		}
		if ev.Type == event.TypeUnrecognized {
			slog.Warn("unrecognized event message, sending anyway", "line", sc.Text())
		}
		if err := d.send(ctx, ev); err != nil {
			return fmt.Errorf("send serial %d: %w", ev.Serial, err)
		}
		slog.Info("event sent", "type", ev.Type.String(), "serial", ev.Serial)
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return fmt.Errorf("%w: line exceeds %d bytes", ErrDataFormat, bufio.MaxScanTokenSize)
		}
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

func (d *Dispatcher) lineEvent(line string) (event.Event, error) {
	if d.conf.Freeform {
		return event.Event{
			Origin:    d.conf.Origin,
			Timestamp: uint64(d.now().Unix()),
			Type:      event.ParseType(line),
			Serial:    rand.Uint32(),
		}, nil
	}
	rec, err := ParseRecord(line, d.conf.Location)
	if err != nil {
		return event.Event{}, err
	}
	return rec.Event(d.conf.Origin), nil
}

// Run starts the heartbeat in the background and reads r to completion.
// The heartbeat is never joined: it stops with ctx or with the process.
// Run returns the reader's result, or the heartbeat's error if it fails first,
// or ctx's error once it is cancelled.
func (d *Dispatcher) Run(ctx context.Context, r io.Reader) error {
	hbErr := make(chan error, 1)
	go func() {
		if err := d.Heartbeat(ctx); err != nil && ctx.Err() == nil {
			hbErr <- err
		}
	}()

	readDone := make(chan error, 1)
	go func() {
		readDone <- d.ReadInput(ctx, r)
	}()

	select {
	case err := <-readDone:
		return err
	case err := <-hbErr:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
