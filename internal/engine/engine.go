package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/atmsvr/internal/bitacora"
	"github.com/gyaneshwarpardhi/atmsvr/internal/config"
	"github.com/gyaneshwarpardhi/atmsvr/internal/event"
	"github.com/gyaneshwarpardhi/atmsvr/internal/metrics"
	"github.com/gyaneshwarpardhi/atmsvr/internal/queue"
)

// Alerter raises alerts for accepted events and reports how many channels
// delivered one.
type Alerter interface {
	Dispatch(ctx context.Context, ev event.Event) int
}

// Outcome classifies what a worker did with one connection.
type Outcome int

const (
	OutcomeLogged   Outcome = iota // valid event written to the bitácora
	OutcomeRejected                // type outside the enumeration, dropped silently
	OutcomeEmpty                   // peer closed without sending anything
	OutcomeFailed                  // transport or bitácora error
)

// Result is the outcome of processing a single connection.
type Result struct {
	Event    event.Event
	Outcome  Outcome
	Alerts   int
	Duration time.Duration
	Err      error
}

// Engine is the collector's shared context: the work queue, the bitácora
// and the alert dispatcher, plus the workers consuming the queue.
type Engine struct {
	conf     config.EngineConf
	recorder bitacora.Recorder
	alerts   Alerter
	pool     *workerPool[net.Conn]

	fatalOnce sync.Once
	fatal     chan error
}

// New creates an Engine using conf and starts its workers.
func New(ctx context.Context, conf config.EngineConf, recorder bitacora.Recorder, alerts Alerter) *Engine {
	if conf.Workers <= 0 {
		conf.Workers = config.DefaultWorkers
	}
	e := &Engine{
		conf:     conf,
		recorder: recorder,
		alerts:   alerts,
		fatal:    make(chan error, 1),
	}
	e.pool = newWorkerPool(ctx, conf.Workers, queue.New[net.Conn](), func(ctx context.Context, worker int, conn net.Conn) {
		metrics.QueueDepth.Set(float64(e.pool.QueueLen()))
		e.Handle(ctx, worker, conn)
	})
	return e
}

// Submit hands an accepted connection to the workers. It returns false
// once the engine is shutting down; the caller keeps ownership then.
func (e *Engine) Submit(conn net.Conn) bool {
	if !e.pool.Submit(conn) {
		return false
	}
	metrics.QueueDepth.Set(float64(e.pool.QueueLen()))
	return true
}

// Fatal delivers the first error that must terminate the collector.
func (e *Engine) Fatal() <-chan error {
	return e.fatal
}

// QueueDepth returns how many connections wait for a worker.
func (e *Engine) QueueDepth() int {
	return e.pool.QueueLen()
}

// Workers returns the pool size.
func (e *Engine) Workers() int {
	return e.conf.Workers
}

// Handle runs one receive cycle on conn and closes it: decode one event,
// drop it if its type is unknown, otherwise log it and alert on it.
func (e *Engine) Handle(ctx context.Context, worker int, conn net.Conn) *Result {
	start := time.Now()
	defer conn.Close()

	res := e.handle(ctx, worker, conn)
	res.Duration = time.Since(start)
	metrics.EventProcessingDuration.Observe(float64(res.Duration.Milliseconds()))
	return res
}

func (e *Engine) handle(ctx context.Context, worker int, conn net.Conn) *Result {
	log := slog.With("worker", worker, "conn", uuid.NewString(), "peer", conn.RemoteAddr().String())

	if e.conf.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(e.conf.ReadTimeout))
	}

	ev, err := event.Decode(conn)
	if errors.Is(err, io.EOF) {
		log.Debug("connection closed before any data")
		return &Result{Outcome: OutcomeEmpty}
	}
	if err != nil {
		metrics.TransportErrors.Inc()
		if e.conf.FailOpen {
			log.Warn("dropping broken connection", "err", err)
		} else {
			e.fail(fmt.Errorf("worker %d: %w", worker, err))
		}
		return &Result{Outcome: OutcomeFailed, Err: err}
	}

	if !ev.Type.Valid() {
		metrics.EventsRejected.Inc()
		return &Result{Event: ev, Outcome: OutcomeRejected}
	}

	metrics.EventsReceived.WithLabelValues(ev.Type.String()).Inc()
	log.Info("event received", "type", ev.Type.String(), "origin", ev.Origin, "serial", ev.Serial)

	if err := e.recorder.Record(ev); err != nil {
		e.fail(fmt.Errorf("worker %d: %w", worker, err))
		return &Result{Event: ev, Outcome: OutcomeFailed, Err: err}
	}

	alerts := e.alerts.Dispatch(ctx, ev)
	return &Result{Event: ev, Outcome: OutcomeLogged, Alerts: alerts}
}

func (e *Engine) fail(err error) {
	e.fatalOnce.Do(func() {
		slog.Error("fatal worker error", "err", err)
		e.fatal <- err
	})
}

// Shutdown stops accepting work and waits for queued connections to finish.
func (e *Engine) Shutdown() {
	e.pool.Drain()
}
