package client

import (
	"bufio"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/atmsvr/internal/event"
)

// fakeSender records events and the peak number of concurrent sends.
type fakeSender struct {
	hold time.Duration
	err  error

	inFlight atomic.Int32
	peak     atomic.Int32

	mu   sync.Mutex
	sent []event.Event
}

func (f *fakeSender) Send(_ context.Context, ev event.Event) error {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(f.hold)
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.sent = append(f.sent, ev)
	f.mu.Unlock()
	return nil
}

func (f *fakeSender) events() []event.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]event.Event(nil), f.sent...)
}

func TestReadInputSendsEachLine(t *testing.T) {
	s := &fakeSender{}
	d := New(s, Config{Origin: 42, Location: time.UTC})

	in := "3:14:2024:10:30:7 Low Cash alert\n" +
		"3:14:2024:10:31:8 Paper-out condition\n" +
		"3:14:2024:10:32:9 the vault is on fire\n"
	require.NoError(t, d.ReadInput(context.Background(), strings.NewReader(in)))

	got := s.events()
	require.Len(t, got, 3)
	assert.Equal(t, event.Event{
		Origin:    42,
		Timestamp: uint64(time.Date(2024, 3, 14, 10, 30, 0, 0, time.UTC).Unix()),
		Type:      event.TypeLowCashAlert,
		Serial:    7,
	}, got[0])
	assert.Equal(t, event.TypePaperOutCondition, got[1].Type)
	// unknown messages are still transmitted
	assert.Equal(t, event.TypeUnrecognized, got[2].Type)
	assert.Equal(t, uint32(9), got[2].Serial)
}

func TestReadInputEmptyIsSuccess(t *testing.T) {
	s := &fakeSender{}
	d := New(s, Config{Origin: 1})
	assert.NoError(t, d.ReadInput(context.Background(), strings.NewReader("")))
	assert.Empty(t, s.events())
}

func TestReadInputStopsOnMalformedLine(t *testing.T) {
	s := &fakeSender{}
	d := New(s, Config{Origin: 1})
	in := "1:2:2024:3:4:5 empty\nnot a record\n1:2:2024:3:4:6 empty\n"
	err := d.ReadInput(context.Background(), strings.NewReader(in))
	require.ErrorIs(t, err, ErrDataFormat)
	assert.Len(t, s.events(), 1)
}

func TestReadInputOverlongLineIsDataFormat(t *testing.T) {
	s := &fakeSender{}
	d := New(s, Config{Origin: 1, Freeform: true})
	in := "empty\n" + strings.Repeat("x", bufio.MaxScanTokenSize+1) + "\n"
	err := d.ReadInput(context.Background(), strings.NewReader(in))
	require.ErrorIs(t, err, ErrDataFormat)
	assert.Len(t, s.events(), 1)
}

func TestReadInputFreeform(t *testing.T) {
	s := &fakeSender{}
	d := New(s, Config{Origin: 5, Freeform: true})
	fixed := time.Unix(1_700_000_000, 0)
	d.now = func() time.Time { return fixed }

	require.NoError(t, d.ReadInput(context.Background(), strings.NewReader("Printer error\nwhatever\n")))
	got := s.events()
	require.Len(t, got, 2)
	assert.Equal(t, event.TypePrinterError, got[0].Type)
	assert.Equal(t, uint64(fixed.Unix()), got[0].Timestamp)
	assert.Equal(t, event.TypeUnrecognized, got[1].Type)
}

func TestSendErrorAbortsReader(t *testing.T) {
	boom := errors.New("no route")
	d := New(&fakeSender{err: boom}, Config{Origin: 1})
	err := d.ReadInput(context.Background(), strings.NewReader("1:2:2024:3:4:5 empty\n"))
	assert.ErrorIs(t, err, boom)
}

func TestHeartbeatEvents(t *testing.T) {
	s := &fakeSender{}
	d := New(s, Config{Origin: 77, HeartbeatInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Heartbeat(ctx) }()

	require.Eventually(t, func() bool { return len(s.events()) >= 3 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	for _, ev := range s.events() {
		assert.Equal(t, event.TypeHeartbeat, ev.Type)
		assert.Equal(t, uint32(77), ev.Origin)
		assert.NotZero(t, ev.Timestamp)
	}
}

// Heartbeats and input lines race for the sender; the dispatcher lock must
// keep at most one send in flight.
func TestSendsAreMutuallyExclusive(t *testing.T) {
	s := &fakeSender{hold: 2 * time.Millisecond}
	d := New(s, Config{Origin: 3, HeartbeatInterval: time.Millisecond})

	var in strings.Builder
	for range 40 {
		in.WriteString("6:1:2024:12:0:1 Service mode entered\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, d.Run(ctx, strings.NewReader(in.String())))

	assert.Equal(t, int32(1), s.peak.Load())
	var heartbeats, reported int
	for _, ev := range s.events() {
		if ev.Type == event.TypeHeartbeat {
			heartbeats++
		} else {
			reported++
		}
	}
	assert.Equal(t, 40, reported)
	assert.Positive(t, heartbeats)
}

// failAfter lets the first n sends through and fails the rest.
type failAfter struct {
	n   atomic.Int32
	err error
}

func (f *failAfter) Send(context.Context, event.Event) error {
	if f.n.Add(-1) < 0 {
		return f.err
	}
	return nil
}

func TestRunReportsHeartbeatFailure(t *testing.T) {
	boom := errors.New("collector unreachable")
	d := New(&failAfter{err: boom}, Config{Origin: 1, HeartbeatInterval: time.Hour})

	// The reader blocks forever on an input that never ends.
	blocked := blockingReader{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	err := d.Run(ctx, blocked)
	assert.ErrorIs(t, err, boom)
}

type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) { select {} }

func TestNewAssignsOrigin(t *testing.T) {
	d := New(&fakeSender{}, Config{})
	assert.NotZero(t, d.Origin())
}

func TestRunStopsOnCancel(t *testing.T) {
	d := New(&fakeSender{}, Config{Origin: 1, HeartbeatInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, blockingReader{}) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
