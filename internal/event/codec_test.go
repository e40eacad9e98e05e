package event_test

import (
	"bytes"
	"errors"
	"io"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/gyaneshwarpardhi/atmsvr/internal/event"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ev := event.Event{
			Origin:    rapid.Uint32().Draw(rt, "origin"),
			Timestamp: rapid.Uint64().Draw(rt, "timestamp"),
			Type:      event.Type(rapid.Uint8().Draw(rt, "type")),
			Serial:    rapid.Uint32().Draw(rt, "serial"),
		}

		var buf bytes.Buffer
		if err := event.Encode(&buf, ev); err != nil {
			rt.Fatalf("encode: %v", err)
		}
		if buf.Len() != event.Size {
			rt.Fatalf("encoded %d bytes, want %d", buf.Len(), event.Size)
		}

		got, err := event.Decode(&buf)
		if err != nil {
			rt.Fatalf("decode: %v", err)
		}
		if got != ev {
			rt.Fatalf("round trip mismatch: got %+v want %+v", got, ev)
		}
	})
}

func TestDecodeCleanEOF(t *testing.T) {
	_, err := event.Decode(bytes.NewReader(nil))
	require.ErrorIs(t, err, io.EOF)
	assert.NotErrorIs(t, err, event.ErrTransport)
}

func TestDecodePartialRecord(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, event.Encode(&buf, event.Event{Origin: 1, Type: event.TypeLowCashAlert}))

	_, err := event.Decode(bytes.NewReader(buf.Bytes()[:9]))
	require.ErrorIs(t, err, event.ErrTransport)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestDecodeSequentialRecords(t *testing.T) {
	var buf bytes.Buffer
	first := event.Event{Origin: 7, Timestamp: 1_700_000_000, Type: event.TypePrinterError, Serial: 11}
	second := event.Event{Origin: 7, Timestamp: 1_700_000_060, Type: event.TypeHeartbeat, Serial: 12}
	require.NoError(t, event.Encode(&buf, first))
	require.NoError(t, event.Encode(&buf, second))

	got, err := event.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, first, got)
	got, err = event.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, second, got)
	_, err = event.Decode(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

// flakyIO interrupts every other call and moves at most chunk bytes.
type flakyIO struct {
	data  bytes.Buffer
	chunk int
	calls int
}

func (f *flakyIO) Write(p []byte) (int, error) {
	f.calls++
	if f.calls%2 == 1 {
		return 0, syscall.EINTR
	}
	if len(p) > f.chunk {
		p = p[:f.chunk]
	}
	return f.data.Write(p)
}

func (f *flakyIO) Read(p []byte) (int, error) {
	f.calls++
	if f.calls%2 == 1 {
		return 0, syscall.EINTR
	}
	if len(p) > f.chunk {
		p = p[:f.chunk]
	}
	return f.data.Read(p)
}

func TestCodecRetriesInterruptedCalls(t *testing.T) {
	f := &flakyIO{chunk: 3}
	ev := event.Event{Origin: 42, Timestamp: 99, Type: event.TypeEmpty, Serial: 5}
	require.NoError(t, event.Encode(f, ev))

	f.calls = 0
	got, err := event.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, syscall.EPIPE }

func TestEncodeWriteFailure(t *testing.T) {
	err := event.Encode(brokenWriter{}, event.Event{})
	require.ErrorIs(t, err, event.ErrTransport)
	assert.True(t, errors.Is(err, syscall.EPIPE))
}
