package event

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"syscall"
)

// Size is the encoded length of one Event: 4 + 8 + 1 + 4 bytes.
const Size = 17

// ErrTransport marks any read or write failure other than a clean end of
// stream at a record boundary.
var ErrTransport = errors.New("transport error")

// Encode writes ev in field order using the host's native byte order.
// There is no framing: the peer must run on a compatible architecture.
func Encode(w io.Writer, ev Event) error {
	var buf [Size]byte
	binary.NativeEndian.PutUint32(buf[0:4], ev.Origin)
	binary.NativeEndian.PutUint64(buf[4:12], ev.Timestamp)
	buf[12] = byte(ev.Type)
	binary.NativeEndian.PutUint32(buf[13:17], ev.Serial)
	return WriteFull(w, buf[:])
}

// Decode reads exactly one Event. It returns io.EOF, unwrapped, only when the
// stream ends before the first byte of a record.
func Decode(r io.Reader) (Event, error) {
	var buf [Size]byte
	if err := ReadFull(r, buf[:]); err != nil {
		return Event{}, err
	}
	return Event{
		Origin:    binary.NativeEndian.Uint32(buf[0:4]),
		Timestamp: binary.NativeEndian.Uint64(buf[4:12]),
		Type:      Type(buf[12]),
		Serial:    binary.NativeEndian.Uint32(buf[13:17]),
	}, nil
}

// WriteFull writes all of buf, retrying writes interrupted by a signal.
func WriteFull(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		buf = buf[n:]
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return fmt.Errorf("%w: write: %w", ErrTransport, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: write: %w", ErrTransport, io.ErrShortWrite)
		}
	}
	return nil
}

// ReadFull fills buf, retrying reads interrupted by a signal. End of stream
// with nothing read yields io.EOF; anywhere else it is a transport error.
func ReadFull(r io.Reader, buf []byte) error {
	read := 0
	for read < len(buf) {
		n, err := r.Read(buf[read:])
		read += n
		if err == nil {
			continue
		}
		if errors.Is(err, syscall.EINTR) {
			continue
		}
		if err == io.EOF {
			if read == len(buf) {
				return nil
			}
			if read == 0 {
				return io.EOF
			}
			return fmt.Errorf("%w: read %d of %d bytes: %w", ErrTransport, read, len(buf), io.ErrUnexpectedEOF)
		}
		return fmt.Errorf("%w: read: %w", ErrTransport, err)
	}
	return nil
}
