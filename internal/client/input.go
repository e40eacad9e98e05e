package client

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gyaneshwarpardhi/atmsvr/internal/event"
)

// ErrDataFormat is returned for an input line that does not have the
// expected shape.
var ErrDataFormat = errors.New("malformed input line")

// Years accepted in structured records. Earlier dates do not fit the
// unsigned wire timestamp.
const (
	minYear = 1970
	maxYear = 9999
)

// Record is one parsed input line.
type Record struct {
	When    time.Time
	Serial  uint32
	Message string
}

// ParseRecord parses "month:day:year:hour:minute:serial <message>". The
// time is interpreted in loc; the message is everything after the first run
// of blanks and may itself contain spaces.
func ParseRecord(line string, loc *time.Location) (Record, error) {
	line = strings.TrimRight(line, "\r")
	head, message, ok := cutSpace(line)
	if !ok || message == "" {
		return Record{}, fmt.Errorf("%w: %q: missing message", ErrDataFormat, line)
	}

	fields := strings.Split(head, ":")
	if len(fields) != 6 {
		return Record{}, fmt.Errorf("%w: %q: want month:day:year:hour:minute:serial", ErrDataFormat, line)
	}
	var n [6]int
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return Record{}, fmt.Errorf("%w: %q: field %d: %w", ErrDataFormat, line, i+1, err)
		}
		n[i] = v
	}
	month, day, year, hour, minute, serial := n[0], n[1], n[2], n[3], n[4], n[5]
	if month < 1 || month > 12 || day < 1 || day > 31 || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Record{}, fmt.Errorf("%w: %q: date or time out of range", ErrDataFormat, line)
	}
	if year < minYear || year > maxYear {
		return Record{}, fmt.Errorf("%w: %q: year must be between %d and %d", ErrDataFormat, line, minYear, maxYear)
	}
	if serial < 0 || int64(serial) > int64(^uint32(0)) {
		return Record{}, fmt.Errorf("%w: %q: serial out of range", ErrDataFormat, line)
	}

	when := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
	if when.Unix() < 0 {
		return Record{}, fmt.Errorf("%w: %q: time before the Unix epoch", ErrDataFormat, line)
	}
	return Record{
		When:    when,
		Serial:  uint32(serial),
		Message: message,
	}, nil
}

// cutSpace splits line at its first run of blanks.
func cutSpace(line string) (head, rest string, ok bool) {
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return line, "", false
	}
	return line[:i], strings.TrimLeft(line[i:], " \t"), true
}

// Event builds the wire event for r on behalf of origin.
func (r Record) Event(origin uint32) event.Event {
	return event.Event{
		Origin:    origin,
		Timestamp: uint64(r.When.Unix()),
		Type:      event.ParseType(r.Message),
		Serial:    r.Serial,
	}
}
