package event

import (
	"fmt"
	"time"
)

// Type is the wire code identifying what happened at an ATM.
type Type uint8

const (
	TypeHeartbeat                    Type = 0
	TypeCommunicationOffline         Type = 1
	TypeCommunicationError           Type = 2
	TypeLowCashAlert                 Type = 3
	TypeRunningOutOfNotesInCassette  Type = 4
	TypeEmpty                        Type = 5
	TypeServiceModeEntered           Type = 6
	TypeServiceModeLeft              Type = 7
	TypeDeviceDidNotAnswerAsExpected Type = 8
	TypeProtocolWasCancelled         Type = 9
	TypeLowPaperWarning              Type = 10
	TypePrinterError                 Type = 11
	TypePaperOutCondition            Type = 12
	TypeConnectionFailure            Type = 13

	// TypeUnrecognized is sent for input messages with no matching name.
	// It is never accepted by the collector.
	TypeUnrecognized Type = 255
)

var typeNames = map[Type]string{
	TypeHeartbeat:                    "Heartbeat",
	TypeCommunicationOffline:         "Communication Offline",
	TypeCommunicationError:           "Communication error",
	TypeLowCashAlert:                 "Low Cash alert",
	TypeRunningOutOfNotesInCassette:  "Running Out of notes in cassette",
	TypeEmpty:                        "empty",
	TypeServiceModeEntered:           "Service mode entered",
	TypeServiceModeLeft:              "Service mode left",
	TypeDeviceDidNotAnswerAsExpected: "device did not answer as expected",
	TypeProtocolWasCancelled:         "The protocol was cancelled",
	TypeLowPaperWarning:              "Low Paper warning",
	TypePrinterError:                 "Printer error",
	TypePaperOutCondition:            "Paper-out condition",
	TypeConnectionFailure:            "Connection failure",
}

// byMessage is the reverse of typeNames for reportable kinds. Heartbeats are
// synthesized by the client and cannot be typed in.
var byMessage = func() map[string]Type {
	m := make(map[string]Type, len(typeNames))
	for t, name := range typeNames {
		if t == TypeHeartbeat {
			continue
		}
		m[name] = t
	}
	return m
}()

// Valid reports whether t is a member of the known enumeration.
func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	if t == TypeUnrecognized {
		return "Unrecognized"
	}
	return fmt.Sprintf("Unknown(%d)", uint8(t))
}

// ParseType maps a free-text message onto its event type. The match is
// case-sensitive; anything else yields TypeUnrecognized.
func ParseType(message string) Type {
	if t, ok := byMessage[message]; ok {
		return t
	}
	return TypeUnrecognized
}

// Types returns every valid type in code order.
func Types() []Type {
	out := make([]Type, 0, len(typeNames))
	for t := TypeHeartbeat; t <= TypeConnectionFailure; t++ {
		out = append(out, t)
	}
	return out
}

// Event is one occurrence reported by an ATM. Field order matches the wire.
type Event struct {
	Origin    uint32
	Timestamp uint64 // epoch seconds
	Type      Type
	Serial    uint32
}

// Time returns the event timestamp in local time.
func (e Event) Time() time.Time {
	return time.Unix(int64(e.Timestamp), 0)
}
