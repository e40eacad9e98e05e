package alert

import "github.com/gyaneshwarpardhi/atmsvr/internal/event"

// Matcher is an immutable set of alertable event types. Configuration
// reloads build a new Matcher rather than mutating one.
type Matcher struct {
	types [256]bool
}

// NewMatcher returns a Matcher for types.
func NewMatcher(types ...event.Type) *Matcher {
	m := &Matcher{}
	for _, t := range types {
		m.types[t] = true
	}
	return m
}

// Matches reports whether t is alertable.
func (m *Matcher) Matches(t event.Type) bool {
	if m == nil {
		return false
	}
	return m.types[t]
}

// Types returns the alertable codes in ascending order.
func (m *Matcher) Types() []event.Type {
	var out []event.Type
	if m == nil {
		return out
	}
	for i, on := range m.types {
		if on {
			out = append(out, event.Type(i))
		}
	}
	return out
}

// FromCodes builds a Matcher from validated configuration codes.
func FromCodes(codes []int) *Matcher {
	m := &Matcher{}
	for _, c := range codes {
		if c >= 0 && c < len(m.types) {
			m.types[c] = true
		}
	}
	return m
}
