package alert

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps channel names to their notifiers.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{notifiers: make(map[string]Notifier)}
}

// Register adds a notifier. Panics on a duplicate channel to surface misconfiguration early.
func (r *Registry) Register(n Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.notifiers[n.Channel()]; exists {
		panic(fmt.Sprintf("alert registry: duplicate channel %q", n.Channel()))
	}
	r.notifiers[n.Channel()] = n
}

// Get returns the notifier for the given channel.
func (r *Registry) Get(channel string) (Notifier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.notifiers[channel]
	if !ok {
		return nil, fmt.Errorf("no notifier registered for channel %q", channel)
	}
	return n, nil
}

// Resolve returns the notifiers for names, in order. Every name must be
// registered.
func (r *Registry) Resolve(names []string) ([]Notifier, error) {
	out := make([]Notifier, 0, len(names))
	for _, name := range names {
		n, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// Channels returns all registered channel names.
func (r *Registry) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.notifiers))
	for k := range r.notifiers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
