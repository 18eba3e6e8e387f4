// Package status tracks the last observed outcome of every monitored host
// and decides when an outcome counts as a transition.
package status

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hazz-dev/hostwatch/internal/probe"
)

var (
	// ErrUnknownHost is returned for a host index outside 0..N-1.
	ErrUnknownHost = errors.New("unknown host index")
	// ErrInvalidOutcome is returned when Unknown is offered as a probe outcome.
	ErrInvalidOutcome = errors.New("invalid outcome")
)

// Store holds the last observed outcome per host index. It is sized once
// at construction and every entry starts as probe.Unknown.
//
// The poll loop is the only writer; the lock lets the HTTP API read
// snapshots while a round is running.
type Store struct {
	mu       sync.RWMutex
	outcomes []probe.Outcome
}

// NewStore creates a store for n hosts.
func NewStore(n int) *Store {
	outcomes := make([]probe.Outcome, n)
	for i := range outcomes {
		outcomes[i] = probe.Unknown
	}
	return &Store{outcomes: outcomes}
}

// Len returns the number of hosts the store was sized for.
func (s *Store) Len() int {
	return len(s.outcomes)
}

// Get returns the stored outcome for host.
func (s *Store) Get(host int) (probe.Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if host < 0 || host >= len(s.outcomes) {
		return probe.Unknown, fmt.Errorf("get host %d: %w", host, ErrUnknownHost)
	}
	return s.outcomes[host], nil
}

// Set records o as the outcome for host.
func (s *Store) Set(host int, o probe.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if host < 0 || host >= len(s.outcomes) {
		return fmt.Errorf("set host %d: %w", host, ErrUnknownHost)
	}
	s.outcomes[host] = o
	return nil
}

// Snapshot returns a copy of all stored outcomes indexed by host.
func (s *Store) Snapshot() []probe.Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]probe.Outcome, len(s.outcomes))
	copy(out, s.outcomes)
	return out
}
