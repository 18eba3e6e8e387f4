package status

import (
	"fmt"
	"time"

	"github.com/hazz-dev/hostwatch/internal/probe"
)

// Notification describes a single state transition of one host.
type Notification struct {
	Timestamp time.Time
	Host      int
	Outcome   probe.Outcome
}

// Detector compares fresh outcomes against the Store.
// Evaluate must not be called concurrently for the same host.
type Detector struct {
	store *Store
	now   func() time.Time
}

// NewDetector creates a Detector over store. Pass nil now to use time.Now.
func NewDetector(store *Store, now func() time.Time) *Detector {
	if now == nil {
		now = time.Now
	}
	return &Detector{store: store, now: now}
}

// Evaluate reports whether fresh differs from the stored outcome for host.
// On a change it stores fresh and returns the Notification to deliver;
// the store is updated regardless of whether delivery later succeeds.
func (d *Detector) Evaluate(host int, fresh probe.Outcome) (bool, Notification, error) {
	if fresh != probe.Reachable && fresh != probe.Unreachable {
		return false, Notification{}, fmt.Errorf("host %d: %w %q", host, ErrInvalidOutcome, fresh)
	}

	prev, err := d.store.Get(host)
	if err != nil {
		return false, Notification{}, err
	}
	if prev == fresh {
		return false, Notification{}, nil
	}

	if err := d.store.Set(host, fresh); err != nil {
		return false, Notification{}, err
	}
	return true, Notification{
		Timestamp: d.now(),
		Host:      host,
		Outcome:   fresh,
	}, nil
}
