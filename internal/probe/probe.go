package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/hazz-dev/hostwatch/internal/config"
)

// Prober performs a single bounded reachability check.
// Implementations never fail: every error path yields Unreachable.
type Prober interface {
	Probe(ctx context.Context, address string, timeout time.Duration) Result
}

// New returns the Prober for the configured probe method.
func New(cfg config.ProbeConfig) (Prober, error) {
	switch cfg.Method {
	case "ping":
		return newPingProber(cfg), nil
	case "tcp":
		return &tcpProber{}, nil
	default:
		return nil, fmt.Errorf("unknown probe method %q", cfg.Method)
	}
}

func unreachable(address string, start time.Time, format string, args ...any) Result {
	return Result{
		Address:   address,
		Outcome:   Unreachable,
		RTT:       time.Since(start),
		Error:     fmt.Sprintf(format, args...),
		CheckedAt: start,
	}
}
