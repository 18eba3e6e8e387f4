package probe

import (
	"context"
	"net"
	"time"
)

// tcpProber treats a completed TCP handshake as reachable.
type tcpProber struct{}

func (p *tcpProber) Probe(ctx context.Context, address string, timeout time.Duration) Result {
	start := time.Now()

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return unreachable(address, start, "dial tcp %s: %v", address, err)
	}
	conn.Close()
	return Result{
		Address:   address,
		Outcome:   Reachable,
		RTT:       time.Since(start),
		CheckedAt: start,
	}
}
