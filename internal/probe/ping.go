package probe

import (
	"context"
	"errors"
	"math"
	"regexp"
	"runtime"
	"strconv"
	"time"

	"github.com/hazz-dev/hostwatch/internal/config"
)

// CommandExecutor abstracts os/exec for testability.
type CommandExecutor interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type pingProber struct {
	count    int
	wait     time.Duration
	executor CommandExecutor
}

func newPingProber(cfg config.ProbeConfig) *pingProber {
	return &pingProber{count: cfg.Count, wait: cfg.Wait.Duration, executor: &osExecutor{}}
}

// NewPingProberWithExecutor creates a ping prober with a custom executor (for testing).
func NewPingProberWithExecutor(cfg config.ProbeConfig, exec CommandExecutor) Prober {
	return &pingProber{count: cfg.Count, wait: cfg.Wait.Duration, executor: exec}
}

// avgRegex matches the summary line on Linux ("rtt min/avg/max/mdev = ...")
// and darwin ("round-trip min/avg/max/stddev = ...").
var avgRegex = regexp.MustCompile(`(?:rtt|round-trip)[^=]*=\s*[\d.]+/([\d.]+)/`)

func (p *pingProber) Probe(ctx context.Context, address string, timeout time.Duration) Result {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout, _, err := p.executor.Run(ctx, "ping", p.args(address)...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return unreachable(address, start, "ping %s: timed out after %s", address, timeout)
		}
		return unreachable(address, start, "ping %s: %v", address, err)
	}

	result := Result{
		Address:   address,
		Outcome:   Reachable,
		RTT:       time.Since(start),
		CheckedAt: start,
	}
	if m := avgRegex.FindSubmatch(stdout); m != nil {
		if ms, err := strconv.ParseFloat(string(m[1]), 64); err == nil {
			result.RTT = time.Duration(ms * float64(time.Millisecond))
		}
	}
	return result
}

func (p *pingProber) args(address string) []string {
	waitSec := int(math.Ceil(p.wait.Seconds()))
	if waitSec < 1 {
		waitSec = 1
	}
	count := strconv.Itoa(max(p.count, 1))
	if runtime.GOOS == "darwin" {
		return []string{"-c", count, "-t", strconv.Itoa(waitSec), address}
	}
	return []string{"-c", count, "-W", strconv.Itoa(waitSec), address}
}
