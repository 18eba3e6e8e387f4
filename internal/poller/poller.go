package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazz-dev/hostwatch/internal/config"
	"github.com/hazz-dev/hostwatch/internal/probe"
	"github.com/hazz-dev/hostwatch/internal/status"
	"github.com/hazz-dev/hostwatch/internal/storage"
)

// DefaultInterval is the pause between the end of one round and the start of the next.
const DefaultInterval = 30 * time.Second

// ErrRunning is returned by Start when the poller is already running.
var ErrRunning = errors.New("poller already running")

// Notifier delivers a transition to the chat channel.
type Notifier interface {
	Send(ctx context.Context, n status.Notification) error
}

// Journal records transitions and their delivery outcome.
type Journal interface {
	RecordTransition(ctx context.Context, t storage.Transition) error
}

// Options tune the poll loop.
type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	Workers  int
}

// Report summarises one poll round.
type Report struct {
	StartedAt     time.Time
	Results       []probe.Result
	Notifications []status.Notification
	// Failed lists hosts whose evaluation errored this round.
	Failed []int
	// Err is set when the round as a whole was abandoned.
	Err error
}

// Poller probes every host once per round, feeds outcomes through the
// detector and notifies on transitions. Only one round is ever in flight.
type Poller struct {
	hosts    []config.Host
	prober   probe.Prober
	detector *status.Detector
	notifier Notifier
	journal  Journal
	interval time.Duration
	timeout  time.Duration
	workers  int
	onRound  func(Report)
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a new Poller. Pass nil logger to use the default logger.
func New(hosts []config.Host, prober probe.Prober, detector *status.Detector, notifier Notifier, opts Options, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &Poller{
		hosts:    hosts,
		prober:   prober,
		detector: detector,
		notifier: notifier,
		interval: opts.Interval,
		timeout:  opts.Timeout,
		workers:  opts.Workers,
		logger:   logger,
	}
}

// SetJournal sets where transitions are recorded. Optional.
func (p *Poller) SetJournal(j Journal) {
	p.journal = j
}

// SetOnRound sets a callback invoked after every round of the running loop.
func (p *Poller) SetOnRound(fn func(Report)) {
	p.onRound = fn
}

// Start runs the first round immediately and then one round per interval
// until ctx is cancelled or Stop is called. It is non-blocking.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done != nil {
		select {
		case <-p.done:
		default:
			return ErrRunning
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx, p.done)
	return nil
}

// Stop cancels the loop and waits for the in-flight round to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()
	p.Wait()
}

// Wait blocks until the loop has exited.
func (p *Poller) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for ctx.Err() == nil {
		report := p.RunRound(ctx)
		if p.onRound != nil {
			p.onRound(report)
		}

		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// RunRound probes all hosts, evaluates each result and sends notifications.
// It never panics; failures are logged and reported in the Report.
func (p *Poller) RunRound(ctx context.Context) (report Report) {
	report.StartedAt = time.Now()
	defer func() {
		if r := recover(); r != nil {
			report.Err = fmt.Errorf("poll round panicked: %v", r)
			p.logger.Error("poll round failed", "error", report.Err)
		}
	}()

	report.Results = p.probeAll(ctx)

	// Probes cut short by shutdown look like outages; don't record them.
	if err := ctx.Err(); err != nil {
		report.Err = err
		return report
	}

	for _, res := range report.Results {
		n, changed, err := p.evaluate(ctx, res)
		if err != nil {
			p.logger.Error("evaluating host", "host", res.Host, "address", res.Address, "error", err)
			report.Failed = append(report.Failed, res.Host)
			continue
		}
		if changed {
			report.Notifications = append(report.Notifications, n)
		}
	}

	p.logger.Debug("poll round complete",
		"hosts", len(report.Results),
		"transitions", len(report.Notifications),
		"duration", time.Since(report.StartedAt),
	)
	return report
}

func (p *Poller) probeAll(ctx context.Context) []probe.Result {
	results := make([]probe.Result, len(p.hosts))
	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup

	for i, h := range p.hosts {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = p.probeHost(ctx, i, h.Address)
		}()
	}
	wg.Wait()
	return results
}

func (p *Poller) probeHost(ctx context.Context, host int, address string) (result probe.Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = probe.Result{
				Outcome:   probe.Unreachable,
				Error:     fmt.Sprintf("probe panicked: %v", r),
				CheckedAt: start,
			}
		}
		result.Host = host
		result.Address = address
		if result.Outcome != probe.Reachable {
			result.Outcome = probe.Unreachable
		}
		p.logger.Debug("probe result",
			"host", host,
			"address", address,
			"status", result.Outcome,
			"rtt", result.RTT,
			"error", result.Error,
		)
	}()

	return p.prober.Probe(ctx, address, p.timeout)
}

func (p *Poller) evaluate(ctx context.Context, res probe.Result) (n status.Notification, changed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("host %d: evaluation panicked: %v", res.Host, r)
		}
	}()

	changed, n, err = p.detector.Evaluate(res.Host, res.Outcome)
	if err != nil || !changed {
		return n, changed, err
	}

	p.logger.Info("host status changed", "host", res.Host, "address", res.Address, "status", res.Outcome)
	p.deliver(ctx, res, n)
	return n, true, nil
}

// deliver notifies and journals n. The stored status is already updated and
// stays updated whether or not delivery succeeds.
func (p *Poller) deliver(ctx context.Context, res probe.Result, n status.Notification) {
	sendErr := p.send(ctx, n)

	if p.journal == nil {
		return
	}
	t := storage.Transition{
		Host:       n.Host,
		Address:    res.Address,
		Status:     string(n.Outcome),
		Delivered:  sendErr == nil,
		NotifiedAt: n.Timestamp,
	}
	if sendErr != nil {
		t.Error = sendErr.Error()
	}
	if err := p.journal.RecordTransition(ctx, t); err != nil {
		p.logger.Warn("recording transition", "host", n.Host, "error", err)
	}
}

func (p *Poller) send(ctx context.Context, n status.Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panicked: %v", r)
			p.logger.Error("sending notification", "host", n.Host, "error", err)
		}
	}()
	return p.notifier.Send(ctx, n)
}
