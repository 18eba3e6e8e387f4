package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/hostwatch/internal/config"
	"github.com/hazz-dev/hostwatch/internal/notify"
	"github.com/hazz-dev/hostwatch/internal/probe"
)

func executeCheck(cmd *cobra.Command, cfg *config.Config, prober probe.Prober) error {
	return runChecks(cmd.Context(), cmd.OutOrStdout(), cfg, prober)
}

func runChecks(ctx context.Context, out io.Writer, cfg *config.Config, prober probe.Prober) error {
	if ctx == nil {
		ctx = context.Background()
	}

	results := make([]probe.Result, len(cfg.Hosts))
	var wg sync.WaitGroup

	for i, h := range cfg.Hosts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = prober.Probe(ctx, h.Address, cfg.Probe.Timeout.Duration)
		}()
	}
	wg.Wait()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "HOST\tADDRESS\tSTATUS\tRTT\tERROR")
	allUp := true
	for i, r := range results {
		rtt := "-"
		if r.Outcome == probe.Reachable && r.RTT > 0 {
			rtt = r.RTT.Round(time.Microsecond).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\t%s\n",
			notify.Label(i),
			cfg.Hosts[i].Address,
			r.Outcome.Glyph(),
			r.Outcome,
			rtt,
			r.Error,
		)
		if r.Outcome != probe.Reachable {
			allUp = false
		}
	}
	w.Flush()

	if !allUp {
		return fmt.Errorf("one or more hosts are unreachable")
	}
	return nil
}
