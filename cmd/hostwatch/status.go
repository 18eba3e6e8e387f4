package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/hostwatch/internal/notify"
	"github.com/hazz-dev/hostwatch/internal/probe"
	"github.com/hazz-dev/hostwatch/internal/storage"
)

type statusStore interface {
	AllLatest(ctx context.Context) ([]storage.Transition, error)
}

func executeStatus(cmd *cobra.Command, db statusStore) error {
	out := cmd.OutOrStdout()
	ts, err := db.AllLatest(context.Background())
	if err != nil {
		return fmt.Errorf("querying status: %w", err)
	}

	if len(ts) == 0 {
		fmt.Fprintln(out, "No transitions recorded. Run 'hostwatch serve' first.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "HOST\tADDRESS\tSTATUS\tSINCE\tDELIVERED\tERROR")
	for _, t := range ts {
		delivered := "yes"
		if !t.Delivered {
			delivered = "no"
		}
		fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\t%s\t%s\n",
			notify.Label(t.Host),
			t.Address,
			probe.Outcome(t.Status).Glyph(),
			t.Status,
			t.NotifiedAt.Local().Format("02.01.2006 15:04:05"),
			delivered,
			t.Error,
		)
	}
	w.Flush()
	return nil
}
