package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kuitang/clinicprobe/internal/config"
	"github.com/kuitang/clinicprobe/internal/errs"
)

// flakyWindow is the number of recent runs compared for the flaky marker.
const flakyWindow = 10

func newHistoryCmd(d deps) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <scenario>",
		Short: "Show recorded runs of a scenario, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return errs.New(errs.InvalidArgument, "--limit must be at least 1")
			}
			cfg, err := loadConfig(config.Flags{NoS3: true, NoEmail: true})
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			name := args[0]
			runs, err := st.History(ctx, name, limit)
			if err != nil {
				return errs.Wrap(errs.Internal, "read history", err)
			}
			if len(runs) == 0 {
				fmt.Fprintf(d.stdout, "no recorded runs of %s\n", name)
				return nil
			}
			flaky, err := st.IsFlaky(ctx, name, flakyWindow)
			if err != nil {
				return errs.Wrap(errs.Internal, "read history", err)
			}

			w := tabwriter.NewWriter(d.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tOUTCOME\tCODE\tDURATION\tRUN\tMESSAGE")
			for _, r := range runs {
				code := string(r.Code)
				if code == "" {
					code = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.StartedAt.Local().Format(time.DateTime), r.Outcome, code,
					r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond), r.RunID, r.Message)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if flaky {
				fmt.Fprintf(d.stdout, "\n%s is flaky: its last %d runs disagree on the outcome\n", name, flakyWindow)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to show")
	return cmd
}
