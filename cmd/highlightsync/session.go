package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"highlightsync/internal/errs"
	"highlightsync/internal/session"
)

func newSessionCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect the saved browser session",
	}
	check := &cobra.Command{
		Use:   "check [path]",
		Short: "Report whether the storage state file is still usable",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.cfg.AuthStateFile
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return errs.WrapFatal(errors.New("no path given and AUTH_STATE_FILE is unset"), "session check")
			}
			now := time.Now()
			st, err := session.Load(path)
			if err == nil {
				err = st.Validate(now)
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if exp, ok := st.EarliestExpiry(); ok {
				fmt.Fprintf(out, "session usable, earliest cookie expires %s (in %s)\n",
					exp.Format(time.RFC3339), exp.Sub(now).Round(time.Minute))
				return nil
			}
			fmt.Fprintln(out, "session usable, session cookies only")
			return nil
		},
	}
	cmd.AddCommand(check)
	return cmd
}
