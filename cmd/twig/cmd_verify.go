package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	var listUnreachable bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Decode every reachable object and report unreachable ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}

			report, err := r.Verify()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(
				out,
				"ok: verified %d reachable object(s) from %d root(s), %d stored, %d unreachable\n",
				report.Reachable,
				report.Roots,
				report.Loose,
				len(report.Unreachable),
			)
			if listUnreachable {
				for _, h := range report.Unreachable {
					fmt.Fprintf(out, "unreachable %s\n", h)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&listUnreachable, "unreachable", false, "list unreachable object addresses")

	return cmd
}
