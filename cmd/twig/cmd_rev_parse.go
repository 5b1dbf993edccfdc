package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRevParseCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "rev-parse <revision>...",
		Short: "Resolve revisions to object addresses",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			for _, rev := range args {
				h, err := r.RevParse(rev)
				if err != nil {
					return err
				}
				if short {
					fmt.Fprintln(cmd.OutOrStdout(), h.Short())
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), h)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "print abbreviated addresses")

	return cmd
}
