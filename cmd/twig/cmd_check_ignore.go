package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/odvcencio/twig/pkg/twigerr"
)

func newCheckIgnoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-ignore <path>...",
		Short: "Print the given paths that ignore rules exclude",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			ic, err := r.NewIgnoreChecker(r.GlobalIgnoreFile)
			if err != nil {
				return err
			}

			abs, err := absPaths(args)
			if err != nil {
				return err
			}
			matched := 0
			for i, p := range abs {
				rel, err := r.RelPath(p)
				if err != nil {
					return err
				}
				info, statErr := os.Lstat(p)
				isDir := statErr == nil && info.IsDir()
				if ic.IsIgnored(rel, isDir) {
					fmt.Fprintln(cmd.OutOrStdout(), args[i])
					matched++
				}
			}
			if matched == 0 {
				return twigerr.Errorf(twigerr.ErrInvalidArgument, "check-ignore: no path is ignored")
			}
			return nil
		},
	}
}
