package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLsFilesCmd() *cobra.Command {
	var stage, verbose bool

	cmd := &cobra.Command{
		Use:   "ls-files",
		Short: "List staged files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			idx, err := r.ReadIndex()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range idx.Entries {
				switch {
				case verbose:
					fmt.Fprintf(out, "%s %s %d\t%s\n", modeColumn(e.Mode), e.Hash, e.Stage, e.Path)
					fmt.Fprintf(out, "  ctime: %s\n  mtime: %s\n", e.CTime.UTC().Format("2006-01-02T15:04:05.000000000Z"), e.MTime.UTC().Format("2006-01-02T15:04:05.000000000Z"))
					fmt.Fprintf(out, "  dev: %d  ino: %d  uid: %d  gid: %d  size: %d  assume-valid: %t\n", e.Dev, e.Ino, e.UID, e.GID, e.Size, e.AssumeValid)
				case stage:
					fmt.Fprintf(out, "%s %s %d\t%s\n", modeColumn(e.Mode), e.Hash, e.Stage, e.Path)
				default:
					fmt.Fprintln(out, e.Path)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&stage, "stage", "s", false, "show mode, address and stage number")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "also show cached stat data")

	return cmd
}
