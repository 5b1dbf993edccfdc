package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/odvcencio/twig/pkg/diff"
	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/repo"
)

func newDiffCmd() *cobra.Command {
	var staged bool
	var context int

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show unstaged changes, or staged ones with --staged",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}

			var changes []repo.FileChange
			if staged {
				changes, err = r.DiffStaged()
			} else {
				changes, err = r.DiffWorktree()
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, c := range changes {
				if err := writeFileChange(out, c, context); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&staged, "staged", false, "compare the index with HEAD")
	cmd.Flags().IntVarP(&context, "unified", "U", diff.DefaultContext, "lines of context around each change")

	return cmd
}

func writeFileChange(out io.Writer, c repo.FileChange, context int) error {
	fmt.Fprintf(out, "diff --twig a/%s b/%s\n", c.Path, c.Path)
	switch {
	case c.Before == nil:
		fmt.Fprintf(out, "new file mode %s\n", object.FormatMode(c.AfterMode))
	case c.After == nil:
		fmt.Fprintf(out, "deleted file mode %s\n", object.FormatMode(c.BeforeMode))
	case c.BeforeMode != c.AfterMode:
		fmt.Fprintf(out, "old mode %s\nnew mode %s\n", object.FormatMode(c.BeforeMode), object.FormatMode(c.AfterMode))
	}
	return diff.Unified(out, c.Path, c.Before, c.After, context)
}
