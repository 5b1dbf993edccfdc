package main

import (
	"fmt"
	"io"
	"path"

	"github.com/spf13/cobra"

	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/repo"
)

func newLsTreeCmd() *cobra.Command {
	var recursive, nameOnly bool

	cmd := &cobra.Command{
		Use:   "ls-tree [-r] <tree-ish>",
		Short: "List the contents of a tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			h, err := r.FindObject(args[0], object.KindTree, true)
			if err != nil {
				return err
			}
			return listTree(cmd.OutOrStdout(), r, h, "", recursive, nameOnly)
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "descend into subtrees")
	cmd.Flags().BoolVar(&nameOnly, "name-only", false, "print paths only")

	return cmd
}

func listTree(out io.Writer, r *repo.Repo, h object.Hash, prefix string, recursive, nameOnly bool) error {
	tree, err := r.Store.ReadTree(h)
	if err != nil {
		return err
	}
	for _, e := range tree.Entries {
		p := path.Join(prefix, e.Name)
		if recursive && e.IsDir() {
			if err := listTree(out, r, e.Hash, p, recursive, nameOnly); err != nil {
				return err
			}
			continue
		}
		if nameOnly {
			fmt.Fprintln(out, p)
			continue
		}
		fmt.Fprintf(out, "%s %s %s\t%s\n", modeColumn(e.Mode), treeEntryKind(e), e.Hash, p)
	}
	return nil
}
