package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/src-d/go-git.v4/plumbing/filemode"

	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/twigerr"
)

func newCatFileCmd() *cobra.Command {
	var showType, showSize, pretty bool

	cmd := &cobra.Command{
		Use:   "cat-file (-t | -s | -p) <object>",
		Short: "Show the kind, size, or contents of an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := 0
			for _, set := range []bool{showType, showSize, pretty} {
				if set {
					n++
				}
			}
			if n != 1 {
				return twigerr.Errorf(twigerr.ErrInvalidArgument, "cat-file: exactly one of -t, -s or -p is required")
			}

			r, err := openRepo()
			if err != nil {
				return err
			}
			h, err := r.FindObject(args[0], "", false)
			if err != nil {
				return err
			}
			kind, payload, err := r.Store.Read(h)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case showType:
				fmt.Fprintln(out, kind)
			case showSize:
				fmt.Fprintln(out, len(payload))
			case kind == object.KindTree:
				tree, err := object.UnmarshalTree(r.Format(), payload)
				if err != nil {
					return err
				}
				for _, e := range tree.Entries {
					fmt.Fprintf(out, "%s %s %s\t%s\n", modeColumn(e.Mode), treeEntryKind(e), e.Hash, e.Name)
				}
			default:
				// Blobs, commits and tags are text as stored.
				_, err = out.Write(payload)
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&showType, "type", "t", false, "print the object kind")
	cmd.Flags().BoolVarP(&showSize, "size", "s", false, "print the payload size in bytes")
	cmd.Flags().BoolVarP(&pretty, "pretty", "p", false, "print the object contents")

	return cmd
}

func treeEntryKind(e object.TreeEntry) object.Kind {
	switch {
	case e.IsDir():
		return object.KindTree
	case e.Mode == filemode.Submodule:
		return object.KindCommit
	}
	return object.KindBlob
}

// modeColumn renders m as the six-digit octal column git prints.
func modeColumn(m filemode.FileMode) string {
	s := object.FormatMode(m)
	if len(s) < 6 {
		s = strings.Repeat("0", 6-len(s)) + s
	}
	return s
}
