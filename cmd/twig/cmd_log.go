package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/repo"
)

func newLogCmd() *cobra.Command {
	var oneline bool
	var limit int
	var allParents bool
	var showSignature bool

	cmd := &cobra.Command{
		Use:   "log [revision]",
		Short: "Show commit history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}

			headHash, err := r.ResolveRef("HEAD")
			if err != nil {
				return err
			}
			start := headHash.Hash
			if len(args) == 1 {
				h, err := r.RevParse(args[0])
				if err != nil {
					return err
				}
				if start, err = r.PeelToCommit(h); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if start == "" {
				fmt.Fprintln(out, "no commits yet")
				return nil
			}

			// Determine the current branch name for decoration.
			branchName, _ := r.CurrentBranch()

			n := 0
			for c, err := range r.WalkHistory(start, repo.WalkOptions{FullAncestry: allParents}) {
				if err != nil {
					return err
				}
				decoration := buildDecoration(c.Hash, headHash.Hash, branchName)
				if oneline {
					writeOneline(out, c, decoration)
				} else {
					writeLogEntry(out, c, decoration, showSignature)
				}
				n++
				if limit > 0 && n >= limit {
					break
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&oneline, "oneline", false, "compact one-line format")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of commits to show (0 for all)")
	cmd.Flags().BoolVar(&allParents, "all-parents", false, "follow every parent, newest first, instead of the first-parent chain")
	cmd.Flags().BoolVar(&showSignature, "show-signature", false, "verify and show commit signatures")

	return cmd
}

func writeOneline(out io.Writer, c *repo.HistoryCommit, decoration string) {
	if decoration != "" {
		fmt.Fprintf(out, "%s %s %s\n", c.Hash.Short(), decoration, firstLine(c.Message))
		return
	}
	fmt.Fprintf(out, "%s %s\n", c.Hash.Short(), firstLine(c.Message))
}

func writeLogEntry(out io.Writer, c *repo.HistoryCommit, decoration string, showSignature bool) {
	if decoration != "" {
		fmt.Fprintf(out, "commit %s %s\n", c.Hash, decoration)
	} else {
		fmt.Fprintf(out, "commit %s\n", c.Hash)
	}
	if len(c.Parents) > 1 {
		shorts := make([]string, len(c.Parents))
		for i, p := range c.Parents {
			shorts[i] = p.Short()
		}
		fmt.Fprintf(out, "Merge: %s\n", strings.Join(shorts, " "))
	}
	if showSignature && c.Signature != "" {
		if fp, err := verifyCommitSignature(c.CommitObj); err != nil {
			fmt.Fprintf(out, "Signature: BAD (%v)\n", err)
		} else {
			fmt.Fprintf(out, "Signature: good, key %s\n", fp)
		}
	}
	fmt.Fprintf(out, "Author: %s <%s>\n", c.Author.Name, c.Author.Email)
	fmt.Fprintf(out, "Date:   %s\n", c.Author.When.Format("2006-01-02 15:04:05 -0700"))
	fmt.Fprintln(out)
	for _, line := range strings.Split(strings.TrimRight(c.Message, "\n"), "\n") {
		fmt.Fprintf(out, "    %s\n", line)
	}
	fmt.Fprintln(out)
}

// buildDecoration returns a string like "(HEAD -> main)" if the commit is
// the current HEAD, or "" otherwise.
func buildDecoration(commitHash, headHash object.Hash, branchName string) string {
	if commitHash != headHash {
		return ""
	}
	if branchName != "" {
		return "(HEAD -> " + branchName + ")"
	}
	return "(HEAD)"
}
