package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/twig/pkg/repo"
)

func newStatusCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show working tree status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}

			entries, err := r.Status()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if short {
				for _, e := range entries {
					if e.IndexStatus == repo.StatusClean && e.WorkStatus == repo.StatusClean {
						continue
					}
					name := e.Path
					if e.RenamedFrom != "" {
						name = e.RenamedFrom + " -> " + e.Path
					}
					fmt.Fprintf(out, "%s%s %s\n", e.IndexStatus.Code(), e.WorkStatus.Code(), name)
				}
				return nil
			}

			head, err := r.ResolveRef("HEAD")
			if err != nil {
				return err
			}
			branch, _ := r.CurrentBranch()
			switch {
			case branch == "":
				fmt.Fprintf(out, "HEAD detached at %s\n", head.Hash.Short())
			case head.Hash == "":
				fmt.Fprintf(out, "on %s (no commits yet)\n", branch)
			default:
				fmt.Fprintf(out, "on %s\n", branch)
			}

			// Categorize entries.
			var staged, unstaged, untracked []string

			for _, e := range entries {
				// Staged: changes in index relative to HEAD.
				switch e.IndexStatus {
				case repo.StatusNew:
					staged = append(staged, fmt.Sprintf("  + %s", e.Path))
				case repo.StatusModified:
					staged = append(staged, fmt.Sprintf("  ~ %s", e.Path))
				case repo.StatusRenamed:
					staged = append(staged, fmt.Sprintf("  R %s -> %s", e.RenamedFrom, e.Path))
				case repo.StatusDeleted:
					staged = append(staged, fmt.Sprintf("  - %s", e.Path))
				}

				// Unstaged: changes in working tree relative to index.
				switch e.WorkStatus {
				case repo.StatusModified:
					unstaged = append(unstaged, fmt.Sprintf("  ~ %s", e.Path))
				case repo.StatusRenamed:
					unstaged = append(unstaged, fmt.Sprintf("  R %s -> %s", e.RenamedFrom, e.Path))
				case repo.StatusDeleted:
					unstaged = append(unstaged, fmt.Sprintf("  - %s", e.Path))
				}

				// Untracked: not in the index at all.
				if e.WorkStatus == repo.StatusUntracked {
					untracked = append(untracked, fmt.Sprintf("  %s", e.Path))
				}
			}

			printSection(cmd, "staged:", staged)
			printSection(cmd, "unstaged:", unstaged)
			printSection(cmd, "untracked:", untracked)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "two-letter status codes, one path per line")

	return cmd
}

func printSection(cmd *cobra.Command, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, title)
	for _, s := range lines {
		fmt.Fprintln(out, s)
	}
}
