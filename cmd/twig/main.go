package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/odvcencio/twig/pkg/repo"
	"github.com/odvcencio/twig/pkg/twigerr"
)

var debug bool

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "twig:", err)
		os.Exit(int(twigerr.ExitCodeOf(err)))
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "twig",
		Short:         "A small content-addressed version control system",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "log ref updates and index rewrites to stderr")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newAddCmd())
	root.AddCommand(newRmCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newCommitCmd())
	root.AddCommand(newLogCmd())
	root.AddCommand(newBranchCmd())
	root.AddCommand(newCheckoutCmd())
	root.AddCommand(newTagCmd())
	root.AddCommand(newCatFileCmd())
	root.AddCommand(newHashObjectCmd())
	root.AddCommand(newLsTreeCmd())
	root.AddCommand(newLsFilesCmd())
	root.AddCommand(newShowRefCmd())
	root.AddCommand(newRevParseCmd())
	root.AddCommand(newCheckIgnoreCmd())
	root.AddCommand(newVerifyCmd())
	root.AddCommand(newReflogCmd())
	root.AddCommand(newDiffCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "twig 0.1.0-dev")
		},
	}
}

// openRepo opens the repository containing the working directory and wires
// the per-user settings the core leaves to its caller.
func openRepo() (*repo.Repo, error) {
	r, err := repo.Open(".")
	if err != nil {
		return nil, err
	}
	if debug {
		r.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	if home, err := homedir.Dir(); err == nil {
		r.GlobalIgnoreFile = repo.GlobalIgnorePath(home)
	}
	return r, nil
}

// absPaths makes command-line paths absolute so they are read relative to
// the working directory rather than the repository root.
func absPaths(args []string) ([]string, error) {
	out := make([]string, len(args))
	for i, a := range args {
		abs, err := filepath.Abs(a)
		if err != nil {
			return nil, twigerr.Errorf(twigerr.ErrInvalidArgument, "resolve path %q: %v", a, err)
		}
		out[i] = abs
	}
	return out, nil
}

func branchLabel(r *repo.Repo) string {
	branch, err := r.CurrentBranch()
	if err != nil || branch == "" {
		return "HEAD"
	}
	return branch
}
