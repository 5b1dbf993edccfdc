package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckoutCmd() *cobra.Command {
	var createBranch bool

	cmd := &cobra.Command{
		Use:   "checkout <branch|revision>",
		Short: "Switch branches or detach HEAD at a revision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := args[0]

			r, err := openRepo()
			if err != nil {
				return err
			}

			if createBranch {
				head, err := resolveCommit(r, "HEAD")
				if err != nil {
					return err
				}
				if err := r.CreateBranch(target, head); err != nil {
					return err
				}
			}

			if err := r.Checkout(target); err != nil {
				return err
			}

			branch, _ := r.CurrentBranch()
			switch {
			case createBranch:
				fmt.Fprintf(cmd.OutOrStdout(), "switched to new branch '%s'\n", target)
			case branch == "":
				fmt.Fprintf(cmd.OutOrStdout(), "HEAD is now detached at %s\n", target)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "switched to branch '%s'\n", branch)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&createBranch, "branch", "b", false, "create and switch to a new branch")

	return cmd
}
