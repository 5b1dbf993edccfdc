package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newShowRefCmd() *cobra.Command {
	var head bool

	cmd := &cobra.Command{
		Use:   "show-ref",
		Short: "List references with the objects they name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if head {
				resolved, err := r.ResolveRef("HEAD")
				if err != nil {
					return err
				}
				if resolved.Hash != "" {
					fmt.Fprintf(out, "%s HEAD\n", resolved.Hash)
				}
			}

			refs, err := r.ShowRefs()
			if err != nil {
				return err
			}
			for _, ref := range refs {
				fmt.Fprintf(out, "%s %s\n", ref.Hash, ref.Name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&head, "head", false, "also show HEAD")

	return cmd
}
