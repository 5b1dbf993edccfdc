package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/twigerr"
)

func newHashObjectCmd() *cobra.Command {
	var write, stdin bool
	var kindName string

	cmd := &cobra.Command{
		Use:   "hash-object [-w] [-t kind] (--stdin | <file>...)",
		Short: "Compute object addresses, optionally storing the objects",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := object.ParseKind(kindName)
			if !ok {
				return twigerr.Errorf(twigerr.ErrInvalidArgument, "hash-object: unknown object kind %q", kindName)
			}
			if stdin == (len(args) > 0) {
				return twigerr.Errorf(twigerr.ErrInvalidArgument, "hash-object: give either --stdin or file arguments")
			}

			r, err := openRepo()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if stdin {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return twigerr.Errorf(twigerr.ErrIO, "hash-object: read stdin: %v", err)
				}
				h, err := r.HashObject(kind, data, write)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, h)
				return nil
			}

			for _, p := range args {
				data, err := os.ReadFile(p)
				if err != nil {
					return twigerr.Errorf(twigerr.ErrIO, "hash-object: %v", err)
				}
				h, err := r.HashObject(kind, data, write)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, h)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "store the object")
	cmd.Flags().StringVarP(&kindName, "type", "t", string(object.KindBlob), "object kind")
	cmd.Flags().BoolVar(&stdin, "stdin", false, "read the payload from standard input")

	return cmd
}
