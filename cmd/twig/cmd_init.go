package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/odvcencio/twig/pkg/repo"
	"github.com/odvcencio/twig/pkg/twigerr"
)

func newInitCmd() *cobra.Command {
	var objectFormat string
	var compression string

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create an empty twig repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			abs, err := filepath.Abs(path)
			if err != nil {
				return twigerr.Errorf(twigerr.ErrInvalidArgument, "resolve path: %v", err)
			}

			// Ensure the target directory exists.
			if err := os.MkdirAll(abs, 0o755); err != nil {
				return twigerr.Errorf(twigerr.ErrIO, "create directory: %v", err)
			}

			cfg := repo.DefaultConfig()
			if objectFormat != "" {
				cfg.Core.ObjectFormat = objectFormat
			}
			if compression != "" {
				cfg.Core.Compression = compression
			}
			r, err := repo.InitWithConfig(abs, cfg)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "initialized empty twig repository in %s\n", r.Dir+string(filepath.Separator))
			return nil
		},
	}

	cmd.Flags().StringVar(&objectFormat, "object-format", "", "digest algorithm: sha1 or sha256")
	cmd.Flags().StringVar(&compression, "compression", "", "loose object compression: zlib or zstd")

	return cmd
}
