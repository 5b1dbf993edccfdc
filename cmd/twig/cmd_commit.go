package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/twig/pkg/repo"
	"github.com/odvcencio/twig/pkg/twigerr"
)

func newCommitCmd() *cobra.Command {
	var message string
	var author string
	var sign bool
	var signingKey string

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Record the staged snapshot on the current branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				return twigerr.Errorf(twigerr.ErrInvalidArgument, "commit message is required (-m)")
			}

			r, err := openRepo()
			if err != nil {
				return err
			}

			who, err := resolveIdentity(r, author)
			if err != nil {
				return err
			}

			var signer repo.CommitSigner
			if sign || signingKey != "" {
				s, keyPath, err := newSSHCommitSigner(signingKey)
				if err != nil {
					return err
				}
				if r.Logger != nil {
					r.Logger.Debug("signing commit", "key", keyPath)
				}
				signer = s
			}

			if message[len(message)-1] != '\n' {
				message += "\n"
			}
			h, err := r.CommitWithSigner(message, who, who, signer)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", branchLabel(r), h.Short(), firstLine(message))
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().StringVar(&author, "author", "", `override identity, "Name <email>"`)
	cmd.Flags().BoolVarP(&sign, "sign", "S", false, "sign the commit with an SSH key")
	cmd.Flags().StringVar(&signingKey, "signing-key", "", "SSH private key to sign with (implies --sign)")

	return cmd
}

func firstLine(msg string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(msg), "\n")
	return line
}
