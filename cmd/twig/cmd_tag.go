package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/twig/pkg/twigerr"
)

func newTagCmd() *cobra.Command {
	var deleteTag string
	var force bool
	var showHash bool
	var annotate bool
	var message string

	cmd := &cobra.Command{
		Use:   "tag [name] [target]",
		Short: "List, create, or delete tags",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}

			if strings.TrimSpace(deleteTag) != "" {
				if len(args) > 0 {
					return twigerr.Errorf(twigerr.ErrInvalidArgument, "tag --delete does not accept positional args")
				}
				return r.DeleteTag(deleteTag)
			}

			if len(args) == 0 {
				tags, err := r.ListTagsWithHashes()
				if err != nil {
					return err
				}
				names := make([]string, 0, len(tags))
				for name := range tags {
					names = append(names, name)
				}
				sort.Strings(names)

				for _, name := range names {
					if showHash {
						fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", tags[name], name)
					} else {
						fmt.Fprintln(cmd.OutOrStdout(), name)
					}
				}
				return nil
			}

			name := args[0]
			rev := "HEAD"
			if len(args) == 2 {
				rev = strings.TrimSpace(args[1])
			}
			target, err := r.RevParse(rev)
			if err != nil {
				return err
			}

			if !annotate && message == "" {
				return r.CreateTag(name, target, force)
			}
			tagger, err := resolveIdentity(r, "")
			if err != nil {
				return err
			}
			_, err = r.CreateAnnotatedTag(name, target, tagger, message, force)
			return err
		},
	}

	cmd.Flags().StringVarP(&deleteTag, "delete", "d", "", "delete the named tag")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "replace an existing tag")
	cmd.Flags().BoolVar(&showHash, "show-hash", false, "show tag target hashes when listing")
	cmd.Flags().BoolVarP(&annotate, "annotate", "a", false, "write an annotated tag object (requires -m)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "annotated tag message")

	return cmd
}
