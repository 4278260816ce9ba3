package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Use-Tusk/osgate/internal/dom"
	"github.com/Use-Tusk/osgate/internal/platform"
)

func tagCmd(a *app) *cobra.Command {
	var (
		allowed   string
		className string
		sel       dom.Selector
	)

	cmd := &cobra.Command{
		Use:   "tag --os LIST --class NAME (--id ID | --tag NAME) [FILE]",
		Short: "Add a class to HTML elements on allowed platforms",
		Long: `Add a class to HTML elements on allowed platforms.

Reads an HTML document from FILE or stdin and writes it to stdout. The
class is added to the element with --id, or to every element named by
--tag, when the detected platform is listed in --os. The "all" wildcard
is not honoured here.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (sel.ID == "") == (sel.Tag == "") {
				return errors.New("exactly one of --id and --tag is required")
			}

			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer f.Close()
				in = f
			}

			doc, err := dom.Parse(in)
			if err != nil {
				return err
			}
			dom.Tag(doc, a.gate, platform.ParseAllowList(allowed), className, sel)
			return dom.Render(cmd.OutOrStdout(), doc)
		},
	}
	cmd.Flags().StringVar(&allowed, "os", "", "Platforms the class applies on")
	cmd.Flags().StringVar(&className, "class", "", "Class to add")
	cmd.Flags().StringVar(&sel.ID, "id", "", "Select the element with this id")
	cmd.Flags().StringVar(&sel.Tag, "tag", "", "Select every element with this tag name")
	_ = cmd.MarkFlagRequired("class")
	_ = cmd.MarkFlagRequired("os")
	return cmd
}
