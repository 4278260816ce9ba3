package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Use-Tusk/osgate/cmd/osgate/ui"
	"github.com/Use-Tusk/osgate/internal/platform"
)

func detectCmd(a *app) *cobra.Command {
	var (
		userAgent  string
		uaPlatform string
		long       bool
	)

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Print the detected platform",
		Long: `Print the detected platform.

Without flags the runtime platform is classified. With --user-agent or
--ua-platform the values are classified the way a browser's navigator
fields would be.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			probe := "process"
			os := a.gate.OS()
			if userAgent != "" || uaPlatform != "" {
				probe = "browser"
				nav := &platform.Navigator{
					Platform:  strings.Trim(uaPlatform, `"`),
					UserAgent: userAgent,
				}
				if nav.Platform == "" {
					nav.Platform = platform.NavigatorPlatform(userAgent)
				}
				os = platform.DetectFrom(platform.BrowserProbe{Navigator: nav})
			}

			out := cmd.OutOrStdout()
			if !long {
				fmt.Fprintln(out, os)
				return nil
			}
			fmt.Fprint(out, ui.KeyValues("",
				ui.KV("Platform", os.String()),
				ui.KV("Probe", probe),
				ui.KV("GOOS", platform.GOOS()),
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&userAgent, "user-agent", "", "Classify this User-Agent string")
	cmd.Flags().StringVar(&uaPlatform, "ua-platform", "", "Classify this navigator platform (Sec-CH-UA-Platform)")
	cmd.Flags().BoolVarP(&long, "long", "l", false, "Show probe details")
	return cmd
}

func allowedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "allowed PLATFORM...",
		Short: "Report whether the detected platform is in the list",
		Long: `Report whether the detected platform is in the list.

Prints true or false and exits 1 when false. The "all" wildcard is not
honoured here; use "run" for wildcard matching.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok := a.gate.IsAllowed(platform.ParseAllowList(strings.Join(args, ",")))
			fmt.Fprintln(cmd.OutOrStdout(), ui.Bool(ok))
			if !ok {
				return errNotAllowed
			}
			return nil
		},
	}
}
