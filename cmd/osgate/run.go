package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

func runCmd(a *app) *cobra.Command {
	var allowed string

	cmd := &cobra.Command{
		Use:   "run [--os LIST] -- COMMAND [ARGS...]",
		Short: "Run a command only on allowed platforms",
		Long: `Run a command only on allowed platforms.

LIST is a comma separated set of platforms (windows, macos, linux, android,
apple, unknown) or "all". When --os is omitted the config's allowed_os is
used. On any other platform the command is skipped with a warning and
osgate exits 0.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.gate.Do(a.allowList(allowed), func() error {
				c := exec.CommandContext(cmd.Context(), args[0], args[1:]...) //nolint:gosec
				c.Stdin = os.Stdin
				c.Stdout = cmd.OutOrStdout()
				c.Stderr = cmd.ErrOrStderr()
				if err := c.Run(); err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&allowed, "os", "", "Platforms the command may run on")
	cmd.Flags().SetInterspersed(false)
	return cmd
}
