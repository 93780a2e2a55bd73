// FILE: lixenwraith/forgeconfig/cmd/forgeconfig/env.go
package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lixenwraith/forgeconfig"
)

func newEnvCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "env [dir]",
		Short: "List the environment variables that override configuration values",
		Long: `List every configured leaf value with the environment variable derived
from its key path. A variable only takes effect for keys the configuration does
not set itself.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := root.projectDir(args)
			if err != nil {
				return err
			}
			cfg, err := root.builder().Build(cmd.Context(), dir)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VARIABLE\tPATH\tVALUE")
			for _, binding := range cfg.EnvBindings() {
				fmt.Fprintf(tw, "%s\t%s\t%v\n", binding.EnvName, binding.Path, forgeconfig.Printable(binding.Value))
			}
			return tw.Flush()
		},
	}
}
