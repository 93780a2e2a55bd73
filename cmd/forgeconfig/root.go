// FILE: lixenwraith/forgeconfig/cmd/forgeconfig/root.go
package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/lixenwraith/forgeconfig"
)

type rootOptions struct {
	envPrefix       string
	manifestName    string
	noScripts       bool
	requireManifest bool
	ignorePlugins   bool
	verbose         bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "forgeconfig",
		Short:         "Resolve a project's build configuration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.envPrefix, "env-prefix", forgeconfig.DefaultEnvPrefix, "prefix of environment override variables")
	flags.StringVar(&opts.manifestName, "manifest", forgeconfig.DefaultManifestName, "manifest file name in the project root")
	flags.BoolVar(&opts.noScripts, "no-scripts", false, "refuse Lua and HCL configuration modules")
	flags.BoolVar(&opts.requireManifest, "require-manifest", false, "fail when the project has no manifest")
	flags.BoolVar(&opts.ignorePlugins, "ignore-unknown-plugins", false, "warn about plugins without a built-in implementation instead of failing")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log resolution steps")

	cmd.AddCommand(newResolveCommand(opts), newEnvCommand(opts))
	return cmd
}

func (o *rootOptions) logger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "forgeconfig",
	})
	if o.verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

func (o *rootOptions) builder() *forgeconfig.Builder {
	b := forgeconfig.NewBuilder().
		WithEnvPrefix(o.envPrefix).
		WithManifestName(o.manifestName).
		WithLogger(o.logger())
	if o.noScripts {
		b.WithoutScripts()
	}
	if o.requireManifest {
		b.RequireManifest()
	}
	if o.ignorePlugins {
		b.IgnoreUnknownPlugins()
	}
	return b
}

// projectDir returns args[0], or the nearest ancestor of the working directory
// holding a manifest
func (o *rootOptions) projectDir(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return forgeconfig.FindProjectRoot(cwd, o.manifestName)
}
