// FILE: lixenwraith/forgeconfig/cmd/forgeconfig/resolve.go
package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lixenwraith/forgeconfig"
)

type resolveOptions struct {
	format string
	get    string
	set    []string
	out    string
	watch  bool
}

func newResolveCommand(root *rootOptions) *cobra.Command {
	opts := &resolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve [dir]",
		Short: "Print the resolved configuration",
		Long: `Resolve the configuration of the project in dir (default: the nearest
directory holding the manifest) and print it.

Environment overrides are applied on read, so --get reports the value a build
would see. --set writes values after resolution; they win over the environment.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := root.projectDir(args)
			if err != nil {
				return err
			}
			b := root.builder()
			w := cmd.OutOrStdout()

			if !opts.watch {
				res, err := b.Load(cmd.Context(), dir)
				if err != nil {
					return err
				}
				return opts.emit(w, res.Config)
			}

			watcher := forgeconfig.NewWatcher(b, dir, forgeconfig.DefaultWatchOptions())
			events := watcher.Subscribe()
			res, err := watcher.Start(cmd.Context())
			if err != nil {
				return err
			}
			defer watcher.Stop()

			if err := opts.emit(w, res.Config); err != nil {
				return err
			}
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case ev, ok := <-events:
					if !ok {
						return nil
					}
					if ev.Err != nil {
						root.logger().Error("reload failed", "error", ev.Err)
						continue
					}
					if err := opts.emit(w, ev.Resolution.Config); err != nil {
						return err
					}
				}
			}
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.format, "format", "f", "json", "output format: json, yaml or toml")
	flags.StringVarP(&opts.get, "get", "g", "", "print only the value at a dot-separated path")
	flags.StringArrayVarP(&opts.set, "set", "s", nil, "set path=value after resolution (repeatable)")
	flags.StringVarP(&opts.out, "out", "o", "", "write the resolved configuration to a file instead")
	flags.BoolVarP(&opts.watch, "watch", "w", false, "re-resolve when the manifest or configuration module changes")
	return cmd
}

func (o *resolveOptions) emit(w io.Writer, cfg *forgeconfig.Node) error {
	for _, assignment := range o.set {
		path, raw, found := strings.Cut(assignment, "=")
		if !found {
			return fmt.Errorf("invalid --set %q, expected path=value", assignment)
		}
		if err := cfg.SetPath(path, forgeconfig.ParseValue(raw)); err != nil {
			return err
		}
	}

	if o.out != "" {
		return cfg.Save(o.out)
	}

	if o.get == "" {
		return cfg.Export(w, o.format)
	}

	v, ok := cfg.Lookup(o.get)
	if !ok {
		return fmt.Errorf("%w: %s", forgeconfig.ErrNotFound, o.get)
	}
	if child, isNode := v.(*forgeconfig.Node); isNode {
		return child.Export(w, o.format)
	}
	_, err := fmt.Fprintln(w, forgeconfig.Printable(v))
	return err
}
