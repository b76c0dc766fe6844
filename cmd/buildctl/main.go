package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/chalin/build/internal/logging"
	"github.com/chalin/build/pkg/plan"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "buildctl",
		Short:        "Compute build plans for multi-package workspaces",
		SilenceUsage: true,
	}

	root.AddCommand(newPlanCmd())
	return root
}

func newPlanCmd() *cobra.Command {
	var (
		workspaceDir string
		rootPkg      string
		overrideFile string
		format       string
		logLevel     string
		workers      int
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the ordered builder application plan for a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.NewLogger(logging.Config{Level: logLevel, Output: cmd.ErrOrStderr()})

			p := plan.New(os.DirFS(workspaceDir), rootPkg).
				WithLogger(log).
				WithWorkers(workers)

			if overrideFile != "" {
				overrides, err := readOverrides(overrideFile)
				if err != nil {
					return err
				}
				p = p.WithOverrides(overrides)
			}

			result, err := p.Plan(cmd.Context())
			if err != nil {
				return err
			}

			var bs []byte
			switch format {
			case "yaml":
				bs, err = result.YAML()
			case "json":
				bs, err = result.JSON()
			default:
				return fmt.Errorf("unknown output format %q", format)
			}
			if err != nil {
				return err
			}

			_, err = cmd.OutOrStdout().Write(bs)
			return err
		},
	}

	cmd.Flags().StringVarP(&workspaceDir, "workspace", "w", ".", "workspace directory")
	cmd.Flags().StringVarP(&rootPkg, "root", "r", "", "root package name")
	cmd.Flags().StringVar(&overrideFile, "override", "", "YAML file of per-package configuration overrides")
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format (yaml or json)")
	cmd.Flags().StringVar(&logLevel, "log-level", logging.LevelInfo, "log level (debug, info, warn, error)")
	cmd.Flags().IntVar(&workers, "workers", 0, "max concurrent configuration reads (0 = default)")
	_ = cmd.MarkFlagRequired("root")

	return cmd
}

// readOverrides parses a mapping of package name to full replacement
// configuration. Unknown fields are rejected just like in per-package files.
func readOverrides(filename string) (map[string]*plan.Override, error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read override file %s: %w", filename, err)
	}

	overrides := make(map[string]*plan.Override)
	if err := yaml.UnmarshalWithOptions(bs, &overrides, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("failed to parse override file %s: %w", filename, err)
	}

	return overrides, nil
}
