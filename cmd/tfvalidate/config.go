package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/tfvalidate/internal/config"
)

func newConfigCmd(out io.Writer) *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration tfvalidate would run with, after merging
defaults, the user config (~/.config/tfvalidate/config.yaml), the project
config (.tfvalidate.yaml in the current directory or a parent), the file
given with --config and TFVALIDATE_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.LoadOptions{ConfigFile: configFile})
			if err != nil {
				return &exitError{code: exitFatal, err: err}
			}
			if path := config.GetUserConfigPath(); fileExists(path) {
				fmt.Fprintf(out, "# user config: %s\n", path)
			}
			if path := config.GetProjectConfigPath(); path != "" {
				fmt.Fprintf(out, "# project config: %s\n", path)
			}
			return cfg.WriteYAML(out)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "Config file merged over user and project config")
	cmd.AddCommand(newConfigInitCmd(out))

	return cmd
}

func newConfigInitCmd(out io.Writer) *cobra.Command {
	var user, force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ProjectFileName
			if user {
				path = config.GetUserConfigPath()
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return &exitError{code: exitFatal, err: err}
			}
			if fileExists(abs) && !force {
				return fatalf("%s already exists (use --force to overwrite)", abs)
			}
			if err := config.Save(config.Default(), abs); err != nil {
				return &exitError{code: exitFatal, err: err}
			}
			printStatus(out, "✓", "Wrote "+abs, color.FgGreen)
			return nil
		},
	}
	cmd.Flags().BoolVar(&user, "user", false, "Write the user config instead of "+config.ProjectFileName)
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
