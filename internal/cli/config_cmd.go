// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jeranaias/convo/internal/config"
)

func newConfigCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show, create and edit the configuration file",
	}
	cmd.AddCommand(
		newConfigShowCommand(opts),
		newConfigInitCommand(opts),
		newConfigPathCommand(opts),
		newConfigGetCommand(opts),
		newConfigSetCommand(opts),
	)
	return cmd
}

// configFile returns the file config commands read and write.
func (o *rootOptions) configFile() (string, error) {
	if o.configPath != "" {
		return o.configPath, nil
	}
	return config.ConfigPathTOML()
}

func newConfigShowCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return NewJSONResponse("config show", cfg).Write(cmd.OutOrStdout())
			}
			fmt.Fprint(cmd.OutOrStdout(), cfg.String())
			return nil
		},
	}
}

func newConfigInitCommand(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := opts.configFile()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return NewUsageError("%s already exists (use --force to overwrite)", path)
			}
			if opts.configPath == "" {
				if err := config.EnsureConfigDir(); err != nil {
					return err
				}
			}
			if err := config.SaveTOML(config.Default(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s wrote %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

func newConfigPathCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := opts.configFile()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newConfigGetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get [KEY]",
		Short: "Print one setting, or list every key",
		Example: `  convo config get backend.url
  convo config get`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				keys := config.GetAllKeys()
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintln(out, k)
				}
				return nil
			}

			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			v, err := cfg.Get(args[0])
			if err != nil {
				return NewUsageError("%v", err)
			}
			fmt.Fprintln(out, formatValue(v))
			return nil
		},
	}
}

func newConfigSetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "set KEY VALUE",
		Short:   "Change one setting in the configuration file",
		Example: `  convo config set backend.url https://chat.example.com
  convo config set storage.driver sqlite`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := opts.configFile()
			if err != nil {
				return err
			}

			// edit the file itself, not the env-adjusted view
			cfg := config.Default()
			if _, statErr := os.Stat(path); statErr == nil {
				if err := config.LoadTOML(cfg, path); err != nil {
					return err
				}
			} else if !errors.Is(statErr, os.ErrNotExist) {
				return statErr
			}

			if err := cfg.Set(args[0], args[1]); err != nil {
				return NewUsageError("%v", err)
			}
			cfg.SetDefaults()
			if err := cfg.Validate(); err != nil {
				return err
			}
			if opts.configPath == "" {
				if err := config.EnsureConfigDir(); err != nil {
					return err
				}
			}
			if err := config.SaveTOML(cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s\n", SuccessStyle.Render("✓"), args[0], args[1])
			return nil
		},
	}
}

func formatValue(v any) string {
	if s, ok := v.([]string); ok {
		if len(s) == 0 {
			return "[]"
		}
		return fmt.Sprintf("%v", s)
	}
	return fmt.Sprintf("%v", v)
}
