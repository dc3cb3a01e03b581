// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/convo/internal/app"
	"github.com/jeranaias/convo/internal/config"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// rootOptions holds the persistent flags.
type rootOptions struct {
	configPath string
	backendURL string
	location   string
	ephemeral  bool
	jsonOutput bool
	verbose    bool
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	root, opts := NewRootCommand()
	if err := root.Execute(); err != nil {
		DisplayError(root.ErrOrStderr(), err, opts.jsonOutput)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// NewRootCommand builds the command tree.
func NewRootCommand() (*cobra.Command, *rootOptions) {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "convo",
		Short: "Terminal chat client for a streaming language-model backend",
		Long: `convo talks to a chat backend over its streaming /api/chat protocol and keeps
every conversation in a local store, so several windows or processes can share
one history.`,
		Example: `  # Full-screen chat
  convo

  # Reopen a conversation
  convo --path /6f1c2e0a-...

  # One question, answer on stdout
  convo ask "What is a goroutine?"`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !CanPrompt() {
				return NewUsageError("the full-screen interface needs a terminal; use 'convo chat' or 'convo ask'")
			}
			return runTUI(cmd, opts)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "configuration file (default ~/.convo/config.toml)")
	pf.StringVar(&opts.backendURL, "backend", "", "backend URL (overrides config)")
	pf.StringVar(&opts.location, "path", "", "conversation path to open (\"/\" starts a new one)")
	pf.BoolVar(&opts.ephemeral, "ephemeral", false, "keep conversations in memory only")
	pf.BoolVar(&opts.jsonOutput, "json", false, "machine-readable output where supported")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging to stderr")

	root.AddCommand(
		newChatCommand(opts),
		newAskCommand(opts),
		newListCommand(opts),
		newShowCommand(opts),
		newHealthCommand(opts),
		newModelsCommand(opts),
		newConfigCommand(opts),
	)
	return root, opts
}

// loadConfig reads the configuration and applies flag overrides.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFromPath(o.configPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg, err = config.Load()
		if cfg == nil {
			return nil, err
		}
		if err != nil {
			// defaults are usable; say why the file was ignored
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", WarningStyle.Render("[WARN]"), err)
		}
	}

	if o.backendURL != "" {
		cfg.Backend.URL = o.backendURL
	}
	if o.verbose {
		cfg.Logging.Level = "debug"
		cfg.Logging.Console = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openApp loads the configuration and builds the application.
func (o *rootOptions) openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	a, err := app.New(app.Options{Config: cfg, Ephemeral: o.ephemeral})
	if err != nil {
		return nil, err
	}
	a.Logger.Debug("started",
		zap.String("command", cmd.CommandPath()),
		zap.String("backend", cfg.Backend.URL),
		zap.String("version", Version))
	return a, nil
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
