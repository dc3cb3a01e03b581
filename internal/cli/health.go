// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/convo/internal/liveness"
	"github.com/jeranaias/convo/internal/logging"
)

// healthResult is the --json payload of health.
type healthResult struct {
	URL       string `json:"url"`
	Reachable bool   `json:"reachable"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

func newHealthCommand(opts *rootOptions) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check whether the backend is reachable",
		Long: `Check whether the backend answers its health endpoint.

With --watch the backend is probed the way the chat interface does it: with
exponential backoff while it is down, until Ctrl+C. The bundled backend at the
default address is served with the client and is not watched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext(cmd)
			defer cancel()
			out := cmd.OutOrStdout()
			url := a.Client.BaseURL()

			if watch {
				if a.Client.IsDefaultLocation() {
					fmt.Fprintln(out, DimStyle.Render("The bundled backend at "+url+" is not probed."))
					return nil
				}
				a.Monitor.OnChange(func(s liveness.State) {
					fmt.Fprintln(out, formatLiveness(time.Now(), s))
				})
				a.StartLiveness(ctx)
				<-ctx.Done()
				a.Monitor.Stop()
				return nil
			}

			start := time.Now()
			err = a.Client.Health(ctx)
			latency := time.Since(start)
			a.Logger.Debug("health check", zap.String("url", url), logging.Since(start), zap.Error(err))

			if opts.jsonOutput {
				res := healthResult{URL: url, Reachable: err == nil, LatencyMs: latency.Milliseconds()}
				if err != nil {
					res.Error = err.Error()
				}
				if werr := NewJSONResponse("health", res).Write(out); werr != nil {
					return werr
				}
				return err
			}

			if err != nil {
				fmt.Fprintf(out, "%s %s\n", ErrorStyle.Render("✗"), url)
				return err
			}
			fmt.Fprintf(out, "%s %s %s\n", SuccessStyle.Render("✓"), url,
				DimStyle.Render(fmt.Sprintf("(%dms)", latency.Milliseconds())))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep probing until interrupted")
	return cmd
}

func formatLiveness(now time.Time, s liveness.State) string {
	stamp := DimStyle.Render(now.Format("15:04:05"))
	if s.Reachable {
		return fmt.Sprintf("%s %s next probe in %s", stamp, SuccessStyle.Render("reachable"), s.Backoff)
	}
	return fmt.Sprintf("%s %s %d consecutive failures, next probe in %s",
		stamp, ErrorStyle.Render("unreachable"), s.ConsecutiveFailures, s.Backoff)
}
