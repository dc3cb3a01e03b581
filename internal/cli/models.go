// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/convo/internal/util"
)

func newModelsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models and built-in tools the backend offers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext(cmd)
			defer cancel()

			fc := a.Client.LoadFrontendConfig(ctx)
			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return NewJSONResponse("models", fc).Write(out)
			}

			if len(fc.Models) == 0 {
				fmt.Fprintln(out, DimStyle.Render("The backend offered no models."))
				return nil
			}

			selected := a.Config.Backend.DefaultModel
			if selected == "" {
				selected = fc.DefaultModel()
			}

			idWidth := len("ID")
			for _, m := range fc.Models {
				if len(m.ID) > idWidth {
					idWidth = len(m.ID)
				}
			}
			fmt.Fprintln(out, DimStyle.Render("  "+util.PadWidth("ID", idWidth)+"  NAME"))
			for _, m := range fc.Models {
				mark := " "
				if m.ID == selected {
					mark = SuccessStyle.Render("*")
				}
				line := mark + " " + util.PadWidth(m.ID, idWidth) + "  " + m.Name
				if len(m.BuiltinTools) > 0 {
					line += DimStyle.Render("  [" + strings.Join(m.BuiltinTools, ", ") + "]")
				}
				fmt.Fprintln(out, line)
			}

			if len(fc.BuiltinTools) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, TitleStyle.Render("Built-in tools"))
				for _, t := range fc.BuiltinTools {
					fmt.Fprintln(out, Field(t.ID, t.Name))
				}
			}
			return nil
		},
	}
}
