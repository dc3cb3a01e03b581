// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/convo/internal/model"
	"github.com/jeranaias/convo/internal/ui/render"
)

// askResult is the --json payload of ask.
type askResult struct {
	Conversation model.ConversationID `json:"conversation"`
	Text         string               `json:"text"`
	Reply        *model.Message       `json:"reply"`
}

func newAskCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [TEXT...]",
		Short: "Send one message and print the reply",
		Long: `Send one message and print the streamed reply.

Without --path a new conversation is started. With --path the message is
added to that conversation. Text is read from stdin when no argument is given.`,
		Example: `  convo ask "Summarize RFC 9110 in three sentences"
  convo ask --path /6f1c2e0a-... "And the caching rules?"
  git diff | convo ask`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "" && !IsTTY() {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(data)
			}
			if strings.TrimSpace(text) == "" {
				return NewUsageError("nothing to send")
			}

			a, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			location := opts.location
			if location == "" {
				location = a.Resolver.Location(model.NewConversation)
			}
			surface := a.OpenSurface(location)
			ctrl := surface.Controller

			out := cmd.OutOrStdout()
			printer := newReplyPrinter(out)
			if !opts.jsonOutput {
				ctrl.OnChange(printer.Update)
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()

			printer.arm(ctrl.Snapshot().Messages)
			err = ctrl.Submit(ctx, text, a.RequestOptions())
			printer.disarm()
			snap := ctrl.Snapshot()
			// flushes the transcript
			surface.Close()
			if err != nil {
				return err
			}

			reply, ok := snap.Messages.Last()
			if ok && reply.Role != model.RoleAssistant {
				ok = false
			}

			if opts.jsonOutput {
				res := askResult{Conversation: snap.ID}
				if ok {
					res.Text = reply.Text()
					res.Reply = &reply
				}
				return NewJSONResponse("ask", res).Write(out)
			}

			if ok {
				printSources(out, reply)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), DimStyle.Render("conversation "+string(snap.ID)))
			return nil
		},
	}
}

// printSources lists the sources a reply cited.
func printSources(w io.Writer, m model.Message) {
	var sources []model.Part
	for _, p := range m.Parts {
		switch p.Type() {
		case model.PartSourceURL, model.PartSourceDocument:
			sources = append(sources, p)
		}
	}
	if len(sources) == 0 {
		return
	}
	r := render.New(render.Options{Width: GetTerminalWidth()})
	fmt.Fprintln(w, DimStyle.Render("Sources:"))
	for _, p := range sources {
		fmt.Fprintln(w, "  "+r.Part(p))
	}
}
