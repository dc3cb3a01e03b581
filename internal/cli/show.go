// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/convo/internal/model"
	"github.com/jeranaias/convo/internal/storage"
	"github.com/jeranaias/convo/internal/ui/render"
)

// showResult is the --json payload of show.
type showResult struct {
	Conversation model.ConversationID     `json:"conversation"`
	Entry        *model.ConversationEntry `json:"entry,omitempty"`
	Messages     model.Transcript         `json:"messages"`
}

func newShowCommand(opts *rootOptions) *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Print a stored conversation",
		Example: `  convo show 6f1c2e0a-...
  convo show --json /6f1c2e0a-... | jq '.data.messages[].role'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := parseConversationID(a.Resolver, args[0])
			if err != nil {
				return err
			}
			msgs, err := a.Transcripts.Load(id)
			if errors.Is(err, storage.ErrConversationNotFound) {
				return &NotFoundError{Resource: "conversation", ID: string(id)}
			}
			if err != nil {
				return err
			}

			var entry *model.ConversationEntry
			if e, err := a.Index.Get(id); err == nil {
				entry = &e
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return NewJSONResponse("show", showResult{Conversation: id, Entry: entry, Messages: msgs}).Write(out)
			}

			width := GetTerminalWidth()
			fmt.Fprintln(out, TitleStyle.Render(string(id)))
			if entry != nil {
				fmt.Fprintln(out, DimStyle.Render("created "+entry.Time().Local().Format(timeLayout)))
			}
			fmt.Fprintln(out, Separator(width))

			r := render.New(render.Options{
				Width:    width,
				Markdown: a.Config.UI.Markdown && !plain && IsStdoutTTY(),
			})
			fmt.Fprintln(out, r.Transcript(msgs))
			return nil
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "do not render markdown")
	return cmd
}
