// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/convo/internal/identity"
	"github.com/jeranaias/convo/internal/model"
	"github.com/jeranaias/convo/internal/util"
)

const timeLayout = "2006-01-02 15:04"

func newListCommand(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "list [QUERY]",
		Aliases: []string{"ls"},
		Short:   "List stored conversations, newest first",
		Long: `List stored conversations, newest first. With QUERY only conversations whose
first message contains it (ignoring case) are shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var entries []model.ConversationEntry
			if len(args) == 1 {
				entries, err = a.Index.Search(args[0])
			} else {
				entries, err = a.Index.List()
			}
			if err != nil {
				return err
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				if entries == nil {
					entries = []model.ConversationEntry{}
				}
				return NewJSONResponse("list", entries).Write(out)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, DimStyle.Render("No conversations."))
				return nil
			}
			writeEntryTable(out, entries, GetTerminalWidth(), false)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most N conversations")
	return cmd
}

// writeEntryTable prints the index as aligned columns. Column widths are
// measured in terminal cells so wide runes line up.
func writeEntryTable(w io.Writer, entries []model.ConversationEntry, width int, numbered bool) {
	idWidth := len("ID")
	for _, e := range entries {
		if n := len(e.ID); n > idWidth {
			idWidth = n
		}
	}
	numWidth := len(strconv.Itoa(len(entries)))

	prefix := func(n string) string {
		if !numbered {
			return ""
		}
		return util.PadWidth(n, numWidth) + "  "
	}

	fixed := len(prefix("")) + idWidth + 2 + len(timeLayout) + 2
	msgWidth := width - fixed
	if msgWidth < 10 {
		msgWidth = 10
	}

	header := prefix("#") + util.PadWidth("ID", idWidth) + "  " + util.PadWidth("CREATED", len(timeLayout)) + "  FIRST MESSAGE"
	fmt.Fprintln(w, DimStyle.Render(header))
	for i, e := range entries {
		row := prefix(strconv.Itoa(i+1)) +
			util.PadWidth(string(e.ID), idWidth) + "  " +
			e.Time().Local().Format(timeLayout) + "  " +
			util.TruncateWidth(util.SingleLine(e.FirstMessage), msgWidth)
		fmt.Fprintln(w, row)
	}
}

// parseConversationID accepts an id with or without its leading slash, a
// path under the base path, or a full URL.
func parseConversationID(res *identity.Resolver, arg string) (model.ConversationID, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", NewUsageError("conversation id is empty")
	}
	if !strings.HasPrefix(arg, "/") && !strings.Contains(arg, "://") {
		arg = "/" + arg
	}
	id := res.Resolve(arg)
	if id.IsNew() {
		return "", NewUsageError("%q is the new-conversation path, not a conversation", arg)
	}
	return id, nil
}
