// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/convo/internal/app"
	"github.com/jeranaias/convo/internal/config"
	"github.com/jeranaias/convo/internal/model"
	"github.com/jeranaias/convo/internal/notify"
	"github.com/jeranaias/convo/internal/ui/render"
)

func newChatCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start a line-based chat session",
		Long: `Start a line-based chat session with input history.

Commands inside the session:
  /new            start a new conversation
  /open ID|N      open a conversation by id or by its number in /list
  /list [QUERY]   list conversations
  /show           print the open conversation
  /regen          regenerate the last reply
  /stop           stop the reply in progress
  /status         show the session state
  /help           show this help
  /quit           leave (Ctrl+D also works)

Ctrl+C stops a reply while it streams.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			input, err := newLineInput()
			if err != nil {
				return err
			}
			defer input.Close()

			r := newREPL(a, opts.location, cmd.OutOrStdout())
			defer r.close()
			return r.run(cmd.Context(), input)
		},
	}
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader is the REPL's input source.
type lineReader interface {
	ReadLine(prompt string) (string, error)
}

// lineInput provides history and line editing on a terminal.
type lineInput struct {
	line        *liner.State
	historyFile string
}

func newLineInput() (*lineInput, error) {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	in := &lineInput{line: line, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(in.historyFile); err == nil {
		_, _ = in.line.ReadHistory(f)
		f.Close()
	}
	return in, nil
}

// ReadLine reads one line, remembering non-empty input.
func (in *lineInput) ReadLine(prompt string) (string, error) {
	s, err := in.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s) != "" {
		in.line.AppendHistory(s)
	}
	return s, nil
}

// Close saves history with owner-only permissions and restores the terminal.
func (in *lineInput) Close() {
	if err := config.EnsureConfigDir(); err == nil {
		if f, err := os.OpenFile(in.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = in.line.WriteHistory(f)
			f.Close()
		}
	}
	in.line.Close()
}

// =============================================================================
// SESSION
// =============================================================================

// repl is one line-based chat surface.
type repl struct {
	app      *app.App
	surface  *app.Surface
	out      io.Writer
	printer  *replyPrinter
	renderer *render.Renderer
	logger   *zap.Logger

	// last /list result, for /open N
	listed []model.ConversationEntry
}

func newREPL(a *app.App, location string, out io.Writer) *repl {
	r := &repl{
		app:     a,
		surface: a.OpenSurface(location),
		out:     out,
		printer: newReplyPrinter(out),
		renderer: render.New(render.Options{
			Width:    GetTerminalWidth(),
			Markdown: a.Config.UI.Markdown && IsStdoutTTY(),
		}),
		logger: a.Logger.Named("chat"),
	}
	r.surface.Controller.OnChange(r.printer.Update)
	return r
}

func (r *repl) close() {
	r.surface.Close()
}

func (r *repl) run(ctx context.Context, in lineReader) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.app.StartLiveness(ctx)

	// Ctrl+C while streaming stops the reply; at the prompt liner handles it.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigs:
				r.surface.Controller.Stop()
			}
		}
	}()

	fmt.Fprintln(r.out, TitleStyle.Render("convo")+DimStyle.Render("  /help for commands, Ctrl+D to quit"))
	r.printOpened()

	for {
		line, err := in.ReadLine(PromptStyle.Render("you> "))
		if err != nil {
			// EOF, Ctrl+D or Ctrl+C at the prompt
			fmt.Fprintln(r.out)
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := r.command(ctx, line)
			if err != nil {
				fmt.Fprintf(r.out, "%s %v\n", ErrorStyle.Render("[ERROR]"), err)
			}
			if quit {
				return nil
			}
			continue
		}

		if err := r.submit(ctx, line); err != nil {
			fmt.Fprintf(r.out, "%s %v\n", ErrorStyle.Render("[ERROR]"), err)
		}
	}
}

func (r *repl) submit(ctx context.Context, text string) error {
	ctrl := r.surface.Controller
	r.printer.arm(ctrl.Snapshot().Messages)
	err := ctrl.Submit(ctx, text, r.app.RequestOptions())
	r.printer.disarm()
	if err != nil {
		// printed by the caller; nothing left to dismiss later
		ctrl.DismissError()
		r.logger.Debug("submission failed", zap.Error(err))
	}
	return err
}

func (r *repl) regenerate(ctx context.Context) error {
	ctrl := r.surface.Controller
	last, ok := ctrl.Snapshot().Messages.Last()
	if !ok {
		return errors.New("nothing to regenerate")
	}
	r.printer.arm(nil)
	err := ctrl.Regenerate(ctx, last.ID, r.app.RequestOptions())
	r.printer.disarm()
	if err != nil {
		ctrl.DismissError()
	}
	return err
}

// command runs a slash command and reports whether the session should end.
func (r *repl) command(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]

	switch name {
	case "/quit", "/q", "/exit":
		return true, nil

	case "/help", "/h":
		r.printHelp()

	case "/new":
		r.navigate(model.NewConversation)
		fmt.Fprintln(r.out, DimStyle.Render("New conversation."))

	case "/open":
		if len(args) != 1 {
			return false, NewUsageError("usage: /open ID|N")
		}
		id, err := r.target(args[0])
		if err != nil {
			return false, err
		}
		r.navigate(id)
		r.printOpened()

	case "/list", "/ls":
		entries, err := r.listEntries(strings.Join(args, " "))
		if err != nil {
			return false, err
		}
		r.listed = entries
		if len(entries) == 0 {
			fmt.Fprintln(r.out, DimStyle.Render("No conversations."))
			return false, nil
		}
		writeEntryTable(r.out, entries, GetTerminalWidth(), true)

	case "/show":
		snap := r.surface.Controller.Snapshot()
		if len(snap.Messages) == 0 {
			fmt.Fprintln(r.out, DimStyle.Render("Nothing yet."))
			return false, nil
		}
		fmt.Fprintln(r.out, r.renderer.Transcript(snap.Messages))

	case "/regen", "/r":
		return false, r.regenerate(ctx)

	case "/stop":
		if !r.surface.Controller.Snapshot().Streaming {
			fmt.Fprintln(r.out, DimStyle.Render("Nothing to stop."))
			return false, nil
		}
		r.surface.Controller.Stop()

	case "/status", "/s":
		r.printStatus()

	default:
		return false, NewUsageError("unknown command %s (try /help)", name)
	}
	return false, nil
}

// target resolves an /open argument: a number from the last /list, or an id.
func (r *repl) target(arg string) (model.ConversationID, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(r.listed) {
			return "", NewUsageError("no conversation #%d in the last /list", n)
		}
		return r.listed[n-1].ID, nil
	}
	return parseConversationID(r.app.Resolver, arg)
}

func (r *repl) listEntries(query string) ([]model.ConversationEntry, error) {
	if query == "" {
		return r.app.Index.List()
	}
	return r.app.Index.Search(query)
}

// navigate moves the surface like a link click.
func (r *repl) navigate(id model.ConversationID) {
	r.surface.Tab.Navigate(r.app.Resolver.Location(id), notify.SignalHistoryStateChanged)
}

func (r *repl) printOpened() {
	snap := r.surface.Controller.Snapshot()
	if snap.ID.IsNew() {
		return
	}
	switch {
	case snap.ReadOnly:
		fmt.Fprintf(r.out, "%s %s could not be loaded; it is read-only. /new starts another.\n",
			WarningStyle.Render("[WARN]"), snap.ID)
	case len(snap.Messages) == 0:
		fmt.Fprintln(r.out, DimStyle.Render(fmt.Sprintf("Opened %s (empty).", snap.ID)))
	default:
		fmt.Fprintln(r.out, DimStyle.Render(fmt.Sprintf("Opened %s, %d messages.", snap.ID, len(snap.Messages))))
		fmt.Fprintln(r.out, r.renderer.Transcript(snap.Messages))
	}
}

func (r *repl) printStatus() {
	snap := r.surface.Controller.Snapshot()
	live := r.app.Monitor.State()

	reach := SuccessStyle.Render("reachable")
	if !live.Reachable {
		reach = ErrorStyle.Render(fmt.Sprintf("unreachable (%d failures, next probe in %s)",
			live.ConsecutiveFailures, live.Backoff))
	}
	id := string(snap.ID)
	if snap.ID.IsNew() {
		id = "(new)"
	}
	fmt.Fprintln(r.out, Field("Conversation", id))
	fmt.Fprintln(r.out, Field("State", string(snap.State)))
	fmt.Fprintln(r.out, Field("Messages", strconv.Itoa(len(snap.Messages))))
	fmt.Fprintln(r.out, Field("Backend", r.app.Config.Backend.URL))
	fmt.Fprintln(r.out, LabelStyle.Render("Reachability")+reach)
	if m := r.app.Config.Backend.DefaultModel; m != "" {
		fmt.Fprintln(r.out, Field("Model", m))
	}
}

func (r *repl) printHelp() {
	for _, row := range [][2]string{
		{"/new", "start a new conversation"},
		{"/open ID|N", "open a conversation"},
		{"/list [QUERY]", "list conversations"},
		{"/show", "print the open conversation"},
		{"/regen", "regenerate the last reply"},
		{"/stop", "stop the reply in progress"},
		{"/status", "show the session state"},
		{"/quit", "leave"},
	} {
		fmt.Fprintln(r.out, Field(row[0], row[1]))
	}
}
