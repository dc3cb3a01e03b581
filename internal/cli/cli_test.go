// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/convo/internal/app"
	"github.com/jeranaias/convo/internal/backend"
	"github.com/jeranaias/convo/internal/config"
	"github.com/jeranaias/convo/internal/logging"
	"github.com/jeranaias/convo/internal/model"
	"github.com/jeranaias/convo/internal/session"
	"github.com/jeranaias/convo/internal/storage"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CONVO_HOME", dir)
	for _, k := range []string{
		"CONVO_BACKEND_URL", "CONVO_MODEL", "CONVO_BASE_PATH",
		"CONVO_STORAGE_DRIVER", "CONVO_STORAGE_PATH", "CONVO_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
	return dir
}

// backendServer serves health, configure and a fixed chat reply.
func backendServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/health":
			w.WriteHeader(http.StatusOK)
		case "/api/configure":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"models":[{"id":"m1","name":"Model One"},{"id":"m2","name":"Model Two","builtin_tools":["web"]}],`+
				`"builtinTools":[{"id":"web","name":"Web search"}]}`)
		case "/api/chat":
			w.Header().Set("Content-Type", "text/event-stream")
			for _, chunk := range []string{
				`{"type":"start","messageId":"a1"}`,
				`{"type":"text-start","id":"t"}`,
				`{"type":"text-delta","id":"t","delta":"Hi "}`,
				`{"type":"text-delta","id":"t","delta":"there"}`,
				`{"type":"text-end","id":"t"}`,
				`{"type":"finish"}`,
			} {
				fmt.Fprintf(w, "data: %s\n\n", chunk)
			}
			fmt.Fprint(w, "data: [DONE]\n\n")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	root, _ := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func TestAskListShow(t *testing.T) {
	isolate(t)
	srv := backendServer(t)

	out, errOut, err := execute(t, "--backend", srv.URL, "ask", "Hello there")
	require.NoError(t, err)
	assert.Contains(t, out, "Hi there")
	assert.Contains(t, errOut, "conversation /")

	out, _, err = execute(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Hello there")
	assert.Contains(t, out, "FIRST MESSAGE")

	out, _, err = execute(t, "--json", "list")
	require.NoError(t, err)
	var listed struct {
		Success bool                      `json:"success"`
		Data    []model.ConversationEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	require.True(t, listed.Success)
	require.Len(t, listed.Data, 1)
	id := listed.Data[0].ID

	out, _, err = execute(t, "show", string(id))
	require.NoError(t, err)
	assert.Contains(t, out, "Hello there")
	assert.Contains(t, out, "Hi there")

	// the leading slash is optional
	_, _, err = execute(t, "show", strings.TrimPrefix(string(id), "/"))
	assert.NoError(t, err)

	out, _, err = execute(t, "list", "nothing-matches")
	require.NoError(t, err)
	assert.Contains(t, out, "No conversations.")
}

func TestAsk_ContinuesConversation(t *testing.T) {
	isolate(t)
	srv := backendServer(t)

	out, _, err := execute(t, "--backend", srv.URL, "--json", "ask", "first")
	require.NoError(t, err)
	var res struct {
		Data askResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "Hi there", res.Data.Text)

	_, _, err = execute(t, "--backend", srv.URL, "--path", string(res.Data.Conversation), "ask", "second")
	require.NoError(t, err)

	out, _, err = execute(t, "--json", "show", string(res.Data.Conversation))
	require.NoError(t, err)
	var shown struct {
		Data showResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Len(t, shown.Data.Messages, 4)
	require.NotNil(t, shown.Data.Entry)
	assert.Equal(t, "first", shown.Data.Entry.FirstMessage)

	out, _, err = execute(t, "list")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, string(res.Data.Conversation)), "continuing must not add an index entry")
}

func TestAsk_BlankIsUsageError(t *testing.T) {
	isolate(t)
	_, _, err := execute(t, "ask", "   ")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestShow_Errors(t *testing.T) {
	isolate(t)

	_, _, err := execute(t, "--ephemeral", "show", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))

	_, _, err = execute(t, "--ephemeral", "show", "/")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestHealth(t *testing.T) {
	isolate(t)
	srv := backendServer(t)

	out, _, err := execute(t, "--backend", srv.URL, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "✓")

	down := httptest.NewServer(http.NotFoundHandler())
	url := down.URL
	down.Close()

	out, _, err = execute(t, "--backend", url, "--json", "health")
	require.Error(t, err)
	assert.Equal(t, ExitNetworkError, GetExitCode(err))
	assert.Contains(t, out, `"reachable": false`)
}

func TestHealth_WatchSkipsBundledBackend(t *testing.T) {
	isolate(t)
	out, _, err := execute(t, "--ephemeral", "health", "--watch")
	require.NoError(t, err)
	assert.Contains(t, out, "not probed")
}

func TestModels(t *testing.T) {
	isolate(t)
	srv := backendServer(t)

	out, _, err := execute(t, "--backend", srv.URL, "models")
	require.NoError(t, err)
	assert.Contains(t, out, "Model One")
	assert.Contains(t, out, "Model Two")
	assert.Contains(t, out, "Web search")
}

func TestConfigCommands(t *testing.T) {
	dir := isolate(t)
	want := filepath.Join(dir, "config.toml")

	out, _, err := execute(t, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, want, strings.TrimSpace(out))

	_, _, err = execute(t, "config", "init")
	require.NoError(t, err)
	assert.FileExists(t, want)

	_, _, err = execute(t, "config", "init")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	_, _, err = execute(t, "config", "set", "backend.url", "https://chat.example.com")
	require.NoError(t, err)
	out, _, err = execute(t, "config", "get", "backend.url")
	require.NoError(t, err)
	assert.Equal(t, "https://chat.example.com", strings.TrimSpace(out))

	_, _, err = execute(t, "config", "set", "backend.url", "ftp://chat.example.com")
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, GetExitCode(err))

	_, _, err = execute(t, "config", "set", "no.such.key", "1")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	out, _, err = execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "https://chat.example.com")

	out, _, err = execute(t, "config", "get")
	require.NoError(t, err)
	assert.Contains(t, out, "storage.driver")
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", NewUsageError("bad"), ExitUsageError},
		{"config", config.ValidateErrors{{Field: "x", Message: "y"}}, ExitConfigError},
		{"not found", fmt.Errorf("load: %w", storage.ErrConversationNotFound), ExitNotFoundError},
		{"not found type", &NotFoundError{Resource: "conversation", ID: "/x"}, ExitNotFoundError},
		{"corrupt", &storage.CorruptError{Key: "/x", Cause: errors.New("eof")}, ExitDataError},
		{"timeout", backend.ErrTimeout, ExitTimeoutError},
		{"network", backend.ErrNotRunning, ExitNetworkError},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestReplyPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := newReplyPrinter(&buf)

	old := model.Message{ID: "a0", Role: model.RoleAssistant, Parts: []model.Part{model.TextPart("old reply")}}
	history := model.Transcript{model.NewUserMessage("q0"), old}

	// not armed: nothing is echoed
	p.Update(session.Snapshot{Messages: history})
	assert.Empty(t, buf.String())

	p.arm(history)
	p.Update(session.Snapshot{Messages: history})
	assert.Empty(t, buf.String(), "the reply that was already there is skipped")

	withReply := func(text string) session.Snapshot {
		msgs := append(history.Clone(), model.NewUserMessage("q1"),
			model.Message{ID: "a1", Role: model.RoleAssistant, Parts: []model.Part{model.TextPart(text)}})
		return session.Snapshot{Messages: msgs}
	}
	p.Update(withReply("Hel"))
	p.Update(withReply("Hello"))
	p.Update(withReply("Hello world"))
	p.disarm()
	assert.Equal(t, "Hello world\n", buf.String())
}

// scriptedInput replays lines, then reports EOF.
type scriptedInput struct {
	lines []string
}

func (s *scriptedInput) ReadLine(string) (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func TestREPL(t *testing.T) {
	isolate(t)
	srv := backendServer(t)

	cfg := config.Default()
	cfg.Backend.URL = srv.URL
	cfg.Storage.Driver = config.DriverMemory
	a, err := app.New(app.Options{Config: cfg, Logger: logging.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	var out bytes.Buffer
	r := newREPL(a, "/", &out)
	defer r.close()

	in := &scriptedInput{lines: []string{
		"Hello",
		"/status",
		"/new",
		"/list",
		"/open 1",
		"/regen",
		"/bogus",
		"/quit",
		"never read",
	}}
	require.NoError(t, r.run(context.Background(), in))

	text := out.String()
	assert.Contains(t, text, "Hi there")
	assert.Contains(t, text, "Conversation")
	assert.Contains(t, text, "New conversation.")
	assert.Contains(t, text, "Hello")
	assert.Contains(t, text, "Opened /")
	assert.Contains(t, text, "unknown command /bogus")
	assert.Equal(t, []string{"never read"}, in.lines)

	snap := r.surface.Controller.Snapshot()
	assert.Len(t, snap.Messages, 2, "regenerate replaces the last reply")

	entries, err := a.Index.List()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMain(m *testing.M) {
	os.Setenv("NO_COLOR", "1")
	os.Exit(m.Run())
}
