// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/convo/internal/model"
)

func sse(frames ...string) string {
	var sb strings.Builder
	for _, f := range frames {
		sb.WriteString("data: ")
		sb.WriteString(f)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func newTestClient(url string) *Client {
	return NewClientWithConfig(&ClientConfig{BaseURL: url, Timeout: 5 * time.Second, HealthTimeout: 200 * time.Millisecond})
}

// =============================================================================
// HEALTH
// =============================================================================

func TestHealth(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		w.WriteHeader(status)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	require.NoError(t, c.Health(context.Background()))

	status = http.StatusNoContent
	require.NoError(t, c.Health(context.Background()))

	status = http.StatusServiceUnavailable
	err := c.Health(context.Background())
	require.Error(t, err)
	var ce *ClientError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrTypeInvalidResponse, ce.Type)
}

func TestHealth_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	err := newTestClient(srv.URL).Health(context.Background())
	assert.True(t, IsTimeout(err), "got %v", err)
}

func TestHealth_NotRunning(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := newTestClient(url).Health(context.Background())
	assert.True(t, IsNotRunning(err), "got %v", err)
}

// =============================================================================
// CONFIGURE
// =============================================================================

func TestConfigure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/configure", r.URL.Path)
		fmt.Fprint(w, `{"models":[{"id":"openai:gpt-4.1","name":"GPT 4.1","builtin_tools":["web_search"]},{"id":"openai:gpt-5","name":"GPT 5"}],"builtinTools":[{"id":"web_search","name":"Web Search"}]}`)
	}))
	defer srv.Close()

	cfg, err := newTestClient(srv.URL).Configure(context.Background())
	require.NoError(t, err)
	require.Len(t, cfg.Models, 2)
	assert.Equal(t, "openai:gpt-4.1", cfg.DefaultModel())
	assert.Equal(t, []string{"web_search"}, cfg.Models[0].BuiltinTools)
	require.Len(t, cfg.BuiltinTools, 1)
	assert.Equal(t, "Web Search", cfg.BuiltinTools[0].Name)

	m, ok := cfg.FindModel("openai:gpt-5")
	assert.True(t, ok)
	assert.Equal(t, "GPT 5", m.Name)
}

func TestLoadFrontendConfig_DegradesToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models": not json`)
	}))
	defer srv.Close()

	cfg := newTestClient(srv.URL).LoadFrontendConfig(context.Background())
	require.NotNil(t, cfg)
	assert.Empty(t, cfg.Models)
	assert.Equal(t, "", cfg.DefaultModel())
}

// =============================================================================
// STREAM
// =============================================================================

func TestStream_RequestBody(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)
		data, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(data, &body))
		fmt.Fprint(w, sse(`{"type":"start","messageId":"a1"}`, `{"type":"finish"}`, `[DONE]`))
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).Stream(context.Background(), ChatRequest{
		ID:        "/abc",
		Messages:  []model.Message{model.NewUserMessage("hi")},
		Trigger:   TriggerRegenerate,
		MessageID: "a0",
		Options:   Options{Model: "openai:gpt-5", WebSearch: true, BuiltinTools: []string{"web_search"}},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "/abc", body["id"])
	assert.Equal(t, "regenerate-message", body["trigger"])
	assert.Equal(t, "a0", body["messageId"])
	assert.Equal(t, "openai:gpt-5", body["model"])
	assert.Equal(t, true, body["webSearch"])
	assert.Equal(t, []any{"web_search"}, body["builtinTools"])
	assert.Len(t, body["messages"], 1)
}

func TestStream_AssemblesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, sse(
			`{"type":"start","messageId":"a1"}`,
			`{"type":"start-step"}`,
			`{"type":"text-start","id":"t1"}`,
			`{"type":"text-delta","id":"t1","delta":"Hello"}`,
			`{"type":"text-delta","id":"t1","delta":", world"}`,
			`{"type":"text-end","id":"t1"}`,
			`{"type":"source-url","sourceId":"s1","url":"https://example.com","title":"Example"}`,
			`{"type":"finish-step"}`,
			`{"type":"finish"}`,
			`[DONE]`,
		))
	}))
	defer srv.Close()

	var snaps []model.Message
	err := newTestClient(srv.URL).Stream(context.Background(), ChatRequest{ID: "/abc"}, func(m model.Message) {
		snaps = append(snaps, m)
	})
	require.NoError(t, err)
	require.NotEmpty(t, snaps)

	last := snaps[len(snaps)-1]
	assert.Equal(t, "a1", last.ID)
	assert.Equal(t, model.RoleAssistant, last.Role)
	assert.Equal(t, "Hello, world", last.Text())
	require.Len(t, last.Parts, 3)
	assert.Equal(t, model.PartStepStart, last.Parts[0].Type())
	assert.Equal(t, PartDone, last.Parts[1]["state"])
	assert.Equal(t, "https://example.com", last.Parts[2]["url"])

	// earlier snapshots are not mutated by later chunks
	require.Len(t, snaps, 7)
	assert.Equal(t, "", snaps[2].Text())
	assert.Equal(t, "Hello", snaps[3].Text())
	assert.Equal(t, PartStreaming, snaps[4].Parts[1]["state"])
}

func TestStream_ErrorChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sse(
			`{"type":"start","messageId":"a1"}`,
			`{"type":"error","errorText":"model overloaded"}`,
			`{"type":"text-delta","id":"t1","delta":"never"}`,
		))
	}))
	defer srv.Close()

	var last model.Message
	err := newTestClient(srv.URL).Stream(context.Background(), ChatRequest{ID: "/abc"}, func(m model.Message) { last = m })
	require.Error(t, err)
	assert.True(t, IsStreamError(err))
	assert.Equal(t, "model overloaded", err.Error())
	assert.Equal(t, "", last.Text())
}

func TestStream_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"detail":"unknown model"}`)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).Stream(context.Background(), ChatRequest{ID: "/abc"}, nil)
	require.Error(t, err)
	assert.Equal(t, "unknown model", err.Error())
}

func TestStream_Cancelled(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sse(`{"type":"start","messageId":"a1"}`))
		w.(http.Flusher).Flush()
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	err := newTestClient(srv.URL).Stream(ctx, ChatRequest{ID: "/abc"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// ASSEMBLER
// =============================================================================

func apply(t *testing.T, a *Assembler, chunks ...string) {
	t.Helper()
	for _, c := range chunks {
		_, err := a.Apply([]byte(c))
		require.NoError(t, err, c)
	}
}

func TestAssembler_ToolLifecycle(t *testing.T) {
	a := NewAssembler()
	apply(t, a,
		`{"type":"tool-input-start","toolCallId":"c1","toolName":"search"}`,
		`{"type":"tool-input-delta","toolCallId":"c1","inputTextDelta":"{\"query\":"}`,
	)
	p := a.Snapshot().Parts[0]
	assert.Equal(t, "tool-search", p.Type())
	assert.Equal(t, ToolInputStreaming, p["state"])
	assert.Nil(t, p["input"])

	apply(t, a,
		`{"type":"tool-input-delta","toolCallId":"c1","inputTextDelta":"\"go\"}"}`,
	)
	assert.Equal(t, map[string]any{"query": "go"}, a.Snapshot().Parts[0]["input"])

	apply(t, a,
		`{"type":"tool-input-available","toolCallId":"c1","toolName":"search","input":{"query":"golang"}}`,
		`{"type":"tool-output-available","toolCallId":"c1","output":{"hits":3}}`,
	)
	p = a.Snapshot().Parts[0]
	assert.Equal(t, ToolOutputAvail, p["state"])
	assert.Equal(t, map[string]any{"query": "golang"}, p["input"])
	assert.Equal(t, map[string]any{"hits": float64(3)}, p["output"])
	assert.Len(t, a.Snapshot().Parts, 1)
}

func TestAssembler_ToolOutputError(t *testing.T) {
	a := NewAssembler()
	apply(t, a,
		`{"type":"tool-input-available","toolCallId":"c1","toolName":"fetch","input":{}}`,
		`{"type":"tool-output-error","toolCallId":"c1","errorText":"404"}`,
	)
	p := a.Snapshot().Parts[0]
	assert.Equal(t, ToolOutputError, p["state"])
	assert.Equal(t, "404", p["errorText"])

	changed, err := a.Apply([]byte(`{"type":"tool-output-available","toolCallId":"unknown","output":1}`))
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestAssembler_ReasoningAndMetadata(t *testing.T) {
	a := NewAssembler()
	apply(t, a,
		`{"type":"start","messageMetadata":{"model":"gpt"}}`,
		`{"type":"reasoning-start","id":"r1"}`,
		`{"type":"reasoning-delta","id":"r1","delta":"hmm"}`,
		`{"type":"reasoning-end","id":"r1"}`,
		`{"type":"text-delta","id":"t9","delta":"implicit start"}`,
		`{"type":"finish","messageMetadata":{"tokens":12}}`,
	)
	m := a.Snapshot()
	assert.True(t, a.Finished())
	require.Len(t, m.Parts, 2)
	assert.Equal(t, model.PartReasoning, m.Parts[0].Type())
	assert.Equal(t, "hmm", m.Parts[0]["text"])
	assert.Equal(t, "implicit start", m.Text())
	assert.Equal(t, "gpt", m.Metadata["model"])
	assert.Equal(t, float64(12), m.Metadata["tokens"])
}

func TestAssembler_SkipsMalformedAndUnknown(t *testing.T) {
	a := NewAssembler()
	for _, c := range []string{`not json`, `{"type":"mystery"}`, `{"type":"finish-step"}`} {
		changed, err := a.Apply([]byte(c))
		require.NoError(t, err)
		assert.False(t, changed, c)
	}
	assert.Empty(t, a.Snapshot().Parts)
}

func TestAssembler_DataParts(t *testing.T) {
	a := NewAssembler()
	apply(t, a,
		`{"type":"data-weather","id":"w","data":{"temp":20}}`,
		`{"type":"data-weather","id":"w","data":{"temp":21}}`,
		`{"type":"data-status","data":"x","transient":true}`,
	)
	m := a.Snapshot()
	require.Len(t, m.Parts, 1)
	assert.Equal(t, map[string]any{"temp": float64(21)}, m.Parts[0]["data"])
}

func TestStreamReader_MultiLineAndEOF(t *testing.T) {
	input := "event: message\ndata: {\"a\":\ndata: 1}\n\ndata: {\"b\":2}"
	var got []string
	err := NewStreamReader(strings.NewReader(input)).Process(context.Background(), func(d []byte) error {
		got = append(got, string(d))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"{\"a\":\n1}", `{"b":2}`}, got)
}

func TestStreamReader_StopsAtDone(t *testing.T) {
	input := sse(`{"n":1}`, `[DONE]`, `{"n":2}`)
	r := NewStreamReader(strings.NewReader(input))
	calls := 0
	require.NoError(t, r.Process(context.Background(), func([]byte) error { calls++; return nil }))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, r.Frames())
}

func TestIsDefaultLocation(t *testing.T) {
	assert.True(t, NewClient().IsDefaultLocation())
	assert.True(t, NewClientWithConfig(&ClientConfig{BaseURL: DefaultBaseURL + "/"}).IsDefaultLocation())
	assert.False(t, newTestClient("http://10.0.0.5:8000").IsDefaultLocation())
}
