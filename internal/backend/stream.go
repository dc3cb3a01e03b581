// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/jeranaias/convo/internal/model"
)

// doneSentinel terminates a UI-message stream.
const doneSentinel = "[DONE]"

// =============================================================================
// STREAM READER
// =============================================================================

// ChunkFunc receives the data payload of one server-sent event. Returning an
// error stops the stream.
type ChunkFunc func(data []byte) error

// StreamReader splits a server-sent event stream into data payloads.
type StreamReader struct {
	reader *bufio.Reader
	data   bytes.Buffer
	frames int
}

// NewStreamReader creates a new stream reader from an io.Reader.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{reader: bufio.NewReader(r)}
}

// Frames returns the number of data frames delivered so far.
func (s *StreamReader) Frames() int {
	return s.frames
}

// Process reads the stream and calls fn for each event payload.
// Blocks until [DONE], end of stream, an error from fn, or ctx is cancelled.
func (s *StreamReader) Process(ctx context.Context, fn ChunkFunc) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := s.reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return &ClientError{Type: ErrTypeStream, Message: "stream read failed", Cause: err}
		}
		eof := err == io.EOF

		line = bytes.TrimRight(line, "\r\n")
		switch {
		case len(line) == 0:
			// blank line ends an event
			if done, ferr := s.dispatch(fn); done || ferr != nil {
				return ferr
			}
		case line[0] == ':':
			// comment / keep-alive
		case bytes.HasPrefix(line, []byte("data:")):
			v := bytes.TrimPrefix(line[len("data:"):], []byte(" "))
			if s.data.Len() > 0 {
				s.data.WriteByte('\n')
			}
			s.data.Write(v)
		}

		if eof {
			_, ferr := s.dispatch(fn)
			return ferr
		}
	}
}

// dispatch delivers the buffered payload. done is true on the terminator.
func (s *StreamReader) dispatch(fn ChunkFunc) (done bool, err error) {
	if s.data.Len() == 0 {
		return false, nil
	}
	payload := append([]byte(nil), s.data.Bytes()...)
	s.data.Reset()

	if string(bytes.TrimSpace(payload)) == doneSentinel {
		return true, nil
	}
	s.frames++
	return false, fn(payload)
}

// =============================================================================
// MESSAGE ASSEMBLER
// =============================================================================

// Tool part states.
const (
	ToolInputStreaming = "input-streaming"
	ToolInputAvailable = "input-available"
	ToolOutputAvail    = "output-available"
	ToolOutputError    = "output-error"
)

// Text and reasoning part states.
const (
	PartStreaming = "streaming"
	PartDone      = "done"
)

// Assembler folds UI-message stream chunks into one assistant message.
// It is not safe for concurrent use.
type Assembler struct {
	msg model.Message

	text      map[string]int // stream part id -> index in msg.Parts
	reasoning map[string]int
	tools     map[string]int // toolCallId -> index in msg.Parts
	toolInput map[string]*strings.Builder
	data      map[string]int // data part id -> index

	finished bool
}

// NewAssembler starts an empty assistant message with a fresh id. The id is
// replaced when the stream's start chunk carries one.
func NewAssembler() *Assembler {
	return &Assembler{
		msg: model.Message{
			ID:    uuid.NewString(),
			Role:  model.RoleAssistant,
			Parts: []model.Part{},
		},
		text:      make(map[string]int),
		reasoning: make(map[string]int),
		tools:     make(map[string]int),
		toolInput: make(map[string]*strings.Builder),
		data:      make(map[string]int),
	}
}

// Snapshot returns an independent copy of the message so far.
func (a *Assembler) Snapshot() model.Message {
	return a.msg.Clone()
}

// Finished reports whether a finish chunk was seen.
func (a *Assembler) Finished() bool {
	return a.finished
}

// Apply folds one chunk into the message. changed reports whether the
// message differs afterwards. An "error" chunk yields a stream *ClientError.
// Malformed or unknown chunks are skipped.
func (a *Assembler) Apply(chunk []byte) (changed bool, err error) {
	if !gjson.ValidBytes(chunk) {
		return false, nil
	}
	c := gjson.ParseBytes(chunk)
	typ := c.Get("type").String()

	switch typ {
	case "start":
		if id := c.Get("messageId").String(); id != "" {
			a.msg.ID = id
		}
		a.mergeMetadata(c.Get("messageMetadata"))
		return true, nil

	case "start-step":
		a.msg.Parts = append(a.msg.Parts, model.Part{"type": model.PartStepStart})
		return true, nil

	case "finish-step":
		return false, nil

	case "text-start":
		a.startStreamingPart(a.text, model.PartText, c.Get("id").String())
		return true, nil
	case "text-delta":
		a.appendDelta(a.text, model.PartText, c.Get("id").String(), c.Get("delta").String())
		return true, nil
	case "text-end":
		return a.endStreamingPart(a.text, c.Get("id").String()), nil

	case "reasoning-start":
		a.startStreamingPart(a.reasoning, model.PartReasoning, c.Get("id").String())
		return true, nil
	case "reasoning-delta":
		a.appendDelta(a.reasoning, model.PartReasoning, c.Get("id").String(), c.Get("delta").String())
		return true, nil
	case "reasoning-end":
		return a.endStreamingPart(a.reasoning, c.Get("id").String()), nil

	case "source-url":
		p := model.Part{
			"type":     model.PartSourceURL,
			"sourceId": c.Get("sourceId").String(),
			"url":      c.Get("url").String(),
		}
		if t := c.Get("title"); t.Exists() {
			p["title"] = t.String()
		}
		a.msg.Parts = append(a.msg.Parts, p)
		return true, nil

	case "source-document":
		p := model.Part{
			"type":      model.PartSourceDocument,
			"sourceId":  c.Get("sourceId").String(),
			"mediaType": c.Get("mediaType").String(),
			"title":     c.Get("title").String(),
		}
		if f := c.Get("filename"); f.Exists() {
			p["filename"] = f.String()
		}
		a.msg.Parts = append(a.msg.Parts, p)
		return true, nil

	case "file":
		a.msg.Parts = append(a.msg.Parts, model.Part{
			"type":      "file",
			"url":       c.Get("url").String(),
			"mediaType": c.Get("mediaType").String(),
		})
		return true, nil

	case "tool-input-start":
		p := a.toolPart(c.Get("toolCallId").String(), c.Get("toolName").String())
		p["state"] = ToolInputStreaming
		return true, nil

	case "tool-input-delta":
		id := c.Get("toolCallId").String()
		idx, ok := a.tools[id]
		if !ok {
			return false, nil
		}
		sb := a.toolInput[id]
		if sb == nil {
			sb = &strings.Builder{}
			a.toolInput[id] = sb
		}
		sb.WriteString(c.Get("inputTextDelta").String())
		if partial := sb.String(); gjson.Valid(partial) {
			a.msg.Parts[idx]["input"] = gjson.Parse(partial).Value()
		}
		return true, nil

	case "tool-input-available":
		id := c.Get("toolCallId").String()
		p := a.toolPart(id, c.Get("toolName").String())
		p["state"] = ToolInputAvailable
		p["input"] = c.Get("input").Value()
		delete(a.toolInput, id)
		return true, nil

	case "tool-input-error":
		p := a.toolPart(c.Get("toolCallId").String(), c.Get("toolName").String())
		p["state"] = ToolOutputError
		p["input"] = c.Get("input").Value()
		p["errorText"] = c.Get("errorText").String()
		return true, nil

	case "tool-output-available":
		idx, ok := a.tools[c.Get("toolCallId").String()]
		if !ok {
			return false, nil
		}
		a.msg.Parts[idx]["state"] = ToolOutputAvail
		a.msg.Parts[idx]["output"] = c.Get("output").Value()
		return true, nil

	case "tool-output-error":
		idx, ok := a.tools[c.Get("toolCallId").String()]
		if !ok {
			return false, nil
		}
		a.msg.Parts[idx]["state"] = ToolOutputError
		a.msg.Parts[idx]["errorText"] = c.Get("errorText").String()
		return true, nil

	case "message-metadata":
		return a.mergeMetadata(c.Get("messageMetadata")), nil

	case "finish":
		a.finished = true
		return a.mergeMetadata(c.Get("messageMetadata")), nil

	case "error":
		msg := c.Get("errorText").String()
		if msg == "" {
			msg = "stream error"
		}
		return false, &ClientError{Type: ErrTypeStream, Message: msg}
	}

	if strings.HasPrefix(typ, "data-") && !c.Get("transient").Bool() {
		p := model.Part{"type": typ, "data": c.Get("data").Value()}
		id := c.Get("id").String()
		if id != "" {
			p["id"] = id
			if idx, ok := a.data[id]; ok {
				a.msg.Parts[idx] = p
				return true, nil
			}
			a.data[id] = len(a.msg.Parts)
		}
		a.msg.Parts = append(a.msg.Parts, p)
		return true, nil
	}

	return false, nil
}

func (a *Assembler) startStreamingPart(index map[string]int, typ, id string) {
	index[id] = len(a.msg.Parts)
	a.msg.Parts = append(a.msg.Parts, model.Part{"type": typ, "text": "", "state": PartStreaming})
}

func (a *Assembler) appendDelta(index map[string]int, typ, id, delta string) {
	idx, ok := index[id]
	if !ok {
		a.startStreamingPart(index, typ, id)
		idx = index[id]
	}
	p := a.msg.Parts[idx]
	p["text"] = p.StringField("text") + delta
}

func (a *Assembler) endStreamingPart(index map[string]int, id string) bool {
	idx, ok := index[id]
	if !ok {
		return false
	}
	a.msg.Parts[idx]["state"] = PartDone
	delete(index, id)
	return true
}

// toolPart returns the part for toolCallId, creating it if needed.
func (a *Assembler) toolPart(toolCallID, toolName string) model.Part {
	if idx, ok := a.tools[toolCallID]; ok {
		return a.msg.Parts[idx]
	}
	p := model.Part{
		"type":       model.PartToolPrefix + toolName,
		"toolCallId": toolCallID,
	}
	a.tools[toolCallID] = len(a.msg.Parts)
	a.msg.Parts = append(a.msg.Parts, p)
	return p
}

func (a *Assembler) mergeMetadata(v gjson.Result) bool {
	if !v.IsObject() {
		return false
	}
	m, ok := v.Value().(map[string]any)
	if !ok || len(m) == 0 {
		return false
	}
	if a.msg.Metadata == nil {
		a.msg.Metadata = make(map[string]any, len(m))
	}
	for k, val := range m {
		a.msg.Metadata[k] = val
	}
	return true
}
