// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jeranaias/convo/internal/model"
	"github.com/jeranaias/convo/internal/session"
)

// replyPrinter writes the text of a streaming reply to w as it grows. It only
// prints while armed so transcripts loaded by navigation are not echoed.
type replyPrinter struct {
	w io.Writer

	mu      sync.Mutex
	armed   bool
	skipID  string // reply that existed before arming
	id      string
	printed string
	wrote   bool
}

func newReplyPrinter(w io.Writer) *replyPrinter {
	return &replyPrinter{w: w}
}

// arm starts printing replies newer than the last message of current.
func (p *replyPrinter) arm(current model.Transcript) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.armed = true
	p.skipID = ""
	if last, ok := current.Last(); ok && last.Role == model.RoleAssistant {
		p.skipID = last.ID
	}
	p.id, p.printed, p.wrote = "", "", false
}

// disarm stops printing and ends the line if anything was written.
func (p *replyPrinter) disarm() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.armed = false
	if p.wrote && !strings.HasSuffix(p.printed, "\n") {
		fmt.Fprintln(p.w)
	}
}

// Update is a session change listener.
func (p *replyPrinter) Update(s session.Snapshot) {
	last, ok := s.Messages.Last()
	if !ok || last.Role != model.RoleAssistant {
		return
	}
	text := last.Text()

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.armed || last.ID == p.skipID {
		return
	}
	if last.ID != p.id {
		p.id, p.printed = last.ID, ""
	}
	switch {
	case strings.HasPrefix(text, p.printed):
		io.WriteString(p.w, text[len(p.printed):])
	default:
		// earlier text was rewritten; start a fresh line
		fmt.Fprint(p.w, "\n"+text)
	}
	if text != "" {
		p.wrote = true
	}
	p.printed = text
}
