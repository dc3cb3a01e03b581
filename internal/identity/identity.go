// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package identity maps surface locations to conversation ids and back.
//
// A location is the path a surface is "at" (optionally a full URL). The
// resolver strips the configured base path and what remains is the
// conversation id; the root path means "new conversation".
//
// Stripping only happens at a path-segment boundary: with base "/app",
// "/app/abc" resolves to "/abc" but "/apple" resolves to "/apple".
package identity

import (
	"net/url"
	"strings"

	"github.com/jeranaias/convo/internal/model"
)

// Resolver converts between locations and conversation ids. It is immutable
// and safe for concurrent use.
type Resolver struct {
	base string // "" or "/segment[/segment...]" without trailing slash
}

// NewResolver creates a resolver for the given deployment base path.
func NewResolver(basePath string) *Resolver {
	return &Resolver{base: normalizeBase(basePath)}
}

// BasePath returns the normalized base path ("" when served at root).
func (r *Resolver) BasePath() string {
	return r.base
}

// Resolve derives the conversation id from a location. The empty remainder
// and "/" both resolve to model.NewConversation.
func (r *Resolver) Resolve(location string) model.ConversationID {
	p := pathOf(location)

	if r.base != "" {
		switch {
		case p == r.base:
			p = ""
		case strings.HasPrefix(p, r.base+"/"):
			p = p[len(r.base):]
		}
	}

	p = strings.TrimRight(p, "/")
	if p == "" {
		return model.NewConversation
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return model.ConversationID(p)
}

// Location returns the path a surface should navigate to for id.
func (r *Resolver) Location(id model.ConversationID) string {
	if id.IsNew() {
		if r.base == "" {
			return "/"
		}
		return r.base
	}
	s := string(id)
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	return r.base + s
}

func normalizeBase(basePath string) string {
	b := strings.TrimSpace(basePath)
	b = strings.TrimRight(b, "/")
	if b == "" {
		return ""
	}
	if !strings.HasPrefix(b, "/") {
		b = "/" + b
	}
	return b
}

// pathOf extracts the path from a full URL, or drops query and fragment
// from a bare path.
func pathOf(location string) string {
	loc := strings.TrimSpace(location)
	if strings.Contains(loc, "://") {
		if u, err := url.Parse(loc); err == nil {
			return u.Path
		}
	}
	if i := strings.IndexAny(loc, "?#"); i >= 0 {
		loc = loc[:i]
	}
	return loc
}
