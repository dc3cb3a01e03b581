// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"fmt"

	"github.com/jeranaias/convo/internal/model"
)

// =============================================================================
// TRANSCRIPT STORE
// =============================================================================

// TranscriptStore reads and writes whole transcripts keyed by conversation id.
// Writes are last-write-wins.
type TranscriptStore struct {
	kv KV
}

// NewTranscriptStore creates a transcript store over kv.
func NewTranscriptStore(kv KV) *TranscriptStore {
	return &TranscriptStore{kv: kv}
}

// Load returns the transcript stored for id.
//
// Errors: ErrReservedID for "/", ErrConversationNotFound when nothing is
// stored, and a *CorruptError when the stored value does not decode.
func (s *TranscriptStore) Load(id model.ConversationID) (model.Transcript, error) {
	if id.IsNew() {
		return nil, ErrReservedID
	}

	data, ok, err := s.kv.Get(string(id))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", id, err)
	}
	if !ok {
		return nil, ErrConversationNotFound
	}

	var t model.Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, &CorruptError{Key: string(id), Cause: err}
	}
	if t == nil {
		t = model.Transcript{}
	}
	return t, nil
}

// Save overwrites the transcript for id. Saving an empty transcript is a
// no-op so that a conversation never gets an empty stored value.
func (s *TranscriptStore) Save(id model.ConversationID, t model.Transcript) error {
	if id.IsNew() {
		return ErrReservedID
	}
	if len(t) == 0 {
		return nil
	}

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode %s: %w", id, err)
	}
	if err := s.kv.Set(string(id), data); err != nil {
		return fmt.Errorf("save %s: %w", id, err)
	}
	return nil
}
