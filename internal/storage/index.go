// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/jeranaias/convo/internal/model"
)

// IndexKey is the storage key of the conversation index.
const IndexKey = "conversationIds"

// =============================================================================
// CONVERSATION INDEX
// =============================================================================

// IndexStore maintains the most-recent-first list of conversation entries.
type IndexStore struct {
	kv KV

	// mu serializes read-modify-write within this process
	mu sync.Mutex
}

// NewIndexStore creates an index store over kv.
func NewIndexStore(kv KV) *IndexStore {
	return &IndexStore{kv: kv}
}

// List returns all entries, most recent first. An absent index is empty; a
// corrupt one is a *CorruptError.
func (s *IndexStore) List() ([]model.ConversationEntry, error) {
	data, ok, err := s.kv.Get(IndexKey)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	if !ok {
		return []model.ConversationEntry{}, nil
	}

	var entries []model.ConversationEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &CorruptError{Key: IndexKey, Cause: err}
	}
	if entries == nil {
		entries = []model.ConversationEntry{}
	}
	return entries, nil
}

// Append prepends entry to the index. It does not check for duplicates and
// refuses to overwrite an index it cannot decode.
func (s *IndexStore) Append(entry model.ConversationEntry) error {
	if entry.ID.IsNew() {
		return ErrReservedID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.List()
	if err != nil {
		return err
	}

	updated := make([]model.ConversationEntry, 0, len(entries)+1)
	updated = append(updated, entry)
	updated = append(updated, entries...)

	data, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := s.kv.Set(IndexKey, data); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	return nil
}

// Get returns the first entry for id.
func (s *IndexStore) Get(id model.ConversationID) (model.ConversationEntry, error) {
	entries, err := s.List()
	if err != nil {
		return model.ConversationEntry{}, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
	}
	return model.ConversationEntry{}, ErrConversationNotFound
}

// Search finds entries whose first message contains query, ignoring case.
func (s *IndexStore) Search(query string) ([]model.ConversationEntry, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return all, nil
	}

	var results []model.ConversationEntry
	for _, e := range all {
		if strings.Contains(strings.ToLower(e.FirstMessage), query) {
			results = append(results, e)
		}
	}
	return results, nil
}
