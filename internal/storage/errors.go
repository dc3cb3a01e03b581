// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import "fmt"

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrConversationNotFound is returned when no transcript is stored for an id.
	// Use errors.Is(err, ErrConversationNotFound) to check for this error.
	ErrConversationNotFound = &ConversationError{Message: "conversation not found"}

	// ErrReservedID is returned when reading or writing under the
	// new-conversation id "/".
	ErrReservedID = &ConversationError{Message: "reserved conversation id"}

	// ErrCorruptData matches any *CorruptError.
	ErrCorruptData = &ConversationError{Message: "stored data is corrupt"}

	// ErrUnknownDriver is returned by Open for an unsupported driver name.
	ErrUnknownDriver = &ConversationError{Message: "unknown storage driver"}
)

// ConversationError represents a conversation-related error.
// It implements the error interface and can be compared using errors.Is.
type ConversationError struct {
	Message string
}

// Error implements the error interface.
func (e *ConversationError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing conversation errors.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// CorruptError reports a stored value that exists but cannot be decoded.
// Corrupt data is never treated as empty.
type CorruptError struct {
	Key   string
	Cause error
}

// Error implements the error interface.
func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt data under %q: %v", e.Key, e.Cause)
}

// Unwrap returns the decode error.
func (e *CorruptError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrCorruptData) true for every CorruptError.
func (e *CorruptError) Is(target error) bool {
	return target == ErrCorruptData
}
