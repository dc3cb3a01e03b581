// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/convo/internal/backend"
	"github.com/jeranaias/convo/internal/config"
	"github.com/jeranaias/convo/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitNetworkError  = 5
	ExitNotFoundError = 7
	ExitTimeoutError  = 8
	ExitDataError     = 9
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError is a bad argument or flag.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// NewUsageError formats a usage error.
func NewUsageError(format string, args ...any) error {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError indicates a missing resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// Unwrap lets errors.Is match storage.ErrConversationNotFound for
// conversations.
func (e *NotFoundError) Unwrap() error {
	if e.Resource == "conversation" {
		return storage.ErrConversationNotFound
	}
	return nil
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err to w, as JSON in JSON mode.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		_ = NewJSONErrorResponse("", err).Write(w)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
	if hint := errorHint(err); hint != "" {
		fmt.Fprintln(w, DimStyle.Render(hint))
	}
}

func errorHint(err error) string {
	var verrs config.ValidateErrors
	switch {
	case backend.IsNotRunning(err):
		return "Is the backend running? Check it with 'convo health'."
	case errors.As(err, &verrs):
		return "Fix the configuration with 'convo config set' or edit the file shown by 'convo config path'."
	case errors.Is(err, storage.ErrCorruptData):
		return "The stored data could not be parsed and was left untouched."
	}
	return ""
}

// GetExitCode maps an error to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *UsageError
	var verrs config.ValidateErrors
	var verr config.ValidationError
	switch {
	case errors.As(err, &usage):
		return ExitUsageError
	case errors.As(err, &verrs), errors.As(err, &verr):
		return ExitConfigError
	case errors.Is(err, storage.ErrConversationNotFound):
		return ExitNotFoundError
	case errors.Is(err, storage.ErrCorruptData):
		return ExitDataError
	case backend.IsTimeout(err):
		return ExitTimeoutError
	case backend.IsNotRunning(err):
		return ExitNetworkError
	}

	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		return ExitNotFoundError
	}
	return ExitGeneralError
}

// =============================================================================
// JSON OUTPUT
// =============================================================================

// JSONResponse is the envelope of --json output.
type JSONResponse struct {
	Success bool    `json:"success"`
	Data    any     `json:"data"`
	Error   *string `json:"error"`
	Command string  `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{Success: true, Data: data, Command: command}
}

// NewJSONErrorResponse creates an error response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	msg := err.Error()
	return &JSONResponse{Error: &msg, Command: command}
}

// Write encodes the response to w with indentation.
func (r *JSONResponse) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
