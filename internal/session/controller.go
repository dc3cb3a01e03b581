// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/convo/internal/backend"
	"github.com/jeranaias/convo/internal/env"
	"github.com/jeranaias/convo/internal/identity"
	"github.com/jeranaias/convo/internal/model"
	"github.com/jeranaias/convo/internal/notify"
	"github.com/jeranaias/convo/internal/storage"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrBusy is returned when a reply is already streaming.
	ErrBusy = errors.New("a reply is already in progress")

	// ErrNoConversation is returned by Regenerate before any conversation
	// is open.
	ErrNoConversation = errors.New("no conversation is open")

	// ErrMessageNotFound is returned by Regenerate for an unknown message id.
	ErrMessageNotFound = errors.New("message not found")

	// ErrConversationUnavailable is returned when the stored transcript of the
	// open conversation could not be read. The conversation is read-only until
	// the surface navigates elsewhere.
	ErrConversationUnavailable = errors.New("conversation could not be loaded")
)

// =============================================================================
// TYPES
// =============================================================================

// State is the controller lifecycle state.
type State string

const (
	StateNoConversation State = "no-conversation"
	StateLoading        State = "loading"
	StateActive         State = "active"
)

// Transport streams assistant replies.
type Transport interface {
	Stream(ctx context.Context, req backend.ChatRequest, emit backend.EmitFunc) error
}

// Config holds controller settings.
type Config struct {
	// PersistInterval rate-limits transcript writes while a reply streams
	// (default: 500ms).
	PersistInterval time.Duration

	Logger *zap.Logger

	// Now is the clock used for index timestamps.
	Now func() time.Time
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() Config {
	return Config{PersistInterval: 500 * time.Millisecond}
}

// Snapshot is a point-in-time copy of the controller, safe to keep.
type Snapshot struct {
	State     State
	ID        model.ConversationID
	Messages  model.Transcript
	Streaming bool
	Err       error
	ReadOnly  bool
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller keeps one surface's conversation in sync with its location and
// the local store. It is safe for concurrent use.
type Controller struct {
	env         env.Environment
	resolver    *identity.Resolver
	transport   Transport
	transcripts *storage.TranscriptStore
	index       *storage.IndexStore
	throttle    *Throttle
	logger      *zap.Logger
	now         func() time.Time

	mu       sync.Mutex
	state    State
	id       model.ConversationID
	messages model.Transcript
	readOnly bool // stored transcript unreadable; never overwrite it
	err      error

	// gen changes whenever the controller leaves a conversation; stream
	// updates carrying an older gen are dropped.
	gen          uint64
	streaming    bool
	streamCancel context.CancelFunc

	mounted  bool
	unsubs   []func()
	onChange []func(Snapshot)
}

// NewController creates a controller for surface e. Transcripts and the index
// are read and written through e so other surfaces are notified.
func NewController(e env.Environment, resolver *identity.Resolver, transport Transport, cfg Config) *Controller {
	if cfg.PersistInterval < 0 {
		cfg.PersistInterval = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	c := &Controller{
		env:         e,
		resolver:    resolver,
		transport:   transport,
		transcripts: storage.NewTranscriptStore(e),
		index:       storage.NewIndexStore(e),
		logger:      logger,
		now:         now,
		state:       StateNoConversation,
		id:          model.NewConversation,
		messages:    model.Transcript{},
	}
	c.throttle = NewThrottle(cfg.PersistInterval, c.persist)
	return c
}

// OnChange registers fn to receive a snapshot after every change. Callbacks
// run outside the controller lock, on whichever goroutine made the change.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	c.onChange = append(c.onChange, fn)
	c.mu.Unlock()
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:     c.state,
		ID:        c.id,
		Messages:  c.messages.Clone(),
		Streaming: c.streaming,
		Err:       c.err,
		ReadOnly:  c.readOnly,
	}
}

// ID returns the open conversation id ("/" when none).
func (c *Controller) ID() model.ConversationID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Err returns the current error banner, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// DismissError clears the error banner.
func (c *Controller) DismissError() {
	c.mu.Lock()
	changed := c.err != nil
	c.err = nil
	c.mu.Unlock()
	if changed {
		c.notify()
	}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Mount loads the conversation at the surface's location and starts
// following navigation signals.
func (c *Controller) Mount() {
	c.mu.Lock()
	if c.mounted {
		c.mu.Unlock()
		return
	}
	c.mounted = true
	c.unsubs = append(c.unsubs,
		c.env.Subscribe(notify.SignalHistoryStateChanged, func(notify.Event) { c.Sync() }),
		c.env.Subscribe(notify.SignalPopState, func(notify.Event) { c.Sync() }),
	)
	c.mu.Unlock()

	c.Sync()
}

// Unmount writes pending changes, abandons any in-flight reply and stops
// following navigation. The controller must not be used afterwards.
func (c *Controller) Unmount() {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return
	}
	c.mounted = false
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()

	for _, u := range unsubs {
		u()
	}

	c.throttle.Flush()
	c.abandon()
	c.throttle.Stop()
}

// abandon invalidates the in-flight reply so its remaining updates are
// dropped, and cancels it.
func (c *Controller) abandon() {
	c.mu.Lock()
	c.gen++
	cancel := c.streamCancel
	c.streamCancel = nil
	c.streaming = false
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Sync re-resolves the surface location. If it names a different
// conversation the old one is flushed and the new one loaded.
func (c *Controller) Sync() {
	next := c.resolver.Resolve(c.env.Location())

	c.mu.Lock()
	if next == c.id {
		c.mu.Unlock()
		return
	}
	prev := c.id
	c.mu.Unlock()

	c.abandon()
	c.throttle.Flush()

	c.mu.Lock()
	c.id = next
	c.messages = model.Transcript{}
	c.readOnly = false
	c.err = nil
	if next.IsNew() {
		c.state = StateNoConversation
		c.mu.Unlock()
		c.logger.Debug("left conversation", zap.String("from", prev.String()))
		c.notify()
		return
	}
	c.state = StateLoading
	gen := c.gen
	c.mu.Unlock()
	c.notify()

	msgs, err := c.transcripts.Load(next)

	c.mu.Lock()
	if c.gen != gen || c.id != next {
		// navigated again while loading
		c.mu.Unlock()
		return
	}
	switch {
	case err == nil:
		c.messages = msgs
	case errors.Is(err, storage.ErrConversationNotFound):
		// nothing stored yet; start empty
	default:
		c.readOnly = true
		c.err = fmt.Errorf("%w: %w", ErrConversationUnavailable, err)
		c.logger.Error("failed to load conversation", zap.String("id", next.String()), zap.Error(err))
	}
	c.state = StateActive
	c.mu.Unlock()

	c.logger.Debug("opened conversation", zap.String("id", next.String()), zap.Int("messages", len(msgs)))
	c.notify()
}

// =============================================================================
// SUBMISSION
// =============================================================================

// Submit sends text as a user message and blocks until the reply has
// streamed. Blank text is ignored. At the root location a new conversation is
// created first: the surface moves to its location and the index records it.
//
// Stop and navigation end the reply early without error. A transport error is
// returned and also kept as the error banner; the transcript keeps whatever
// had streamed.
func (c *Controller) Submit(ctx context.Context, text string, opts backend.Options) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	c.mu.Lock()
	if c.streaming || c.state == StateLoading {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.readOnly {
		c.mu.Unlock()
		return ErrConversationUnavailable
	}
	created := c.state == StateNoConversation
	if created {
		c.id = model.NewConversationID()
		c.state = StateActive
		c.messages = model.Transcript{}
	}
	id := c.id
	c.mu.Unlock()

	if created {
		c.env.SetLocation(c.resolver.Location(id))
		c.env.Dispatch(notify.Event{Signal: notify.SignalHistoryStateChanged})

		if err := c.index.Append(model.NewConversationEntry(id, text, c.now())); err != nil {
			c.logger.Error("failed to record conversation", zap.String("id", id.String()), zap.Error(err))
		}
		c.env.Dispatch(notify.Event{Signal: notify.SignalLocalStorageChange, Key: storage.IndexKey})
		c.logger.Info("started conversation", zap.String("id", id.String()))
	}

	c.mu.Lock()
	if c.id != id || c.streaming {
		// a navigation or another submission won the race
		c.mu.Unlock()
		return ErrBusy
	}
	c.messages = append(c.messages, model.NewUserMessage(text))
	return c.streamLocked(ctx, backend.TriggerSubmit, "", opts)
}

// Regenerate replaces the reply to a message. For an assistant message the
// message and everything after it is dropped; for a user message everything
// after it is dropped. The reply is then requested again.
func (c *Controller) Regenerate(ctx context.Context, messageID string, opts backend.Options) error {
	c.mu.Lock()
	switch {
	case c.streaming || c.state == StateLoading:
		c.mu.Unlock()
		return ErrBusy
	case c.readOnly:
		c.mu.Unlock()
		return ErrConversationUnavailable
	case c.state != StateActive:
		c.mu.Unlock()
		return ErrNoConversation
	}

	i := c.messages.IndexOf(messageID)
	if i < 0 {
		c.mu.Unlock()
		return ErrMessageNotFound
	}
	keep := i + 1
	if c.messages[i].Role == model.RoleAssistant {
		keep = i
	}
	c.messages = append(model.Transcript{}, c.messages[:keep]...)
	return c.streamLocked(ctx, backend.TriggerRegenerate, messageID, opts)
}

// Stop cancels the in-flight reply. What has streamed so far is kept.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.streamCancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// streamLocked runs one reply. It is entered with c.mu held and releases it.
func (c *Controller) streamLocked(ctx context.Context, trigger backend.Trigger, messageID string, opts backend.Options) error {
	gen := c.gen
	streamCtx, cancel := context.WithCancel(ctx)
	c.streaming = true
	c.streamCancel = cancel
	c.err = nil
	req := backend.ChatRequest{
		ID:        string(c.id),
		Messages:  c.messages.Clone(),
		Trigger:   trigger,
		MessageID: messageID,
		Options:   opts,
	}
	c.mu.Unlock()
	defer cancel()

	c.throttle.Trigger()
	c.notify()

	err := c.transport.Stream(streamCtx, req, func(m model.Message) {
		c.applyUpdate(gen, m)
	})

	c.mu.Lock()
	current := c.gen == gen
	stopped := streamCtx.Err() != nil && ctx.Err() == nil
	if current {
		c.streaming = false
		c.streamCancel = nil
		if err != nil && !stopped && ctx.Err() == nil {
			c.err = err
		}
	}
	c.mu.Unlock()

	if !current {
		c.logger.Debug("abandoned reply", zap.String("id", req.ID))
		return nil
	}

	c.throttle.Flush()
	c.notify()

	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case stopped:
		return nil
	case err != nil:
		c.logger.Warn("reply failed", zap.String("id", req.ID), zap.Error(err))
		return err
	}
	return nil
}

// applyUpdate upserts a streamed message unless the controller has moved on.
func (c *Controller) applyUpdate(gen uint64, m model.Message) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.messages = c.messages.Upsert(m)
	c.mu.Unlock()

	c.throttle.Trigger()
	c.notify()
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// persist writes the open transcript. It never writes under "/", never
// writes an empty transcript and never overwrites one that failed to load.
func (c *Controller) persist() {
	c.mu.Lock()
	id := c.id
	skip := id.IsNew() || c.readOnly || len(c.messages) == 0 || c.state != StateActive
	msgs := c.messages.Clone()
	c.mu.Unlock()

	if skip {
		return
	}
	if err := c.transcripts.Save(id, msgs); err != nil {
		c.logger.Error("failed to save conversation", zap.String("id", id.String()), zap.Error(err))
		c.mu.Lock()
		if c.id == id {
			c.err = fmt.Errorf("saving conversation: %w", err)
		}
		c.mu.Unlock()
		c.notify()
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	if len(c.onChange) == 0 {
		c.mu.Unlock()
		return
	}
	s := c.snapshotLocked()
	fns := append([]func(Snapshot){}, c.onChange...)
	c.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
