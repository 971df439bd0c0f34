// Package session drives a single chat conversation: it accepts user input,
// asks the generator for a reply through the retry policy, records both
// turns and persists the result.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/qmuntal/stateless"

	"github.com/comigor/evo-go/internal/history"
	"github.com/comigor/evo-go/internal/llm"
	"github.com/comigor/evo-go/internal/logger"
	"github.com/comigor/evo-go/internal/retry"
)

// State of the controller's request FSM.
type State string

const (
	StateIdle    State = "Idle"
	StatePending State = "Pending"
)

// Trigger moves the request FSM between states.
type Trigger string

const (
	TriggerSubmit    Trigger = "Submit"
	TriggerSucceeded Trigger = "Succeeded"
	TriggerFailed    Trigger = "Failed"
)

const defaultAssistantName = "Evo"

// Clipboard receives text copied from the conversation.
type Clipboard interface {
	WriteAll(text string) error
}

// Options tune a Controller. Zero values select the defaults.
type Options struct {
	Policy        retry.Policy
	AssistantName string
	Clipboard     Clipboard
}

// Controller owns one conversation. At most one submission is pending at a
// time; every other mutation is rejected with ErrBusy while it is.
type Controller struct {
	mu            sync.Mutex
	gen           llm.Generator
	store         *history.Store
	policy        retry.Policy
	fsm           *stateless.StateMachine
	assistantName string
	clipboard     Clipboard
	lastErr       error

	subsMu  sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

// New restores the store and returns an idle controller. Storage failures
// during restore are logged and leave the affected state empty.
func New(ctx context.Context, gen llm.Generator, store *history.Store, opts Options) *Controller {
	policy := opts.Policy
	// an unset attempt count selects the default pacing; other fields are kept
	if policy.MaxAttempts == 0 {
		policy.MaxAttempts = retry.DefaultMaxAttempts
		if policy.Backoff == 0 {
			policy.Backoff = retry.DefaultBackoff
		}
	}
	if policy.Retryable == nil {
		policy.Retryable = llm.IsUnavailable
	}
	name := opts.AssistantName
	if name == "" {
		name = defaultAssistantName
	}

	c := &Controller{
		gen:           gen,
		store:         store,
		policy:        policy,
		assistantName: name,
		clipboard:     opts.Clipboard,
		subs:          make(map[int]func(Event)),
	}

	if err := store.Restore(ctx); err != nil {
		logger.L.Warn("failed to restore chat history; continuing with empty state", "error", err)
	}

	c.fsm = stateless.NewStateMachine(StateIdle)
	c.fsm.Configure(StateIdle).
		Permit(TriggerSubmit, StatePending)
	c.fsm.Configure(StatePending).
		OnEntry(func(ctx context.Context, args ...any) error {
			logger.L.Debug("FSM: Entering StatePending", "assistant", c.assistantName)
			return nil
		}).
		Permit(TriggerSucceeded, StateIdle).
		Permit(TriggerFailed, StateIdle)
	c.fsm.OnTransitioned(func(ctx context.Context, t stateless.Transition) {
		dest, _ := t.Destination.(State)
		c.emit(Event{Type: EventState, State: dest, Turns: c.store.Len()})
	})

	return c
}

// AssistantName is the display name used in user-facing messages.
func (c *Controller) AssistantName() string {
	return c.assistantName
}

// State reports whether a submission is pending.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state()
}

func (c *Controller) state() State {
	s, _ := c.fsm.MustState().(State)
	return s
}

// LastError is the error of the most recent failed submission, cleared by
// the next submission.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Turns returns a copy of the live conversation.
func (c *Controller) Turns() []history.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Turns()
}

// SavedSessions returns copies of the saved sessions.
func (c *Controller) SavedSessions() []history.SavedSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.SavedSessions()
}

// Selected is the index of the last loaded saved session, or -1.
func (c *Controller) Selected() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Selected()
}

// Submit sends text upstream and, on success, appends the user turn and the
// assistant reply. On failure the conversation is left unchanged.
func (c *Controller) Submit(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyInput
	}

	c.mu.Lock()
	if c.state() != StateIdle {
		c.mu.Unlock()
		return "", ErrBusy
	}
	if err := c.fsm.FireCtx(ctx, TriggerSubmit); err != nil {
		c.mu.Unlock()
		return "", fmt.Errorf("%w: %w", ErrBusy, err)
	}
	c.lastErr = nil
	c.mu.Unlock()

	log := logger.L.With("request_id", uuid.NewString())
	log.Info("submitting prompt", "length", len(text))

	resp, err := retry.Do(ctx, c.policy, func(ctx context.Context) (llm.Response, error) {
		return c.gen.Generate(ctx, text)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	// persistence outlives a cancelled request
	persistCtx := context.WithoutCancel(ctx)

	if err != nil {
		err = classifyUpstream(err, c.policy.Retryable)
		log.Error("LLM call failed", "error", err)
		c.lastErr = err
		c.fire(persistCtx, TriggerFailed)
		c.publish(EventError, err)
		return "", err
	}

	reply := resp.Text
	if resp.Empty() {
		reply = c.noResponseText()
	}
	now := c.store.Now()
	c.store.Append(
		history.Turn{Role: history.RoleUser, Content: text, CreatedAt: now},
		history.Turn{Role: history.RoleAssistant, Content: reply, CreatedAt: now},
	)
	c.persistConversation(persistCtx)
	c.fire(persistCtx, TriggerSucceeded)
	c.publish(EventConversation, nil)
	log.Info("reply recorded", "turns", c.store.Len())
	return reply, nil
}

// Regenerate resubmits the most recent user turn, which must be the
// second-to-last turn. The new pair is appended; the old one stays.
func (c *Controller) Regenerate(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.state() != StateIdle {
		c.mu.Unlock()
		return "", ErrBusy
	}
	n := c.store.Len()
	if n < 2 {
		c.mu.Unlock()
		return "", ErrNoPriorUserTurn
	}
	prev, _ := c.store.Turn(n - 2)
	c.mu.Unlock()

	if prev.Role != history.RoleUser {
		return "", ErrNoPriorUserTurn
	}
	return c.Submit(ctx, prev.Content)
}

// EditUserTurn returns the content of user turn i for re-editing and drops
// it together with every later turn.
func (c *Controller) EditUserTurn(ctx context.Context, i int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state() != StateIdle {
		return "", ErrBusy
	}

	t, err := c.store.Turn(i)
	if err != nil {
		return "", err
	}
	if t.Role != history.RoleUser {
		return "", fmt.Errorf("%w: turn %d is a %s turn", history.ErrInvalidTarget, i, t.Role)
	}
	content, err := c.store.TruncateBefore(i)
	if err != nil {
		return "", err
	}
	c.persistConversation(ctx)
	c.publish(EventConversation, nil)
	return content, nil
}

// Rate sets or overwrites the rating of assistant turn i.
func (c *Controller) Rate(ctx context.Context, i int, rating history.Rating) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state() != StateIdle {
		return ErrBusy
	}

	if err := c.store.Rate(i, rating); err != nil {
		return err
	}
	c.persistConversation(ctx)
	c.publish(EventConversation, nil)
	return nil
}

// NewChat empties the live conversation and persists the empty state.
func (c *Controller) NewChat(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state() != StateIdle {
		return ErrBusy
	}

	c.store.Clear()
	c.lastErr = nil
	c.persistConversation(ctx)
	c.publish(EventConversation, nil)
	return nil
}

// DeleteHistory empties the live conversation and removes it from storage.
func (c *Controller) DeleteHistory(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state() != StateIdle {
		return ErrBusy
	}

	c.store.Clear()
	c.lastErr = nil
	if err := c.store.RemoveConversation(ctx); err != nil {
		logger.L.Warn("failed to remove chat history", "error", err)
	}
	c.publish(EventConversation, nil)
	return nil
}

// Save snapshots the live conversation under name (or a timestamped default).
func (c *Controller) Save(ctx context.Context, name string) (history.SavedSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ss := c.store.Save(strings.TrimSpace(name))
	if err := c.store.PersistSaved(ctx); err != nil {
		logger.L.Warn("failed to persist saved chats", "error", err)
	}
	logger.L.Info("chat saved", "name", ss.Name, "turns", len(ss.Turns))
	c.publish(EventSaved, nil)
	return ss, nil
}

// Load replaces the live conversation with a copy of saved session i.
func (c *Controller) Load(ctx context.Context, i int) ([]history.Turn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state() != StateIdle {
		return nil, ErrBusy
	}

	turns, err := c.store.Load(i)
	if err != nil {
		return nil, err
	}
	c.persistConversation(ctx)
	c.publish(EventConversation, nil)
	return turns, nil
}

// Copy writes the content of turn i to the clipboard.
func (c *Controller) Copy(i int) (string, error) {
	c.mu.Lock()
	t, err := c.store.Turn(i)
	c.mu.Unlock()
	if err != nil {
		return "", err
	}
	if c.clipboard == nil {
		return "", ErrNoClipboard
	}
	if err := c.clipboard.WriteAll(t.Content); err != nil {
		return "", fmt.Errorf("copy to clipboard: %w", err)
	}
	return t.Content, nil
}

func (c *Controller) noResponseText() string {
	return fmt.Sprintf("No response received from %s.", c.assistantName)
}

// persistConversation logs storage failures; the in-memory change stands.
func (c *Controller) persistConversation(ctx context.Context) {
	if err := c.store.PersistConversation(ctx); err != nil {
		logger.L.Warn("failed to persist chat history", "error", err)
	}
}

func (c *Controller) fire(ctx context.Context, trigger Trigger) {
	if err := c.fsm.FireCtx(ctx, trigger); err != nil {
		logger.L.Warn("FSM fire error", "trigger", trigger, "error", err)
	}
}
