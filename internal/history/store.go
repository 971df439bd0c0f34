// Package history keeps the live conversation and the saved-session list,
// persisted as JSON under two keys of a storage.KV.
//
// Mutators only change memory; callers persist explicitly. A Store is owned
// by a single controller and is not safe for concurrent use.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/comigor/evo-go/internal/storage"
)

// Storage keys, shared with the mobile client's layout.
const (
	KeyConversation = "chatHistory"
	KeySaved        = "savedChats"
)

// SaveNameLayout mirrors an en-US toLocaleString() rendering.
const SaveNameLayout = "1/2/2006, 3:04:05 PM"

var (
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrInvalidTarget   = errors.New("invalid target")
	ErrStorageFailure  = errors.New("storage failure")
)

// Store holds the live conversation and saved sessions.
type Store struct {
	kv       storage.KV
	turns    []Turn
	saved    []SavedSession
	selected int
	now      func() time.Time
}

// NewStore returns an empty store backed by kv. Call Restore to load state.
func NewStore(kv storage.KV) *Store {
	return &Store{
		kv:       kv,
		turns:    []Turn{},
		saved:    []SavedSession{},
		selected: -1,
		now:      time.Now,
	}
}

// SetClock overrides the time source used for turn and save timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Now returns the store's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// Turns returns a copy of the live conversation.
func (s *Store) Turns() []Turn {
	return cloneTurns(s.turns)
}

// Len is the number of turns in the live conversation.
func (s *Store) Len() int {
	return len(s.turns)
}

// Turn returns the turn at i.
func (s *Store) Turn(i int) (Turn, error) {
	if i < 0 || i >= len(s.turns) {
		return Turn{}, fmt.Errorf("%w: turn %d of %d", ErrIndexOutOfRange, i, len(s.turns))
	}
	return s.turns[i], nil
}

// SavedSessions returns copies of the saved snapshots in save order.
func (s *Store) SavedSessions() []SavedSession {
	out := make([]SavedSession, len(s.saved))
	for i, ss := range s.saved {
		ss.Turns = cloneTurns(ss.Turns)
		out[i] = ss
	}
	return out
}

// Selected is the index of the last loaded saved session, or -1.
func (s *Store) Selected() int {
	return s.selected
}

// Append adds turns to the end of the live conversation. Growth is unbounded.
func (s *Store) Append(turns ...Turn) {
	s.turns = append(s.turns, turns...)
}

// TruncateBefore drops turns [i:] and returns the content of turn i.
func (s *Store) TruncateBefore(i int) (string, error) {
	t, err := s.Turn(i)
	if err != nil {
		return "", err
	}
	s.turns = s.turns[:i:i]
	return t.Content, nil
}

// Clear empties the live conversation.
func (s *Store) Clear() {
	s.turns = []Turn{}
	s.selected = -1
}

// Save snapshots the live conversation. An empty name becomes
// Chat_<datetime>; names are made unique by a numeric suffix.
func (s *Store) Save(name string) SavedSession {
	now := s.now()
	if name == "" {
		name = "Chat_" + now.Format(SaveNameLayout)
	}
	ss := SavedSession{
		ID:        uuid.NewString(),
		Name:      s.uniqueName(name),
		Turns:     cloneTurns(s.turns),
		CreatedAt: now,
	}
	s.saved = append(s.saved, ss)

	ss.Turns = cloneTurns(ss.Turns)
	return ss
}

func (s *Store) uniqueName(name string) string {
	taken := make(map[string]bool, len(s.saved))
	for _, ss := range s.saved {
		taken[ss.Name] = true
	}
	candidate := name
	for n := 2; taken[candidate]; n++ {
		candidate = fmt.Sprintf("%s (%d)", name, n)
	}
	return candidate
}

// Load replaces the live conversation with a copy of saved session i.
func (s *Store) Load(i int) ([]Turn, error) {
	if i < 0 || i >= len(s.saved) {
		return nil, fmt.Errorf("%w: saved session %d of %d", ErrIndexOutOfRange, i, len(s.saved))
	}
	s.turns = cloneTurns(s.saved[i].Turns)
	s.selected = i
	return cloneTurns(s.turns), nil
}

// Rate sets the rating of assistant turn i.
func (s *Store) Rate(i int, rating Rating) error {
	t, err := s.Turn(i)
	if err != nil {
		return err
	}
	if t.Role != RoleAssistant {
		return fmt.Errorf("%w: turn %d is a %s turn", ErrInvalidTarget, i, t.Role)
	}
	if rating != RatingUp && rating != RatingDown {
		return fmt.Errorf("%w: rating %q", ErrInvalidTarget, rating)
	}
	s.turns[i].Rating = rating
	return nil
}

// Restore loads both keys from storage. On failure the affected part stays
// empty and an ErrStorageFailure is returned.
func (s *Store) Restore(ctx context.Context) error {
	var errs []error

	turns := []Turn{}
	if err := s.readJSON(ctx, KeyConversation, &turns); err != nil {
		errs = append(errs, err)
		turns = []Turn{}
	}
	saved := []SavedSession{}
	if err := s.readJSON(ctx, KeySaved, &saved); err != nil {
		errs = append(errs, err)
		saved = []SavedSession{}
	}

	if turns == nil {
		turns = []Turn{}
	}
	if saved == nil {
		saved = []SavedSession{}
	}
	s.turns = turns
	s.saved = saved
	s.selected = -1
	return errors.Join(errs...)
}

// PersistConversation writes the live conversation.
func (s *Store) PersistConversation(ctx context.Context) error {
	return s.writeJSON(ctx, KeyConversation, s.turns)
}

// PersistSaved writes the saved-session list.
func (s *Store) PersistSaved(ctx context.Context) error {
	return s.writeJSON(ctx, KeySaved, s.saved)
}

// RemoveConversation deletes the live conversation key.
func (s *Store) RemoveConversation(ctx context.Context) error {
	if err := s.kv.Remove(ctx, KeyConversation); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}
	return nil
}

func (s *Store) readJSON(ctx context.Context, key string, dst any) error {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrStorageFailure, key, err)
	}
	if !ok || raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrStorageFailure, key, err)
	}
	return nil
}

func (s *Store) writeJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrStorageFailure, key, err)
	}
	if err := s.kv.Set(ctx, key, string(b)); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrStorageFailure, key, err)
	}
	return nil
}
