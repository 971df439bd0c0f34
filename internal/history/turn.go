package history

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role tags who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// UnmarshalJSON accepts the legacy assistant role names written by the
// mobile client ("Evo-ai", "ai").
func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case string(RoleUser):
		*r = RoleUser
	case string(RoleAssistant), "Evo-ai", "ai":
		*r = RoleAssistant
	default:
		return fmt.Errorf("unknown role %q", s)
	}
	return nil
}

// Rating is feedback on an assistant turn.
type Rating string

const (
	RatingNone Rating = ""
	RatingUp   Rating = "up"
	RatingDown Rating = "down"
)

// ParseRating accepts up/down and the thumbs emoji used by the mobile client.
func ParseRating(s string) (Rating, error) {
	switch s {
	case "up", "👍":
		return RatingUp, nil
	case "down", "👎":
		return RatingDown, nil
	default:
		return RatingNone, fmt.Errorf("%w: rating %q", ErrInvalidTarget, s)
	}
}

func (r *Rating) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*r = RatingNone
		return nil
	}
	parsed, err := ParseRating(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Turn is one message exchanged in a conversation.
type Turn struct {
	Role      Role      `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	Rating    Rating    `json:"rating,omitempty" yaml:"rating,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero" yaml:"createdAt,omitempty"`
}

// SavedSession is an immutable named snapshot of a conversation.
type SavedSession struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	Turns     []Turn    `json:"history"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

func cloneTurns(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
