package session

import (
	"errors"
	"fmt"
)

// DisplayMessage renders err the way the chat screen shows it.
func (c *Controller) DisplayMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyInput):
		return "Please enter a query."
	case errors.Is(err, ErrBusy):
		return fmt.Sprintf("%s is still typing. Please wait.", c.assistantName)
	case errors.Is(err, ErrUpstreamUnavailable):
		return fmt.Sprintf("%s is currently overloaded. Please try again later.", c.assistantName)
	case errors.Is(err, ErrNoPriorUserTurn):
		return "There is no message to regenerate."
	default:
		var ue *upstreamError
		if errors.As(err, &ue) {
			return "Error: " + ue.cause.Error()
		}
		return "Error: " + err.Error()
	}
}
