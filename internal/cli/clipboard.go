package cli

import (
	"github.com/atotto/clipboard"

	"github.com/comigor/evo-go/internal/session"
)

type systemClipboard struct{}

func (systemClipboard) WriteAll(text string) error {
	return clipboard.WriteAll(text)
}

// newClipboard returns nil when the platform has no clipboard utility, which
// makes Copy report ErrNoClipboard.
func newClipboard() session.Clipboard {
	if clipboard.Unsupported {
		return nil
	}
	return systemClipboard{}
}
