package session

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/comigor/evo-go/internal/history"
)

// Share formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Share renders the live conversation for handing to a share target.
// Text is one "role: content" line per turn.
func (c *Controller) Share(format string) (string, error) {
	turns := c.Turns()

	switch format {
	case "", FormatText:
		lines := make([]string, len(turns))
		for i, t := range turns {
			lines[i] = fmt.Sprintf("%s: %s", t.Role, t.Content)
		}
		return strings.Join(lines, "\n"), nil
	case FormatJSON:
		b, err := json.MarshalIndent(turns, "", "  ")
		if err != nil {
			return "", err
		}
		return string(b), nil
	case FormatYAML:
		b, err := yaml.Marshal(struct {
			Turns []history.Turn `yaml:"turns"`
		}{turns})
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("unsupported share format %q", format)
	}
}
