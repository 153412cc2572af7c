// Package output renders CLI results for terminals, pipes and scripts.
package output

import (
	"fmt"
	"strings"
)

// Mode selects how command results are written.
type Mode string

// Output modes.
const (
	ModeAuto     Mode = "auto"     // Auto-detect: TTY=text, non-TTY=markdown
	ModeText     Mode = "text"     // Styled terminal output
	ModeMarkdown Mode = "markdown" // Agent-friendly markdown
	ModeJSON     Mode = "json"     // Machine-readable JSON
)

// ParseMode converts a flag or config value to a Mode. Empty means auto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeText, ModeMarkdown, ModeJSON:
		return m, nil
	case "md":
		return ModeMarkdown, nil
	}
	return "", fmt.Errorf("unknown output mode %q (valid: auto, text, markdown, json)", s)
}
