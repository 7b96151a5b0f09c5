// Package presentation holds the label and tone vocabulary shared by every
// status enumeration the console renders.
package presentation

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Tone is the severity class a status renders with.
type Tone string

const (
	ToneNeutral  Tone = "neutral"
	ToneInfo     Tone = "info"
	ToneProgress Tone = "progress"
	ToneSuccess  Tone = "success"
	ToneWarning  Tone = "warning"
	ToneDanger   Tone = "danger"
)

// Presentation is the label and tone of one enumeration value.
type Presentation struct {
	Label string
	Tone  Tone
}

// Humanize turns a wire value such as "needs_identification" into "Needs Identification".
// It is used for values outside a known enumeration.
func Humanize(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "Unknown"
	}
	value = strings.NewReplacer("_", " ", "-", " ").Replace(strings.ToLower(value))
	return cases.Title(language.Und).String(strings.Join(strings.Fields(value), " "))
}

// Fallback is the presentation used for values the client does not know.
func Fallback(value string) Presentation {
	return Presentation{Label: Humanize(value), Tone: ToneNeutral}
}
