package scoring

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// QuickAction is what a quick-input string asks the score cell to do.
type QuickAction int

const (
	ActionScore QuickAction = iota
	ActionMarkNotSubmitted
	ActionClearStatus
)

func (a QuickAction) String() string {
	switch a {
	case ActionScore:
		return "score"
	case ActionMarkNotSubmitted:
		return "mark_not_submitted"
	case ActionClearStatus:
		return "clear_status"
	default:
		return "unknown"
	}
}

// QuickInput is a parsed shorthand entry. Score is set only for ActionScore.
type QuickInput struct {
	Action QuickAction
	Score  float64
}

// ErrInvalidQuickInput is returned for input the cell must not commit.
var ErrInvalidQuickInput = errors.New("invalid score input")

// ParseQuickInput interprets score-entry shorthand against maxScore:
//
//	""     clear status
//	"/"    mark not submitted
//	"N%"   round(N/100 * max)
//	"A/B"  round(A/B * max)
//	"N"    N
//
// Percent and ratio forms need a positive maxScore. Rounding is half away
// from zero. Negative results, and results above a known maxScore, are
// rejected.
func ParseQuickInput(input string, maxScore *float64) (QuickInput, error) {
	v := strings.TrimSpace(input)
	switch v {
	case "":
		return QuickInput{Action: ActionClearStatus}, nil
	case "/":
		return QuickInput{Action: ActionMarkNotSubmitted}, nil
	}

	hasMax := maxScore != nil && isFinite(*maxScore) && *maxScore > 0

	var score float64
	switch {
	case strings.HasSuffix(v, "%"):
		if !hasMax {
			return QuickInput{}, fmt.Errorf("%w: %q needs a max score", ErrInvalidQuickInput, input)
		}
		pct, err := parseNumber(strings.TrimSuffix(v, "%"))
		if err != nil || pct < 0 {
			return QuickInput{}, fmt.Errorf("%w: %q", ErrInvalidQuickInput, input)
		}
		score = math.Round(pct / 100 * *maxScore)
	case strings.Contains(v, "/"):
		if !hasMax {
			return QuickInput{}, fmt.Errorf("%w: %q needs a max score", ErrInvalidQuickInput, input)
		}
		numRaw, denRaw, _ := strings.Cut(v, "/")
		num, err1 := parseNumber(numRaw)
		den, err2 := parseNumber(denRaw)
		if err1 != nil || err2 != nil || num < 0 || den <= 0 {
			return QuickInput{}, fmt.Errorf("%w: %q", ErrInvalidQuickInput, input)
		}
		score = math.Round(num / den * *maxScore)
	default:
		n, err := parseNumber(v)
		if err != nil {
			return QuickInput{}, fmt.Errorf("%w: %q", ErrInvalidQuickInput, input)
		}
		score = n
	}

	if score < 0 {
		return QuickInput{}, fmt.Errorf("%w: %q is negative", ErrInvalidQuickInput, input)
	}
	if hasMax && score > *maxScore {
		return QuickInput{}, fmt.Errorf("%w: %q exceeds max score %s", ErrInvalidQuickInput, input, strconv.FormatFloat(*maxScore, 'f', -1, 64))
	}
	return QuickInput{Action: ActionScore, Score: score}, nil
}

func parseNumber(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("empty number")
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if !isFinite(n) {
		return 0, errors.New("non-finite number")
	}
	return n, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
