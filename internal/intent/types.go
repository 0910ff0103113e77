// Package intent defines the per-intent action contract, the draft envelope
// passed between turns and the registry of actions.
package intent

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pantry-assistant/internal/models"
)

// MaxQuestions caps the clarify questions asked in one turn.
const MaxQuestions = 6

// Draft is the action-owned working document of one conversation. It is
// opaque JSON to everything but the action that produced it, and the caller
// echoes it back between turns.
type Draft json.RawMessage

func (d Draft) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte("null"), nil
	}
	return d, nil
}

func (d *Draft) UnmarshalJSON(b []byte) error {
	if d == nil {
		return fmt.Errorf("intent.Draft: UnmarshalJSON on nil pointer")
	}
	*d = append((*d)[0:0], b...)
	return nil
}

// IsEmpty reports whether d holds no document.
func (d Draft) IsEmpty() bool {
	s := strings.TrimSpace(string(d))
	return s == "" || s == "null"
}

// Context carries per-turn settings into every action operation.
type Context struct {
	Locale string
	Debug  bool
	// User is nil for anonymous requests: only shared entities are visible
	// and nothing is created.
	User *models.User
	// Now is the reference time for relative dates. Defaults to time.Now.
	Now func() time.Time
	// MaxQuestions overrides the default question cap when positive.
	MaxQuestions int
	// PreviewItems is how many lines the confirmation summary lists before
	// collapsing the rest into "+K more".
	PreviewItems int
}

func (c Context) Time() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c Context) questionCap() int {
	if c.MaxQuestions > 0 && c.MaxQuestions < MaxQuestions {
		return c.MaxQuestions
	}
	return MaxQuestions
}

// Preview returns the confirmation preview size, 5 by default.
func (c Context) Preview() int {
	if c.PreviewItems > 0 {
		return c.PreviewItems
	}
	return 5
}

type QuestionKind string

const (
	KindText   QuestionKind = "text"
	KindNumber QuestionKind = "number"
	KindSelect QuestionKind = "select"
)

type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// ClarifyQuestion asks the user for one missing or ambiguous value. Path is
// the answer key the action merges back into the draft.
type ClarifyQuestion struct {
	Path        string       `json:"path"`
	Label       string       `json:"label"`
	Kind        QuestionKind `json:"kind"`
	Options     []Option     `json:"options,omitempty"`
	Placeholder string       `json:"placeholder,omitempty"`
}

// Answers is a flat map of question paths to user answers.
type Answers map[string]interface{}

// String returns the answer at key as trimmed text.
func (a Answers) String(key string) (string, bool) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	default:
		return strings.TrimSpace(fmt.Sprint(t)), true
	}
}

// Float returns the answer at key as a number. Comma decimals are accepted.
func (a Answers) Float(key string) (float64, bool) {
	switch t := a[key].(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.Replace(strings.TrimSpace(t), ",", ".", 1), 64)
		return f, err == nil
	}
	return 0, false
}

// Result summarizes an applied mutation.
type Result struct {
	Applied  int                    `json:"applied"`
	Created  int                    `json:"created,omitempty"`
	Skipped  int                    `json:"skipped,omitempty"`
	Warnings []string               `json:"warnings,omitempty"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

type TurnType string

const (
	TurnClarify TurnType = "clarify"
	TurnConfirm TurnType = "confirm"
	TurnApplied TurnType = "applied"
	TurnFailed  TurnType = "failed"
	TurnMessage TurnType = "message"
)

// TurnResult is what one orchestrator call hands back to the caller.
type TurnResult struct {
	Type        TurnType               `json:"type"`
	Message     string                 `json:"message"`
	Action      string                 `json:"action,omitempty"`
	Draft       Draft                  `json:"draft,omitempty"`
	Questions   []ClarifyQuestion      `json:"questions,omitempty"`
	Result      *Result                `json:"result,omitempty"`
	Diagnostics map[string]interface{} `json:"diagnostics,omitempty"`
}
