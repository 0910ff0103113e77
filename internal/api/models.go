package api

import (
	"pantry-assistant/internal/intent"
)

// ProposeRequest starts a conversation from one utterance.
type ProposeRequest struct {
	Text   string `json:"text"`
	Locale string `json:"locale,omitempty"`
}

// AnswerRequest carries one clarify round. Draft is echoed back untouched
// from the previous turn.
type AnswerRequest struct {
	Action  string         `json:"action"`
	Draft   intent.Draft   `json:"draft"`
	Answers intent.Answers `json:"answers"`
	Locale  string         `json:"locale,omitempty"`
}

// ApplyRequest commits a draft the user confirmed.
type ApplyRequest struct {
	Action string       `json:"action"`
	Draft  intent.Draft `json:"draft"`
	Locale string       `json:"locale,omitempty"`
}

type statusResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
	Error  string `json:"error,omitempty"`
}
