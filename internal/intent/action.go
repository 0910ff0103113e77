package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "pantry-assistant/internal/common/errors"
	"pantry-assistant/internal/common/llm"
	"pantry-assistant/internal/common/logger"
	"pantry-assistant/internal/common/validation"
	"pantry-assistant/internal/models"
	"pantry-assistant/internal/resolver"
	"pantry-assistant/internal/store"
)

// Action is the contract every intent implements. Drafts are opaque to the
// caller and decoded privately by the action.
type Action interface {
	Name() string
	Description() string
	// ExtractSchema is the JSON schema the model output must satisfy.
	ExtractSchema() validation.Schema

	ExtractDraft(ctx context.Context, text string, ictx Context) (Draft, error)
	NormalizeDraft(ctx context.Context, draft Draft, ictx Context) (Draft, error)
	// ClarifyQuestions is a pure function of the draft. It returns nothing
	// when the draft is complete and never more than MaxQuestions.
	ClarifyQuestions(draft Draft, ictx Context) ([]ClarifyQuestion, error)
	// ConfirmText always ends with an explicit yes/no prompt.
	ConfirmText(draft Draft, ictx Context) (string, error)
	// MergeAnswers writes answers into the draft and counts one clarify
	// round. Unknown answer keys are ignored.
	MergeAnswers(draft Draft, answers Answers) (Draft, error)
	Apply(ctx context.Context, user *models.User, draft Draft) (Result, error)
}

// Deps are the collaborators shared by every action.
type Deps struct {
	Completer llm.Completer
	Resolver  *resolver.Resolver
	Store     store.Store
	Logger    logger.Logger
}

// Typed is an action written against its own draft type D. Adapt turns it
// into an Action.
type Typed[D any] interface {
	Name() string
	Description() string
	Schema() validation.Schema
	Prompt(ictx Context) string
	// Normalize resolves entities and recomputes derived fields in place.
	Normalize(ctx context.Context, d *D, ictx Context) error
	Questions(d *D, ictx Context) []ClarifyQuestion
	// Confirm returns the summary body; the yes/no prompt is appended by the
	// adapter.
	Confirm(d *D, ictx Context) string
	Merge(d *D, answers Answers)
	Apply(ctx context.Context, user *models.User, d *D) (Result, error)
}

const roundsKey = "_clarify_rounds"

// ClarifyRounds returns how many answer merges draft has been through.
func ClarifyRounds(draft Draft) int {
	var env struct {
		Rounds int `json:"_clarify_rounds"`
	}
	if draft.IsEmpty() || json.Unmarshal(draft, &env) != nil {
		return 0
	}
	return env.Rounds
}

type adapter[D any] struct {
	typed     Typed[D]
	completer llm.Completer
}

// Adapt wraps a typed action. completer serves ExtractDraft.
func Adapt[D any](typed Typed[D], completer llm.Completer) Action {
	return &adapter[D]{typed: typed, completer: completer}
}

func (a *adapter[D]) Name() string                     { return a.typed.Name() }
func (a *adapter[D]) Description() string              { return a.typed.Description() }
func (a *adapter[D]) ExtractSchema() validation.Schema { return a.typed.Schema() }

func (a *adapter[D]) decode(draft Draft) (*D, int, error) {
	d := new(D)
	if draft.IsEmpty() {
		return d, 0, nil
	}
	if err := json.Unmarshal(draft, d); err != nil {
		return nil, 0, apperrors.NewInvalidDraftError(a.Name(), err)
	}
	return d, ClarifyRounds(draft), nil
}

func (a *adapter[D]) encode(d *D, rounds int) (Draft, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, apperrors.NewInvalidDraftError(a.Name(), err)
	}
	if rounds == 0 {
		return Draft(raw), nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, apperrors.NewInvalidDraftError(a.Name(), err)
	}
	fields[roundsKey] = json.RawMessage(fmt.Sprint(rounds))
	raw, err = json.Marshal(fields)
	if err != nil {
		return nil, apperrors.NewInvalidDraftError(a.Name(), err)
	}
	return Draft(raw), nil
}

// ExtractDraft never forwards output that fails the schema: it returns a
// StandardError wrapping a *validation.SchemaViolationError instead.
func (a *adapter[D]) ExtractDraft(ctx context.Context, text string, ictx Context) (Draft, error) {
	schema := a.typed.Schema()
	out, err := a.completer.Complete(llm.WithOperation(ctx, "extract_"+a.Name()), text, a.typed.Prompt(ictx), schema)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateDocument(a.Name()+" extraction", schema, out); err != nil {
		return nil, apperrors.NewExtractionSchemaViolationError(a.Name(), err)
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return nil, apperrors.NewExtractionSchemaViolationError(a.Name(), err)
	}
	d := new(D)
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, apperrors.NewExtractionSchemaViolationError(a.Name(), err)
	}
	return a.encode(d, 0)
}

func (a *adapter[D]) NormalizeDraft(ctx context.Context, draft Draft, ictx Context) (Draft, error) {
	d, rounds, err := a.decode(draft)
	if err != nil {
		return nil, err
	}
	if err := a.typed.Normalize(ctx, d, ictx); err != nil {
		return nil, err
	}
	return a.encode(d, rounds)
}

func (a *adapter[D]) ClarifyQuestions(draft Draft, ictx Context) ([]ClarifyQuestion, error) {
	d, _, err := a.decode(draft)
	if err != nil {
		return nil, err
	}
	qs := a.typed.Questions(d, ictx)
	if limit := ictx.questionCap(); len(qs) > limit {
		qs = qs[:limit]
	}
	return qs, nil
}

func (a *adapter[D]) ConfirmText(draft Draft, ictx Context) (string, error) {
	d, _, err := a.decode(draft)
	if err != nil {
		return "", err
	}
	body := strings.TrimRight(a.typed.Confirm(d, ictx), "\n")
	if body == "" {
		return ictx.T(MsgConfirmPrompt), nil
	}
	return body + "\n" + ictx.T(MsgConfirmPrompt), nil
}

func (a *adapter[D]) MergeAnswers(draft Draft, answers Answers) (Draft, error) {
	d, rounds, err := a.decode(draft)
	if err != nil {
		return nil, err
	}
	a.typed.Merge(d, answers)
	return a.encode(d, rounds+1)
}

func (a *adapter[D]) Apply(ctx context.Context, user *models.User, draft Draft) (Result, error) {
	d, _, err := a.decode(draft)
	if err != nil {
		return Result{}, err
	}
	return a.typed.Apply(ctx, user, d)
}
