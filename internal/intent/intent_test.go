package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "pantry-assistant/internal/common/errors"
	"pantry-assistant/internal/common/validation"
	"pantry-assistant/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, text, systemPrompt string, schema validation.Schema) (map[string]interface{}, error) {
	args := m.Called(ctx, text, systemPrompt, schema)
	if out := args.Get(0); out != nil {
		return out.(map[string]interface{}), args.Error(1)
	}
	return nil, args.Error(1)
}

type noteDraft struct {
	Text  string   `json:"text"`
	Notes []string `json:"notes"`
}

// noteAction asks one question per missing note slot.
type noteAction struct {
	name      string
	questions int
	applied   *noteDraft
}

func (a *noteAction) Name() string        { return a.name }
func (a *noteAction) Description() string { return "test action" }

func (a *noteAction) Schema() validation.Schema {
	return validation.Object(map[string]interface{}{
		"text":  validation.String(),
		"notes": validation.Array(validation.String()),
	}, "text")
}

func (a *noteAction) Prompt(ictx Context) string { return "extract a note" }

func (a *noteAction) Normalize(ctx context.Context, d *noteDraft, ictx Context) error {
	d.Text = strings.TrimSpace(d.Text)
	return nil
}

func (a *noteAction) Questions(d *noteDraft, ictx Context) []ClarifyQuestion {
	var qs []ClarifyQuestion
	for i := len(d.Notes); i < a.questions; i++ {
		qs = append(qs, ClarifyQuestion{Path: fmt.Sprintf("notes.%d", i), Label: "note?", Kind: KindText})
	}
	return qs
}

func (a *noteAction) Confirm(d *noteDraft, ictx Context) string { return "Note: " + d.Text }

func (a *noteAction) Merge(d *noteDraft, answers Answers) {
	if s, ok := answers.String(fmt.Sprintf("notes.%d", len(d.Notes))); ok {
		d.Notes = append(d.Notes, s)
	}
}

func (a *noteAction) Apply(ctx context.Context, user *models.User, d *noteDraft) (Result, error) {
	a.applied = d
	return Result{Applied: 1}, nil
}

func createTestAction(completer *MockCompleter, questions int) (*noteAction, Action) {
	typed := &noteAction{name: "note", questions: questions}
	return typed, Adapt[noteDraft](typed, completer)
}

// ==========================
// Adapter
// ==========================

func TestAdapter_ExtractDraft_Valid(t *testing.T) {
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, "note: buy milk", "extract a note", mock.Anything).
		Return(map[string]interface{}{"text": " buy milk "}, nil)
	_, action := createTestAction(completer, 0)

	draft, err := action.ExtractDraft(context.Background(), "note: buy milk", Context{})

	require.NoError(t, err)
	var d noteDraft
	require.NoError(t, json.Unmarshal(draft, &d))
	assert.Equal(t, " buy milk ", d.Text)
	completer.AssertExpectations(t)
}

func TestAdapter_ExtractDraft_SchemaViolation(t *testing.T) {
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(map[string]interface{}{"text": 12, "extra": true}, nil)
	_, action := createTestAction(completer, 0)

	draft, err := action.ExtractDraft(context.Background(), "x", Context{})

	require.Error(t, err)
	assert.Nil(t, draft)
	assert.Equal(t, apperrors.ErrCodeExtractionSchemaViolation, apperrors.CodeOf(err))
	var violation *validation.SchemaViolationError
	require.True(t, errors.As(err, &violation))
	assert.Len(t, violation.Violations, 2)
}

func TestAdapter_ExtractDraft_CompleterError(t *testing.T) {
	completer := new(MockCompleter)
	boom := errors.New("boom")
	completer.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, boom)
	_, action := createTestAction(completer, 0)

	_, err := action.ExtractDraft(context.Background(), "x", Context{})

	assert.ErrorIs(t, err, boom)
}

func TestAdapter_InvalidDraft(t *testing.T) {
	_, action := createTestAction(new(MockCompleter), 0)

	_, err := action.NormalizeDraft(context.Background(), Draft(`{"text": 3}`), Context{})

	assert.Equal(t, apperrors.ErrCodeInvalidDraft, apperrors.CodeOf(err))
	assert.True(t, apperrors.IsDomainError(err))
}

func TestAdapter_QuestionsAreCapped(t *testing.T) {
	_, action := createTestAction(new(MockCompleter), 10)

	qs, err := action.ClarifyQuestions(Draft(`{"text":"x"}`), Context{})
	require.NoError(t, err)
	assert.Len(t, qs, MaxQuestions)

	qs, err = action.ClarifyQuestions(Draft(`{"text":"x"}`), Context{MaxQuestions: 2})
	require.NoError(t, err)
	assert.Len(t, qs, 2)
}

func TestAdapter_QuestionsAreIdempotent(t *testing.T) {
	_, action := createTestAction(new(MockCompleter), 2)
	draft := Draft(`{"text":"x"}`)

	first, err := action.ClarifyQuestions(draft, Context{})
	require.NoError(t, err)
	second, err := action.ClarifyQuestions(draft, Context{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAdapter_ConfirmEndsWithPrompt(t *testing.T) {
	_, action := createTestAction(new(MockCompleter), 0)

	fr, err := action.ConfirmText(Draft(`{"text":"lait"}`), Context{Locale: "fr-FR"})
	require.NoError(t, err)
	assert.Equal(t, "Note: lait\nOn valide ? (oui/non)", fr)

	en, err := action.ConfirmText(Draft(`{"text":"milk"}`), Context{Locale: "en"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(en, "Confirm? (yes/no)"))
}

func TestAdapter_MergeCountsRounds(t *testing.T) {
	_, action := createTestAction(new(MockCompleter), 3)
	draft := Draft(`{"text":"x"}`)
	assert.Equal(t, 0, ClarifyRounds(draft))

	draft, err := action.MergeAnswers(draft, Answers{"notes.0": "a"})
	require.NoError(t, err)
	assert.Equal(t, 1, ClarifyRounds(draft))

	draft, err = action.MergeAnswers(draft, Answers{"unknown.path": "ignored"})
	require.NoError(t, err)
	assert.Equal(t, 2, ClarifyRounds(draft))

	// Normalization keeps the counter.
	draft, err = action.NormalizeDraft(context.Background(), draft, Context{})
	require.NoError(t, err)
	assert.Equal(t, 2, ClarifyRounds(draft))

	qs, err := action.ClarifyQuestions(draft, Context{})
	require.NoError(t, err)
	assert.Len(t, qs, 2)
}

func TestAdapter_ApplyDecodesDraft(t *testing.T) {
	typed, action := createTestAction(new(MockCompleter), 0)

	res, err := action.Apply(context.Background(), &models.User{ID: "u1"}, Draft(`{"text":"x","notes":["a"],"_clarify_rounds":1}`))

	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	require.NotNil(t, typed.applied)
	assert.Equal(t, []string{"a"}, typed.applied.Notes)
}

// ==========================
// Registry
// ==========================

func TestRegistry_RejectsDuplicates(t *testing.T) {
	_, a := createTestAction(new(MockCompleter), 0)
	_, b := createTestAction(new(MockCompleter), 0)

	_, err := NewRegistry(a, b)

	assert.Equal(t, apperrors.ErrCodeDuplicateAction, apperrors.CodeOf(err))
}

func TestRegistry_Lookup(t *testing.T) {
	_, note := createTestAction(new(MockCompleter), 0)
	other := Adapt[noteDraft](&noteAction{name: "another"}, new(MockCompleter))

	reg, err := NewRegistry(note, other)
	require.NoError(t, err)

	assert.True(t, reg.Has("note"))
	assert.False(t, reg.Has("missing"))
	assert.Equal(t, []string{"another", "note"}, reg.Names())

	got, err := reg.Get("note")
	require.NoError(t, err)
	assert.Equal(t, "note", got.Name())

	_, err = reg.Get("missing")
	assert.Equal(t, apperrors.ErrCodeUnknownAction, apperrors.CodeOf(err))
}

// ==========================
// Draft and Answers
// ==========================

func TestDraft_JSON(t *testing.T) {
	var holder struct {
		Draft Draft `json:"draft"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"draft":{"text":"x"}}`), &holder))
	assert.JSONEq(t, `{"text":"x"}`, string(holder.Draft))
	assert.False(t, holder.Draft.IsEmpty())

	out, err := json.Marshal(struct {
		Draft Draft `json:"draft"`
	}{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"draft":null}`, string(out))
	assert.True(t, Draft("null").IsEmpty())
}

func TestAnswers(t *testing.T) {
	a := Answers{"q": "1,5", "n": 2.0, "s": "  kg ", "nil": nil}

	f, ok := a.Float("q")
	assert.True(t, ok)
	assert.Equal(t, 1.5, f)

	f, ok = a.Float("n")
	assert.True(t, ok)
	assert.Equal(t, 2.0, f)

	s, ok := a.String("s")
	assert.True(t, ok)
	assert.Equal(t, "kg", s)

	_, ok = a.String("nil")
	assert.False(t, ok)
	_, ok = a.Float("s")
	assert.False(t, ok)
}

// ==========================
// Locale
// ==========================

func TestMatchLang(t *testing.T) {
	tests := map[string]Lang{
		"":      LangFR,
		"fr":    LangFR,
		"fr_CA": LangFR,
		"en-GB": LangEN,
		"en":    LangEN,
		"de":    LangFR,
	}
	for locale, want := range tests {
		t.Run(locale, func(t *testing.T) {
			assert.Equal(t, want, MatchLang(locale))
		})
	}
}

func TestFormatQuantity(t *testing.T) {
	kg := models.UnitKilo
	piece := models.UnitPiece
	two, oneHalf := 2.0, 1.5

	assert.Equal(t, "2 kg", FormatQuantity(LangFR, &two, &kg))
	assert.Equal(t, "1,5 kg", FormatQuantity(LangFR, &oneHalf, &kg))
	assert.Equal(t, "1.5 kg", FormatQuantity(LangEN, &oneHalf, &kg))
	assert.Equal(t, "2 pièces", FormatQuantity(LangFR, &two, &piece))
	assert.Equal(t, "", FormatQuantity(LangFR, nil, nil))
}

func TestFailureMessage(t *testing.T) {
	fr := Context{Locale: "fr"}

	assert.Equal(t, "Connectez-vous pour modifier vos données.", fr.FailureMessage(Refusal(MsgSignInRequired)))
	assert.Equal(t,
		"Je n'ai pas pu appliquer la modification : La recette « gratin » existe déjà.",
		fr.FailureMessage(Refusal(MsgRecipeExists, "gratin")))
	assert.Equal(t, fr.T(MsgApology), fr.FailureMessage(errors.New("plain")))
	assert.True(t, apperrors.IsDomainError(NotFound("recipe", MsgRecipeNotFound, "x")))
}
