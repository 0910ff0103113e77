package stock

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "pantry-assistant/internal/common/errors"
	"pantry-assistant/internal/common/logger"
	"pantry-assistant/internal/common/validation"
	"pantry-assistant/internal/intent"
	"pantry-assistant/internal/models"
	"pantry-assistant/internal/normalize/namekey"
	"pantry-assistant/internal/resolver"
	"pantry-assistant/internal/store/memory"
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

var testUser = &models.User{ID: "user-1", Locale: "fr"}

func createTestDeps(t *testing.T) (intent.Deps, *memory.Store, *MockCompleter) {
	st := memory.New()
	log := logger.NewTestLogger(t)
	completer := new(MockCompleter)
	return intent.Deps{
		Completer: completer,
		Resolver:  resolver.New(st, 10, log),
		Store:     st,
		Logger:    log,
	}, st, completer
}

func seedProduct(t *testing.T, st *memory.Store, name string) string {
	e := &models.Entity{Kind: models.KindProduct, Name: name, Key: namekey.ToKey(name)}
	require.NoError(t, st.CreateEntity(context.Background(), e))
	return e.ID
}

func ictx() intent.Context {
	return intent.Context{Locale: "fr", User: testUser}
}

// prepare extracts and normalizes text through action.
func prepare(t *testing.T, action intent.Action, completer *MockCompleter, output map[string]interface{}) intent.Draft {
	completer.On("Complete", mock.Anything, "utterance", mock.Anything, mock.Anything).Return(output, nil).Once()
	draft, err := action.ExtractDraft(context.Background(), "utterance", ictx())
	require.NoError(t, err)
	draft, err = action.NormalizeDraft(context.Background(), draft, ictx())
	require.NoError(t, err)
	return draft
}

func items(list ...map[string]interface{}) map[string]interface{} {
	out := make([]interface{}, len(list))
	for i, it := range list {
		out[i] = it
	}
	return map[string]interface{}{"items": out}
}

func item(name string, qty float64, unit string) map[string]interface{} {
	return map[string]interface{}{"name_raw": name, "quantity": qty, "unit": unit, "confidence": 0.9}
}

// ==========================
// add_stock
// ==========================

func TestAddStock_CreatesProductsAndAddsQuantities(t *testing.T) {
	deps, st, completer := createTestDeps(t)
	pomme := seedProduct(t, st, "pomme")
	action := NewAdd(deps)

	draft := prepare(t, action, completer, items(item("pommes", 2, "kg"), item("yaourts nature", 4, "piece")))

	qs, err := action.ClarifyQuestions(draft, ictx())
	require.NoError(t, err)
	assert.Empty(t, qs)

	text, err := action.ConfirmText(draft, ictx())
	require.NoError(t, err)
	assert.Contains(t, text, "Ajouter au stock :")
	assert.Contains(t, text, "- pomme : 2 kg")
	assert.Contains(t, text, "- yaourt nature : 4 pièces")

	res, err := action.Apply(context.Background(), testUser, draft)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)

	held, err := st.GetStock(context.Background(), testUser.ID, pomme, models.UnitKilo)
	require.NoError(t, err)
	assert.Equal(t, 2.0, held)

	yaourt, err := st.FindByKey(context.Background(), models.KindProduct, "yaourt-nature", testUser.OwnerID())
	require.NoError(t, err)
	assert.Equal(t, "user-1", *yaourt.OwnerID)
}

func TestAddStock_ConvertsToHeldUnit(t *testing.T) {
	deps, st, completer := createTestDeps(t)
	lait := seedProduct(t, st, "lait")
	_, err := st.SetStock(context.Background(), testUser.ID, lait, models.UnitLitre, 1)
	require.NoError(t, err)
	action := NewAdd(deps)

	draft := prepare(t, action, completer, items(item("lait", 25, "cl")))
	_, err = action.Apply(context.Background(), testUser, draft)
	require.NoError(t, err)

	held, err := st.GetStock(context.Background(), testUser.ID, lait, models.UnitLitre)
	require.NoError(t, err)
	assert.InDelta(t, 1.25, held, 1e-9)
}

func TestAddStock_MissingQuantityIsAsked(t *testing.T) {
	deps, st, completer := createTestDeps(t)
	seedProduct(t, st, "riz")
	action := NewAdd(deps)

	draft := prepare(t, action, completer, items(map[string]interface{}{"name_raw": "riz", "confidence": 0.9}))

	qs, err := action.ClarifyQuestions(draft, ictx())
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "items.0.quantity", qs[0].Path)

	draft, err = action.MergeAnswers(draft, intent.Answers{"items.0.quantity": "500", "items.0.unit": "g"})
	require.NoError(t, err)
	draft, err = action.NormalizeDraft(context.Background(), draft, ictx())
	require.NoError(t, err)

	qs, err = action.ClarifyQuestions(draft, ictx())
	require.NoError(t, err)
	assert.Empty(t, qs)
	assert.Equal(t, 1, intent.ClarifyRounds(draft))
}

func TestAddStock_AnonymousIsRefused(t *testing.T) {
	deps, _, _ := createTestDeps(t)
	action := NewAdd(deps)

	_, err := action.Apply(context.Background(), nil, intent.Draft(`{"items":[{"name":"pomme","product_id":"p1","quantity":1}]}`))

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeBusinessRuleViolation, apperrors.CodeOf(err))
}

// ==========================
// consume_stock
// ==========================

func TestConsumeStock_FloorsAndWarns(t *testing.T) {
	deps, st, completer := createTestDeps(t)
	lait := seedProduct(t, st, "lait")
	_, err := st.AdjustStock(context.Background(), testUser.ID, lait, models.UnitLitre, 1)
	require.NoError(t, err)
	action := NewConsume(deps)

	draft := prepare(t, action, completer, items(item("lait", 3, "l")))
	res, err := action.Apply(context.Background(), testUser, draft)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "stock insuffisant")

	held, err := st.GetStock(context.Background(), testUser.ID, lait, models.UnitLitre)
	require.NoError(t, err)
	assert.Equal(t, 0.0, held)
}

func TestConsumeStock_ConvertsToHeldUnit(t *testing.T) {
	deps, st, completer := createTestDeps(t)
	farine := seedProduct(t, st, "farine")
	_, err := st.SetStock(context.Background(), testUser.ID, farine, models.UnitKilo, 2)
	require.NoError(t, err)
	action := NewConsume(deps)

	draft := prepare(t, action, completer, items(item("farine", 500, "g")))
	res, err := action.Apply(context.Background(), testUser, draft)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Empty(t, res.Warnings)

	held, err := st.GetStock(context.Background(), testUser.ID, farine, models.UnitKilo)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, held, 1e-9)
	grams, err := st.GetStock(context.Background(), testUser.ID, farine, models.UnitGram)
	require.NoError(t, err)
	assert.Equal(t, 0.0, grams)
}

func TestConsumeStock_UnknownProductIsAskedNotCreated(t *testing.T) {
	deps, st, completer := createTestDeps(t)
	action := NewConsume(deps)

	draft := prepare(t, action, completer, items(item("caviar", 1, "piece")))

	qs, err := action.ClarifyQuestions(draft, ictx())
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "items.0.name", qs[0].Path)
	assert.Contains(t, qs[0].Label, "caviar")

	_, err = st.FindByKey(context.Background(), models.KindProduct, "caviar", testUser.OwnerID())
	assert.Error(t, err)
}

// ==========================
// set_stock
// ==========================

func TestSetStock_Overwrites(t *testing.T) {
	deps, st, completer := createTestDeps(t)
	oeuf := seedProduct(t, st, "oeuf")
	_, err := st.AdjustStock(context.Background(), testUser.ID, oeuf, models.UnitPiece, 12)
	require.NoError(t, err)
	action := NewSet(deps)

	draft := prepare(t, action, completer, items(item("oeufs", 3, "piece")))
	res, err := action.Apply(context.Background(), testUser, draft)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	held, err := st.GetStock(context.Background(), testUser.ID, oeuf, models.UnitPiece)
	require.NoError(t, err)
	assert.Equal(t, 3.0, held)
}

func TestSchemaListsUnits(t *testing.T) {
	deps, _, _ := createTestDeps(t)
	raw, err := json.Marshal(NewAdd(deps).ExtractSchema())
	require.NoError(t, err)

	for _, u := range models.UnitNames() {
		assert.True(t, strings.Contains(string(raw), `"`+u+`"`), u)
	}
}
