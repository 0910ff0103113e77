package recipe

import (
	"context"
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

func ictxFor(user *models.User) intent.Context {
	return intent.Context{Locale: "fr", User: user}
}

func seedProduct(t *testing.T, st *memory.Store, name string) string {
	e := &models.Entity{Kind: models.KindProduct, Name: name, Key: namekey.ToKey(name)}
	require.NoError(t, st.CreateEntity(context.Background(), e))
	return e.ID
}

func seedRecipe(t *testing.T, st *memory.Store, name string, owner *string, ingredients ...models.RecipeIngredient) string {
	rec := &models.Recipe{
		Entity:      models.Entity{Kind: models.KindRecipe, OwnerID: owner, Name: name, Key: namekey.ToKey(name)},
		Servings:    4,
		Ingredients: ingredients,
	}
	require.NoError(t, st.CreateRecipe(context.Background(), rec))
	return rec.ID
}

func prepare(t *testing.T, action intent.Action, completer *MockCompleter, user *models.User, output map[string]interface{}) intent.Draft {
	completer.On("Complete", mock.Anything, "utterance", mock.Anything, mock.Anything).Return(output, nil).Once()
	draft, err := action.ExtractDraft(context.Background(), "utterance", ictxFor(user))
	require.NoError(t, err)
	draft, err = action.NormalizeDraft(context.Background(), draft, ictxFor(user))
	require.NoError(t, err)
	return draft
}

func ingredient(name string, qty interface{}, unit interface{}) map[string]interface{} {
	return map[string]interface{}{"name_raw": name, "quantity": qty, "unit": unit, "confidence": 0.95}
}

// ==========================
// create_recipe
// ==========================

func TestCreateRecipe(t *testing.T) {
	deps, st, completer := createTestDeps(t)
	seedProduct(t, st, "pomme de terre")
	action := NewCreate(deps)

	draft := prepare(t, action, completer, testUser, map[string]interface{}{
		"name":     "Gratin dauphinois",
		"servings": 6.0,
		"ingredients": []interface{}{
			ingredient("pommes de terre", 1.0, "kg"),
			ingredient("crème", 50.0, "cl"),
			ingredient("sel", nil, nil),
		},
		"steps": []interface{}{"Éplucher", " ", "Cuire 1h"},
	})

	qs, err := action.ClarifyQuestions(draft, ictxFor(testUser))
	require.NoError(t, err)
	assert.Empty(t, qs)

	text, err := action.ConfirmText(draft, ictxFor(testUser))
	require.NoError(t, err)
	assert.Contains(t, text, "Créer la recette « Gratin dauphinois » (6 pers.) :")
	assert.Contains(t, text, "- pomme de terre : 1 kg")
	assert.Contains(t, text, "- sel\n")
	assert.Contains(t, text, "2 étape(s)")

	res, err := action.Apply(context.Background(), testUser, draft)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 3, res.Applied)

	rec, err := st.GetRecipe(context.Background(), res.Details["recipe_id"].(string), testUser.OwnerID())
	require.NoError(t, err)
	assert.Equal(t, "gratin-dauphinois", rec.Key)
	assert.Equal(t, 6, rec.Servings)
	assert.Equal(t, []string{"Éplucher", "Cuire 1h"}, rec.Steps)
	assert.Len(t, rec.Ingredients, 3)
}

func TestCreateRecipe_AsksServings(t *testing.T) {
	deps, _, completer := createTestDeps(t)
	action := NewCreate(deps)

	draft := prepare(t, action, completer, testUser, map[string]interface{}{
		"name":        "Crêpes",
		"servings":    nil,
		"ingredients": []interface{}{},
	})

	qs, err := action.ClarifyQuestions(draft, ictxFor(testUser))
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "servings", qs[0].Path)

	draft, err = action.MergeAnswers(draft, intent.Answers{"servings": "4"})
	require.NoError(t, err)
	qs, err = action.ClarifyQuestions(draft, ictxFor(testUser))
	require.NoError(t, err)
	assert.Empty(t, qs)
}

func TestCreateRecipe_ExistingNameIsRefused(t *testing.T) {
	deps, st, completer := createTestDeps(t)
	seedRecipe(t, st, "Crêpes", testUser.OwnerID())
	action := NewCreate(deps)

	draft := prepare(t, action, completer, testUser, map[string]interface{}{
		"name":        "crepes",
		"servings":    4.0,
		"ingredients": []interface{}{},
	})
	_, err := action.Apply(context.Background(), testUser, draft)

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeBusinessRuleViolation, apperrors.CodeOf(err))
	assert.Contains(t, ictxFor(testUser).FailureMessage(err), "existe déjà")
}

func TestCreateRecipe_AnonymousIsRefused(t *testing.T) {
	deps, st, completer := createTestDeps(t)
	action := NewCreate(deps)

	draft := prepare(t, action, completer, nil, map[string]interface{}{
		"name":        "Soupe",
		"servings":    2.0,
		"ingredients": []interface{}{ingredient("poireau", 2.0, "piece")},
	})

	_, err := st.FindByKey(context.Background(), models.KindProduct, "poireau", nil)
	assert.Error(t, err)

	_, err = action.Apply(context.Background(), nil, draft)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeBusinessRuleViolation, apperrors.CodeOf(err))

	_, err = st.FindByKey(context.Background(), models.KindRecipe, "soupe", nil)
	assert.Error(t, err)
}

// ==========================
// update_recipe
// ==========================

func TestUpdateRecipe(t *testing.T) {
	deps, st, completer := createTestDeps(t)
	oignon := seedProduct(t, st, "oignon")
	carotte := seedProduct(t, st, "carotte")
	recipeID := seedRecipe(t, st, "Pot-au-feu", testUser.OwnerID(),
		models.RecipeIngredient{ProductID: oignon, Unit: models.UnitPiece},
		models.RecipeIngredient{ProductID: carotte, Unit: models.UnitPiece},
	)
	action := NewUpdate(deps)

	draft := prepare(t, action, completer, testUser, map[string]interface{}{
		"recipe":             map[string]interface{}{"mention": "pot au feu"},
		"servings":           8.0,
		"add_ingredients":    []interface{}{ingredient("navets", 3.0, "piece")},
		"remove_ingredients": []interface{}{ingredient("oignons", nil, nil), ingredient("ail", nil, nil)},
	})

	qs, err := action.ClarifyQuestions(draft, ictxFor(testUser))
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "remove_ingredients.1.name", qs[0].Path)

	text, err := action.ConfirmText(draft, ictxFor(testUser))
	require.NoError(t, err)
	assert.Contains(t, text, "Modifier la recette « Pot-au-feu » :")
	assert.Contains(t, text, "- 8 personnes")
	assert.Contains(t, text, "- ajouter navet (3 pièces)")
	assert.Contains(t, text, "- retirer oignon")

	res, err := action.Apply(context.Background(), testUser, draft)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Applied)
	assert.Equal(t, 1, res.Skipped)

	rec, err := st.GetRecipe(context.Background(), recipeID, testUser.OwnerID())
	require.NoError(t, err)
	assert.Equal(t, 8, rec.Servings)
	require.Len(t, rec.Ingredients, 2)
	assert.Equal(t, carotte, rec.Ingredients[0].ProductID)
	assert.Equal(t, 3.0, *rec.Ingredients[1].Quantity)
}

func TestUpdateRecipe_AmbiguousTarget(t *testing.T) {
	deps, st, completer := createTestDeps(t)
	for _, name := range []string{"Tarte aux pommes", "Tarte aux poires"} {
		seedRecipe(t, st, name, testUser.OwnerID())
	}
	action := NewUpdate(deps)

	draft := prepare(t, action, completer, testUser, map[string]interface{}{
		"recipe":   map[string]interface{}{"mention": "tarte"},
		"new_name": "Tarte fine",
	})

	qs, err := action.ClarifyQuestions(draft, ictxFor(testUser))
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "recipe_id", qs[0].Path)
	require.Len(t, qs[0].Options, 2)

	draft, err = action.MergeAnswers(draft, intent.Answers{"recipe_id": qs[0].Options[1].Value})
	require.NoError(t, err)
	draft, err = action.NormalizeDraft(context.Background(), draft, ictxFor(testUser))
	require.NoError(t, err)
	qs, err = action.ClarifyQuestions(draft, ictxFor(testUser))
	require.NoError(t, err)
	assert.Empty(t, qs)

	_, err = action.Apply(context.Background(), testUser, draft)
	require.NoError(t, err)
	renamed, err := st.FindByKey(context.Background(), models.KindRecipe, "tarte-fine", testUser.OwnerID())
	require.NoError(t, err)
	assert.Equal(t, "Tarte fine", renamed.Name)
}

func TestUpdateRecipe_AnonymousIsRefused(t *testing.T) {
	deps, _, _ := createTestDeps(t)
	action := NewUpdate(deps)

	_, err := action.Apply(context.Background(), nil, intent.Draft(`{"recipe":{"mention":"x","id":"r1","resolution":"matched"}}`))

	assert.Equal(t, apperrors.ErrCodeBusinessRuleViolation, apperrors.CodeOf(err))
}

func TestUpdateRecipe_MissingRecipeIsNotFound(t *testing.T) {
	deps, _, _ := createTestDeps(t)
	action := NewUpdate(deps)

	_, err := action.Apply(context.Background(), testUser, intent.Draft(`{"recipe":{"mention":"x","id":"gone","resolution":"matched"}}`))

	assert.Equal(t, apperrors.ErrCodeEntityNotFound, apperrors.CodeOf(err))
}

func TestUpdateRecipe_SharedRecipeIsRefused(t *testing.T) {
	deps, st, completer := createTestDeps(t)
	recipeID := seedRecipe(t, st, "Quiche", nil)
	action := NewUpdate(deps)

	draft := prepare(t, action, completer, testUser, map[string]interface{}{
		"recipe":   map[string]interface{}{"mention": "quiche"},
		"servings": 8.0,
	})
	_, err := action.Apply(context.Background(), testUser, draft)

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeBusinessRuleViolation, apperrors.CodeOf(err))
	assert.Contains(t, ictxFor(testUser).FailureMessage(err), "partagée")

	rec, err := st.GetRecipe(context.Background(), recipeID, testUser.OwnerID())
	require.NoError(t, err)
	assert.Equal(t, 4, rec.Servings)
}

func TestUpdateRecipe_NoChangesAsksWhatToChange(t *testing.T) {
	deps, st, completer := createTestDeps(t)
	seedRecipe(t, st, "Crêpes", testUser.OwnerID())
	action := NewUpdate(deps)

	draft := prepare(t, action, completer, testUser, map[string]interface{}{
		"recipe": map[string]interface{}{"mention": "crepes"},
	})

	qs, err := action.ClarifyQuestions(draft, ictxFor(testUser))
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "add_ingredients.0.name", qs[0].Path)
	assert.Equal(t, intent.KindText, qs[0].Kind)
	assert.Contains(t, qs[0].Label, "Crêpes")

	draft, err = action.MergeAnswers(draft, intent.Answers{"add_ingredients.0.name": "sucre"})
	require.NoError(t, err)
	draft, err = action.NormalizeDraft(context.Background(), draft, ictxFor(testUser))
	require.NoError(t, err)

	qs, err = action.ClarifyQuestions(draft, ictxFor(testUser))
	require.NoError(t, err)
	assert.Empty(t, qs)
	text, err := action.ConfirmText(draft, ictxFor(testUser))
	require.NoError(t, err)
	assert.Contains(t, text, "- ajouter sucre")
}
