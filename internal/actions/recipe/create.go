// Package recipe holds the create_recipe and update_recipe actions.
package recipe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pantry-assistant/internal/common/logger"
	"pantry-assistant/internal/common/validation"
	"pantry-assistant/internal/intent"
	"pantry-assistant/internal/intent/itemdraft"
	"pantry-assistant/internal/models"
	"pantry-assistant/internal/normalize/namekey"
	"pantry-assistant/internal/store"
)

const (
	CreateName = "create_recipe"
	UpdateName = "update_recipe"
)

type createDraft struct {
	Name        string           `json:"name"`
	Servings    *int             `json:"servings"`
	Ingredients []itemdraft.Line `json:"ingredients"`
	Steps       []string         `json:"steps"`
}

type createAction struct {
	deps   intent.Deps
	logger logger.Logger
}

// NewCreate builds create_recipe. Ingredients are created when unknown; the
// recipe name itself must be new.
func NewCreate(deps intent.Deps) intent.Action {
	return intent.Adapt[createDraft](&createAction{
		deps:   deps,
		logger: deps.Logger.With(map[string]interface{}{"action": CreateName}),
	}, deps.Completer)
}

func (a *createAction) Name() string { return CreateName }

func (a *createAction) Description() string {
	return "the user describes a new recipe (name, servings, ingredients, steps) to save"
}

func (a *createAction) Schema() validation.Schema {
	return validation.Object(map[string]interface{}{
		"name":        validation.String(),
		"servings":    validation.Nullable("integer"),
		"ingredients": validation.Array(itemdraft.ItemSchema()),
		"steps":       validation.Array(validation.String()),
	}, "name", "ingredients")
}

func (a *createAction) Prompt(ictx intent.Context) string {
	return fmt.Sprintf(`You extract a new recipe for a household assistant (locale %s).
Output the recipe name, the number of servings when stated, its ingredients and its steps in order.
%s`, ictx.Lang(), itemdraft.ItemPrompt)
}

func (a *createAction) Normalize(ctx context.Context, d *createDraft, ictx intent.Context) error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Servings != nil && *d.Servings <= 0 {
		d.Servings = nil
	}
	d.Steps = trimSteps(d.Steps)

	sess := a.deps.Resolver.NewSession(ictx.User)
	create := ictx.User.OwnerID() != nil
	for i := range d.Ingredients {
		if err := itemdraft.NormalizeLine(ctx, sess, &d.Ingredients[i], create, false); err != nil {
			return err
		}
	}
	return nil
}

func trimSteps(steps []string) []string {
	var out []string
	for _, s := range steps {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (a *createAction) Questions(d *createDraft, ictx intent.Context) []intent.ClarifyQuestion {
	var qs []intent.ClarifyQuestion
	if d.Name == "" {
		qs = append(qs, intent.ClarifyQuestion{Path: "name", Label: ictx.T(intent.MsgRecipeName), Kind: intent.KindText})
	}
	if d.Servings == nil {
		qs = append(qs, intent.ClarifyQuestion{
			Path:        "servings",
			Label:       ictx.T(intent.MsgRecipeServings),
			Kind:        intent.KindNumber,
			Placeholder: "4",
		})
	}
	return append(qs, itemdraft.ListQuestions("ingredients", d.Ingredients, ictx)...)
}

func (a *createAction) Merge(d *createDraft, answers intent.Answers) {
	if s, ok := answers.String("name"); ok && s != "" {
		d.Name = s
	}
	if n, ok := servingsAnswer(answers, "servings"); ok {
		d.Servings = &n
	}
	d.Ingredients = itemdraft.MergeLines(d.Ingredients, "ingredients", answers)
}

func servingsAnswer(answers intent.Answers, key string) (int, bool) {
	f, ok := answers.Float(key)
	if !ok || f < 1 {
		return 0, false
	}
	return int(f), true
}

func (a *createAction) Confirm(d *createDraft, ictx intent.Context) string {
	servings := 0
	if d.Servings != nil {
		servings = *d.Servings
	}
	var b strings.Builder
	b.WriteString(ictx.T("headline_create_recipe", d.Name, servings))
	itemdraft.WriteLines(&b, d.Ingredients, ictx)
	if len(d.Steps) > 0 {
		b.WriteString("\n" + ictx.T("recipe_steps", len(d.Steps)))
	}
	return b.String()
}

// Apply inserts the recipe owned by user.
func (a *createAction) Apply(ctx context.Context, user *models.User, d *createDraft) (intent.Result, error) {
	if user.OwnerID() == nil {
		return intent.Result{}, intent.Refusal(intent.MsgSignInRequired)
	}
	key := namekey.ToKey(d.Name)
	if key == "" {
		return intent.Result{}, intent.Refusal(intent.MsgRecipeName)
	}
	rec := &models.Recipe{
		Entity: models.Entity{
			Kind:    models.KindRecipe,
			OwnerID: user.OwnerID(),
			Name:    d.Name,
			Key:     key,
		},
		Steps: d.Steps,
	}
	if d.Servings != nil {
		rec.Servings = *d.Servings
	}

	res := intent.Result{}
	for _, l := range d.Ingredients {
		if l.ProductID == "" {
			res.Skipped++
			continue
		}
		rec.Ingredients = append(rec.Ingredients, models.RecipeIngredient{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Unit:      l.UnitOrDefault(),
			Notes:     l.Notes,
		})
	}

	err := a.deps.Store.Atomic(ctx, func(repos store.Repositories) error {
		if _, err := repos.FindByKey(ctx, models.KindRecipe, key, rec.OwnerID); err == nil {
			return intent.Refusal(intent.MsgRecipeExists, d.Name)
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := repos.CreateRecipe(ctx, rec); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				return intent.Refusal(intent.MsgRecipeExists, d.Name)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return intent.Result{}, err
	}

	res.Applied = len(rec.Ingredients)
	res.Created = 1
	res.Details = map[string]interface{}{"recipe_id": rec.ID}
	a.logger.Info("recipe created", map[string]interface{}{
		"recipeId":    rec.ID,
		"ingredients": len(rec.Ingredients),
	})
	return res, nil
}
