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

type updateDraft struct {
	Recipe   itemdraft.Ref    `json:"recipe"`
	NewName  string           `json:"new_name"`
	Servings *int             `json:"servings"`
	Add      []itemdraft.Line `json:"add_ingredients"`
	Remove   []itemdraft.Line `json:"remove_ingredients"`
	Steps    []string         `json:"steps"`
}

// changes counts the edits carried by the draft.
func (d *updateDraft) changes() int {
	n := len(d.Add) + len(d.Remove)
	if d.NewName != "" {
		n++
	}
	if d.Servings != nil {
		n++
	}
	if len(d.Steps) > 0 {
		n++
	}
	return n
}

type updateAction struct {
	deps   intent.Deps
	logger logger.Logger
}

// NewUpdate builds update_recipe. The recipe must exist; added ingredients
// are created when unknown.
func NewUpdate(deps intent.Deps) intent.Action {
	return intent.Adapt[updateDraft](&updateAction{
		deps:   deps,
		logger: deps.Logger.With(map[string]interface{}{"action": UpdateName}),
	}, deps.Completer)
}

func (a *updateAction) Name() string { return UpdateName }

func (a *updateAction) Description() string {
	return "the user wants to change an existing recipe: rename it, change servings, add or remove ingredients, replace steps"
}

func (a *updateAction) Schema() validation.Schema {
	return validation.Object(map[string]interface{}{
		"recipe": validation.Object(map[string]interface{}{
			"mention": validation.String(),
		}, "mention"),
		"new_name":           validation.Nullable("string"),
		"servings":           validation.Nullable("integer"),
		"add_ingredients":    validation.Array(itemdraft.ItemSchema()),
		"remove_ingredients": validation.Array(itemdraft.ItemSchema()),
		"steps":              validation.Array(validation.String()),
	}, "recipe")
}

func (a *updateAction) Prompt(ictx intent.Context) string {
	return fmt.Sprintf(`You extract a change to an existing recipe for a household assistant (locale %s).
Output the recipe as mentioned, and only the changes requested: new name, servings, ingredients to add, ingredients to remove, replacement steps.
%s`, ictx.Lang(), itemdraft.ItemPrompt)
}

func (a *updateAction) Normalize(ctx context.Context, d *updateDraft, ictx intent.Context) error {
	d.Recipe.Mention = strings.TrimSpace(d.Recipe.Mention)
	d.NewName = strings.TrimSpace(d.NewName)
	if d.Servings != nil && *d.Servings <= 0 {
		d.Servings = nil
	}
	d.Steps = trimSteps(d.Steps)

	sess := a.deps.Resolver.NewSession(ictx.User)
	if err := d.Recipe.Resolve(ctx, sess, models.KindRecipe); err != nil {
		return err
	}
	create := ictx.User.OwnerID() != nil
	for i := range d.Add {
		if err := itemdraft.NormalizeLine(ctx, sess, &d.Add[i], create, false); err != nil {
			return err
		}
	}
	for i := range d.Remove {
		if err := itemdraft.NormalizeLine(ctx, sess, &d.Remove[i], false, false); err != nil {
			return err
		}
	}
	return nil
}

func (a *updateAction) Questions(d *updateDraft, ictx intent.Context) []intent.ClarifyQuestion {
	qs := d.Recipe.Questions("recipe", "recipe_id", true, itemdraft.RecipeMessages, ictx)
	if d.changes() == 0 {
		return append(qs, intent.ClarifyQuestion{
			Path:  "add_ingredients.0.name",
			Label: ictx.T(intent.MsgRecipeChanges, d.Recipe.Label()),
			Kind:  intent.KindText,
		})
	}
	qs = append(qs, itemdraft.ListQuestions("add_ingredients", d.Add, ictx)...)
	return append(qs, itemdraft.ListQuestions("remove_ingredients", d.Remove, ictx)...)
}

func (a *updateAction) Merge(d *updateDraft, answers intent.Answers) {
	d.Recipe.Merge("recipe", "recipe_id", answers)
	if s, ok := answers.String("new_name"); ok && s != "" {
		d.NewName = s
	}
	if n, ok := servingsAnswer(answers, "servings"); ok {
		d.Servings = &n
	}
	d.Add = itemdraft.MergeLines(d.Add, "add_ingredients", answers)
	d.Remove = itemdraft.MergeLines(d.Remove, "remove_ingredients", answers)
}

func (a *updateAction) Confirm(d *updateDraft, ictx intent.Context) string {
	lang := ictx.Lang()
	var b strings.Builder
	b.WriteString(ictx.T("headline_update_recipe", d.Recipe.Label()))

	var lines []string
	if d.NewName != "" {
		lines = append(lines, ictx.T("recipe_rename", d.NewName))
	}
	if d.Servings != nil {
		lines = append(lines, ictx.T("recipe_servings_to", *d.Servings))
	}
	for _, l := range d.Add {
		label := l.Label()
		if qty := intent.FormatQuantity(lang, l.Quantity, l.Unit); qty != "" {
			label += " (" + qty + ")"
		}
		lines = append(lines, ictx.T("recipe_add_ingredient", label))
	}
	for _, l := range d.Remove {
		lines = append(lines, ictx.T("recipe_remove_ingredient", l.Label()))
	}
	if len(d.Steps) > 0 {
		lines = append(lines, ictx.T("recipe_steps", len(d.Steps)))
	}

	for i, line := range lines {
		if i == ictx.Preview() {
			b.WriteString("\n" + ictx.T(intent.MsgMore, len(lines)-i))
			break
		}
		b.WriteString("\n- " + line)
	}
	return b.String()
}

// Apply patches the recipe inside one transaction.
func (a *updateAction) Apply(ctx context.Context, user *models.User, d *updateDraft) (intent.Result, error) {
	owner := user.OwnerID()
	if owner == nil {
		return intent.Result{}, intent.Refusal(intent.MsgSignInRequired)
	}
	if d.Recipe.ID == "" {
		return intent.Result{}, intent.NotFound("recipe", intent.MsgRecipeNotFound, d.Recipe.Label())
	}
	lang := intent.MatchLang(user.Locale)

	var res intent.Result
	err := a.deps.Store.Atomic(ctx, func(repos store.Repositories) error {
		res = intent.Result{}
		rec, err := repos.GetRecipe(ctx, d.Recipe.ID, owner)
		if errors.Is(err, store.ErrNotFound) {
			return intent.NotFound("recipe", intent.MsgRecipeNotFound, d.Recipe.Label())
		}
		if err != nil {
			return err
		}
		if rec.OwnerID == nil || *rec.OwnerID != *owner {
			return intent.Refusal(intent.MsgRecipeNotOwned, rec.Name)
		}

		if d.NewName != "" {
			rec.Name = d.NewName
			rec.Key = namekey.ToKey(d.NewName)
			res.Applied++
		}
		if d.Servings != nil {
			rec.Servings = *d.Servings
			res.Applied++
		}
		for _, l := range d.Add {
			if l.ProductID == "" {
				res.Skipped++
				continue
			}
			rec.Ingredients = upsertIngredient(rec.Ingredients, models.RecipeIngredient{
				ProductID: l.ProductID,
				Quantity:  l.Quantity,
				Unit:      l.UnitOrDefault(),
				Notes:     l.Notes,
			})
			res.Applied++
		}
		for _, l := range d.Remove {
			var removed bool
			rec.Ingredients, removed = removeIngredient(rec.Ingredients, l.ProductID)
			if !removed {
				res.Skipped++
				res.Warnings = append(res.Warnings, intent.Message(lang, "ingredient_not_in_recipe", l.Label()))
				continue
			}
			res.Applied++
		}
		if len(d.Steps) > 0 {
			rec.Steps = d.Steps
			res.Applied++
		}

		if err := repos.UpdateRecipe(ctx, rec); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				return intent.Refusal(intent.MsgRecipeExists, d.NewName)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return intent.Result{}, err
	}

	res.Details = map[string]interface{}{"recipe_id": d.Recipe.ID}
	a.logger.Info("recipe updated", map[string]interface{}{
		"recipeId": d.Recipe.ID,
		"changes":  d.changes(),
		"applied":  res.Applied,
	})
	return res, nil
}

// upsertIngredient replaces the line for the same product, or appends ing.
func upsertIngredient(list []models.RecipeIngredient, ing models.RecipeIngredient) []models.RecipeIngredient {
	for i := range list {
		if list[i].ProductID == ing.ProductID {
			list[i] = ing
			return list
		}
	}
	return append(list, ing)
}

func removeIngredient(list []models.RecipeIngredient, productID string) ([]models.RecipeIngredient, bool) {
	if productID == "" {
		return list, false
	}
	out := list[:0]
	removed := false
	for _, ing := range list {
		if ing.ProductID == productID {
			removed = true
			continue
		}
		out = append(out, ing)
	}
	return out, removed
}
