// Package mealplan holds the meal calendar actions plan_meal and
// unplan_meal.
package mealplan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pantry-assistant/internal/common/logger"
	"pantry-assistant/internal/common/validation"
	"pantry-assistant/internal/intent"
	"pantry-assistant/internal/intent/itemdraft"
	"pantry-assistant/internal/models"
	"pantry-assistant/internal/store"
)

const (
	PlanName   = "plan_meal"
	UnplanName = "unplan_meal"
)

// slot is the date and meal part shared by both drafts.
type slot struct {
	Date    string `json:"date,omitempty"`
	DateRaw string `json:"date_raw"`
	Meal    string `json:"meal"`
}

func (s *slot) normalize(now time.Time) {
	s.DateRaw = strings.TrimSpace(s.DateRaw)
	if s.Date == "" && s.DateRaw != "" {
		if iso, ok := ParseDate(s.DateRaw, now); ok {
			s.Date = iso
		}
	}
	if m, ok := ParseMeal(s.Meal); ok {
		s.Meal = string(m)
	} else {
		s.Meal = ""
	}
}

func (s *slot) questions(ictx intent.Context) []intent.ClarifyQuestion {
	var qs []intent.ClarifyQuestion
	if s.Date == "" {
		label := ictx.T(intent.MsgDate)
		if s.DateRaw != "" {
			label = ictx.T(intent.MsgDateInvalid, s.DateRaw)
		}
		qs = append(qs, intent.ClarifyQuestion{
			Path:        "date",
			Label:       label,
			Kind:        intent.KindText,
			Placeholder: "YYYY-MM-DD",
		})
	}
	if s.Meal == "" {
		lang := ictx.Lang()
		opts := make([]intent.Option, len(models.MealSlots))
		for i, m := range models.MealSlots {
			opts[i] = intent.Option{Value: string(m), Label: intent.MealLabel(lang, m)}
		}
		qs = append(qs, intent.ClarifyQuestion{
			Path:    "meal",
			Label:   ictx.T(intent.MsgMeal),
			Kind:    intent.KindSelect,
			Options: opts,
		})
	}
	return qs
}

func (s *slot) merge(answers intent.Answers) {
	if v, ok := answers.String("date"); ok && v != "" {
		s.DateRaw = v
		s.Date = ""
	}
	if v, ok := answers.String("meal"); ok && v != "" {
		s.Meal = v
	}
}

func (s *slot) complete() bool { return s.Date != "" && s.Meal != "" }

func (s *slot) mealLabel(lang intent.Lang) string {
	return intent.MealLabel(lang, models.MealSlot(s.Meal))
}

// FormatDate renders an ISO date as "02/01/2006" in French and as given in
// English.
func FormatDate(lang intent.Lang, iso string) string {
	if lang != intent.LangFR {
		return iso
	}
	t, err := time.Parse(dateLayout, iso)
	if err != nil {
		return iso
	}
	return t.Format("02/01/2006")
}

func slotSchema(extra map[string]interface{}, required ...string) validation.Schema {
	meals := make([]string, len(models.MealSlots))
	for i, m := range models.MealSlots {
		meals[i] = string(m)
	}
	props := map[string]interface{}{
		"date_raw": validation.Nullable("string"),
		"meal":     validation.Enum(true, meals...),
	}
	for k, v := range extra {
		props[k] = v
	}
	return validation.Object(props, required...)
}

const slotPrompt = `- date_raw: the day as written ("demain", "samedi", "2024-05-04"), null when not stated;
- meal: one of breakfast, lunch, dinner, snack, null when not stated.`

// ==========================
// plan_meal
// ==========================

type planDraft struct {
	slot
	Recipe         itemdraft.Ref `json:"recipe"`
	Servings       *int          `json:"servings"`
	RecipeServings int           `json:"recipe_servings,omitempty"`
}

func (d *planDraft) servings() int {
	if d.Servings != nil {
		return *d.Servings
	}
	if d.RecipeServings > 0 {
		return d.RecipeServings
	}
	return 1
}

type planAction struct {
	deps   intent.Deps
	logger logger.Logger
}

// NewPlan builds plan_meal. The recipe must exist.
func NewPlan(deps intent.Deps) intent.Action {
	return intent.Adapt[planDraft](&planAction{
		deps:   deps,
		logger: deps.Logger.With(map[string]interface{}{"action": PlanName}),
	}, deps.Completer)
}

func (a *planAction) Name() string { return PlanName }

func (a *planAction) Description() string {
	return "the user wants to put a recipe on the meal calendar for a day and meal"
}

func (a *planAction) Schema() validation.Schema {
	return slotSchema(map[string]interface{}{
		"recipe": validation.Object(map[string]interface{}{
			"mention": validation.String(),
		}, "mention"),
		"servings": validation.Nullable("integer"),
	}, "recipe")
}

func (a *planAction) Prompt(ictx intent.Context) string {
	return fmt.Sprintf(`You extract a meal planning request for a household assistant (locale %s).
Output:
- recipe.mention: the dish as written;
%s
- servings: number of people when stated, else null.`, ictx.Lang(), slotPrompt)
}

func (a *planAction) Normalize(ctx context.Context, d *planDraft, ictx intent.Context) error {
	d.slot.normalize(ictx.Time())
	d.Recipe.Mention = strings.TrimSpace(d.Recipe.Mention)
	if d.Servings != nil && *d.Servings <= 0 {
		d.Servings = nil
	}

	sess := a.deps.Resolver.NewSession(ictx.User)
	if err := d.Recipe.Resolve(ctx, sess, models.KindRecipe); err != nil {
		return err
	}
	d.RecipeServings = 0
	if d.Recipe.Resolved() {
		rec, err := a.deps.Store.GetRecipe(ctx, d.Recipe.ID, ictx.User.OwnerID())
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if rec != nil {
			d.RecipeServings = rec.Servings
		}
	}
	return nil
}

func (a *planAction) Questions(d *planDraft, ictx intent.Context) []intent.ClarifyQuestion {
	qs := d.Recipe.Questions("recipe", "recipe_id", true, itemdraft.RecipeMessages, ictx)
	return append(qs, d.slot.questions(ictx)...)
}

func (a *planAction) Merge(d *planDraft, answers intent.Answers) {
	d.slot.merge(answers)
	d.Recipe.Merge("recipe", "recipe_id", answers)
	if f, ok := answers.Float("servings"); ok && f >= 1 {
		n := int(f)
		d.Servings = &n
	}
}

func (a *planAction) Confirm(d *planDraft, ictx intent.Context) string {
	lang := ictx.Lang()
	return ictx.T("headline_plan_meal", d.Recipe.Label(), FormatDate(lang, d.Date), d.mealLabel(lang), d.servings())
}

func (a *planAction) Apply(ctx context.Context, user *models.User, d *planDraft) (intent.Result, error) {
	owner := user.OwnerID()
	if owner == nil {
		return intent.Result{}, intent.Refusal(intent.MsgSignInRequired)
	}
	if !d.complete() {
		return intent.Result{}, intent.Refusal(intent.MsgDate)
	}
	if d.Recipe.ID == "" {
		return intent.Result{}, intent.NotFound("recipe", intent.MsgRecipeNotFound, d.Recipe.Label())
	}

	entry := &models.MealPlanEntry{
		UserID:   *owner,
		Date:     d.Date,
		Meal:     models.MealSlot(d.Meal),
		RecipeID: d.Recipe.ID,
		Servings: d.servings(),
	}
	err := a.deps.Store.Atomic(ctx, func(repos store.Repositories) error {
		if _, err := repos.GetRecipe(ctx, d.Recipe.ID, owner); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return intent.NotFound("recipe", intent.MsgRecipeNotFound, d.Recipe.Label())
			}
			return err
		}
		return repos.AddMealPlanEntry(ctx, entry)
	})
	if err != nil {
		return intent.Result{}, err
	}

	a.logger.Info("meal planned", map[string]interface{}{
		"entryId":  entry.ID,
		"date":     entry.Date,
		"meal":     entry.Meal,
		"recipeId": entry.RecipeID,
	})
	return intent.Result{
		Applied: 1,
		Created: 1,
		Details: map[string]interface{}{"entry": *entry},
	}, nil
}

// ==========================
// unplan_meal
// ==========================

type unplanDraft struct {
	slot
	// Recipe is optional: without it every dish of the slot is removed.
	Recipe itemdraft.Ref `json:"recipe"`
}

type unplanAction struct {
	deps   intent.Deps
	logger logger.Logger
}

// NewUnplan builds unplan_meal.
func NewUnplan(deps intent.Deps) intent.Action {
	return intent.Adapt[unplanDraft](&unplanAction{
		deps:   deps,
		logger: deps.Logger.With(map[string]interface{}{"action": UnplanName}),
	}, deps.Completer)
}

func (a *unplanAction) Name() string { return UnplanName }

func (a *unplanAction) Description() string {
	return "the user wants to remove a planned meal from the calendar"
}

func (a *unplanAction) Schema() validation.Schema {
	return slotSchema(map[string]interface{}{
		"recipe": validation.Object(map[string]interface{}{
			"mention": validation.String(),
		}),
	})
}

func (a *unplanAction) Prompt(ictx intent.Context) string {
	return fmt.Sprintf(`You extract a request to cancel a planned meal for a household assistant (locale %s).
Output:
- recipe.mention: the dish as written, omitted when the whole meal is cancelled;
%s`, ictx.Lang(), slotPrompt)
}

func (a *unplanAction) Normalize(ctx context.Context, d *unplanDraft, ictx intent.Context) error {
	d.slot.normalize(ictx.Time())
	d.Recipe.Mention = strings.TrimSpace(d.Recipe.Mention)
	return d.Recipe.Resolve(ctx, a.deps.Resolver.NewSession(ictx.User), models.KindRecipe)
}

func (a *unplanAction) Questions(d *unplanDraft, ictx intent.Context) []intent.ClarifyQuestion {
	qs := d.Recipe.Questions("recipe", "recipe_id", false, itemdraft.RecipeMessages, ictx)
	return append(qs, d.slot.questions(ictx)...)
}

func (a *unplanAction) Merge(d *unplanDraft, answers intent.Answers) {
	d.slot.merge(answers)
	d.Recipe.Merge("recipe", "recipe_id", answers)
}

func (a *unplanAction) Confirm(d *unplanDraft, ictx intent.Context) string {
	lang := ictx.Lang()
	what := ictx.T("unplan_all")
	if !d.Recipe.Empty() {
		what = "« " + d.Recipe.Label() + " »"
		if lang != intent.LangFR {
			what = `"` + d.Recipe.Label() + `"`
		}
	}
	return ictx.T("headline_unplan_meal", what, d.mealLabel(lang), FormatDate(lang, d.Date))
}

func (a *unplanAction) Apply(ctx context.Context, user *models.User, d *unplanDraft) (intent.Result, error) {
	owner := user.OwnerID()
	if owner == nil {
		return intent.Result{}, intent.Refusal(intent.MsgSignInRequired)
	}
	if !d.complete() {
		return intent.Result{}, intent.Refusal(intent.MsgDate)
	}
	if !d.Recipe.Empty() && d.Recipe.ID == "" {
		return intent.Result{}, intent.NotFound("recipe", intent.MsgRecipeNotFound, d.Recipe.Label())
	}

	var removed int
	err := a.deps.Store.Atomic(ctx, func(repos store.Repositories) error {
		n, err := repos.RemoveMealPlanEntries(ctx, *owner, d.Date, models.MealSlot(d.Meal), d.Recipe.ID)
		removed = n
		return err
	})
	if err != nil {
		return intent.Result{}, err
	}

	a.logger.Info("meal unplanned", map[string]interface{}{
		"date":    d.Date,
		"meal":    d.Meal,
		"removed": removed,
	})
	if removed == 0 {
		return intent.Result{
			Skipped:  1,
			Warnings: []string{intent.Message(intent.MatchLang(user.Locale), "nothing_planned")},
		}, nil
	}
	return intent.Result{Applied: removed}, nil
}
