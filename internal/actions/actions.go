// Package actions assembles the assistant's intent actions.
package actions

import (
	"pantry-assistant/internal/actions/mealplan"
	"pantry-assistant/internal/actions/recipe"
	"pantry-assistant/internal/actions/shopping"
	"pantry-assistant/internal/actions/stock"
	"pantry-assistant/internal/common/llm"
	"pantry-assistant/internal/intent"
)

// Constructor builds one action from the shared dependencies.
type Constructor func(deps intent.Deps) intent.Action

// Constructors lists every action the assistant supports.
var Constructors = []Constructor{
	stock.NewAdd,
	stock.NewConsume,
	stock.NewSet,
	shopping.NewAdd,
	shopping.NewRemove,
	recipe.NewCreate,
	recipe.NewUpdate,
	mealplan.NewPlan,
	mealplan.NewUnplan,
}

// NewRegistry builds every action against deps.
func NewRegistry(deps intent.Deps) (*intent.Registry, error) {
	list := make([]intent.Action, len(Constructors))
	for i, build := range Constructors {
		list[i] = build(deps)
	}
	return intent.NewRegistry(list...)
}

// Descriptions lists the registry's actions for the intent classifier.
func Descriptions(reg *intent.Registry) []llm.ActionDescription {
	all := reg.All()
	out := make([]llm.ActionDescription, len(all))
	for i, a := range all {
		out[i] = llm.ActionDescription{Name: a.Name(), Description: a.Description()}
	}
	return out
}
