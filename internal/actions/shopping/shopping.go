// Package shopping holds the shopping list actions.
package shopping

import (
	"context"

	"pantry-assistant/internal/intent"
	"pantry-assistant/internal/intent/itemdraft"
	"pantry-assistant/internal/models"
	"pantry-assistant/internal/store"
)

const (
	AddName    = "add_shopping_items"
	RemoveName = "remove_shopping_items"
)

// NewAdd puts products on the shopping list. Quantities are optional.
func NewAdd(deps intent.Deps) intent.Action {
	return itemdraft.New(itemdraft.Definition{
		Name:        AddName,
		Description: "the user wants products added to the shopping list",
		Mode:        itemdraft.ModeCreate,
		Task:        "The user wants to buy products; list each product, with a quantity only when stated.",
		Apply:       applyAdd,
	}, deps)
}

// NewRemove checks products off the shopping list.
func NewRemove(deps intent.Deps) intent.Action {
	return itemdraft.New(itemdraft.Definition{
		Name:        RemoveName,
		Description: "the user wants products crossed off or removed from the shopping list",
		Mode:        itemdraft.ModeExisting,
		Task:        "The user wants products removed from the shopping list; list each product.",
		Apply:       applyRemove,
	}, deps)
}

func applyAdd(ctx context.Context, repos store.Repositories, user *models.User, l itemdraft.Line, res *intent.Result) error {
	item, err := repos.AddShoppingItem(ctx, &models.ShoppingItem{
		UserID:    user.ID,
		ProductID: l.ProductID,
		Quantity:  l.Quantity,
		Unit:      l.UnitOrDefault(),
		Notes:     l.Notes,
	})
	if err != nil {
		return err
	}
	res.Applied++
	if res.Details == nil {
		res.Details = map[string]interface{}{}
	}
	items, _ := res.Details["items"].([]models.ShoppingItem)
	res.Details["items"] = append(items, *item)
	return nil
}

func applyRemove(ctx context.Context, repos store.Repositories, user *models.User, l itemdraft.Line, res *intent.Result) error {
	n, err := repos.CheckShoppingItems(ctx, user.ID, l.ProductID)
	if err != nil {
		return err
	}
	if n == 0 {
		res.Skipped++
		res.Warnings = append(res.Warnings, intent.Message(intent.MatchLang(user.Locale), "not_on_list", l.Label()))
		return nil
	}
	res.Applied += n
	return nil
}
