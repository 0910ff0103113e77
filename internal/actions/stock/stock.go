// Package stock holds the pantry stock actions: add_stock, consume_stock
// and set_stock.
package stock

import (
	"context"

	"pantry-assistant/internal/intent"
	"pantry-assistant/internal/intent/itemdraft"
	"pantry-assistant/internal/models"
	"pantry-assistant/internal/store"
)

const (
	AddName     = "add_stock"
	ConsumeName = "consume_stock"
	SetName     = "set_stock"
)

// NewAdd registers purchases: each line increases the user's stock.
func NewAdd(deps intent.Deps) intent.Action {
	return itemdraft.New(itemdraft.Definition{
		Name:            AddName,
		Description:     "the user bought or received products and wants them added to the pantry stock",
		Mode:            itemdraft.ModeCreate,
		RequireQuantity: true,
		Task:            "The user reports products they bought or received; list each product with its quantity.",
		Apply:           applyAdd,
	}, deps)
}

// NewConsume records products used or thrown away.
func NewConsume(deps intent.Deps) intent.Action {
	return itemdraft.New(itemdraft.Definition{
		Name:            ConsumeName,
		Description:     "the user used, ate or threw away products and wants them removed from the pantry stock",
		Mode:            itemdraft.ModeExisting,
		RequireQuantity: true,
		Task:            "The user reports products they used, ate or threw away; list each product with its quantity.",
		Apply:           applyConsume,
	}, deps)
}

// NewSet overwrites the stock after an inventory.
func NewSet(deps intent.Deps) intent.Action {
	return itemdraft.New(itemdraft.Definition{
		Name:            SetName,
		Description:     "the user states how much of a product is left and wants the stock set to that amount",
		Mode:            itemdraft.ModeCreate,
		RequireQuantity: true,
		Task:            "The user states the exact amount left of each product; list each product with that amount.",
		Apply:           applySet,
	}, deps)
}

func quantity(l itemdraft.Line) float64 {
	if l.Quantity == nil {
		return 1
	}
	return *l.Quantity
}

func record(res *intent.Result, entry *models.StockEntry) {
	res.Applied++
	if res.Details == nil {
		res.Details = map[string]interface{}{}
	}
	stock, _ := res.Details["stock"].([]models.StockEntry)
	res.Details["stock"] = append(stock, *entry)
}

// heldUnit picks the unit the line is booked in: the line's own unit when
// stock exists in it, else the first held unit convertible from it. q is
// returned converted to that unit.
func heldUnit(ctx context.Context, repos store.Repositories, user *models.User, l itemdraft.Line) (models.Unit, float64, error) {
	unit, q := l.UnitOrDefault(), quantity(l)
	held, err := repos.GetStock(ctx, user.ID, l.ProductID, unit)
	if err != nil || held > 0 {
		return unit, q, err
	}
	entries, err := repos.ListStock(ctx, user.ID)
	if err != nil {
		return unit, q, err
	}
	for _, e := range entries {
		if e.ProductID != l.ProductID || e.Unit == unit || e.Quantity <= 0 {
			continue
		}
		if converted, ok := models.Convert(q, unit, e.Unit); ok {
			return e.Unit, converted, nil
		}
	}
	return unit, q, nil
}

func applyAdd(ctx context.Context, repos store.Repositories, user *models.User, l itemdraft.Line, res *intent.Result) error {
	unit, q, err := heldUnit(ctx, repos, user, l)
	if err != nil {
		return err
	}
	entry, err := repos.AdjustStock(ctx, user.ID, l.ProductID, unit, q)
	if err != nil {
		return err
	}
	record(res, entry)
	return nil
}

func applyConsume(ctx context.Context, repos store.Repositories, user *models.User, l itemdraft.Line, res *intent.Result) error {
	unit, q, err := heldUnit(ctx, repos, user, l)
	if err != nil {
		return err
	}
	held, err := repos.GetStock(ctx, user.ID, l.ProductID, unit)
	if err != nil {
		return err
	}
	if held < q {
		res.Warnings = append(res.Warnings, intent.Message(intent.MatchLang(user.Locale), "insufficient_stock", l.Label()))
	}
	entry, err := repos.AdjustStock(ctx, user.ID, l.ProductID, unit, -q)
	if err != nil {
		return err
	}
	record(res, entry)
	return nil
}

func applySet(ctx context.Context, repos store.Repositories, user *models.User, l itemdraft.Line, res *intent.Result) error {
	unit, q, err := heldUnit(ctx, repos, user, l)
	if err != nil {
		return err
	}
	entry, err := repos.SetStock(ctx, user.ID, l.ProductID, unit, q)
	if err != nil {
		return err
	}
	record(res, entry)
	return nil
}
