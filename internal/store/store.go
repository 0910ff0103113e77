// Package store defines the repositories the assistant reads and mutates.
// Implementations live in store/postgres and store/memory.
package store

import (
	"context"
	"errors"

	"pantry-assistant/internal/models"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
)

// EntityRepository looks up and creates named entities. Every read is scoped
// to entities owned by ownerID or shared (owner NULL); a nil ownerID sees only
// shared entities.
type EntityRepository interface {
	// FindByKey returns the entity with exactly this canonical key, preferring
	// an owned entity over a shared one. ErrNotFound when none is visible.
	FindByKey(ctx context.Context, kind models.EntityKind, key string, ownerID *string) (*models.Entity, error)
	// SearchEntities does a case-insensitive substring match over key and
	// display name, ordered by name and bounded by limit.
	SearchEntities(ctx context.Context, kind models.EntityKind, query string, ownerID *string, limit int) ([]models.Entity, error)
	// CreateEntity inserts e, assigning ID and CreatedAt when empty. A
	// conflicting (kind, owner, key) yields ErrDuplicateKey.
	CreateEntity(ctx context.Context, e *models.Entity) error
	GetEntity(ctx context.Context, kind models.EntityKind, id string, ownerID *string) (*models.Entity, error)
}

type StockRepository interface {
	// AdjustStock adds delta to the user's stock of product in unit. The
	// result is floored at zero.
	AdjustStock(ctx context.Context, userID, productID string, unit models.Unit, delta float64) (*models.StockEntry, error)
	SetStock(ctx context.Context, userID, productID string, unit models.Unit, quantity float64) (*models.StockEntry, error)
	// GetStock returns zero when the user holds none of product in unit.
	GetStock(ctx context.Context, userID, productID string, unit models.Unit) (float64, error)
	ListStock(ctx context.Context, userID string) ([]models.StockEntry, error)
}

type ShoppingRepository interface {
	// AddShoppingItem merges into an unchecked line with the same product and
	// unit when one exists, otherwise inserts a new line.
	AddShoppingItem(ctx context.Context, item *models.ShoppingItem) (*models.ShoppingItem, error)
	// CheckShoppingItems marks every unchecked line of product as checked and
	// returns how many lines changed.
	CheckShoppingItems(ctx context.Context, userID, productID string) (int, error)
	ListShoppingItems(ctx context.Context, userID string, includeChecked bool) ([]models.ShoppingItem, error)
}

type RecipeRepository interface {
	// CreateRecipe inserts the recipe entity, its details and ingredients.
	CreateRecipe(ctx context.Context, r *models.Recipe) error
	GetRecipe(ctx context.Context, id string, ownerID *string) (*models.Recipe, error)
	// UpdateRecipe rewrites name, servings, steps and the full ingredient list.
	UpdateRecipe(ctx context.Context, r *models.Recipe) error
}

type MealPlanRepository interface {
	AddMealPlanEntry(ctx context.Context, e *models.MealPlanEntry) error
	// RemoveMealPlanEntries deletes the user's entries for date and meal. An
	// empty recipeID matches every recipe in the slot.
	RemoveMealPlanEntries(ctx context.Context, userID, date string, meal models.MealSlot, recipeID string) (int, error)
	ListMealPlan(ctx context.Context, userID, from, to string) ([]models.MealPlanEntry, error)
}

// Repositories is the full set of repositories, either bound to a
// transaction or not.
type Repositories interface {
	EntityRepository
	StockRepository
	ShoppingRepository
	RecipeRepository
	MealPlanRepository
}

// Store is a Repositories backed by a durable or in-memory engine.
type Store interface {
	Repositories
	// Atomic runs fn against repositories bound to a single transaction. Any
	// error returned by fn rolls every write back.
	Atomic(ctx context.Context, fn func(Repositories) error) error
	Ping(ctx context.Context) error
	Close() error
}
