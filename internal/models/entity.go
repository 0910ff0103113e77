package models

import "time"

// EntityKind names a resolvable domain entity family.
type EntityKind string

const (
	KindProduct EntityKind = "product"
	KindRecipe  EntityKind = "recipe"
)

// Entity is a named domain entity addressable by canonical key. OwnerID nil
// means the entity is shared by every user.
type Entity struct {
	ID        string     `json:"id" db:"id"`
	Kind      EntityKind `json:"kind" db:"kind"`
	OwnerID   *string    `json:"ownerId,omitempty" db:"owner_id"`
	Name      string     `json:"name" db:"name"`
	Key       string     `json:"key" db:"canonical_key"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
}

// VisibleTo reports whether userID may see e.
func (e *Entity) VisibleTo(userID *string) bool {
	if e.OwnerID == nil {
		return true
	}
	return userID != nil && *e.OwnerID == *userID
}

// StockEntry is the quantity of one product held by a user in one unit.
type StockEntry struct {
	UserID    string    `json:"userId" db:"user_id"`
	ProductID string    `json:"productId" db:"product_id"`
	Unit      Unit      `json:"unit" db:"unit"`
	Quantity  float64   `json:"quantity" db:"quantity"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// ShoppingItem is one line of a user's shopping list.
type ShoppingItem struct {
	ID        string   `json:"id" db:"id"`
	UserID    string   `json:"userId" db:"user_id"`
	ProductID string   `json:"productId" db:"product_id"`
	Quantity  *float64 `json:"quantity,omitempty" db:"quantity"`
	Unit      Unit     `json:"unit" db:"unit"`
	Notes     string   `json:"notes,omitempty" db:"notes"`
	Checked   bool     `json:"checked" db:"checked"`
}

// RecipeIngredient links a recipe to a product with an optional quantity.
type RecipeIngredient struct {
	ProductID string   `json:"productId" db:"product_id"`
	Quantity  *float64 `json:"quantity,omitempty" db:"quantity"`
	Unit      Unit     `json:"unit" db:"unit"`
	Notes     string   `json:"notes,omitempty" db:"notes"`
}

// Recipe is a recipe row together with its ingredient lines.
type Recipe struct {
	Entity
	Servings    int                `json:"servings" db:"servings"`
	Steps       []string           `json:"steps,omitempty"`
	Ingredients []RecipeIngredient `json:"ingredients,omitempty"`
}

// MealSlot is the meal of the day a plan entry fills.
type MealSlot string

const (
	MealBreakfast MealSlot = "breakfast"
	MealLunch     MealSlot = "lunch"
	MealDinner    MealSlot = "dinner"
	MealSnack     MealSlot = "snack"
)

var MealSlots = []MealSlot{MealBreakfast, MealLunch, MealDinner, MealSnack}

// IsValid reports whether m is one of the known slots.
func (m MealSlot) IsValid() bool {
	for _, s := range MealSlots {
		if s == m {
			return true
		}
	}
	return false
}

// MealPlanEntry places one recipe on the calendar.
type MealPlanEntry struct {
	ID       string   `json:"id" db:"id"`
	UserID   string   `json:"userId" db:"user_id"`
	Date     string   `json:"date" db:"plan_date"` // YYYY-MM-DD
	Meal     MealSlot `json:"meal" db:"meal"`
	RecipeID string   `json:"recipeId" db:"recipe_id"`
	Servings int      `json:"servings" db:"servings"`
}
