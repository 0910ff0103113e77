// Package memory is an in-process Store used by tests and by the
// storage.driver=memory configuration.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pantry-assistant/internal/models"
	"pantry-assistant/internal/normalize/namekey"
	"pantry-assistant/internal/store"
)

type stockKey struct {
	userID    string
	productID string
	unit      models.Unit
}

type recipeDetails struct {
	servings    int
	steps       []string
	ingredients []models.RecipeIngredient
}

type state struct {
	entities map[string]models.Entity
	recipes  map[string]recipeDetails
	stock    map[stockKey]models.StockEntry
	shopping []models.ShoppingItem
	plan     []models.MealPlanEntry
}

func newState() *state {
	return &state{
		entities: make(map[string]models.Entity),
		recipes:  make(map[string]recipeDetails),
		stock:    make(map[stockKey]models.StockEntry),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.entities {
		c.entities[k] = v
	}
	for k, v := range s.recipes {
		c.recipes[k] = recipeDetails{
			servings:    v.servings,
			steps:       append([]string(nil), v.steps...),
			ingredients: append([]models.RecipeIngredient(nil), v.ingredients...),
		}
	}
	for k, v := range s.stock {
		c.stock[k] = v
	}
	c.shopping = append([]models.ShoppingItem(nil), s.shopping...)
	c.plan = append([]models.MealPlanEntry(nil), s.plan...)
	return c
}

// Store keeps all data in maps guarded by one mutex.
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{state: newState(), now: time.Now}
}

// Atomic runs fn on a copy of the data and publishes the copy only when fn
// succeeds.
func (s *Store) Atomic(ctx context.Context, fn func(store.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.state.clone()
	if err := fn(&repos{st: draft, now: s.now}); err != nil {
		return err
	}
	s.state = draft
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

func (s *Store) locked(fn func(r *repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&repos{st: s.state, now: s.now})
}

func (s *Store) FindByKey(ctx context.Context, kind models.EntityKind, key string, ownerID *string) (e *models.Entity, err error) {
	err = s.locked(func(r *repos) error { e, err = r.FindByKey(ctx, kind, key, ownerID); return err })
	return e, err
}

func (s *Store) SearchEntities(ctx context.Context, kind models.EntityKind, query string, ownerID *string, limit int) (out []models.Entity, err error) {
	err = s.locked(func(r *repos) error { out, err = r.SearchEntities(ctx, kind, query, ownerID, limit); return err })
	return out, err
}

func (s *Store) CreateEntity(ctx context.Context, e *models.Entity) error {
	return s.locked(func(r *repos) error { return r.CreateEntity(ctx, e) })
}

func (s *Store) GetEntity(ctx context.Context, kind models.EntityKind, id string, ownerID *string) (e *models.Entity, err error) {
	err = s.locked(func(r *repos) error { e, err = r.GetEntity(ctx, kind, id, ownerID); return err })
	return e, err
}

func (s *Store) AdjustStock(ctx context.Context, userID, productID string, unit models.Unit, delta float64) (e *models.StockEntry, err error) {
	err = s.locked(func(r *repos) error { e, err = r.AdjustStock(ctx, userID, productID, unit, delta); return err })
	return e, err
}

func (s *Store) SetStock(ctx context.Context, userID, productID string, unit models.Unit, quantity float64) (e *models.StockEntry, err error) {
	err = s.locked(func(r *repos) error { e, err = r.SetStock(ctx, userID, productID, unit, quantity); return err })
	return e, err
}

func (s *Store) GetStock(ctx context.Context, userID, productID string, unit models.Unit) (q float64, err error) {
	err = s.locked(func(r *repos) error { q, err = r.GetStock(ctx, userID, productID, unit); return err })
	return q, err
}

func (s *Store) ListStock(ctx context.Context, userID string) (out []models.StockEntry, err error) {
	err = s.locked(func(r *repos) error { out, err = r.ListStock(ctx, userID); return err })
	return out, err
}

func (s *Store) AddShoppingItem(ctx context.Context, item *models.ShoppingItem) (out *models.ShoppingItem, err error) {
	err = s.locked(func(r *repos) error { out, err = r.AddShoppingItem(ctx, item); return err })
	return out, err
}

func (s *Store) CheckShoppingItems(ctx context.Context, userID, productID string) (n int, err error) {
	err = s.locked(func(r *repos) error { n, err = r.CheckShoppingItems(ctx, userID, productID); return err })
	return n, err
}

func (s *Store) ListShoppingItems(ctx context.Context, userID string, includeChecked bool) (out []models.ShoppingItem, err error) {
	err = s.locked(func(r *repos) error { out, err = r.ListShoppingItems(ctx, userID, includeChecked); return err })
	return out, err
}

func (s *Store) CreateRecipe(ctx context.Context, rec *models.Recipe) error {
	return s.locked(func(r *repos) error { return r.CreateRecipe(ctx, rec) })
}

func (s *Store) GetRecipe(ctx context.Context, id string, ownerID *string) (rec *models.Recipe, err error) {
	err = s.locked(func(r *repos) error { rec, err = r.GetRecipe(ctx, id, ownerID); return err })
	return rec, err
}

func (s *Store) UpdateRecipe(ctx context.Context, rec *models.Recipe) error {
	return s.locked(func(r *repos) error { return r.UpdateRecipe(ctx, rec) })
}

func (s *Store) AddMealPlanEntry(ctx context.Context, e *models.MealPlanEntry) error {
	return s.locked(func(r *repos) error { return r.AddMealPlanEntry(ctx, e) })
}

func (s *Store) RemoveMealPlanEntries(ctx context.Context, userID, date string, meal models.MealSlot, recipeID string) (n int, err error) {
	err = s.locked(func(r *repos) error { n, err = r.RemoveMealPlanEntries(ctx, userID, date, meal, recipeID); return err })
	return n, err
}

func (s *Store) ListMealPlan(ctx context.Context, userID, from, to string) (out []models.MealPlanEntry, err error) {
	err = s.locked(func(r *repos) error { out, err = r.ListMealPlan(ctx, userID, from, to); return err })
	return out, err
}

// repos operates on a state without locking; callers hold Store.mu.
type repos struct {
	st  *state
	now func() time.Time
}

func visible(e models.Entity, ownerID *string) bool {
	return e.VisibleTo(ownerID)
}

func sameOwner(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r *repos) FindByKey(ctx context.Context, kind models.EntityKind, key string, ownerID *string) (*models.Entity, error) {
	var shared *models.Entity
	for _, e := range r.st.entities {
		if e.Kind != kind || e.Key != key || !visible(e, ownerID) {
			continue
		}
		e := e
		if e.OwnerID != nil {
			return &e, nil
		}
		shared = &e
	}
	if shared == nil {
		return nil, store.ErrNotFound
	}
	return shared, nil
}

func (r *repos) SearchEntities(ctx context.Context, kind models.EntityKind, query string, ownerID *string, limit int) ([]models.Entity, error) {
	key := namekey.ToKey(query)
	lower := strings.ToLower(strings.TrimSpace(query))
	if key == "" && lower == "" {
		return nil, nil
	}

	var out []models.Entity
	for _, e := range r.st.entities {
		if e.Kind != kind || !visible(e, ownerID) {
			continue
		}
		if (key != "" && strings.Contains(e.Key, key)) || (lower != "" && strings.Contains(strings.ToLower(e.Name), lower)) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *repos) CreateEntity(ctx context.Context, e *models.Entity) error {
	for _, existing := range r.st.entities {
		if existing.Kind == e.Kind && existing.Key == e.Key && sameOwner(existing.OwnerID, e.OwnerID) {
			return store.ErrDuplicateKey
		}
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now()
	}
	r.st.entities[e.ID] = *e
	return nil
}

func (r *repos) GetEntity(ctx context.Context, kind models.EntityKind, id string, ownerID *string) (*models.Entity, error) {
	e, ok := r.st.entities[id]
	if !ok || e.Kind != kind || !visible(e, ownerID) {
		return nil, store.ErrNotFound
	}
	return &e, nil
}

func (r *repos) AdjustStock(ctx context.Context, userID, productID string, unit models.Unit, delta float64) (*models.StockEntry, error) {
	k := stockKey{userID, productID, unit}
	entry := r.st.stock[k]
	entry.UserID, entry.ProductID, entry.Unit = userID, productID, unit
	entry.Quantity += delta
	if entry.Quantity < 0 {
		entry.Quantity = 0
	}
	entry.UpdatedAt = r.now()
	r.st.stock[k] = entry
	return &entry, nil
}

func (r *repos) SetStock(ctx context.Context, userID, productID string, unit models.Unit, quantity float64) (*models.StockEntry, error) {
	if quantity < 0 {
		quantity = 0
	}
	entry := models.StockEntry{UserID: userID, ProductID: productID, Unit: unit, Quantity: quantity, UpdatedAt: r.now()}
	r.st.stock[stockKey{userID, productID, unit}] = entry
	return &entry, nil
}

func (r *repos) GetStock(ctx context.Context, userID, productID string, unit models.Unit) (float64, error) {
	return r.st.stock[stockKey{userID, productID, unit}].Quantity, nil
}

func (r *repos) ListStock(ctx context.Context, userID string) ([]models.StockEntry, error) {
	var out []models.StockEntry
	for k, v := range r.st.stock {
		if k.userID == userID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID == out[j].ProductID {
			return out[i].Unit < out[j].Unit
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out, nil
}

func (r *repos) AddShoppingItem(ctx context.Context, item *models.ShoppingItem) (*models.ShoppingItem, error) {
	for i, existing := range r.st.shopping {
		if existing.UserID != item.UserID || existing.ProductID != item.ProductID || existing.Unit != item.Unit || existing.Checked {
			continue
		}
		existing.Quantity = addQuantities(existing.Quantity, item.Quantity)
		if item.Notes != "" {
			existing.Notes = item.Notes
		}
		r.st.shopping[i] = existing
		return &existing, nil
	}

	created := *item
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	r.st.shopping = append(r.st.shopping, created)
	return &created, nil
}

func addQuantities(a, b *float64) *float64 {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		v := *b
		return &v
	case b == nil:
		v := *a
		return &v
	}
	v := *a + *b
	return &v
}

func (r *repos) CheckShoppingItems(ctx context.Context, userID, productID string) (int, error) {
	n := 0
	for i, it := range r.st.shopping {
		if it.UserID == userID && it.ProductID == productID && !it.Checked {
			r.st.shopping[i].Checked = true
			n++
		}
	}
	return n, nil
}

func (r *repos) ListShoppingItems(ctx context.Context, userID string, includeChecked bool) ([]models.ShoppingItem, error) {
	var out []models.ShoppingItem
	for _, it := range r.st.shopping {
		if it.UserID == userID && (includeChecked || !it.Checked) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *repos) CreateRecipe(ctx context.Context, rec *models.Recipe) error {
	rec.Kind = models.KindRecipe
	if err := r.CreateEntity(ctx, &rec.Entity); err != nil {
		return err
	}
	r.st.recipes[rec.ID] = recipeDetails{
		servings:    rec.Servings,
		steps:       append([]string(nil), rec.Steps...),
		ingredients: append([]models.RecipeIngredient(nil), rec.Ingredients...),
	}
	return nil
}

func (r *repos) GetRecipe(ctx context.Context, id string, ownerID *string) (*models.Recipe, error) {
	e, err := r.GetEntity(ctx, models.KindRecipe, id, ownerID)
	if err != nil {
		return nil, err
	}
	d := r.st.recipes[id]
	return &models.Recipe{
		Entity:      *e,
		Servings:    d.servings,
		Steps:       append([]string(nil), d.steps...),
		Ingredients: append([]models.RecipeIngredient(nil), d.ingredients...),
	}, nil
}

func (r *repos) UpdateRecipe(ctx context.Context, rec *models.Recipe) error {
	e, ok := r.st.entities[rec.ID]
	if !ok || e.Kind != models.KindRecipe {
		return store.ErrNotFound
	}
	if rec.Key != e.Key {
		for id, other := range r.st.entities {
			if id != rec.ID && other.Kind == models.KindRecipe && other.Key == rec.Key && sameOwner(other.OwnerID, e.OwnerID) {
				return store.ErrDuplicateKey
			}
		}
	}
	e.Name, e.Key = rec.Name, rec.Key
	r.st.entities[rec.ID] = e
	r.st.recipes[rec.ID] = recipeDetails{
		servings:    rec.Servings,
		steps:       append([]string(nil), rec.Steps...),
		ingredients: append([]models.RecipeIngredient(nil), rec.Ingredients...),
	}
	return nil
}

func (r *repos) AddMealPlanEntry(ctx context.Context, e *models.MealPlanEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	r.st.plan = append(r.st.plan, *e)
	return nil
}

func (r *repos) RemoveMealPlanEntries(ctx context.Context, userID, date string, meal models.MealSlot, recipeID string) (int, error) {
	kept := r.st.plan[:0:0]
	removed := 0
	for _, e := range r.st.plan {
		if e.UserID == userID && e.Date == date && e.Meal == meal && (recipeID == "" || e.RecipeID == recipeID) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.st.plan = kept
	return removed, nil
}

func (r *repos) ListMealPlan(ctx context.Context, userID, from, to string) ([]models.MealPlanEntry, error) {
	var out []models.MealPlanEntry
	for _, e := range r.st.plan {
		if e.UserID == userID && e.Date >= from && (to == "" || e.Date <= to) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}
