// Package postgres implements store.Store on PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"pantry-assistant/internal/common/database"
	apperrors "pantry-assistant/internal/common/errors"
	"pantry-assistant/internal/models"
	"pantry-assistant/internal/normalize/namekey"
	"pantry-assistant/internal/store"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store is the PostgreSQL store.
type Store struct {
	repos
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{repos: repos{q: db, now: time.Now}, db: db}
}

// Migrate creates the tables when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return wrap("migrate", err)
	}
	return nil
}

func (s *Store) Atomic(ctx context.Context, fn func(store.Repositories) error) error {
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(&repos{q: tx, now: s.now})
	})
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperrors.NewDatabaseConnectionFailedError(err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// wrap classifies a driver error. Sentinels from the store package pass
// through untouched so callers can match them.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrDuplicateKey) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", op, store.ErrDuplicateKey)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewQueryTimeoutError(op, err)
	}
	return apperrors.NewQueryExecutionFailedError(op, err)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

type repos struct {
	q   queryer
	now func() time.Time
}

const entityColumns = `id, kind, owner_id, name, canonical_key, created_at`

func scanEntity(row interface{ Scan(...interface{}) error }) (*models.Entity, error) {
	var (
		e     models.Entity
		owner sql.NullString
	)
	if err := row.Scan(&e.ID, &e.Kind, &owner, &e.Name, &e.Key, &e.CreatedAt); err != nil {
		return nil, err
	}
	if owner.Valid {
		e.OwnerID = &owner.String
	}
	return &e, nil
}

func nullable(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func (r *repos) FindByKey(ctx context.Context, kind models.EntityKind, key string, ownerID *string) (*models.Entity, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+entityColumns+`
		FROM entities
		WHERE kind = $1 AND canonical_key = $2 AND (owner_id IS NULL OR owner_id = $3)
		ORDER BY owner_id NULLS LAST
		LIMIT 1`, string(kind), key, nullable(ownerID))
	e, err := scanEntity(row)
	if err != nil {
		return nil, wrap("find_entity_by_key", err)
	}
	return e, nil
}

func (r *repos) SearchEntities(ctx context.Context, kind models.EntityKind, query string, ownerID *string, limit int) ([]models.Entity, error) {
	key := namekey.ToKey(query)
	text := strings.TrimSpace(query)
	if key == "" && text == "" {
		return nil, nil
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT `+entityColumns+`
		FROM entities
		WHERE kind = $1 AND (owner_id IS NULL OR owner_id = $2)
		  AND (canonical_key LIKE $3 OR name ILIKE $4)
		ORDER BY name, id
		LIMIT $5`, string(kind), nullable(ownerID), containsPattern(key), containsPattern(text), limit)
	if err != nil {
		return nil, wrap("search_entities", err)
	}
	defer rows.Close()

	var out []models.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, wrap("search_entities", err)
		}
		out = append(out, *e)
	}
	return out, wrap("search_entities", rows.Err())
}

func (r *repos) CreateEntity(ctx context.Context, e *models.Entity) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO entities (id, kind, owner_id, name, canonical_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, string(e.Kind), nullable(e.OwnerID), e.Name, e.Key, e.CreatedAt)
	return wrap("create_entity", err)
}

func (r *repos) GetEntity(ctx context.Context, kind models.EntityKind, id string, ownerID *string) (*models.Entity, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+entityColumns+`
		FROM entities
		WHERE kind = $1 AND id = $2 AND (owner_id IS NULL OR owner_id = $3)`,
		string(kind), id, nullable(ownerID))
	e, err := scanEntity(row)
	if err != nil {
		return nil, wrap("get_entity", err)
	}
	return e, nil
}

func (r *repos) AdjustStock(ctx context.Context, userID, productID string, unit models.Unit, delta float64) (*models.StockEntry, error) {
	entry := models.StockEntry{UserID: userID, ProductID: productID, Unit: unit}
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO stock_entries (user_id, product_id, unit, quantity, updated_at)
		VALUES ($1, $2, $3, GREATEST($4::double precision, 0), now())
		ON CONFLICT (user_id, product_id, unit)
		DO UPDATE SET quantity = GREATEST(stock_entries.quantity + $4::double precision, 0), updated_at = now()
		RETURNING quantity, updated_at`,
		userID, productID, string(unit), delta).Scan(&entry.Quantity, &entry.UpdatedAt)
	if err != nil {
		return nil, wrap("adjust_stock", err)
	}
	return &entry, nil
}

func (r *repos) SetStock(ctx context.Context, userID, productID string, unit models.Unit, quantity float64) (*models.StockEntry, error) {
	if quantity < 0 {
		quantity = 0
	}
	entry := models.StockEntry{UserID: userID, ProductID: productID, Unit: unit}
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO stock_entries (user_id, product_id, unit, quantity, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id, product_id, unit)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = now()
		RETURNING quantity, updated_at`,
		userID, productID, string(unit), quantity).Scan(&entry.Quantity, &entry.UpdatedAt)
	if err != nil {
		return nil, wrap("set_stock", err)
	}
	return &entry, nil
}

func (r *repos) GetStock(ctx context.Context, userID, productID string, unit models.Unit) (float64, error) {
	var q float64
	err := r.q.QueryRowContext(ctx, `
		SELECT quantity FROM stock_entries
		WHERE user_id = $1 AND product_id = $2 AND unit = $3`,
		userID, productID, string(unit)).Scan(&q)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, wrap("get_stock", err)
	}
	return q, nil
}

func (r *repos) ListStock(ctx context.Context, userID string) ([]models.StockEntry, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT user_id, product_id, unit, quantity, updated_at
		FROM stock_entries
		WHERE user_id = $1
		ORDER BY product_id, unit`, userID)
	if err != nil {
		return nil, wrap("list_stock", err)
	}
	defer rows.Close()

	var out []models.StockEntry
	for rows.Next() {
		var e models.StockEntry
		if err := rows.Scan(&e.UserID, &e.ProductID, &e.Unit, &e.Quantity, &e.UpdatedAt); err != nil {
			return nil, wrap("list_stock", err)
		}
		out = append(out, e)
	}
	return out, wrap("list_stock", rows.Err())
}

func (r *repos) AddShoppingItem(ctx context.Context, item *models.ShoppingItem) (*models.ShoppingItem, error) {
	out := *item
	var qty sql.NullFloat64
	err := r.q.QueryRowContext(ctx, `
		UPDATE shopping_items
		SET quantity = CASE
		        WHEN quantity IS NULL THEN $4
		        WHEN $4::double precision IS NULL THEN quantity
		        ELSE quantity + $4 END,
		    notes = CASE WHEN $5 = '' THEN notes ELSE $5 END
		WHERE id = (
		    SELECT id FROM shopping_items
		    WHERE user_id = $1 AND product_id = $2 AND unit = $3 AND NOT checked
		    ORDER BY created_at
		    LIMIT 1)
		RETURNING id, quantity, notes`,
		item.UserID, item.ProductID, string(item.Unit), item.Quantity, item.Notes).Scan(&out.ID, &qty, &out.Notes)
	switch {
	case err == nil:
		out.Quantity = nil
		if qty.Valid {
			v := qty.Float64
			out.Quantity = &v
		}
		return &out, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, wrap("add_shopping_item", err)
	}

	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO shopping_items (id, user_id, product_id, quantity, unit, notes, checked)
		VALUES ($1, $2, $3, $4, $5, $6, false)`,
		out.ID, out.UserID, out.ProductID, out.Quantity, string(out.Unit), out.Notes)
	if err != nil {
		return nil, wrap("add_shopping_item", err)
	}
	return &out, nil
}

func (r *repos) CheckShoppingItems(ctx context.Context, userID, productID string) (int, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE shopping_items SET checked = true
		WHERE user_id = $1 AND product_id = $2 AND NOT checked`, userID, productID)
	if err != nil {
		return 0, wrap("check_shopping_items", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap("check_shopping_items", err)
	}
	return int(n), nil
}

func (r *repos) ListShoppingItems(ctx context.Context, userID string, includeChecked bool) ([]models.ShoppingItem, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, user_id, product_id, quantity, unit, notes, checked
		FROM shopping_items
		WHERE user_id = $1 AND ($2 OR NOT checked)
		ORDER BY created_at, id`, userID, includeChecked)
	if err != nil {
		return nil, wrap("list_shopping_items", err)
	}
	defer rows.Close()

	var out []models.ShoppingItem
	for rows.Next() {
		var (
			it  models.ShoppingItem
			qty sql.NullFloat64
		)
		if err := rows.Scan(&it.ID, &it.UserID, &it.ProductID, &qty, &it.Unit, &it.Notes, &it.Checked); err != nil {
			return nil, wrap("list_shopping_items", err)
		}
		if qty.Valid {
			v := qty.Float64
			it.Quantity = &v
		}
		out = append(out, it)
	}
	return out, wrap("list_shopping_items", rows.Err())
}

func (r *repos) CreateRecipe(ctx context.Context, rec *models.Recipe) error {
	rec.Kind = models.KindRecipe
	if err := r.CreateEntity(ctx, &rec.Entity); err != nil {
		return err
	}
	if _, err := r.q.ExecContext(ctx, `
		INSERT INTO recipes (id, servings, steps) VALUES ($1, $2, $3)`,
		rec.ID, rec.Servings, pq.Array(rec.Steps)); err != nil {
		return wrap("create_recipe", err)
	}
	return r.insertIngredients(ctx, rec.ID, rec.Ingredients)
}

func (r *repos) insertIngredients(ctx context.Context, recipeID string, ingredients []models.RecipeIngredient) error {
	for i, ing := range ingredients {
		if _, err := r.q.ExecContext(ctx, `
			INSERT INTO recipe_ingredients (recipe_id, position, product_id, quantity, unit, notes)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			recipeID, i, ing.ProductID, ing.Quantity, string(ing.Unit), ing.Notes); err != nil {
			return wrap("insert_recipe_ingredient", err)
		}
	}
	return nil
}

func (r *repos) GetRecipe(ctx context.Context, id string, ownerID *string) (*models.Recipe, error) {
	e, err := r.GetEntity(ctx, models.KindRecipe, id, ownerID)
	if err != nil {
		return nil, err
	}
	rec := &models.Recipe{Entity: *e}

	var steps pq.StringArray
	err = r.q.QueryRowContext(ctx, `SELECT servings, steps FROM recipes WHERE id = $1`, id).Scan(&rec.Servings, &steps)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, wrap("get_recipe", err)
	}
	rec.Steps = []string(steps)

	rows, err := r.q.QueryContext(ctx, `
		SELECT product_id, quantity, unit, notes
		FROM recipe_ingredients
		WHERE recipe_id = $1
		ORDER BY position`, id)
	if err != nil {
		return nil, wrap("get_recipe_ingredients", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ing models.RecipeIngredient
			qty sql.NullFloat64
		)
		if err := rows.Scan(&ing.ProductID, &qty, &ing.Unit, &ing.Notes); err != nil {
			return nil, wrap("get_recipe_ingredients", err)
		}
		if qty.Valid {
			v := qty.Float64
			ing.Quantity = &v
		}
		rec.Ingredients = append(rec.Ingredients, ing)
	}
	return rec, wrap("get_recipe_ingredients", rows.Err())
}

func (r *repos) UpdateRecipe(ctx context.Context, rec *models.Recipe) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE entities SET name = $2, canonical_key = $3
		WHERE id = $1 AND kind = 'recipe'`, rec.ID, rec.Name, rec.Key)
	if err != nil {
		return wrap("update_recipe", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}

	if _, err := r.q.ExecContext(ctx, `
		INSERT INTO recipes (id, servings, steps) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET servings = EXCLUDED.servings, steps = EXCLUDED.steps`,
		rec.ID, rec.Servings, pq.Array(rec.Steps)); err != nil {
		return wrap("update_recipe", err)
	}
	if _, err := r.q.ExecContext(ctx, `DELETE FROM recipe_ingredients WHERE recipe_id = $1`, rec.ID); err != nil {
		return wrap("update_recipe", err)
	}
	return r.insertIngredients(ctx, rec.ID, rec.Ingredients)
}

func (r *repos) AddMealPlanEntry(ctx context.Context, e *models.MealPlanEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO meal_plan_entries (id, user_id, plan_date, meal, recipe_id, servings)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.UserID, e.Date, string(e.Meal), e.RecipeID, e.Servings)
	return wrap("add_meal_plan_entry", err)
}

func (r *repos) RemoveMealPlanEntries(ctx context.Context, userID, date string, meal models.MealSlot, recipeID string) (int, error) {
	res, err := r.q.ExecContext(ctx, `
		DELETE FROM meal_plan_entries
		WHERE user_id = $1 AND plan_date = $2 AND meal = $3 AND ($4 = '' OR recipe_id = $4)`,
		userID, date, string(meal), recipeID)
	if err != nil {
		return 0, wrap("remove_meal_plan_entries", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap("remove_meal_plan_entries", err)
	}
	return int(n), nil
}

func (r *repos) ListMealPlan(ctx context.Context, userID, from, to string) ([]models.MealPlanEntry, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, user_id, to_char(plan_date, 'YYYY-MM-DD'), meal, recipe_id, servings
		FROM meal_plan_entries
		WHERE user_id = $1 AND plan_date >= $2::date
		  AND plan_date <= COALESCE(NULLIF($3, '')::date, 'infinity'::date)
		ORDER BY plan_date, meal`, userID, from, to)
	if err != nil {
		return nil, wrap("list_meal_plan", err)
	}
	defer rows.Close()

	var out []models.MealPlanEntry
	for rows.Next() {
		var e models.MealPlanEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Date, &e.Meal, &e.RecipeID, &e.Servings); err != nil {
			return nil, wrap("list_meal_plan", err)
		}
		out = append(out, e)
	}
	return out, wrap("list_meal_plan", rows.Err())
}
