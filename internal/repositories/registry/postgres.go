// Package registry implements the PostgreSQL-backed central user registry:
// cross-recipe counting, existence checks, and keyset-paginated listing with
// per-recipe hydration.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mkuznecovs/authkeeper/internal/common"
	"github.com/mkuznecovs/authkeeper/internal/config"
	"github.com/mkuznecovs/authkeeper/internal/dbx"
	"github.com/mkuznecovs/authkeeper/internal/models"
	"github.com/mkuznecovs/authkeeper/internal/pagination"
)

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db      dbx.DBTX
	cfg     *config.Config
	loaders map[models.RecipeID]UserLoader
}

// NewPostgresRepository constructs a registry over the given DBTX. The loader
// map must cover every recipe tag that can appear in the registry table.
func NewPostgresRepository(db dbx.DBTX, cfg *config.Config, loaders map[models.RecipeID]UserLoader) *PostgresRepository {
	return &PostgresRepository{db: db, cfg: cfg, loaders: loaders}
}

// recipeFilter renders an optional recipe_id IN clause with placeholders
// starting at startArg. Unknown tags are rejected up front rather than
// silently matching nothing.
func recipeFilter(recipes []models.RecipeID, startArg int) (string, []any, error) {
	if len(recipes) == 0 {
		return "", nil, nil
	}
	placeholders := make([]string, len(recipes))
	args := make([]any, len(recipes))
	for i, r := range recipes {
		if _, ok := models.ParseRecipeID(string(r)); !ok {
			return "", nil, fmt.Errorf("%w: %q", common.ErrUnknownRecipe, r)
		}
		placeholders[i] = fmt.Sprintf("$%d", startArg+i)
		args[i] = string(r)
	}
	return fmt.Sprintf("recipe_id IN (%s)", strings.Join(placeholders, ",")), args, nil
}

// Count returns the number of registry rows, optionally narrowed to a recipe
// set.
func (r *PostgresRepository) Count(ctx context.Context, recipes ...models.RecipeID) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.cfg.UsersTable())

	filter, args, err := recipeFilter(recipes, 1)
	if err != nil {
		return 0, err
	}
	if filter != "" {
		query += " WHERE " + filter
	}

	var count int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return count, nil
}

// Exists reports whether any recipe knows the given user id.
func (r *PostgresRepository) Exists(ctx context.Context, userID string) (bool, error) {
	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE user_id = $1 LIMIT 1`, r.cfg.UsersTable())

	var one int
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

// ListUsers returns one page of hydrated users ordered by (time_joined,
// user_id). A nil cursor starts from the beginning; otherwise the page starts
// just past the cursor row. The keyset predicate readmits the cursor row
// itself on boundary timestamps, so cursor pages over-fetch by one and drop
// it here.
func (r *PostgresRepository) ListUsers(ctx context.Context, limit int, order pagination.Order, recipes []models.RecipeID, cursor *pagination.Cursor) ([]models.AuthRecipeUser, error) {
	var clauses []string
	var args []any

	filter, filterArgs, err := recipeFilter(recipes, 1)
	if err != nil {
		return nil, err
	}
	if filter != "" {
		clauses = append(clauses, filter)
		args = append(args, filterArgs...)
	}

	fetch := limit
	if cursor != nil {
		predicate, predicateArgs := pagination.Predicate(*cursor, order, len(args)+1)
		clauses = append(clauses, predicate)
		args = append(args, predicateArgs...)
		fetch = limit + 1
	}

	query := fmt.Sprintf(`SELECT user_id, recipe_id, time_joined FROM %s`, r.cfg.UsersTable())
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " " + pagination.OrderBy(order)
	query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
	args = append(args, fetch)

	page, err := r.queryPage(ctx, query, args)
	if err != nil {
		return nil, err
	}

	if cursor != nil && len(page) > 0 && page[0].TimeJoined == cursor.TimeJoined && page[0].ID == cursor.UserID {
		page = page[1:]
	}
	if len(page) > limit {
		page = page[:limit]
	}

	return r.hydrate(ctx, page)
}

func (r *PostgresRepository) queryPage(ctx context.Context, query string, args []any) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var page []models.User
	for rows.Next() {
		var u models.User
		var tag string
		if err := rows.Scan(&u.ID, &tag, &u.TimeJoined); err != nil {
			return nil, err
		}
		recipe, ok := models.ParseRecipeID(tag)
		if !ok {
			return nil, fmt.Errorf("%w: %q", common.ErrUnknownRecipe, tag)
		}
		u.RecipeID = recipe
		page = append(page, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return page, nil
}

// hydrate fans out to the recipe loaders and reassembles the rows in page
// order. Registry rows whose recipe row has vanished mid-flight are dropped.
func (r *PostgresRepository) hydrate(ctx context.Context, page []models.User) ([]models.AuthRecipeUser, error) {
	byRecipe := make(map[models.RecipeID][]string)
	for _, u := range page {
		byRecipe[u.RecipeID] = append(byRecipe[u.RecipeID], u.ID)
	}

	byID := make(map[string]models.AuthRecipeUser, len(page))
	for recipe, ids := range byRecipe {
		loader, ok := r.loaders[recipe]
		if !ok {
			return nil, fmt.Errorf("%w: %q", common.ErrUnknownRecipe, recipe)
		}
		users, err := loader.LoadByIDList(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			byID[u.ID] = u
		}
	}

	result := make([]models.AuthRecipeUser, 0, len(page))
	for _, u := range page {
		hydrated, ok := byID[u.ID]
		if !ok {
			continue
		}
		result = append(result, hydrated)
	}
	return result, nil
}
