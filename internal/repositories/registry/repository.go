package registry

import (
	"context"

	"github.com/mkuznecovs/authkeeper/internal/models"
	"github.com/mkuznecovs/authkeeper/internal/pagination"
)

// UserLoader bulk-fetches hydrated users for one recipe. Each recipe store
// provides one; the registry fans out to them when assembling a page.
type UserLoader interface {
	LoadByIDList(ctx context.Context, userIDs []string) ([]models.AuthRecipeUser, error)
}

// Repository is the read side of the central user registry. Writes go through
// the recipe stores, which keep the registry row and their own row in step.
type Repository interface {
	Count(ctx context.Context, recipes ...models.RecipeID) (int64, error)
	Exists(ctx context.Context, userID string) (bool, error)
	ListUsers(ctx context.Context, limit int, order pagination.Order, recipes []models.RecipeID, cursor *pagination.Cursor) ([]models.AuthRecipeUser, error)
}
