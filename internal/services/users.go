// Package services holds the use-case layer over the repositories: user
// listing, signing-key lifecycle, and background sweeping. Services own
// transactions; repositories never start their own except recipe sign-up and
// deletion.
package services

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mkuznecovs/authkeeper/internal/common"
	"github.com/mkuznecovs/authkeeper/internal/models"
	"github.com/mkuznecovs/authkeeper/internal/pagination"
	"github.com/mkuznecovs/authkeeper/internal/repositories/repomanager"
)

// ErrBadPaginationToken means a caller-supplied pagination token could not
// be decoded.
var ErrBadPaginationToken = errors.New("invalid pagination token")

// UsersPage is one page of the user listing plus the token for the next one.
// NextToken is empty when the page was not full.
type UsersPage struct {
	Users     []models.AuthRecipeUser
	NextToken string
}

// UserService exposes the cross-recipe user registry to callers: counting,
// existence checks, and token-paginated listing.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

// NewUserService constructs a UserService.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager) *UserService {
	return &UserService{db: db, repomanager: m}
}

// CountUsers returns the total number of users, optionally narrowed to a
// recipe set given as stored tags.
func (s *UserService) CountUsers(ctx context.Context, recipeTags ...string) (int64, error) {
	recipes, err := parseRecipeTags(recipeTags)
	if err != nil {
		return 0, err
	}
	return s.repomanager.Registry(s.db).Count(ctx, recipes...)
}

// UserExists reports whether any recipe knows the user id.
func (s *UserService) UserExists(ctx context.Context, userID string) (bool, error) {
	return s.repomanager.Registry(s.db).Exists(ctx, userID)
}

// ListUsers returns one page of users. The order is "ASC" or "DESC" on join
// time; token is the NextToken of the previous page, or empty for the first.
func (s *UserService) ListUsers(ctx context.Context, limit int, order string, recipeTags []string, token string) (*UsersPage, error) {
	o, err := pagination.ParseOrder(order)
	if err != nil {
		return nil, err
	}
	recipes, err := parseRecipeTags(recipeTags)
	if err != nil {
		return nil, err
	}
	cursor, err := parsePaginationToken(token)
	if err != nil {
		return nil, err
	}

	users, err := s.repomanager.Registry(s.db).ListUsers(ctx, limit, o, recipes, cursor)
	if err != nil {
		return nil, err
	}

	page := &UsersPage{Users: users}
	if len(users) == limit && limit > 0 {
		last := users[len(users)-1]
		page.NextToken = formatPaginationToken(pagination.Cursor{
			TimeJoined: last.TimeJoined,
			UserID:     last.ID,
		})
	}
	return page, nil
}

func parseRecipeTags(tags []string) ([]models.RecipeID, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	recipes := make([]models.RecipeID, 0, len(tags))
	for _, tag := range tags {
		r, ok := models.ParseRecipeID(tag)
		if !ok {
			return nil, fmt.Errorf("%w: %q", common.ErrUnknownRecipe, tag)
		}
		recipes = append(recipes, r)
	}
	return recipes, nil
}

// formatPaginationToken encodes a cursor as base64("userID;timeJoined"), an
// opaque value callers hand back unchanged.
func formatPaginationToken(c pagination.Cursor) string {
	raw := c.UserID + ";" + strconv.FormatInt(c.TimeJoined, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func parsePaginationToken(token string) (*pagination.Cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadPaginationToken, err)
	}
	userID, tj, found := strings.Cut(string(raw), ";")
	if !found || userID == "" {
		return nil, ErrBadPaginationToken
	}
	timeJoined, err := strconv.ParseInt(tj, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadPaginationToken, err)
	}
	return &pagination.Cursor{TimeJoined: timeJoined, UserID: userID}, nil
}
