package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/noah-isme/kitstore/internal/cart"
	"github.com/noah-isme/kitstore/internal/common"
)

// Kit is a football kit as listed by the store.
type Kit = cart.Product

// ErrEmptyQuery is returned for blank search terms.
var ErrEmptyQuery = errors.New("search query is empty")

const maxQueryLen = 100

// Repository reads kits from the database.
type Repository interface {
	ListKits(ctx context.Context) ([]Kit, error)
	SearchKits(ctx context.Context, term string) ([]Kit, error)
	CountKits(ctx context.Context) (int64, error)
}

// Service serves catalog reads straight from the repository.
type Service struct {
	Repo   Repository
	Logger *zerolog.Logger
}

// ListKits returns every kit ordered by team then name.
func (s *Service) ListKits(ctx context.Context) ([]Kit, error) {
	return s.load("list", func() ([]Kit, error) {
		return s.Repo.ListKits(ctx)
	})
}

// SearchKits matches the query against name, team and description.
func (s *Service) SearchKits(ctx context.Context, query string) ([]Kit, error) {
	term := strings.TrimSpace(query)
	if term == "" {
		return nil, common.NewAppError("BAD_REQUEST", "Search query is required", http.StatusBadRequest, ErrEmptyQuery)
	}
	if utf8.RuneCountInString(term) > maxQueryLen {
		return nil, common.NewAppError("BAD_REQUEST", fmt.Sprintf("Search query must be at most %d characters", maxQueryLen), http.StatusBadRequest, nil)
	}
	return s.load("search", func() ([]Kit, error) {
		return s.Repo.SearchKits(ctx, term)
	})
}

// CountKits reports the number of kits stored.
func (s *Service) CountKits(ctx context.Context) (int64, error) {
	return s.Repo.CountKits(ctx)
}

func (s *Service) load(op string, fetch func() ([]Kit, error)) ([]Kit, error) {
	kits, err := fetch()
	if err != nil {
		if s.Logger != nil {
			s.Logger.Error().Err(err).Str("op", op).Msg("catalog_fetch_failed")
		}
		return nil, common.NewAppError("DB_ERROR", "Failed to fetch kits from database", http.StatusInternalServerError, err)
	}
	if kits == nil {
		kits = []Kit{}
	}
	return kits, nil
}
