package catalog

import (
	"context"
	"errors"
	"fmt"

	"food-explorer/pkg/models"
)

var (
	// ErrSourceFailure wraps every network or decode failure of the product source.
	ErrSourceFailure = errors.New("catalog source failure")
	// ErrSuperseded is returned to a caller whose result lost to a newer request.
	ErrSuperseded    = errors.New("superseded by a newer request")
	ErrInvalidIntent = errors.New("invalid catalog intent")
)

// Source is the remote product database.
// LookupBarcode returns models.ErrProductNotFound for unknown codes.
type Source interface {
	FetchPage(ctx context.Context, page, pageSize int) ([]models.Product, error)
	Categories(ctx context.Context) ([]models.Category, error)
	SearchByName(ctx context.Context, query string, pageSize int) ([]models.Product, error)
	LookupBarcode(ctx context.Context, code string) (*models.Product, error)
}

func sourceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSourceFailure, op, err)
}
