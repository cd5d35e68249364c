package catalog

import (
	"context"
	"errors"
	"regexp"
)

var (
	ErrNotFound     = errors.New("catalog: product not found")
	ErrExists       = errors.New("catalog: product id already exists")
	ErrInvalidID    = errors.New("catalog: product id must be a non-empty slug")
	ErrInvalidName  = errors.New("catalog: product name is required")
	ErrInvalidPrice = errors.New("catalog: price must be formatted as NN.NN")
	ErrInvalidFile  = errors.New("catalog: filename is required")
)

var (
	idPattern    = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	pricePattern = regexp.MustCompile(`^[0-9]+\.[0-9]{2}$`)
)

// Product is a purchasable item. Price is kept as its exact decimal string
// ("NN.NN") and is never parsed into a float; all comparisons are exact.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       string `json:"price"`
	Filename    string `json:"filename"`
	Text        string `json:"text,omitempty"`
	Image       string `json:"image,omitempty"`
	Description string `json:"description,omitempty"`
}

// Validate checks the fields a product must carry before it can be sold.
func (p Product) Validate() error {
	if p.ID == "" || !idPattern.MatchString(p.ID) {
		return ErrInvalidID
	}
	if p.Name == "" {
		return ErrInvalidName
	}
	if !pricePattern.MatchString(p.Price) {
		return ErrInvalidPrice
	}
	if p.Filename == "" {
		return ErrInvalidFile
	}
	return nil
}

// Repository is the catalog store boundary. Reads are used throughout the
// purchase and download flows; writes only by the admin surface and the CLI.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id string) (Product, error)
	Create(ctx context.Context, p Product) error
	Update(ctx context.Context, p Product) error
	Delete(ctx context.Context, id string) error
}
