package admin

import (
	"context"
	"errors"

	"github.com/altmarket/digitalstore/internal/domain/catalog"
	"golang.org/x/crypto/bcrypt"
)

var ErrBadCredentials = errors.New("admin: invalid username or password")

// Service backs the shop-mode admin surface: credential checks and catalog
// edits. It never touches the ledger; transactions are append-only and stay
// outside the admin's reach.
type Service struct {
	catalog      catalog.Repository
	username     string
	passwordHash string
}

func NewService(cat catalog.Repository, username, passwordHash string) *Service {
	return &Service{catalog: cat, username: username, passwordHash: passwordHash}
}

// Login checks the supplied credentials against the configured admin
// username and bcrypt password hash.
func (s *Service) Login(username, password string) error {
	if s.username == "" || s.passwordHash == "" {
		return ErrBadCredentials
	}
	if username != s.username {
		return ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err != nil {
		return ErrBadCredentials
	}
	return nil
}

func (s *Service) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	return s.catalog.List(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, p catalog.Product) error {
	return s.catalog.Create(ctx, p)
}

func (s *Service) UpdateProduct(ctx context.Context, p catalog.Product) error {
	return s.catalog.Update(ctx, p)
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	return s.catalog.Delete(ctx, id)
}
