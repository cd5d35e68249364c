package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/altmarket/digitalstore/internal/domain/catalog"
)

// CatalogStore keeps the product catalog in a single JSON file. A missing
// file is a valid empty catalog; any other read failure is fatal to the
// caller. All mutations are serialized by an in-process mutex and rewrite
// the file atomically.
type CatalogStore struct {
	mu   sync.Mutex
	path string
}

func NewCatalogStore(path string) *CatalogStore {
	return &CatalogStore{path: path}
}

func (s *CatalogStore) List(ctx context.Context) ([]catalog.Product, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *CatalogStore) Get(ctx context.Context, id string) (catalog.Product, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.read()
	if err != nil {
		return catalog.Product{}, err
	}
	for _, p := range products {
		if p.ID == id {
			return p, nil
		}
	}
	return catalog.Product{}, catalog.ErrNotFound
}

func (s *CatalogStore) Create(ctx context.Context, p catalog.Product) error {
	_ = ctx
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.read()
	if err != nil {
		return err
	}
	for _, existing := range products {
		if existing.ID == p.ID {
			return catalog.ErrExists
		}
	}
	return s.write(append(products, p))
}

func (s *CatalogStore) Update(ctx context.Context, p catalog.Product) error {
	_ = ctx
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.read()
	if err != nil {
		return err
	}
	for i, existing := range products {
		if existing.ID == p.ID {
			products[i] = p
			return s.write(products)
		}
	}
	return catalog.ErrNotFound
}

func (s *CatalogStore) Delete(ctx context.Context, id string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.read()
	if err != nil {
		return err
	}
	for i, existing := range products {
		if existing.ID == id {
			return s.write(append(products[:i], products[i+1:]...))
		}
	}
	return catalog.ErrNotFound
}

func (s *CatalogStore) read() ([]catalog.Product, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog store: read %s: %w", s.path, err)
	}
	var products []catalog.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("catalog store: parse %s: %w", s.path, err)
	}
	return products, nil
}

func (s *CatalogStore) write(products []catalog.Product) error {
	if products == nil {
		products = []catalog.Product{}
	}
	data, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return fmt.Errorf("catalog store: encode: %w", err)
	}
	return writeFileAtomic(s.path, data)
}

// writeFileAtomic writes to a sibling temp file and renames it into place so
// a crash mid-write can never leave a truncated store behind.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
