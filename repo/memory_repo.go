package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Skryldev/storefront/db"
	"github.com/Skryldev/storefront/models"
)

// MemoryProductRepo is an in-memory ProductRepository for tests and local
// demos. It is safe for concurrent use.
type MemoryProductRepo struct {
	mu       sync.RWMutex
	products map[int64]models.Product
	nextID   int64
	err      error
}

// NewMemoryProductRepo returns a repository holding seed. Seed products keep
// their ids; later inserts continue after the highest one.
func NewMemoryProductRepo(seed ...models.Product) *MemoryProductRepo {
	r := &MemoryProductRepo{products: make(map[int64]models.Product, len(seed))}
	for _, p := range seed {
		r.products[p.ID] = p
		if p.ID > r.nextID {
			r.nextID = p.ID
		}
	}
	return r
}

// SetErr makes every subsequent call fail with err, simulating a storage
// outage. Pass nil to recover.
func (r *MemoryProductRepo) SetErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *MemoryProductRepo) All(_ context.Context) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.err != nil {
		return nil, r.err
	}
	products := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (r *MemoryProductRepo) GetByID(_ context.Context, id int64) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.err != nil {
		return nil, r.err
	}
	p, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("repo/product: %w", db.ErrNotFound)
	}
	return &p, nil
}

func (r *MemoryProductRepo) Insert(_ context.Context, params models.CreateProductParams) (*models.Product, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.insertLocked(params), nil
}

// BatchInsert is all-or-nothing: validation runs before anything is stored.
func (r *MemoryProductRepo) BatchInsert(_ context.Context, params []models.CreateProductParams) ([]*models.Product, error) {
	if len(params) == 0 {
		return nil, nil
	}
	for i, p := range params {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("repo/product: item %d: %w", i, err)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make([]*models.Product, 0, len(params))
	for _, p := range params {
		out = append(out, r.insertLocked(p))
	}
	return out, nil
}

func (r *MemoryProductRepo) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.err != nil {
		return 0, r.err
	}
	return int64(len(r.products)), nil
}

func (r *MemoryProductRepo) insertLocked(params models.CreateProductParams) *models.Product {
	r.nextID++
	p := models.Product{ID: r.nextID, Name: params.Name, Price: params.Price}
	r.products[p.ID] = p
	return &p
}

var _ ProductRepository = (*MemoryProductRepo)(nil)
