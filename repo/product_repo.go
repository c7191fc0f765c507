package repo

import (
	"context"
	"fmt"

	"github.com/Skryldev/storefront/db"
	"github.com/Skryldev/storefront/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// ProductRepository interface
// ─────────────────────────────────────────────────────────────────────────────

// ProductRepository is the read model the web layer depends on, plus the
// write operations used to seed a catalogue. Implementations exist for plain
// SQL, GORM and memory.
type ProductRepository interface {
	// All returns every stored product. An empty catalogue yields an empty,
	// non-nil slice and a nil error. Storage failures are returned as-is,
	// never replaced by an empty result.
	All(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id int64) (*models.Product, error)
	Insert(ctx context.Context, params models.CreateProductParams) (*models.Product, error)
	BatchInsert(ctx context.Context, params []models.CreateProductParams) ([]*models.Product, error)
	Count(ctx context.Context) (int64, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// productRepo: SQL implementation
// ─────────────────────────────────────────────────────────────────────────────

type productRepo struct {
	q db.Querier
}

// NewProductRepo returns a ProductRepository backed by q.
// q can be a *db.DB or a *db.Tx.
func NewProductRepo(q db.Querier) ProductRepository {
	return &productRepo{q: q}
}

const (
	sqlAllProducts = `
		SELECT id, name, price
		FROM   products
		ORDER  BY id`

	sqlGetProductByID = `
		SELECT id, name, price
		FROM   products
		WHERE  id = $1`

	sqlInsertProduct = `
		INSERT INTO products (name, price)
		VALUES ($1, $2)`

	sqlCountProducts = `
		SELECT COUNT(*) FROM products`
)

// All returns the full, unpaginated catalogue in id order. Failures are the
// *db.DBError produced by the db package, without further wrapping.
func (r *productRepo) All(ctx context.Context) ([]models.Product, error) {
	rows, err := r.q.Query(ctx, sqlAllProducts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]models.Product, 0)
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price); err != nil {
			return nil, db.MapError(err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, db.MapError(err)
	}
	return products, nil
}

// GetByID returns a single product by primary key.
// Returns db.ErrNotFound when no record matches.
func (r *productRepo) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	p := &models.Product{}
	err := r.q.QueryRow(ctx, r.q.Rebind(sqlGetProductByID), id).Scan(&p.ID, &p.Name, &p.Price)
	if err != nil {
		return nil, fmt.Errorf("repo/product: %w", err)
	}
	return p, nil
}

// Insert stores a new product and returns it with the database-assigned id.
//
// MySQL has no RETURNING, so the id normally comes from LastInsertId.
// lib/pq does not implement LastInsertId; Postgres uses RETURNING id.
func (r *productRepo) Insert(ctx context.Context, params models.CreateProductParams) (*models.Product, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	stmt, err := r.q.Prepare(ctx, r.insertQuery())
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	return r.insertWith(ctx, stmt, params)
}

// BatchInsert inserts all products through one prepared statement. Run it on
// a *db.Tx to get all-or-nothing semantics.
func (r *productRepo) BatchInsert(ctx context.Context, params []models.CreateProductParams) ([]*models.Product, error) {
	if len(params) == 0 {
		return nil, nil
	}
	for i, p := range params {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("repo/product: item %d: %w", i, err)
		}
	}

	stmt, err := r.q.Prepare(ctx, r.insertQuery())
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	products := make([]*models.Product, 0, len(params))
	for _, p := range params {
		created, err := r.insertWith(ctx, stmt, p)
		if err != nil {
			return nil, err
		}
		products = append(products, created)
	}
	return products, nil
}

// Count returns the total number of products.
func (r *productRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.QueryRow(ctx, sqlCountProducts).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *productRepo) usesReturning() bool {
	return r.q.DriverName() == "postgres"
}

func (r *productRepo) insertQuery() string {
	if r.usesReturning() {
		return sqlInsertProduct + ` RETURNING id`
	}
	return r.q.Rebind(sqlInsertProduct)
}

func (r *productRepo) insertWith(ctx context.Context, stmt *db.Stmt, params models.CreateProductParams) (*models.Product, error) {
	p := &models.Product{Name: params.Name, Price: params.Price}
	if r.usesReturning() {
		if err := stmt.QueryRow(ctx, params.Name, params.Price).Scan(&p.ID); err != nil {
			return nil, fmt.Errorf("repo/product: insert: %w", err)
		}
		return p, nil
	}
	res, err := stmt.Exec(ctx, params.Name, params.Price)
	if err != nil {
		return nil, fmt.Errorf("repo/product: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("repo/product: insert id: %w", db.MapError(err))
	}
	p.ID = id
	return p, nil
}

var _ ProductRepository = (*productRepo)(nil)
