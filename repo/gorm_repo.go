package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Skryldev/storefront/db"
	"github.com/Skryldev/storefront/models"
)

// OpenGorm builds a GORM session on top of d's connection pool, picking the
// dialector that matches d's driver. Every statement is reported to d's
// hooks. Schema management stays with the migrations; GORM never
// auto-migrates here.
func OpenGorm(d *db.DB, logger *slog.Logger, slowThreshold time.Duration) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch d.DriverName() {
	case "postgres":
		dialector = postgres.New(postgres.Config{Conn: d.Raw()})
	case "mysql":
		dialector = mysql.New(mysql.Config{Conn: d.Raw()})
	case "sqlite3":
		dialector = &sqlite.Dialector{Conn: d.Raw()}
	default:
		return nil, fmt.Errorf("repo/gorm: unsupported driver %q", d.DriverName())
	}

	g, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 NewGormLogger(logger, slowThreshold),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("repo/gorm: open: %w", db.MapError(err))
	}
	if err := g.Use(&dbHooks{d: d}); err != nil {
		return nil, fmt.Errorf("repo/gorm: register hooks: %w", err)
	}
	return g, nil
}

// gormProductRepo is the ORM-backed ProductRepository. Its errors go through
// the same mapping as the SQL implementation, so callers cannot tell the
// backends apart.
type gormProductRepo struct {
	g *gorm.DB
}

// NewGormProductRepo returns a ProductRepository backed by g.
func NewGormProductRepo(g *gorm.DB) ProductRepository {
	return &gormProductRepo{g: g}
}

func (r *gormProductRepo) All(ctx context.Context) ([]models.Product, error) {
	products := make([]models.Product, 0)
	if err := r.g.WithContext(ctx).Order("id").Find(&products).Error; err != nil {
		return nil, gormErr(err)
	}
	return products, nil
}

func (r *gormProductRepo) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	var p models.Product
	if err := r.g.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, fmt.Errorf("repo/product: %w", gormErr(err))
	}
	return &p, nil
}

func (r *gormProductRepo) Insert(ctx context.Context, params models.CreateProductParams) (*models.Product, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	p := &models.Product{Name: params.Name, Price: params.Price}
	if err := r.g.WithContext(ctx).Create(p).Error; err != nil {
		return nil, fmt.Errorf("repo/product: insert: %w", gormErr(err))
	}
	return p, nil
}

func (r *gormProductRepo) BatchInsert(ctx context.Context, params []models.CreateProductParams) ([]*models.Product, error) {
	if len(params) == 0 {
		return nil, nil
	}
	products := make([]*models.Product, 0, len(params))
	for i, p := range params {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("repo/product: item %d: %w", i, err)
		}
		products = append(products, &models.Product{Name: p.Name, Price: p.Price})
	}
	err := r.g.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&products).Error
	})
	if err != nil {
		return nil, fmt.Errorf("repo/product: batch insert: %w", gormErr(err))
	}
	return products, nil
}

func (r *gormProductRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.g.WithContext(ctx).Model(&models.Product{}).Count(&n).Error; err != nil {
		return 0, gormErr(err)
	}
	return n, nil
}

func gormErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &db.DBError{Sentinel: db.ErrNotFound, Cause: err}
	}
	return db.MapError(err)
}

var _ ProductRepository = (*gormProductRepo)(nil)
