package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/Skryldev/storefront/db"
	"github.com/Skryldev/storefront/models"
)

// DefaultCatalogue is the sample data loaded by `migrate seed` when no file
// is given.
func DefaultCatalogue() []models.CreateProductParams {
	return []models.CreateProductParams{
		{Name: "Pen", Price: decimal.RequireFromString("1.50")},
		{Name: "Notebook", Price: decimal.RequireFromString("3.25")},
		{Name: "Stapler", Price: decimal.RequireFromString("7.99")},
		{Name: "Desk Lamp", Price: decimal.RequireFromString("24.00")},
	}
}

// DecodeCatalogue reads a JSON array of {"name", "price"} objects. Prices may
// be JSON numbers or strings; both are parsed exactly.
func DecodeCatalogue(r io.Reader) ([]models.CreateProductParams, error) {
	var items []models.CreateProductParams
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("repo/seed: decode: %w", err)
	}
	return items, nil
}

// DecodeCatalogueYAML reads the same catalogue as a YAML sequence:
//
//	- name: Pen
//	  price: 1.50
//
// Prices are parsed from their literal text, so 1.50 keeps both digits.
func DecodeCatalogueYAML(r io.Reader) ([]models.CreateProductParams, error) {
	var items []models.CreateProductParams
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&items); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("repo/seed: decode yaml: %w", err)
	}
	return items, nil
}

// Seed inserts items in one serializable transaction, retrying the whole
// transaction on deadlocks, serialization failures and timeouts. Either every
// item is stored or none is.
func Seed(ctx context.Context, d *db.DB, items []models.CreateProductParams) ([]*models.Product, error) {
	var created []*models.Product
	err := db.WithRetry(ctx, db.RetryConfig{
		MaxAttempts: 3,
		Delay:       200 * time.Millisecond,
	}, func() error {
		return d.ExecTx(ctx, func(tx *db.Tx) error {
			var err error
			created, err = NewProductRepo(tx).BatchInsert(ctx, items)
			return err
		}, db.TxOptions{Isolation: sql.LevelSerializable})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
