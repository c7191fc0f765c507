package repo_test

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/storefront/db"
	"github.com/Skryldev/storefront/repo"
)

type statement struct {
	query string
	err   error
}

// recordingHook keeps every statement it sees.
type recordingHook struct {
	mu    sync.Mutex
	stmts []statement
}

func (h *recordingHook) BeforeQuery(context.Context, string, []any) {}

func (h *recordingHook) AfterQuery(_ context.Context, query string, _ []any, _ time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stmts = append(h.stmts, statement{query: query, err: err})
}

func (h *recordingHook) seen() []statement {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]statement(nil), h.stmts...)
}

func TestOpenGorm_ReportsStatementsToDBHooks(t *testing.T) {
	hook := &recordingHook{}
	cfg := db.Config{
		DSN:        filepath.Join(t.TempDir(), "storefront.db"),
		DriverName: "sqlite3",
		Hooks:      []db.Hook{hook},
	}
	require.NoError(t, db.MigrateUp(cfg, nil))
	d, err := db.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	g, err := repo.OpenGorm(d, nil, 0)
	require.NoError(t, err)
	r := repo.NewGormProductRepo(g)
	ctx := context.Background()

	_, err = r.Insert(ctx, params("Pen", "1.50"))
	require.NoError(t, err)
	_, err = r.All(ctx)
	require.NoError(t, err)
	_, err = r.GetByID(ctx, 404)
	require.Error(t, err)

	var inserts, selects []statement
	for _, s := range hook.seen() {
		switch {
		case strings.HasPrefix(s.query, "INSERT INTO `products`"):
			inserts = append(inserts, s)
		case strings.HasPrefix(s.query, "SELECT * FROM `products`"):
			selects = append(selects, s)
		}
	}
	require.Len(t, inserts, 1)
	assert.NoError(t, inserts[0].err)
	require.Len(t, selects, 2)
	assert.NoError(t, selects[0].err)
	assert.True(t, db.IsNotFound(selects[1].err), "missing row reaches hooks as ErrNotFound, got %v", selects[1].err)
}
