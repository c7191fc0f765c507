package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/storefront/db"
	"github.com/Skryldev/storefront/repo"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dsn := filepath.Join(dir, "storefront.db")
	t.Setenv("ENV_FILE", filepath.Join(dir, "absent.env"))
	t.Setenv("DATABASE_DRIVER", "sqlite3")
	t.Setenv("DATABASE_URL", dsn)
	return dsn
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.Execute()
	return out.String(), err
}

func countProducts(t *testing.T, dsn string) int64 {
	t.Helper()
	d, err := db.Open(db.Config{DSN: dsn, DriverName: "sqlite3"})
	require.NoError(t, err)
	defer d.Close()
	n, err := repo.NewProductRepo(d).Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestMigrateCommands(t *testing.T) {
	dsn := setupEnv(t)

	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "version: 0")

	_, err = execute(t, "", "up")
	require.NoError(t, err)

	out, err = execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "version: 1  dirty: false")

	_, err = execute(t, "", "seed")
	require.NoError(t, err)
	assert.EqualValues(t, len(repo.DefaultCatalogue()), countProducts(t, dsn))

	_, err = execute(t, "", "seed")
	require.NoError(t, err)
	assert.EqualValues(t, len(repo.DefaultCatalogue()), countProducts(t, dsn), "second seed is skipped")

	_, err = execute(t, "", "down")
	require.NoError(t, err)
	out, err = execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "version: 0")
}

func TestSeedFromFile(t *testing.T) {
	dsn := setupEnv(t)
	_, err := execute(t, "", "up")
	require.NoError(t, err)

	file := filepath.Join(t.TempDir(), "catalogue.json")
	require.NoError(t, os.WriteFile(file, []byte(`[{"name": "Eraser", "price": "0.75"}]`), 0o600))

	_, err = execute(t, "", "seed", file)
	require.NoError(t, err)
	assert.EqualValues(t, 1, countProducts(t, dsn))
}

func TestDrop_RequiresConfirmation(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, "", "up")
	require.NoError(t, err)

	out, err := execute(t, "no\n", "drop")
	require.NoError(t, err)
	assert.Contains(t, out, "aborted")

	_, err = execute(t, "", "drop", "--yes")
	require.NoError(t, err)
}

func TestDown_InvalidSteps(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, "", "down", "zero")
	assert.Error(t, err)
}

func TestSeedFromYAMLFile(t *testing.T) {
	dsn := setupEnv(t)
	_, err := execute(t, "", "up")
	require.NoError(t, err)

	file := filepath.Join(t.TempDir(), "catalogue.yaml")
	require.NoError(t, os.WriteFile(file, []byte("- name: Eraser\n  price: 0.75\n- name: Ruler\n  price: 2.10\n"), 0o600))

	_, err = execute(t, "", "seed", file)
	require.NoError(t, err)
	assert.EqualValues(t, 2, countProducts(t, dsn))
}
