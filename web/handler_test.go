package web_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/storefront/db"
	"github.com/Skryldev/storefront/models"
	"github.com/Skryldev/storefront/repo"
	"github.com/Skryldev/storefront/web"
)

func catalogue() *repo.MemoryProductRepo {
	return repo.NewMemoryProductRepo(
		models.Product{ID: 1, Name: "Pen", Price: decimal.RequireFromString("1.50")},
		models.Product{ID: 2, Name: "Notebook", Price: decimal.RequireFromString("3.25")},
	)
}

func serve(t *testing.T, h http.Handler, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

var outage = &db.DBError{Sentinel: db.ErrConnectionFailed, Cause: errors.New("connection refused")}

// ─────────────────────────────────────────────────────────────────────────────
// HTML listing
// ─────────────────────────────────────────────────────────────────────────────

func TestProducts_HTMLListsNames(t *testing.T) {
	rec := serve(t, web.NewHandler(catalogue()).Routes(), "/products")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, `<li data-id="1">Pen</li>`)
	assert.Contains(t, body, `<li data-id="2">Notebook</li>`)
	assert.Less(t, strings.Index(body, "Pen"), strings.Index(body, "Notebook"))
}

func TestProducts_HTMLEmptyCatalogue(t *testing.T) {
	rec := serve(t, web.NewHandler(repo.NewMemoryProductRepo()).Routes(), "/products")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No products yet.")
	assert.NotContains(t, rec.Body.String(), "<li")
}

func TestProducts_HTMLEscapesNames(t *testing.T) {
	r := repo.NewMemoryProductRepo(models.Product{ID: 1, Name: "<b>Bold</b> Pen", Price: decimal.NewFromInt(1)})
	rec := serve(t, web.NewHandler(r).Routes(), "/products")

	assert.Contains(t, rec.Body.String(), "&lt;b&gt;Bold&lt;/b&gt; Pen")
}

func TestProducts_HTMLCustomTitle(t *testing.T) {
	rec := serve(t, web.NewHandler(catalogue(), web.WithTitle("Stationery")).Routes(), "/products")
	assert.Contains(t, rec.Body.String(), "<h1>Stationery</h1>")
}

func TestProducts_HTMLStorageFailure(t *testing.T) {
	r := catalogue()
	r.SetErr(outage)
	rec := serve(t, web.NewHandler(r).Routes(), "/products")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unavailable right now")
	assert.NotContains(t, rec.Body.String(), "No products yet.")
}

func TestProducts_HTMLUnexpectedError(t *testing.T) {
	r := catalogue()
	r.SetErr(errors.New("bug"))
	rec := serve(t, web.NewHandler(r).Routes(), "/products")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// JSON listing
// ─────────────────────────────────────────────────────────────────────────────

func TestProducts_JSON(t *testing.T) {
	rec := serve(t, web.NewHandler(catalogue()).Routes(), "/api/products")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `[
		{"id": 1, "name": "Pen", "price": "1.50"},
		{"id": 2, "name": "Notebook", "price": "3.25"}
	]`, rec.Body.String())
}

func TestProducts_JSONPriceIsNotRounded(t *testing.T) {
	r := repo.NewMemoryProductRepo(
		models.Product{ID: 1, Name: "Screw", Price: decimal.RequireFromString("0.125")},
		models.Product{ID: 2, Name: "Pen", Price: decimal.RequireFromString("1.5")},
	)
	rec := serve(t, web.NewHandler(r).Routes(), "/api/products")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"id": 1, "name": "Screw", "price": "0.125"},
		{"id": 2, "name": "Pen", "price": "1.50"}
	]`, rec.Body.String())
}

func TestProducts_JSONEmptyIsArray(t *testing.T) {
	rec := serve(t, web.NewHandler(repo.NewMemoryProductRepo()).Routes(), "/api/products")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestProducts_JSONStorageFailure(t *testing.T) {
	r := catalogue()
	r.SetErr(outage)
	rec := serve(t, web.NewHandler(r).Routes(), "/api/products")

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "storage_unavailable", body["type"])
}

// ─────────────────────────────────────────────────────────────────────────────
// Misc routes and middleware
// ─────────────────────────────────────────────────────────────────────────────

func TestRoot_RedirectsToProducts(t *testing.T) {
	rec := serve(t, web.NewHandler(catalogue()).Routes(), "/")

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/products", rec.Header().Get("Location"))
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthz(t *testing.T) {
	healthy := web.NewHandler(catalogue(), web.WithPinger(pingerFunc(func(context.Context) error { return nil })))
	rec := serve(t, healthy.Routes(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())

	down := web.NewHandler(catalogue(), web.WithPinger(pingerFunc(func(context.Context) error { return outage })))
	rec = serve(t, down.Routes(), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable\n", rec.Body.String())
}

func TestRequestID_EchoedOrGenerated(t *testing.T) {
	h := web.NewHandler(catalogue()).Routes()

	rec := serve(t, h, "/healthz", web.RequestIDHeader, "req-42")
	assert.Equal(t, "req-42", rec.Header().Get(web.RequestIDHeader))

	rec = serve(t, h, "/healthz")
	assert.Len(t, rec.Header().Get(web.RequestIDHeader), 36)
}

func TestUnknownRoute(t *testing.T) {
	rec := serve(t, web.NewHandler(catalogue()).Routes(), "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type panickyRepo struct{ repo.ProductRepository }

func (panickyRepo) All(context.Context) ([]models.Product, error) { panic("boom") }

func TestRecoverPanic(t *testing.T) {
	rec := serve(t, web.NewHandler(panickyRepo{}).Routes(), "/products")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
