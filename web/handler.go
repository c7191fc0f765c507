// Package web is the presentation layer: HTTP handlers that read the
// catalogue through a repo.ProductRepository and render it.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Skryldev/storefront/db"
	"github.com/Skryldev/storefront/models"
	"github.com/Skryldev/storefront/repo"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Pinger reports whether the backing store is reachable. *db.DB satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the product pages. Build it with NewHandler and mount
// Routes().
type Handler struct {
	products repo.ProductRepository
	pinger   Pinger
	logger   *slog.Logger
	title    string
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request and error logger (slog.Default() otherwise).
func WithLogger(l *slog.Logger) Option { return func(h *Handler) { h.logger = l } }

// WithPinger enables the storage check behind /healthz.
func WithPinger(p Pinger) Option { return func(h *Handler) { h.pinger = p } }

// WithTitle sets the heading of the listing page.
func WithTitle(title string) Option { return func(h *Handler) { h.title = title } }

// NewHandler returns a Handler reading from products.
func NewHandler(products repo.ProductRepository, opts ...Option) *Handler {
	h := &Handler{
		products: products,
		logger:   slog.Default(),
		title:    "Products",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the instrumented router.
func (h *Handler) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(requestID, h.accessLog, h.recoverPanic)

	r.Handle("/", http.RedirectHandler("/products", http.StatusFound)).Methods(http.MethodGet)
	r.HandleFunc("/products", h.listProductsHTML).Methods(http.MethodGet)
	r.HandleFunc("/api/products", h.listProductsJSON).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)

	return otelhttp.NewHandler(r, "storefront",
		// All routes are static paths, so the path is a safe span name.
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return req.Method + " " + req.URL.Path
		}),
	)
}

type productsPage struct {
	Title    string
	Products []models.Product
}

type errorPage struct {
	Title   string
	Message string
}

func (h *Handler) listProductsHTML(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.All(r.Context())
	if err != nil {
		status := h.storageStatus(r, err)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_ = templates.ExecuteTemplate(w, "error.html", errorPage{
			Title:   h.title,
			Message: "The product list is unavailable right now. Please try again later.",
		})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, "products.html", productsPage{Title: h.title, Products: products}); err != nil {
		h.logger.ErrorContext(r.Context(), "web: render products", slog.Any("error", err))
	}
}

type productResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

type errorResponse struct {
	Type string `json:"type"`
	Msg  string `json:"message"`
}

func (h *Handler) listProductsJSON(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.All(r.Context())
	if err != nil {
		status := h.storageStatus(r, err)
		h.writeJSON(w, r, status, errorResponse{Type: "storage_unavailable", Msg: "product list is unavailable"})
		return
	}

	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, productResponse{ID: p.ID, Name: p.Name, Price: formatPrice(p.Price)})
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// formatPrice pads to the stored scale ("1.5" becomes "1.50") but never
// drops digits a record actually carries.
func formatPrice(p decimal.Decimal) string {
	return p.StringFixed(max(models.PriceScale, -p.Exponent()))
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			h.logger.WarnContext(r.Context(), "web: health check failed", slog.Any("error", err))
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintln(w, "unavailable")
			return
		}
	}
	fmt.Fprintln(w, "ok")
}

// storageStatus logs a failed read and picks the response status: 503 for
// storage failures, 500 for anything else.
func (h *Handler) storageStatus(r *http.Request, err error) int {
	h.logger.ErrorContext(r.Context(), "web: list products",
		slog.String("request_id", RequestIDFrom(r.Context())),
		slog.Any("error", err),
	)
	if db.IsStorageFailure(err) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.ErrorContext(r.Context(), "web: encode response", slog.Any("error", err))
	}
}
