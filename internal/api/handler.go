// Package api exposes the storefront over HTTP.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/safar/go-storefront/internal/apperr"
	"github.com/safar/go-storefront/internal/auth"
	"github.com/safar/go-storefront/internal/catalog"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/pricing"
	"go.uber.org/zap"
)

type Catalog interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, sessionID string, fields catalog.ProductFields) (int64, error)
	UpdateProduct(ctx context.Context, sessionID string, id int64, fields catalog.ProductFields) error
	DeleteProduct(ctx context.Context, sessionID string, id int64) error
	Quote(ctx context.Context, cart pricing.Cart) (pricing.Summary, error)
	Confirm(ctx context.Context, cart pricing.Cart) (pricing.Summary, error)
}

type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*models.Session, error)
	Logout(ctx context.Context, sessionID string) error
	CheckAuth(ctx context.Context, sessionID string) auth.AuthStatus
	RequireAdmin(ctx context.Context, sessionID string) (*models.Session, error)
	SessionTTL() time.Duration
}

type Options struct {
	CookieName     string
	CookieSecure   bool
	AllowedOrigins []string
	LoginPerMinute int
	LoginBurst     int
}

type Handler struct {
	catalog Catalog
	auth    Authenticator
	opts    Options
	limiter *IPRateLimiter
	log     *zap.Logger
}

func NewHandler(c Catalog, a Authenticator, opts Options, log *zap.Logger) *Handler {
	if opts.CookieName == "" {
		opts.CookieName = "session_id"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		catalog: c,
		auth:    a,
		opts:    opts,
		limiter: NewIPRateLimiter(opts.LoginPerMinute, opts.LoginBurst),
		log:     log,
	}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api", h.Health).Methods(http.MethodGet)

	// Products
	r.HandleFunc("/api/products", h.ListProducts).Methods(http.MethodGet)
	r.HandleFunc("/api/products/{id}", h.GetProduct).Methods(http.MethodGet)
	r.HandleFunc("/api/products", h.CreateProduct).Methods(http.MethodPost)
	r.HandleFunc("/api/products/{id}", h.UpdateProduct).Methods(http.MethodPut)
	r.HandleFunc("/api/products/{id}", h.DeleteProduct).Methods(http.MethodDelete)

	// Auth
	r.Handle("/api/login", h.limitByIP(http.HandlerFunc(h.Login))).Methods(http.MethodPost)
	r.HandleFunc("/api/logout", h.Logout).Methods(http.MethodPost)
	r.HandleFunc("/api/check-auth", h.CheckAuth).Methods(http.MethodGet)

	// Checkout
	r.HandleFunc("/api/checkout/quote", h.Quote).Methods(http.MethodPost)
	r.HandleFunc("/api/checkout/confirm", h.Confirm).Methods(http.MethodPost)
}

// Router returns the full handler chain: routes wrapped in the request id,
// access log, panic recovery, CORS and no-store middleware.
func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	var handler http.Handler = r
	handler = h.recoverPanic(handler)
	handler = noStore(handler)
	handler = h.cors(handler)
	handler = h.accessLog(handler)
	handler = requestID(handler)
	return handler
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Storefront API is running"))
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.RequireAdmin(r.Context(), h.sessionID(r)); err != nil {
		h.respondErr(w, r, err)
		return
	}

	var fields catalog.ProductFields
	if err := decodeJSON(w, r, &fields); err != nil {
		h.respondErr(w, r, err)
		return
	}

	id, err := h.catalog.CreateProduct(r.Context(), h.sessionID(r), fields)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"message": "Product created", "id": id})
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.RequireAdmin(r.Context(), h.sessionID(r)); err != nil {
		h.respondErr(w, r, err)
		return
	}

	id, err := productID(r)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	var fields catalog.ProductFields
	if err := decodeJSON(w, r, &fields); err != nil {
		h.respondErr(w, r, err)
		return
	}

	if err := h.catalog.UpdateProduct(r.Context(), h.sessionID(r), id, fields); err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Product updated"})
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	if err := h.catalog.DeleteProduct(r.Context(), h.sessionID(r), id); err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Product deleted"})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondErr(w, r, err)
		return
	}
	if err := catalog.Validate(req); err != nil {
		h.respondErr(w, r, apperr.Validation("Email and password are required"))
		return
	}

	sess, err := h.auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(sess.ID, int(h.auth.SessionTTL().Seconds())))
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"user":    auth.UserInfo{Email: sess.Email, Role: sess.Role},
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), h.sessionID(r)); err != nil {
		h.respondErr(w, r, err)
		return
	}

	http.SetCookie(w, h.sessionCookie("", -1))
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (h *Handler) CheckAuth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.auth.CheckAuth(r.Context(), h.sessionID(r)))
}

type quoteResponse struct {
	pricing.Summary
	Display pricing.Summary `json:"display"`
}

func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	cart, err := decodeCart(w, r)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	summary, err := h.catalog.Quote(r.Context(), cart)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, quoteResponse{Summary: summary, Display: summary.Rounded()})
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	cart, err := decodeCart(w, r)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	summary, err := h.catalog.Confirm(r.Context(), cart)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Order confirmed",
		"total":   summary.Total,
	})
}

func decodeCart(w http.ResponseWriter, r *http.Request) (pricing.Cart, error) {
	var req catalog.QuoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return nil, err
	}
	if err := catalog.Validate(req); err != nil {
		return nil, err
	}
	return pricing.Cart(req.Items), nil
}

func productID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("Invalid product ID")
	}
	return id, nil
}

func (h *Handler) sessionID(r *http.Request) string {
	c, err := r.Cookie(h.opts.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (h *Handler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.opts.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
