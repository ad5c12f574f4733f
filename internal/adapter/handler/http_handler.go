package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/akeller/storefront/internal/core/domain"
	"github.com/akeller/storefront/internal/port"
)

// Service surfaces the handler needs; the concrete implementations live in
// internal/core/service.
type CheckoutService interface {
	PlaceOrder(ctx context.Context, userID int64) (*domain.Order, error)
}

type CartService interface {
	Get(ctx context.Context, userID int64) ([]domain.CartEntry, error)
	Add(ctx context.Context, userID, productID int64, quantity int) error
	Update(ctx context.Context, userID, productID int64, quantity int) error
	Remove(ctx context.Context, userID, productID int64) error
}

type CatalogService interface {
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id int64) (*domain.Product, error)
	Create(ctx context.Context, p *domain.Product) error
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id int64) error
}

type AccountService interface {
	Get(ctx context.Context, id int64) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error
	Deposit(ctx context.Context, userID int64, amount decimal.Decimal) (*domain.Account, error)
}

type HTTPHandler struct {
	checkout CheckoutService
	cart     CartService
	catalog  CatalogService
	accounts AccountService
	cache    port.CacheStore
}

func NewHTTPHandler(checkout CheckoutService, cart CartService, catalog CatalogService, accounts AccountService, cache port.CacheStore) *HTTPHandler {
	return &HTTPHandler{
		checkout: checkout,
		cart:     cart,
		catalog:  catalog,
		accounts: accounts,
		cache:    cache,
	}
}

func (h *HTTPHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/health", h.HealthCheck)
	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Post("/products", h.CreateProduct)
		r.Get("/products/{id}", h.GetProduct)
		r.Put("/products/{id}", h.UpdateProduct)
		r.Delete("/products/{id}", h.DeleteProduct)

		r.Post("/accounts", h.CreateAccount)
		r.Get("/account", h.GetAccount)
		r.Post("/account/deposit", h.Deposit)

		r.Get("/cart", h.GetCart)
		r.Post("/cart", h.AddToCart)
		r.Put("/cart", h.UpdateCart)
		r.Delete("/cart/{productID}", h.RemoveFromCart)

		r.Post("/checkout", h.Checkout)
		r.Get("/placements/recent", h.RecentPlacements)
	})
	return r
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type cartItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type productRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

type depositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type accountRequest struct {
	Username string          `json:"username"`
	Email    string          `json:"email"`
	Balance  decimal.Decimal `json:"balance"`
}

type errorResponse struct {
	Error     string                  `json:"error"`
	Products  []domain.StockShortfall `json:"products,omitempty"`
	Shortfall *decimal.Decimal        `json:"shortfall,omitempty"`
}

// Checkout places an order from the caller's cart. An optional
// Idempotency-Key header deduplicates retried requests.
func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing or invalid X-User-ID"})
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		// No dedup requested; burn a unique key so the guard passes.
		key = uuid.NewString()
	}
	fresh, err := h.cache.SetIdempotency(r.Context(), key)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !fresh {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "duplicate request"})
		return
	}

	order, err := h.checkout.PlaceOrder(r.Context(), userID)
	if err != nil {
		// A business failure placed nothing, so the key is handed back and
		// the caller may retry with it. Internal failures keep it burned:
		// whether the commit landed is unknown.
		if isBusinessFailure(err) {
			if relErr := h.cache.ReleaseIdempotency(r.Context(), key); relErr != nil {
				log.Error().Err(relErr).Str("key", key).Msg("failed to release idempotency key")
			}
		}
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func isBusinessFailure(err error) bool {
	var stockErr *domain.InsufficientStockError
	var balanceErr *domain.InsufficientBalanceError
	return errors.Is(err, domain.ErrEmptyCart) ||
		errors.Is(err, domain.ErrAccountNotFound) ||
		errors.As(err, &stockErr) ||
		errors.As(err, &balanceErr)
}

func (h *HTTPHandler) RecentPlacements(w http.ResponseWriter, r *http.Request) {
	events, err := h.cache.RecentPlacements(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing or invalid X-User-ID"})
		return
	}
	entries, err := h.cart.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.CartEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *HTTPHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	h.mutateCart(w, r, h.cart.Add)
}

func (h *HTTPHandler) UpdateCart(w http.ResponseWriter, r *http.Request) {
	h.mutateCart(w, r, h.cart.Update)
}

func (h *HTTPHandler) mutateCart(w http.ResponseWriter, r *http.Request, op func(context.Context, int64, int64, int) error) {
	userID, ok := callerID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing or invalid X-User-ID"})
		return
	}
	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := op(r.Context(), userID, req.ProductID, req.Quantity); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing or invalid X-User-ID"})
		return
	}
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid product id"})
		return
	}
	if err := h.cart.Remove(r.Context(), userID, productID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid product id"})
		return
	}
	p, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	p := &domain.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
	}
	if err := h.catalog.Create(r.Context(), p); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid product id"})
		return
	}
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	p := &domain.Product{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
	}
	if err := h.catalog.Update(r.Context(), p); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid product id"})
		return
	}
	if err := h.catalog.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing or invalid X-User-ID"})
		return
	}
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	a, err := h.accounts.Deposit(r.Context(), userID, req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *HTTPHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing or invalid X-User-ID"})
		return
	}
	a, err := h.accounts.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *HTTPHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	a := &domain.Account{
		Username: req.Username,
		Email:    req.Email,
		Balance:  req.Balance,
	}
	if err := h.accounts.Create(r.Context(), a); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// callerID reads the identity set by upstream authentication.
func callerID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// writeError maps business failures to client errors with structured detail;
// everything else is an opaque 500.
func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	var stockErr *domain.InsufficientStockError
	var balanceErr *domain.InsufficientBalanceError

	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:    "insufficient stock",
			Products: stockErr.Shortfalls,
		})
	case errors.As(err, &balanceErr):
		writeJSON(w, http.StatusPaymentRequired, errorResponse{
			Error:     balanceErr.Error(),
			Shortfall: &balanceErr.Shortfall,
		})
	case errors.Is(err, domain.ErrAccountNotFound), errors.Is(err, domain.ErrProductNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrQuantityExceedsStock):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrInvalidStock),
		errors.Is(err, domain.ErrInvalidBalance):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		log.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
