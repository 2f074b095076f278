package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/Pritech-Vior/PritechVior-sub000/internal/auth"
	"github.com/Pritech-Vior/PritechVior-sub000/internal/money"
	"github.com/Pritech-Vior/PritechVior-sub000/internal/storage"
)

type jsonResponse map[string]any

type errorResponse struct {
	Error string `json:"error"`
}

type itemResponse struct {
	ID       string          `json:"id"`
	Product  storage.Product `json:"product"`
	Quantity int             `json:"quantity"`
	Options  json.RawMessage `json:"custom_specifications"`
	Subtotal money.Amount    `json:"subtotal"`
	AddedAt  time.Time       `json:"added_at"`
}

type cartResponse struct {
	ID          string         `json:"id"`
	Items       []itemResponse `json:"items"`
	TotalItems  int            `json:"total_items"`
	TotalAmount money.Amount   `json:"total_amount"`
	UpdatedAt   *time.Time     `json:"updated_at,omitempty"`
}

type Server struct {
	store          storage.Store
	authenticator  *auth.Authenticator
	sessions       *auth.SessionManager
	logger         *zap.Logger
	allowedOrigins []string
}

type Option func(*Server)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSessions enables the browser login routes. The authenticator should
// be given the same SessionManager so signed-in browsers reach the cart.
func WithSessions(sessions *auth.SessionManager) Option {
	return func(s *Server) { s.sessions = sessions }
}

// WithAllowedOrigins enables CORS for the storefront origins.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.allowedOrigins = origins }
}

func NewServer(store storage.Store, authenticator *auth.Authenticator, opts ...Option) *Server {
	s := &Server{
		store:         store,
		authenticator: authenticator,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.authenticator == nil {
		s.authenticator = &auth.Authenticator{}
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(s.allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.allowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(s.authenticator.WithUser)
	r.MethodNotAllowed(methodNotAllowed)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	})

	r.Get("/healthz", handleHealthz)

	r.Route("/api/shop", func(r chi.Router) {
		r.Get("/products/{productID}/", s.handleGetProduct)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser(unauthorized))
			r.Get("/cart/", s.handleGetCart)
			r.Post("/cart/add_item/", s.handleAddItem)
			r.Patch("/cart/items/{itemID}/", s.handleUpdateItem)
			r.Delete("/cart/items/{itemID}/", s.handleRemoveItem)
			r.Delete("/cart/clear/", s.handleClearCart)
		})
	})

	r.Route("/auth", func(r chi.Router) {
		r.With(auth.RequireUser(unauthorized)).Post("/token", s.handleIssueToken)
		if s.sessions != nil {
			r.Method(http.MethodGet, "/callback", s.sessions.CallbackHandler())
			r.With(s.sessions.LoginMiddleware(neverSkip)).Get("/login", func(w http.ResponseWriter, r *http.Request) {
				http.Redirect(w, r, "/", http.StatusFound)
			})
			r.Post("/logout", s.sessions.LogoutHandler())
		}
	})
	return r
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	product, err := s.store.GetProduct(r.Context(), productID)
	if errors.Is(err, storage.ErrProductNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.logger.Error("get product failed", zap.String("product", productID), zap.Error(err))
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	cart, err := s.store.GetCart(r.Context(), userID)
	if err != nil {
		s.logger.Error("get cart failed", zap.String("user", userID), zap.Error(err))
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var payload struct {
		ProductID string          `json:"product_id"`
		Quantity  *int            `json:"quantity"`
		Options   json.RawMessage `json:"custom_specifications"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		s.logger.Info("add item decode error", zap.String("user", userID), zap.Error(err))
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "product_id is required"})
		return
	}
	quantity := 1
	if payload.Quantity != nil {
		quantity = *payload.Quantity
	}
	if quantity < 1 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "quantity must be at least 1"})
		return
	}
	item, err := s.store.AddItem(r.Context(), userID, payload.ProductID, quantity, payload.Options)
	switch {
	case errors.Is(err, storage.ErrProductNotFound):
		writeError(w, http.StatusNotFound, err)
		return
	case err != nil:
		s.logger.Error("add item failed",
			zap.String("user", userID),
			zap.String("product", payload.ProductID),
			zap.Int("quantity", quantity),
			zap.Error(err))
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusCreated, toItemResponse(item))
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	itemID := chi.URLParam(r, "itemID")
	var payload struct {
		Quantity *int `json:"quantity"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.Quantity == nil || *payload.Quantity < 1 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "quantity must be at least 1"})
		return
	}
	item, err := s.store.UpdateItemQuantity(r.Context(), userID, itemID, *payload.Quantity)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
		return
	case err != nil:
		s.logger.Error("update item failed", zap.String("user", userID), zap.String("item", itemID), zap.Error(err))
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(item))
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	itemID := chi.URLParam(r, "itemID")
	err := s.store.RemoveItem(r.Context(), userID, itemID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
		return
	case err != nil:
		s.logger.Error("remove item failed", zap.String("user", userID), zap.String("item", itemID), zap.Error(err))
		writeInternalError(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	if err := s.store.ClearCart(r.Context(), userID); err != nil {
		s.logger.Error("clear cart failed", zap.String("user", userID), zap.Error(err))
		writeInternalError(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	if s.authenticator.Tokens == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "bearer tokens are not configured"})
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	token, err := s.authenticator.Tokens.Issue(userID)
	if err != nil {
		s.logger.Error("issue token failed", zap.String("user", userID), zap.Error(err))
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int64(s.authenticator.Tokens.TTL().Seconds()),
	})
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, jsonResponse{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func toItemResponse(item storage.CartItem) itemResponse {
	options := item.Options
	if len(options) == 0 {
		options = json.RawMessage("{}")
	}
	return itemResponse{
		ID:       item.ID,
		Product:  item.Product,
		Quantity: item.Quantity,
		Options:  options,
		Subtotal: item.Subtotal(),
		AddedAt:  item.AddedAt,
	}
}

func toCartResponse(cart storage.Cart) cartResponse {
	items := make([]itemResponse, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, toItemResponse(item))
	}
	response := cartResponse{
		ID:          cart.UserID,
		Items:       items,
		TotalItems:  cart.TotalItems(),
		TotalAmount: cart.TotalAmount(),
	}
	if !cart.UpdatedAt.IsZero() {
		updated := cart.UpdatedAt
		response.UpdatedAt = &updated
	}
	return response
}

func neverSkip(*http.Request) bool {
	return false
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// writeInternalError hides the cause from the client; callers log it.
func writeInternalError(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(payload)
}
