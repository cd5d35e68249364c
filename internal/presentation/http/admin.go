package httppresentation

import (
	"errors"
	"net/http"

	"github.com/altmarket/digitalstore/internal/domain/catalog"
	"github.com/altmarket/digitalstore/internal/pkg/logging"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func (h *Handler) registerAdminRoutes(r *mux.Router) {
	adminAPI := r.PathPrefix("/admin/api").Subrouter()
	adminAPI.Use(mux.MiddlewareFunc(h.withRateLimit))
	adminAPI.HandleFunc("/login", h.handleAdminLogin).Methods(http.MethodPost)

	protected := adminAPI.NewRoute().Subrouter()
	protected.Use(mux.MiddlewareFunc(h.requireAdmin))
	protected.HandleFunc("/logout", h.handleAdminLogout).Methods(http.MethodPost)
	protected.HandleFunc("/products", h.handleAdminListProducts).Methods(http.MethodGet)
	protected.HandleFunc("/products", h.handleAdminCreateProduct).Methods(http.MethodPost)
	protected.HandleFunc("/products/{id}", h.handleAdminUpdateProduct).Methods(http.MethodPut)
	protected.HandleFunc("/products/{id}", h.handleAdminDeleteProduct).Methods(http.MethodDelete)
}

// requireAdmin gates the catalog editor behind the session login flag.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := h.sessions.ForRequest(w, r)
		if !sess.IsLoggedIn() {
			writeError(w, http.StatusUnauthorized, errors.New("admin login required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	if err := h.admin.Login(req.Username, req.Password); err != nil {
		logging.FromContext(r.Context()).Warn("admin_login_failed",
			zap.String("username", req.Username),
		)
		writeDomainError(w, err)
		return
	}

	sess := h.sessions.ForRequest(w, r)
	if err := sess.SetLoggedIn(); err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("could not establish session"))
		return
	}
	logging.FromContext(r.Context()).Info("admin_login")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.ForRequest(w, r)
	if err := sess.Logout(); err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("could not end session"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) handleAdminListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.admin.ListProducts(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) handleAdminCreateProduct(w http.ResponseWriter, r *http.Request) {
	var p catalog.Product
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if err := h.admin.CreateProduct(r.Context(), p); err != nil {
		writeDomainError(w, err)
		return
	}
	logging.FromContext(r.Context()).Info("product_created", zap.String("product_id", p.ID))
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleAdminUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var p catalog.Product
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	// The path, not the body, names the product being edited.
	p.ID = mux.Vars(r)["id"]
	if err := h.admin.UpdateProduct(r.Context(), p); err != nil {
		writeDomainError(w, err)
		return
	}
	logging.FromContext(r.Context()).Info("product_updated", zap.String("product_id", p.ID))
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleAdminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.admin.DeleteProduct(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	logging.FromContext(r.Context()).Info("product_deleted", zap.String("product_id", id))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
