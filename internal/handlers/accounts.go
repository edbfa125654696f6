package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/profiles-api/apiserver/internal/services"
	"github.com/profiles-api/apiserver/types"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
	maxOffset    = math.MaxInt32
)

const contextAccountKey contextKey = "account"

// AccountHandler serves the account administration routes.
type AccountHandler struct {
	accounts *services.AccountService
	auth     *AuthHandler
}

func NewAccountHandler(accounts *services.AccountService, auth *AuthHandler) *AccountHandler {
	return &AccountHandler{accounts: accounts, auth: auth}
}

// AccountRouter registers account routes. Every route requires an active
// staff account; mutations additionally require a superuser.
func AccountRouter(r chi.Router, handler *AccountHandler) {
	r.Use(handler.auth.RequireAuth, handler.requireStaff)

	r.Get("/", handler.ListAccounts)
	r.Route("/{accountID}", func(r chi.Router) {
		r.Get("/", handler.GetAccount)
		r.Group(func(r chi.Router) {
			r.Use(requireSuperuser)
			r.Delete("/", handler.DeleteAccount)
			r.Post("/deactivate", handler.DeactivateAccount)
			r.Post("/permissions", handler.GrantPermission)
			r.Delete("/permissions/{permission}", handler.RevokePermission)
		})
	})
}

func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.accounts.List(r.Context(), offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list accounts")
		return
	}

	writeJSON(w, http.StatusOK, AccountListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	account, err := h.accounts.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "failed to fetch account")
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.accounts.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err, "failed to delete account")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AccountHandler) DeactivateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	account, err := h.accounts.Deactivate(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "failed to deactivate account")
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *AccountHandler) GrantPermission(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req PermissionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeServiceError(w, err, "invalid request")
		return
	}

	if err := h.accounts.GrantPermission(r.Context(), id, req.Permission); err != nil {
		writeServiceError(w, err, "failed to grant permission")
		return
	}
	h.writeAccount(w, r, id)
}

func (h *AccountHandler) RevokePermission(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.accounts.RevokePermission(r.Context(), id, chi.URLParam(r, "permission")); err != nil {
		writeServiceError(w, err, "failed to revoke permission")
		return
	}
	h.writeAccount(w, r, id)
}

func (h *AccountHandler) writeAccount(w http.ResponseWriter, r *http.Request, id int) {
	account, err := h.accounts.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "failed to fetch account")
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *AccountHandler) requireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := h.auth.currentAccount(w, r)
		if !ok {
			return
		}
		if !account.IsStaff {
			writeError(w, http.StatusForbidden, "staff access required")
			return
		}
		ctx := context.WithValue(r.Context(), contextAccountKey, account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireSuperuser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := r.Context().Value(contextAccountKey).(types.Account)
		if !ok || !account.IsSuperuser {
			writeError(w, http.StatusForbidden, "superuser access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type PermissionRequest struct {
	Permission string `json:"permission" validate:"required,max=255"`
}

type AccountListResponse struct {
	Items []types.Account `json:"items"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
	Total int             `json:"total"`
}

func parseAccountID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "accountID"))
	if err != nil || id < 1 {
		return 0, errors.New("invalid account id")
	}
	return id, nil
}

func parsePagination(r *http.Request) (int, int, int, error) {
	page := defaultPage
	limit := defaultLimit

	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return 0, 0, 0, errors.New("invalid page")
		}
		page = parsed
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return 0, 0, 0, errors.New("invalid limit")
		}
		limit = min(parsed, maxLimit)
	}

	if page-1 > maxOffset/limit {
		return 0, 0, 0, errors.New("invalid page")
	}

	return page, limit, (page - 1) * limit, nil
}
