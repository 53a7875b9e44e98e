package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjod/go_shop/internal/domain"
)

// Response is the envelope of every API reply.
type Response struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Code       string      `json:"code,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
}

func paginationOf[T any](p domain.Page[T]) *Pagination {
	return &Pagination{
		Page:       p.Page,
		Size:       p.Size,
		TotalItems: p.TotalItems,
		TotalPages: p.TotalPages,
		HasNext:    p.HasNext(),
	}
}

// Error codes carried in Response.Code.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeBadCredentials    = "INVALID_CREDENTIALS"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeDuplicateIdentity = "DUPLICATE_IDENTITY"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeCartEmpty         = "CART_EMPTY"
	CodeStatusNotAllowed  = "ORDER_STATUS_NOT_ALLOWED"
	CodeInternal          = "INTERNAL_ERROR"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondOK(w http.ResponseWriter, message string, data interface{}) {
	respondJSON(w, http.StatusOK, Response{Success: true, Message: message, Data: data})
}

func respondPage(w http.ResponseWriter, data interface{}, p *Pagination) {
	respondJSON(w, http.StatusOK, Response{Success: true, Data: data, Pagination: p})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, Response{Success: false, Code: code, Message: message})
}

// handleServiceError maps a domain error to the envelope. Business outcomes
// the client is expected to handle (stock, empty cart, order status) are
// reported with 200 and success=false.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		stockErr      *domain.StockError
		transitionErr *domain.TransitionError
	)

	switch {
	case errors.As(err, &stockErr):
		respondJSON(w, http.StatusOK, Response{
			Code:    CodeInsufficientStock,
			Message: err.Error(),
			Data:    stockIssueFromDomain(stockErr),
		})
	case errors.Is(err, domain.ErrInsufficientStock):
		respondError(w, http.StatusOK, CodeInsufficientStock, err.Error())
	case errors.Is(err, domain.ErrCartEmpty):
		respondError(w, http.StatusOK, CodeCartEmpty, err.Error())
	case errors.As(err, &transitionErr):
		respondJSON(w, http.StatusOK, Response{
			Code:    CodeStatusNotAllowed,
			Message: err.Error(),
			Data: map[string]string{
				"orderNumber":   transitionErr.OrderNumber,
				"currentStatus": transitionErr.From.String(),
			},
		})
	case errors.Is(err, domain.ErrInvalidTransition):
		respondError(w, http.StatusOK, CodeStatusNotAllowed, err.Error())
	case errors.Is(err, domain.ErrValidation):
		respondError(w, http.StatusBadRequest, CodeValidation, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, CodeBadCredentials, "invalid username or password")
	case errors.Is(err, domain.ErrUnauthenticated):
		respondError(w, http.StatusUnauthorized, CodeUnauthorized, "please log in first")
	case errors.Is(err, domain.ErrForbidden):
		respondError(w, http.StatusForbidden, CodeForbidden, "access denied")
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, domain.ErrDuplicateIdentity):
		respondError(w, http.StatusConflict, CodeDuplicateIdentity, err.Error())
	default:
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body")
		return false
	}
	return true
}
