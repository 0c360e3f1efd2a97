package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goodtune/photokiosk/internal/domain"
	"github.com/goodtune/photokiosk/internal/notify"
	"github.com/goodtune/photokiosk/internal/session"
	"github.com/goodtune/photokiosk/internal/storage"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string        `json:"error"`
	Code      string        `json:"code"`
	Required  *domain.Money `json:"required,omitempty"`
	Balance   *domain.Money `json:"balance,omitempty"`
	Shortfall *domain.Money `json:"shortfall,omitempty"`
}

// SessionResponse is the machine status plus the last notification.
type SessionResponse struct {
	session.Status
	Notification *notify.Notification `json:"notification,omitempty"`
}

type productRequest struct {
	ProductType string `json:"product_type"`
}

type copiesRequest struct {
	Copies int `json:"copies"`
}

type abortRequest struct {
	Reason string `json:"reason"`
}

type indexResponse struct {
	Index int `json:"index"`
}

type quantityResponse struct {
	Quantity int `json:"quantity"`
}

type quoteResponse struct {
	Copies int          `json:"copies"`
	Price  domain.Money `json:"price"`
}

type creditResponse struct {
	Balance domain.Money `json:"balance"`
}

// GET /api/v1/session
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	s.respondStatus(w)
}

// POST /api/v1/session/product
func (s *Server) selectProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.respond(w, s.deps.Machine.SelectProduct(r.Context(), req.ProductType))
}

// POST /api/v1/session/template
func (s *Server) selectTemplate(w http.ResponseWriter, r *http.Request) {
	var tpl domain.Template
	if !decodeJSON(w, r, &tpl) {
		return
	}
	s.respond(w, s.deps.Machine.SelectTemplate(r.Context(), tpl))
}

// POST /api/v1/session/capture
func (s *Server) beginCapture(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.deps.Machine.BeginCapture(r.Context()))
}

// POST /api/v1/session/capture/retry
func (s *Server) retryCapture(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.deps.Machine.RetryCapture(r.Context()))
}

// GET /api/v1/session/capture/diagnostics
func (s *Server) captureDiagnostics(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Machine.CaptureDiagnostics()
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// POST /api/v1/session/composed
func (s *Server) onComposed(w http.ResponseWriter, r *http.Request) {
	var result domain.ComposeResult
	if !decodeJSON(w, r, &result) {
		return
	}
	s.respond(w, s.deps.Machine.OnComposed(result))
}

// POST /api/v1/session/compose/retry
func (s *Server) retryCompose(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.deps.Machine.RetryCompose(r.Context()))
}

// POST /api/v1/session/approve
func (s *Server) approvePhotos(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.deps.Machine.ApprovePhotos())
}

// POST /api/v1/session/retake
func (s *Server) requestRetake(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.deps.Machine.RequestRetake())
}

// GET /api/v1/session/extra-copies/quote?copies=N
func (s *Server) quoteExtraCopies(w http.ResponseWriter, r *http.Request) {
	copies, err := strconv.Atoi(r.URL.Query().Get("copies"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_argument", "copies must be an integer")
		return
	}
	price, err := s.deps.Machine.QuoteExtraCopies(copies)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, quoteResponse{Copies: copies, Price: price})
}

// POST /api/v1/session/extra-copies
func (s *Server) chooseExtraCopies(w http.ResponseWriter, r *http.Request) {
	var req copiesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.respond(w, s.deps.Machine.ChooseExtraCopies(r.Context(), req.Copies))
}

// POST /api/v1/session/extra-copies/quantity/{direction}
func (s *Server) changeQuantity(w http.ResponseWriter, r *http.Request) {
	var (
		n   int
		err error
	)
	switch chi.URLParam(r, "direction") {
	case "increase":
		n, err = s.deps.Machine.IncreaseQuantity()
	case "decrease":
		n, err = s.deps.Machine.DecreaseQuantity()
	default:
		respondError(w, http.StatusNotFound, "not_found", "direction must be increase or decrease")
		return
	}
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, quantityResponse{Quantity: n})
}

// POST /api/v1/session/cross-sell/photo/{direction}
func (s *Server) browseCrossSell(w http.ResponseWriter, r *http.Request) {
	var (
		idx int
		err error
	)
	switch chi.URLParam(r, "direction") {
	case "next":
		idx, err = s.deps.Machine.NextCrossSellPhoto()
	case "previous":
		idx, err = s.deps.Machine.PreviousCrossSellPhoto()
	default:
		respondError(w, http.StatusNotFound, "not_found", "direction must be next or previous")
		return
	}
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, indexResponse{Index: idx})
}

// POST /api/v1/session/cross-sell/accept
func (s *Server) acceptCrossSell(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.deps.Machine.AcceptCrossSell(r.Context()))
}

// POST /api/v1/session/cross-sell/decline
func (s *Server) declineCrossSell(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.deps.Machine.DeclineCrossSell())
}

// POST /api/v1/session/finalize
func (s *Server) finalize(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.deps.Machine.Finalize(r.Context()))
}

// POST /api/v1/session/abort
func (s *Server) abort(w http.ResponseWriter, r *http.Request) {
	req := abortRequest{Reason: string(session.ReasonCancelled)}
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}
	reason := session.AbortReason(req.Reason)
	if reason != session.ReasonCancelled && reason != session.ReasonTimedOut {
		respondError(w, http.StatusBadRequest, "invalid_argument", "reason must be cancelled or timed_out")
		return
	}
	s.respond(w, s.deps.Machine.Abort(reason))
}

// POST /api/v1/session/reset
func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	s.deps.Machine.Reset()
	s.respondStatus(w)
}

// GET /api/v1/products
func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	if s.deps.Products == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "product catalogue not configured")
		return
	}
	products, err := s.deps.Products.ListProducts(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

// GET /api/v1/credit
func (s *Server) getCredit(w http.ResponseWriter, r *http.Request) {
	if s.deps.Credit == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "credit ledger not configured")
		return
	}
	balance, err := s.deps.Credit.Balance(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, creditResponse{Balance: balance})
}

// GET /api/v1/orders?date=YYYY-MM-DD
func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	if s.deps.Orders == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "order log not configured")
		return
	}
	orders, err := s.deps.Orders.List(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// GET /api/v1/orders/{order_id}
func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	if s.deps.Orders == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "order log not configured")
		return
	}
	order, err := s.deps.Orders.Get(r.Context(), chi.URLParam(r, "order_id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// GET /api/v1/sales?date=YYYY-MM-DD
func (s *Server) getSales(w http.ResponseWriter, r *http.Request) {
	if s.deps.Orders == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "order log not configured")
		return
	}
	sales, err := s.deps.Orders.Sales(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sales)
}

// respond writes the machine status on success and the mapped error
// otherwise.
func (s *Server) respond(w http.ResponseWriter, err error) {
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondStatus(w)
}

func (s *Server) respondStatus(w http.ResponseWriter) {
	resp := SessionResponse{Status: s.deps.Machine.Status()}
	if s.deps.Notifications != nil {
		if n, ok := s.deps.Notifications.Last(); ok {
			resp.Notification = &n
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondErr(w http.ResponseWriter, err error) {
	var credit *domain.InsufficientCreditError
	switch {
	case errors.As(err, &credit):
		shortfall := credit.Shortfall()
		respondJSON(w, http.StatusPaymentRequired, ErrorResponse{
			Error:     err.Error(),
			Code:      "insufficient_credit",
			Required:  &credit.Required,
			Balance:   &credit.Balance,
			Shortfall: &shortfall,
		})
	case errors.Is(err, domain.ErrValidation):
		respondError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		respondError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, domain.ErrCaptureFailure):
		respondError(w, http.StatusBadGateway, "capture_failed", err.Error())
	case errors.Is(err, domain.ErrCompositionFailure):
		respondError(w, http.StatusBadGateway, "composition_failed", err.Error())
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", "record not found")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		s.logger.Error().Err(err).Msg("Request failed")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}
