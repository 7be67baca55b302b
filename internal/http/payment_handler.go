package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/service"
)

const (
	defaultPageLimit  = 10
	defaultPageOffset = 0
)

type PaymentHandler struct {
	service service.CheckoutService
	timeout time.Duration
}

func NewPaymentHandler(svc service.CheckoutService, timeout time.Duration) *PaymentHandler {
	return &PaymentHandler{
		service: svc,
		timeout: timeout,
	}
}

type PaymentListResponseDTO struct {
	Payments []domain.PaymentDetails `json:"payments"`
	Count    int                     `json:"count"`
	Limit    int                     `json:"limit"`
	Offset   int                     `json:"offset"`
}

func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_payment_id", "payment id is required")
		return
	}

	details, err := h.service.GetPayment(ctx, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, details)
}

func (h *PaymentHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	limit, err := queryInt(r, "limit", defaultPageLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_page_size", "limit must be an integer")
		return
	}
	offset, err := queryInt(r, "offset", defaultPageOffset)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_page_size", "offset must be an integer")
		return
	}

	payments, err := h.service.ListPayments(ctx, limit, offset)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if payments == nil {
		payments = []domain.PaymentDetails{}
	}
	respondJSON(w, http.StatusOK, PaymentListResponseDTO{
		Payments: payments,
		Count:    len(payments),
		Limit:    limit,
		Offset:   offset,
	})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
