package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/service"
	"github.com/fjod/go_checkout/pkg/logger"
)

const (
	DefaultSessionCookie = "checkout_session"
	sessionCookiePath    = "/api/v1/checkout"
)

type CookieSettings struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

type CheckoutHandler struct {
	service  service.CheckoutService
	timeout  time.Duration
	cookie   CookieSettings
	validate *validator.Validate
}

func NewCheckoutHandler(svc service.CheckoutService, timeout time.Duration, cookie CookieSettings) *CheckoutHandler {
	if cookie.Name == "" {
		cookie.Name = DefaultSessionCookie
	}
	return &CheckoutHandler{
		service:  svc,
		timeout:  timeout,
		cookie:   cookie,
		validate: validator.New(),
	}
}

type CheckoutItemDTO struct {
	Name     string `json:"name" validate:"required,max=127"`
	SKU      string `json:"sku" validate:"max=127"`
	Price    int64  `json:"price" validate:"gte=0"`
	Quantity int    `json:"quantity" validate:"gt=0,lte=10000"`
}

type CreateCheckoutRequestDTO struct {
	Currency    string            `json:"currency" validate:"omitempty,len=3,alpha"`
	Items       []CheckoutItemDTO `json:"items" validate:"dive"`
	SuccessURL  string            `json:"success_url" validate:"omitempty,url"`
	CancelURL   string            `json:"cancel_url" validate:"omitempty,url"`
	Description string            `json:"description" validate:"max=127"`
}

type CreateCheckoutResponseDTO struct {
	IntentID    string       `json:"intent_id"`
	RedirectURL string       `json:"redirect_url"`
	Status      string       `json:"status"`
	Total       domain.Money `json:"total"`
}

type CompleteCheckoutResponseDTO struct {
	IntentID string                 `json:"intent_id"`
	Status   string                 `json:"status"`
	Payment  *domain.PaymentDetails `json:"payment,omitempty"`
}

func (h *CheckoutHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CreateCheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "request validation failed",
			Code:    "invalid_request",
			Details: err.Error(),
		})
		return
	}

	cart, err := req.toCart()
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	intent, err := h.service.CreateCheckout(ctx, service.CheckoutRequest{
		Cart:        cart,
		SuccessURL:  req.SuccessURL,
		CancelURL:   req.CancelURL,
		Description: req.Description,
	})
	if err != nil {
		if intent != nil {
			logger.FromContext(ctx).Warn("checkout_failed",
				zap.String("status", intent.Status.String()),
				zap.String("reason", intent.FailureReason),
			)
		}
		handleServiceError(w, r, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(intent.SessionToken, int(h.cookie.TTL.Seconds())))
	respondJSON(w, http.StatusCreated, CreateCheckoutResponseDTO{
		IntentID:    intent.ID,
		RedirectURL: intent.RedirectURL,
		Status:      intent.Status.String(),
		Total:       intent.Total(),
	})
}

// Callback handles the payer's redirect back from the processor.
func (h *CheckoutHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var token string
	if c, err := r.Cookie(h.cookie.Name); err == nil {
		token = c.Value
	}
	// the session is single-use whatever the outcome
	http.SetCookie(w, h.sessionCookie("", -1))

	params := domain.CallbackParamsFromValues(r.URL.Query())
	result, err := h.service.CompleteCheckout(ctx, token, params)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, CompleteCheckoutResponseDTO{
		IntentID: result.IntentID,
		Status:   string(result.Status),
		Payment:  result.Details,
	})
}

func (h *CheckoutHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     sessionCookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (req CreateCheckoutRequestDTO) toCart() (*domain.Cart, error) {
	cart, err := domain.NewCart(req.Currency)
	if err != nil {
		return nil, err
	}

	items := make([]domain.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.LineItem{
			Name:      it.Name,
			SKU:       it.SKU,
			UnitPrice: domain.Money{Amount: it.Price, Currency: cart.Currency()},
			Quantity:  it.Quantity,
		})
	}
	if err := cart.AddItems(items...); err != nil {
		return nil, err
	}
	return cart, nil
}
