package domain

import (
	"errors"
	"fmt"
)

// Input validation
var (
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrInvalidCurrency  = errors.New("invalid currency code")
	ErrInvalidAmount    = errors.New("amount must be zero or greater")
	ErrInvalidQuantity  = errors.New("quantity must be greater than zero and price must not be negative")
	ErrEmptyCart        = errors.New("cart is empty, nothing to checkout")
	ErrMissingReturnURL = errors.New("success return url is required")
	ErrInvalidPageSize  = errors.New("page size must be greater than zero")
)

// Processor and checkout flow
var (
	ErrProcessorUnavailable   = errors.New("payment processor unavailable")
	ErrProcessorRejected      = errors.New("payment processor rejected the request")
	ErrNoPendingCheckout      = errors.New("no pending checkout for this session")
	ErrPaymentCreationFailed  = errors.New("payment creation failed")
	ErrPaymentExecutionFailed = errors.New("payment execution failed")
	ErrCheckoutInProgress     = errors.New("checkout is being completed by another request")
	ErrIllegalTransition      = errors.New("illegal transition of payment intent status")
	ErrIntentNotFound         = errors.New("payment intent not found")
)

// RejectionNotExecuted names an execute the processor answered without moving the money.
const RejectionNotExecuted = "PAYMENT_NOT_EXECUTED"

// ProcessorRejectedError carries the processor's reason for declining a request.
// StatusCode is zero when the rejection is read from a successful response body.
type ProcessorRejectedError struct {
	StatusCode int
	Name       string
	Reason     string
}

func (e *ProcessorRejectedError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("payment processor rejected the request (%s): %s", e.Name, e.Reason)
	}
	if e.Name != "" {
		return fmt.Sprintf("payment processor rejected the request (%d %s): %s", e.StatusCode, e.Name, e.Reason)
	}
	return fmt.Sprintf("payment processor rejected the request (%d): %s", e.StatusCode, e.Reason)
}

func (e *ProcessorRejectedError) Is(target error) bool {
	return target == ErrProcessorRejected
}

type PaymentOp string

const (
	OpCreate  PaymentOp = "create"
	OpExecute PaymentOp = "execute"
)

// PaymentError wraps a processor failure during create or execute.
// It matches ErrPaymentCreationFailed or ErrPaymentExecutionFailed and the wrapped cause.
type PaymentError struct {
	Op       PaymentOp
	IntentID string
	Err      error
}

func (e *PaymentError) Error() string {
	kind := ErrPaymentCreationFailed
	if e.Op == OpExecute {
		kind = ErrPaymentExecutionFailed
	}
	if e.IntentID != "" {
		return fmt.Sprintf("%v for intent %s: %v", kind, e.IntentID, e.Err)
	}
	return fmt.Sprintf("%v: %v", kind, e.Err)
}

func (e *PaymentError) Unwrap() error { return e.Err }

func (e *PaymentError) Is(target error) bool {
	switch target {
	case ErrPaymentCreationFailed:
		return e.Op == OpCreate
	case ErrPaymentExecutionFailed:
		return e.Op == OpExecute
	}
	return false
}
