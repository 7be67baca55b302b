package domain

import "time"

// Processor-side payment states as reported by the external API.
const (
	ProcessorStateCreated  = "created"
	ProcessorStateApproved = "approved"
	ProcessorStateFailed   = "failed"
)

// PaymentDetails is the processor's view of a payment.
type PaymentDetails struct {
	ID          string     `json:"id"`
	State       string     `json:"state"`
	Intent      string     `json:"intent,omitempty"`
	Amount      Money      `json:"amount"`
	Description string     `json:"description,omitempty"`
	Items       []LineItem `json:"items,omitempty"`
	PayerID     string     `json:"payer_id,omitempty"`
	PayerEmail  string     `json:"payer_email,omitempty"`
	SaleID      string     `json:"sale_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsExecuted reports whether the processor has finalised the transfer.
func (d PaymentDetails) IsExecuted() bool {
	return d.State == ProcessorStateApproved
}

func (d PaymentDetails) clone() PaymentDetails {
	c := d
	if d.Items != nil {
		c.Items = append([]LineItem(nil), d.Items...)
	}
	return c
}

type PaymentResultStatus string

const (
	PaymentResultExecuted  PaymentResultStatus = "EXECUTED"
	PaymentResultCancelled PaymentResultStatus = "CANCELLED"
)

// PaymentResult is the outcome of completing a checkout.
type PaymentResult struct {
	IntentID string              `json:"intent_id"`
	Status   PaymentResultStatus `json:"status"`
	Details  *PaymentDetails     `json:"details,omitempty"`
}

// Callback query parameter names used by the processor on redirect-back.
const (
	CallbackPayerID   = "PayerID"
	CallbackToken     = "token"
	CallbackPaymentID = "paymentId"
)

// CallbackParams are the values the processor appends to the return URL.
type CallbackParams struct {
	PayerID            string
	AuthorizationToken string
	Extras             map[string]string
}

// CallbackParamsFromValues maps query values onto CallbackParams.
func CallbackParamsFromValues(values map[string][]string) CallbackParams {
	p := CallbackParams{Extras: map[string]string{}}
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		switch key {
		case CallbackPayerID:
			p.PayerID = vals[0]
		case CallbackToken:
			p.AuthorizationToken = vals[0]
		default:
			p.Extras[key] = vals[0]
		}
	}
	return p
}

// Authorized reports whether both the payer and the authorization token are present.
func (p CallbackParams) Authorized() bool {
	return p.PayerID != "" && p.AuthorizationToken != ""
}

// Empty reports whether neither the payer nor the authorization token is present.
func (p CallbackParams) Empty() bool {
	return p.PayerID == "" && p.AuthorizationToken == ""
}

// CreatePaymentRequest is what the processor needs to open a payment.
type CreatePaymentRequest struct {
	Amount      Money
	Items       []LineItem
	SuccessURL  string
	CancelURL   string
	Description string
}

// CreatedPayment is the processor's answer to a create call.
type CreatedPayment struct {
	ID          string
	RedirectURL string
}
