package processor

import (
	"strconv"
	"time"

	"github.com/fjod/go_checkout/domain"
)

const (
	intentSale          = "sale"
	paymentMethodPayPal = "paypal"
	relApprovalURL      = "approval_url"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type errorResponse struct {
	Name             string        `json:"name"`
	Message          string        `json:"message"`
	DebugID          string        `json:"debug_id"`
	Details          []errorDetail `json:"details"`
	Error            string        `json:"error"`
	ErrorDescription string        `json:"error_description"`
}

type errorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

type payment struct {
	ID           string        `json:"id,omitempty"`
	Intent       string        `json:"intent"`
	State        string        `json:"state,omitempty"`
	Payer        payer         `json:"payer"`
	Transactions []transaction `json:"transactions"`
	RedirectURLs *redirectURLs `json:"redirect_urls,omitempty"`
	Links        []link        `json:"links,omitempty"`
	CreateTime   string        `json:"create_time,omitempty"`
	UpdateTime   string        `json:"update_time,omitempty"`
}

type payer struct {
	PaymentMethod string     `json:"payment_method"`
	PayerInfo     *payerInfo `json:"payer_info,omitempty"`
}

type payerInfo struct {
	Email   string `json:"email,omitempty"`
	PayerID string `json:"payer_id,omitempty"`
}

type transaction struct {
	Amount           amount            `json:"amount"`
	ItemList         *itemList         `json:"item_list,omitempty"`
	Description      string            `json:"description,omitempty"`
	RelatedResources []relatedResource `json:"related_resources,omitempty"`
}

type amount struct {
	Currency string `json:"currency"`
	Total    string `json:"total"`
}

type itemList struct {
	Items []item `json:"items"`
}

type item struct {
	Name     string `json:"name"`
	SKU      string `json:"sku,omitempty"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
	Quantity string `json:"quantity"`
}

type relatedResource struct {
	Sale *sale `json:"sale,omitempty"`
}

type sale struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

type redirectURLs struct {
	ReturnURL string `json:"return_url"`
	CancelURL string `json:"cancel_url"`
}

type link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

type paymentList struct {
	Payments []payment `json:"payments"`
	Count    int       `json:"count"`
	NextID   string    `json:"next_id"`
}

type executeRequest struct {
	PayerID string `json:"payer_id"`
}

func newPaymentRequest(req domain.CreatePaymentRequest) payment {
	items := make([]item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, item{
			Name:     it.Name,
			SKU:      it.SKU,
			Price:    it.UnitPrice.Decimal(),
			Currency: it.UnitPrice.Currency,
			Quantity: strconv.Itoa(it.Quantity),
		})
	}

	return payment{
		Intent: intentSale,
		Payer:  payer{PaymentMethod: paymentMethodPayPal},
		Transactions: []transaction{{
			Amount: amount{
				Currency: req.Amount.Currency,
				Total:    req.Amount.Decimal(),
			},
			ItemList:    &itemList{Items: items},
			Description: req.Description,
		}},
		RedirectURLs: &redirectURLs{
			ReturnURL: req.SuccessURL,
			CancelURL: req.CancelURL,
		},
	}
}

func (p payment) approvalURL() string {
	for _, l := range p.Links {
		if l.Rel == relApprovalURL {
			return l.Href
		}
	}
	return ""
}

func (p payment) toDetails() (*domain.PaymentDetails, error) {
	d := &domain.PaymentDetails{
		ID:     p.ID,
		State:  p.State,
		Intent: p.Intent,
	}
	if p.Payer.PayerInfo != nil {
		d.PayerID = p.Payer.PayerInfo.PayerID
		d.PayerEmail = p.Payer.PayerInfo.Email
	}
	d.CreatedAt = parseTime(p.CreateTime)
	d.UpdatedAt = parseTime(p.UpdateTime)

	if len(p.Transactions) == 0 {
		return d, nil
	}
	tx := p.Transactions[0]
	total, err := domain.ParseMoney(tx.Amount.Total, tx.Amount.Currency)
	if err != nil {
		return nil, err
	}
	d.Amount = total
	d.Description = tx.Description

	if tx.ItemList != nil {
		for _, it := range tx.ItemList.Items {
			price, err := domain.ParseMoney(it.Price, it.Currency)
			if err != nil {
				return nil, err
			}
			qty, err := strconv.Atoi(it.Quantity)
			if err != nil {
				return nil, err
			}
			d.Items = append(d.Items, domain.LineItem{
				Name:      it.Name,
				SKU:       it.SKU,
				UnitPrice: price,
				Quantity:  qty,
			})
		}
	}
	for _, rr := range tx.RelatedResources {
		if rr.Sale != nil {
			d.SaleID = rr.Sale.ID
			break
		}
	}
	return d, nil
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
