package domain

import "fmt"

// LineItem is one priced product line. Adding the same SKU twice yields two lines.
type LineItem struct {
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	UnitPrice Money  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

func (i LineItem) Subtotal() (Money, error) {
	return Multiply(i.UnitPrice, i.Quantity)
}

// Cart accumulates line items in a single currency.
type Cart struct {
	currency string
	items    []LineItem
}

func NewCart(currency string) (*Cart, error) {
	if currency == "" {
		currency = DefaultCurrency
	}
	code, err := NormalizeCurrency(currency)
	if err != nil {
		return nil, err
	}
	return &Cart{currency: code}, nil
}

func (c *Cart) Currency() string { return c.currency }

func (c *Cart) Len() int { return len(c.items) }

// AddItem appends item after validating it; a rejected item leaves the cart untouched.
func (c *Cart) AddItem(item LineItem) error {
	if _, err := c.validate(c.Total(), item); err != nil {
		return err
	}
	c.items = append(c.items, item)
	return nil
}

// AddItems validates every item first and appends all of them or none.
func (c *Cart) AddItems(items ...LineItem) error {
	total := c.Total()
	for i, item := range items {
		next, err := c.validate(total, item)
		if err != nil {
			return fmt.Errorf("item %d (%s): %w", i, item.SKU, err)
		}
		total = next
	}
	c.items = append(c.items, items...)
	return nil
}

// validate checks item against the cart and returns the total with item added.
// The total of an accepted cart always fits in int64.
func (c *Cart) validate(total Money, item LineItem) (Money, error) {
	if item.UnitPrice.Currency != c.currency {
		return Money{}, mismatch(c.currency, item.UnitPrice.Currency)
	}
	if item.Quantity <= 0 || item.UnitPrice.Amount < 0 {
		return Money{}, ErrInvalidQuantity
	}
	subtotal, err := item.Subtotal()
	if err != nil {
		return Money{}, err
	}
	return Add(total, subtotal)
}

// Items returns the lines in insertion order; the processor may echo this order back.
func (c *Cart) Items() []LineItem {
	out := make([]LineItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) Total() Money {
	total := Money{Currency: c.currency}
	for _, item := range c.items {
		total.Amount += item.UnitPrice.Amount * int64(item.Quantity)
	}
	return total
}

// Snapshot returns an independent copy; later changes to c do not affect it.
func (c *Cart) Snapshot() *Cart {
	return &Cart{currency: c.currency, items: c.Items()}
}

// CartSnapshot is the serialisable form of a cart captured at checkout time.
type CartSnapshot struct {
	Items       []LineItem `json:"items"`
	TotalAmount Money      `json:"total_amount"`
	Currency    string     `json:"currency"`
}

func (c *Cart) ToSnapshot() CartSnapshot {
	return CartSnapshot{
		Items:       c.Items(),
		TotalAmount: c.Total(),
		Currency:    c.currency,
	}
}

// CartFromSnapshot rebuilds a cart, re-validating every line.
func CartFromSnapshot(s CartSnapshot) (*Cart, error) {
	cart, err := NewCart(s.Currency)
	if err != nil {
		return nil, err
	}
	if err := cart.AddItems(s.Items...); err != nil {
		return nil, err
	}
	return cart, nil
}
