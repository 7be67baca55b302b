package notifier

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/http"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/pkg/logger"
)

const DefaultSubject = "Your payment receipt"

type mailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	ReplyTo   string
	BCC       []string
	Subject   string
}

type SendGridNotifier struct {
	client  mailSender
	from    *mail.Email
	replyTo *mail.Email
	bcc     []*mail.Email
	subject string
	tmpl    *template.Template
}

func NewSendGridNotifier(cfg SendGridConfig) *SendGridNotifier {
	return newSendGridNotifier(sendgrid.NewSendClient(cfg.APIKey), cfg)
}

func newSendGridNotifier(client mailSender, cfg SendGridConfig) *SendGridNotifier {
	n := &SendGridNotifier{
		client:  client,
		from:    mail.NewEmail(cfg.FromName, cfg.FromEmail),
		subject: cfg.Subject,
		tmpl:    receiptTemplate,
	}
	if n.subject == "" {
		n.subject = DefaultSubject
	}
	if cfg.ReplyTo != "" {
		n.replyTo = mail.NewEmail("", cfg.ReplyTo)
	}
	for _, addr := range cfg.BCC {
		n.bcc = append(n.bcc, mail.NewEmail("", addr))
	}
	return n
}

func (n *SendGridNotifier) SendReceipt(ctx context.Context, details *domain.PaymentDetails) error {
	if details.PayerEmail == "" {
		return ErrNoRecipient
	}

	message, err := n.buildMessage(details)
	if err != nil {
		return err
	}

	resp, err := n.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("send receipt: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("send receipt: sendgrid responded %d: %s", resp.StatusCode, resp.Body)
	}

	logger.FromContext(ctx).Info("receipt_sent",
		zap.String("payment_id", details.ID),
		zap.Int("status", resp.StatusCode),
	)
	return nil
}

func (n *SendGridNotifier) buildMessage(details *domain.PaymentDetails) (*mail.SGMailV3, error) {
	html, err := renderReceipt(n.tmpl, details)
	if err != nil {
		return nil, err
	}

	to := mail.NewEmail("", details.PayerEmail)
	message := mail.NewSingleEmail(n.from, n.subject, to, plainReceipt(details), html)
	if n.replyTo != nil {
		message.SetReplyTo(n.replyTo)
	}
	if len(n.bcc) > 0 {
		message.Personalizations[0].AddBCCs(n.bcc...)
	}
	return message, nil
}

type receiptLine struct {
	Name     string
	SKU      string
	Quantity int
	Price    string
	Subtotal string
}

type receiptView struct {
	PaymentID   string
	SaleID      string
	Description string
	Lines       []receiptLine
	Total       string
}

var receiptTemplate = template.Must(template.New("layout").Parse(`<!DOCTYPE html>
<html>
<body>
<h2>Thank you for your payment</h2>
{{template "content" .}}
<p>Payment reference: {{.PaymentID}}{{if .SaleID}} / {{.SaleID}}{{end}}</p>
</body>
</html>
{{define "content"}}
{{if .Description}}<p>{{.Description}}</p>{{end}}
<table>
<tr><th>Item</th><th>SKU</th><th>Qty</th><th>Price</th><th>Subtotal</th></tr>
{{range .Lines}}<tr><td>{{.Name}}</td><td>{{.SKU}}</td><td>{{.Quantity}}</td><td>{{.Price}}</td><td>{{.Subtotal}}</td></tr>
{{end}}</table>
<p><strong>Total: {{.Total}}</strong></p>
{{end}}`))

func newReceiptView(details *domain.PaymentDetails) receiptView {
	v := receiptView{
		PaymentID:   details.ID,
		SaleID:      details.SaleID,
		Description: details.Description,
		Total:       domain.Format(details.Amount),
	}
	for _, it := range details.Items {
		v.Lines = append(v.Lines, receiptLine{
			Name:     it.Name,
			SKU:      it.SKU,
			Quantity: it.Quantity,
			Price:    domain.Format(it.UnitPrice),
			Subtotal: formatSubtotal(it),
		})
	}
	return v
}

func formatSubtotal(it domain.LineItem) string {
	subtotal, err := it.Subtotal()
	if err != nil {
		return "-"
	}
	return domain.Format(subtotal)
}

func renderReceipt(tmpl *template.Template, details *domain.PaymentDetails) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, newReceiptView(details)); err != nil {
		return "", fmt.Errorf("render receipt: %w", err)
	}
	return buf.String(), nil
}

func plainReceipt(details *domain.PaymentDetails) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Thank you for your payment.\n\n")
	for _, it := range details.Items {
		fmt.Fprintf(&buf, "%d x %s  %s\n", it.Quantity, it.Name, formatSubtotal(it))
	}
	fmt.Fprintf(&buf, "\nTotal: %s\nPayment reference: %s\n", domain.Format(details.Amount), details.ID)
	return buf.String()
}
