// Package mailer sends the HTML purchase invoice to customers after a
// paid sale. Delivery is best effort: failures are logged by the caller
// and never affect the sale.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/cenkalti/backoff/v4"
	gomail "gopkg.in/gomail.v2"

	"patitas/backend/internal/domain"
)

type Mailer interface {
	SendSaleInvoice(ctx context.Context, sale domain.Sale) error
}

type NoopMailer struct{}

func (NoopMailer) SendSaleInvoice(_ context.Context, _ domain.Sale) error {
	return nil
}

// SMTPMailer delivers invoices over SMTP with a bounded retry: three
// attempts with exponential backoff starting at one second.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

const maxSendAttempts = 3

func (m *SMTPMailer) SendSaleInvoice(ctx context.Context, sale domain.Sale) error {
	if sale.CustomerEmail == "" {
		return fmt.Errorf("sale %s has no customer email", sale.ID)
	}

	body, err := RenderInvoiceHTML(sale)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", sale.CustomerEmail)
	msg.SetHeader("Subject", fmt.Sprintf("Factura de tu compra %s", sale.ID))
	msg.SetBody("text/html", body)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.Multiplier = 2
	policy.RandomizationFactor = 0

	attempts := uint64(maxSendAttempts - 1)
	return backoff.Retry(func() error {
		return m.dialer.DialAndSend(msg)
	}, backoff.WithContext(backoff.WithMaxRetries(policy, attempts), ctx))
}

var invoiceTmpl = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"money": formatCents,
}).Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
	<h2>Gracias por tu compra, {{.CustomerName}}</h2>
	<p>Venta <strong>{{.ID}}</strong> &middot; {{.CreatedAt.Format "02/01/2006 15:04"}}</p>
	<table width="100%" cellpadding="6" style="border-collapse: collapse;">
		<tr style="background: #f4f4f4;">
			<th align="left">Producto</th>
			<th align="right">Cantidad</th>
			<th align="right">Precio unitario</th>
			<th align="right">Subtotal</th>
		</tr>
		{{range .Items}}
		<tr style="border-bottom: 1px solid #ddd;">
			<td>{{.Name}}</td>
			<td align="right">{{.Qty}}</td>
			<td align="right">${{money .UnitPriceCents}}</td>
			<td align="right">${{money .SubtotalCents}}</td>
		</tr>
		{{end}}
	</table>
	<p align="right">
		Subtotal: ${{money .SubtotalCents}}<br>
		IVA: ${{money .TaxCents}}<br>
		<strong>Total: ${{money .TotalCents}}</strong>
	</p>
</body>
</html>`))

// RenderInvoiceHTML renders the invoice email body for a sale.
func RenderInvoiceHTML(sale domain.Sale) (string, error) {
	var buf bytes.Buffer
	if err := invoiceTmpl.Execute(&buf, sale); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
