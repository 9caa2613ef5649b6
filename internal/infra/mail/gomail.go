package mail

import (
	"context"
	"fmt"
	"strings"

	"app/internal/config"
	"app/internal/usecase"

	"gopkg.in/gomail.v2"
)

// SMTPSender は注文確認メールを送る。失敗は呼び出し側がログして握りつぶす前提。
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(cfg config.Config) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass),
		from:   fmt.Sprintf("Pharmacy Admin <%s>", cfg.SMTPUser),
	}
}

func (s *SMTPSender) SendOrderConfirmation(ctx context.Context, to string, o usecase.OrderConfirmation) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", fmt.Sprintf("Order Confirmation #%d", o.OrderID))
	m.SetBody("text/html", confirmationBody(o))

	return s.dialer.DialAndSend(m)
}

func confirmationBody(o usecase.OrderConfirmation) string {
	var rows strings.Builder
	for _, it := range o.Items {
		rows.WriteString(fmt.Sprintf(
			"<tr><td>%s</td><td>%d</td><td>%s</td></tr>",
			it.ProductName, it.Quantity, it.Price.StringFixed(2),
		))
	}

	return fmt.Sprintf(`
      <div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
        <h2 style="color: #2c3e50;">Thank you for your order, %s!</h2>
        <p>Your order <strong>#%d</strong> has been confirmed.</p>
        <table border="1" cellpadding="6" cellspacing="0">
          <tr><th>Item</th><th>Qty</th><th>Price</th></tr>
          %s
        </table>
        <p><strong>Total: %s</strong></p>
        <p>Delivery address: %s</p>
      </div>
    `, o.CustomerName, o.OrderID, rows.String(), o.TotalAmount.StringFixed(2), o.Address)
}
