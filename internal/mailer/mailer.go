package mailer

import (
	"fmt"
	"log"

	"github.com/resend/resend-go/v2"
	"github.com/spf13/viper"
)

// Mailer sends transactional email through Resend.
type Mailer struct {
	client *resend.Client
	from   string
}

func New() *Mailer {
	viper.SetDefault("email.from", "no-reply@sliqpay.local")

	apiKey := viper.GetString("email.api_key")
	if apiKey == "" {
		log.Println("[MAILER] email.api_key not set; outgoing email is disabled")
	}
	return &Mailer{
		client: resend.NewClient(apiKey),
		from:   viper.GetString("email.from"),
	}
}

// SendPasswordReset emails a single-use reset link. The link expires
// with the reset token (15 minutes by default).
func (m *Mailer) SendPasswordReset(to, resetURL string) error {
	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: "Reset your SliqPay password",
		Html: fmt.Sprintf(
			`<p>Click <a href="%s">here</a> to reset your password. This link expires in 15 minutes.</p>`,
			resetURL),
	}

	resp, err := m.client.Emails.Send(params)
	if err != nil {
		return err
	}
	log.Printf("[MAILER] password reset email sent, id: %s", resp.Id)
	return nil
}
