// Package sendgrid delivers OTP emails through the SendGrid v3 mail API.
package sendgrid

import (
	"context"
	"fmt"
	"net/http"
	"time"

	eduAuth "github.com/MrEthical07/eduAuth"
	"github.com/MrEthical07/eduAuth/notify"
	sg "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Config configures a Mailer.
type Config struct {
	APIKey   string
	From     string
	FromName string
	// OTPValidity is printed in the email body.
	OTPValidity time.Duration
}

type sender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// Mailer implements eduAuth.Mailer.
type Mailer struct {
	client sender
	from   *mail.Email
	ttl    time.Duration
	log    *zap.Logger
}

var _ eduAuth.Mailer = (*Mailer)(nil)

// New builds a Mailer. A nil logger is replaced with a no-op logger.
func New(cfg Config, log *zap.Logger) (*Mailer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("sendgrid: api key is required")
	}
	return newMailer(sg.NewSendClient(cfg.APIKey), cfg, log), nil
}

func newMailer(client sender, cfg Config, log *zap.Logger) *Mailer {
	if log == nil {
		log = zap.NewNop()
	}
	from := cfg.From
	if from == "" {
		from = notify.DefaultFrom
	}
	return &Mailer{
		client: client,
		from:   mail.NewEmail(cfg.FromName, from),
		ttl:    cfg.OTPValidity,
		log:    log,
	}
}

// SendOTP renders and sends the OTP email. Any non-2xx answer is an error.
func (m *Mailer) SendOTP(ctx context.Context, name, email, otp string) error {
	msg, err := notify.RenderOTP(name, otp, m.ttl)
	if err != nil {
		return err
	}

	to := mail.NewEmail(name, email)
	resp, err := m.client.SendWithContext(ctx, mail.NewSingleEmail(m.from, msg.Subject, to, msg.Text, msg.HTML))
	if err != nil {
		m.log.Error("sendgrid send failed", zap.String("to", email), zap.Error(err))
		return fmt.Errorf("error sending email to %s: %w", email, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		m.log.Error("sendgrid rejected message",
			zap.String("to", email),
			zap.Int("status", resp.StatusCode),
			zap.String("body", resp.Body),
		)
		return fmt.Errorf("error sending email to %s: status %d", email, resp.StatusCode)
	}

	m.log.Info("email sent", zap.String("to", email))
	return nil
}
