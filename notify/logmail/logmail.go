// Package logmail is a development eduAuth.Mailer that writes OTP emails to a
// zap logger instead of sending them.
package logmail

import (
	"context"

	eduAuth "github.com/MrEthical07/eduAuth"
	"github.com/MrEthical07/eduAuth/notify"
	"go.uber.org/zap"
)

type Mailer struct {
	log *zap.Logger
}

var _ eduAuth.Mailer = (*Mailer)(nil)

func New(log *zap.Logger) *Mailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mailer{log: log.Named("mail")}
}

// SendOTP logs the OTP in clear text. Never use it in production.
func (m *Mailer) SendOTP(_ context.Context, name, email, otp string) error {
	m.log.Info("otp email",
		zap.String("subject", notify.OTPSubject),
		zap.String("name", name),
		zap.String("to", email),
		zap.String("otp", otp),
	)
	return nil
}
