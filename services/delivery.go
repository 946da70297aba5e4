// services/delivery.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"gopkg.in/gomail.v2"

	"github.com/hsalloum/veriflow_backend/config"
	"github.com/hsalloum/veriflow_backend/utils"
)

// ErrDeliveryDisabled is returned when no delivery channel is configured for
// the identity key's form. Callers surface it instead of pretending the code
// went out.
var ErrDeliveryDisabled = errors.New("code delivery is not configured")

// CodeSender delivers a verification code to an identity key out-of-band.
type CodeSender interface {
	Send(ctx context.Context, identityKey, code string) error
}

// EmailSender delivers verification codes over SMTP.
type EmailSender struct {
	host string
	port int
	user string
	pass string
	from string
}

// NewEmailSender creates an SMTP code sender from validated config.
func NewEmailSender(cfg *config.Config) *EmailSender {
	return &EmailSender{
		host: cfg.SMTPHost,
		port: cfg.SMTPPort,
		user: cfg.SMTPUser,
		pass: cfg.SMTPPass,
		from: cfg.FromEmail,
	}
}

// Send emails the code to the address.
func (s *EmailSender) Send(ctx context.Context, identityKey, code string) error {
	subject := "Your verification code"
	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>Verification Code</h2>
			<p>Please use the following code to continue:</p>
			<h3 style="background-color: #f0f0f0; padding: 10px; font-size: 24px; letter-spacing: 5px; text-align: center;">%s</h3>
			<p>This code will expire in 10 minutes.</p>
			<p>If you did not request this code, you can safely ignore this email.</p>
		</body>
		</html>
	`, code)

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", identityKey)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(s.host, s.port, s.user, s.pass)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// DisabledSender is the explicit stand-in for an unconfigured channel. It
// never pretends delivery succeeded.
type DisabledSender struct {
	channel string
	logger  *log.Logger
}

// NewDisabledSender creates a sender that reports the channel as disabled.
func NewDisabledSender(channel string) *DisabledSender {
	return &DisabledSender{
		channel: channel,
		logger:  log.New(os.Stdout, "[DELIVERY] ", log.LstdFlags),
	}
}

// Send logs and fails with ErrDeliveryDisabled.
func (s *DisabledSender) Send(ctx context.Context, identityKey, code string) error {
	s.logger.Printf("%s delivery disabled, cannot send code to %s", s.channel, identityKey)
	return ErrDeliveryDisabled
}

// RouterSender picks SMS or email from the identity key's form.
type RouterSender struct {
	sms   CodeSender
	email CodeSender
}

// NewRouterSender builds the delivery router from config: each channel is
// either its real gateway or an explicit disabled sender.
func NewRouterSender(cfg *config.Config) *RouterSender {
	router := &RouterSender{
		sms:   NewDisabledSender("sms"),
		email: NewDisabledSender("email"),
	}
	if cfg.SMSEnabled {
		router.sms = NewSMSService(cfg)
	}
	if cfg.SMTPEnabled {
		router.email = NewEmailSender(cfg)
	}
	return router
}

// Send routes the code to the channel matching the identity key.
func (s *RouterSender) Send(ctx context.Context, identityKey, code string) error {
	if utils.IsEmailKey(identityKey) {
		return s.email.Send(ctx, identityKey, code)
	}
	return s.sms.Send(ctx, identityKey, code)
}
