package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/supreset/identity/internal/config"
)

const codeSubject = "Your login verification code"

var ErrNotConfigured = errors.New("smtp is not configured")

// Sender delivers login verification codes.
type Sender interface {
	SendCode(ctx context.Context, email, code string, ttl time.Duration) error
}

// New returns an SMTP sender when the mail settings are complete. Outside
// production it falls back to a sender that writes codes to the log.
func New(cfg *config.MailConfig, env string, log *zap.Logger) (Sender, error) {
	if cfg.Configured() {
		return NewSMTPSender(cfg, log), nil
	}
	if env == "production" {
		return nil, fmt.Errorf("%w: mail.host, mail.username, mail.password and mail.from are required in production", ErrNotConfigured)
	}
	log.Warn("smtp not configured, verification codes will be written to the log")
	return NewLogSender(log), nil
}

type SMTPSender struct {
	config *config.MailConfig
	log    *zap.Logger
}

func NewSMTPSender(cfg *config.MailConfig, log *zap.Logger) *SMTPSender {
	return &SMTPSender{config: cfg, log: log}
}

func (s *SMTPSender) SendCode(ctx context.Context, email, code string, ttl time.Duration) error {
	msg, err := s.message(email, code, ttl)
	if err != nil {
		return err
	}

	client, err := gomail.NewClient(s.config.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to deliver mail: %w", err)
	}

	s.log.Info("verification code sent", zap.String("email", email))
	return nil
}

func (s *SMTPSender) clientOptions() []gomail.Option {
	opts := []gomail.Option{
		gomail.WithPort(s.config.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.config.Username),
		gomail.WithPassword(s.config.Password),
		gomail.WithTimeout(15 * time.Second),
	}
	if s.config.Secure {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	return opts
}

func (s *SMTPSender) message(email, code string, ttl time.Duration) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(s.config.From); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(email); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(codeSubject)
	msg.SetBodyString(gomail.TypeTextPlain, codeBody(code, ttl))
	return msg, nil
}

func codeBody(code string, ttl time.Duration) string {
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("Your verification code is %s.\n\nIt expires in %d minute(s). If you did not request it, ignore this message.\n", code, minutes)
}

// LogSender writes codes to the log instead of delivering them.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) SendCode(_ context.Context, email, code string, ttl time.Duration) error {
	s.log.Info("verification code (not delivered)",
		zap.String("email", email),
		zap.String("code", code),
		zap.Duration("ttl", ttl))
	return nil
}
