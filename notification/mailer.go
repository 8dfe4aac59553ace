package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"candle-shop/config"
	"candle-shop/middleware"
	"candle-shop/models"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

var (
	ErrUnknownEvent = errors.New("unknown event type")
	ErrNoRecipient  = errors.New("event has no customer email")
)

// Sender is the part of gomail.Dialer the mailer needs.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer emails customers directly over SMTP.
type Mailer struct {
	sender    Sender
	from      string
	publicURL string
	logger    *zap.Logger
}

func NewMailer(cfg config.SMTPConfig, publicURL string, logger *zap.Logger) *Mailer {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return NewMailerWithSender(dialer, cfg.From, publicURL, logger)
}

func NewMailerWithSender(sender Sender, from, publicURL string, logger *zap.Logger) *Mailer {
	return &Mailer{
		sender:    sender,
		from:      from,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}
}

func (m *Mailer) Notify(ctx context.Context, event models.OrderEvent) error {
	if event.CustomerEmail == "" {
		return ErrNoRecipient
	}
	subject, err := subjectFor(event)
	if err != nil {
		return err
	}
	body, err := renderBody(event, fmt.Sprintf("%s/order/%d", m.publicURL, event.OrderID))
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetAddressHeader("To", event.CustomerEmail, event.CustomerName)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := m.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.Info("Email sent",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("event_type", event.EventType),
		zap.Int("order_id", event.OrderID),
		zap.String("to", event.CustomerEmail),
	)
	return nil
}
