package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/example/domestyx/internal/config"
	"github.com/example/domestyx/internal/models"
)

// Sender delivers a text message to one address or phone number.
type Sender interface {
	Send(ctx context.Context, target, message string) error
}

// Dispatcher routes OTP messages to the backend configured for each channel.
type Dispatcher struct {
	email Sender
	phone Sender
	log   *zap.Logger
}

// NewDispatcher builds the e-mail and SMS backends named in cfg.
func NewDispatcher(cfg config.DeliveryConfig, log *zap.Logger) (*Dispatcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("delivery")

	email, err := newEmailSender(cfg, log)
	if err != nil {
		return nil, err
	}
	phone, err := newSMSSender(cfg, log)
	if err != nil {
		return nil, err
	}

	log.Info("otp delivery configured",
		zap.String("email_provider", providerName(cfg.EmailProvider)),
		zap.String("sms_provider", providerName(cfg.SMSProvider)))
	return &Dispatcher{email: email, phone: phone, log: log}, nil
}

// NewDispatcherWith wires explicit senders.
func NewDispatcherWith(email, phone Sender, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{email: email, phone: phone, log: log}
}

// Send implements otp.Deliverer.
func (d *Dispatcher) Send(ctx context.Context, channel models.OTPChannel, target, message string) error {
	switch channel {
	case models.OTPChannelEmail:
		return d.email.Send(ctx, target, message)
	case models.OTPChannelPhone:
		return d.phone.Send(ctx, target, message)
	}
	return fmt.Errorf("unsupported channel %q", channel)
}

func providerName(name string) string {
	if name == "" {
		return "console"
	}
	return name
}

func newEmailSender(cfg config.DeliveryConfig, log *zap.Logger) (Sender, error) {
	switch strings.ToLower(cfg.EmailProvider) {
	case "", "console":
		return NewConsoleSender("email", log), nil
	case "smtp":
		return NewSMTPSender(cfg.SMTP)
	case "email_api":
		return NewEmailAPISender(cfg.EmailAPI)
	}
	return nil, fmt.Errorf("unknown OTP_EMAIL_PROVIDER %q", cfg.EmailProvider)
}

func newSMSSender(cfg config.DeliveryConfig, log *zap.Logger) (Sender, error) {
	switch strings.ToLower(cfg.SMSProvider) {
	case "", "console":
		return NewConsoleSender("sms", log), nil
	case "sms_api":
		return NewSMSAPISender(cfg.SMSAPI)
	case "twilio":
		return NewTwilioSender(cfg.Twilio)
	}
	return nil, fmt.Errorf("unknown OTP_SMS_PROVIDER %q", cfg.SMSProvider)
}

// ConsoleSender writes messages to the log instead of delivering them.
type ConsoleSender struct {
	channel string
	log     *zap.Logger
}

func NewConsoleSender(channel string, log *zap.Logger) *ConsoleSender {
	return &ConsoleSender{channel: channel, log: log}
}

func (c *ConsoleSender) Send(ctx context.Context, target, message string) error {
	c.log.Info("console delivery",
		zap.String("channel", c.channel),
		zap.String("target", target),
		zap.String("message", message))
	return nil
}
