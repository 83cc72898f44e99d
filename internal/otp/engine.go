// Package otp issues, rate-limits and validates one-time codes bound to a
// contact channel and purpose.
package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/domestyx/internal/apperr"
	"github.com/example/domestyx/internal/config"
	"github.com/example/domestyx/internal/metrics"
	"github.com/example/domestyx/internal/models"
	"github.com/example/domestyx/internal/utils"
)

// Store runs fn in a transaction serialized against every other WithOTPLock
// call for the same key.
type Store interface {
	WithOTPLock(ctx context.Context, key Key, fn func(tx Tx) error) error
}

// Tx reads and writes OTP records inside a WithOTPLock transaction.
type Tx interface {
	LatestOTP(ctx context.Context, key Key) (*models.OTPRecord, error)
	LatestVerifiedOTP(ctx context.Context, key Key, since time.Time) (*models.OTPRecord, error)
	CountOTPsSince(ctx context.Context, key Key, since time.Time) (int64, error)
	SupersedeOTPs(ctx context.Context, key Key) error
	CreateOTP(ctx context.Context, rec *models.OTPRecord) error
	SaveOTP(ctx context.Context, rec *models.OTPRecord) error
}

// Deliverer sends a message to a contact over its channel.
type Deliverer interface {
	Send(ctx context.Context, channel models.OTPChannel, target, message string) error
}

// Config controls code lifetime and throttling.
type Config struct {
	ExpirySeconds             int
	ResendCooldownSeconds     int
	MaxPerHour                int
	MaxAttempts               int
	VerificationWindowSeconds int
	DeliveryTimeout           time.Duration
	HashCost                  int
	Production                bool
}

// ConfigFrom maps application configuration onto engine configuration.
func ConfigFrom(cfg config.OTPConfig, production bool) Config {
	return Config{
		ExpirySeconds:             cfg.ExpirySeconds,
		ResendCooldownSeconds:     cfg.ResendCooldownSeconds,
		MaxPerHour:                cfg.MaxPerHour,
		MaxAttempts:               cfg.MaxAttempts,
		VerificationWindowSeconds: cfg.VerificationWindowSeconds,
		DeliveryTimeout:           cfg.DeliveryTimeout,
		HashCost:                  bcrypt.DefaultCost,
		Production:                production,
	}
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithCodeGenerator overrides code generation.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(e *Engine) { e.generate = gen }
}

// Engine implements the send/verify/consume lifecycle of one-time codes.
type Engine struct {
	cfg      Config
	store    Store
	sender   Deliverer
	log      *zap.Logger
	now      func() time.Time
	generate func() (string, error)
}

// NewEngine constructs an Engine.
func NewEngine(cfg Config, store Store, sender Deliverer, log *zap.Logger, opts ...Option) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 5 * time.Second
	}
	e := &Engine{
		cfg:      cfg,
		store:    store,
		sender:   sender,
		log:      log.Named("otp"),
		now:      time.Now,
		generate: GenerateCode,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SendRequest asks for a new code.
type SendRequest struct {
	Channel string
	Target  string
	Purpose string
}

// SendResult describes an issued code without revealing it.
type SendResult struct {
	Channel          models.OTPChannel
	Purpose          models.OTPPurpose
	MaskedTarget     string
	ExpiresInSeconds int
	// DebugCode is only set when delivery failed outside production.
	DebugCode string
}

// Send issues a new code after the cooldown and hourly checks, superseding any
// pending code for the same key, then hands it to the delivery backend.
func (e *Engine) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	key, err := NewKey(req.Channel, req.Target, req.Purpose)
	if err != nil {
		return nil, err
	}

	code, err := e.generate()
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}
	hash, err := utils.HashSecret(code, e.cfg.HashCost)
	if err != nil {
		return nil, fmt.Errorf("hash otp: %w", err)
	}

	now := e.now()
	err = e.store.WithOTPLock(ctx, key, func(tx Tx) error {
		last, err := tx.LatestOTP(ctx, key)
		if err != nil {
			return err
		}
		if last != nil {
			next := last.CreatedAt.Add(time.Duration(e.cfg.ResendCooldownSeconds) * time.Second)
			if now.Before(next) {
				return apperr.RateLimited(int(math.Ceil(next.Sub(now).Seconds())))
			}
		}

		count, err := tx.CountOTPsSince(ctx, key, now.Add(-time.Hour))
		if err != nil {
			return err
		}
		if e.cfg.MaxPerHour > 0 && count >= int64(e.cfg.MaxPerHour) {
			return apperr.RateLimited(0)
		}

		if err := tx.SupersedeOTPs(ctx, key); err != nil {
			return err
		}

		rec := &models.OTPRecord{
			Channel:     key.Channel,
			Target:      key.Target,
			Purpose:     key.Purpose,
			CodeHash:    hash,
			ExpiresAt:   now.Add(time.Duration(e.cfg.ExpirySeconds) * time.Second),
			MaxAttempts: e.cfg.MaxAttempts,
		}
		rec.CreatedAt = now
		rec.UpdatedAt = now
		return tx.CreateOTP(ctx, rec)
	})
	if err != nil {
		if apperr.HasKind(err, apperr.KindRateLimited) {
			metrics.OTPSent(string(key.Channel), string(key.Purpose), "rate_limited")
		}
		return nil, err
	}

	result := &SendResult{
		Channel:          key.Channel,
		Purpose:          key.Purpose,
		MaskedTarget:     Mask(key.Channel, key.Target),
		ExpiresInSeconds: e.cfg.ExpirySeconds,
	}

	if err := e.deliver(ctx, key, code); err != nil {
		e.log.Warn("otp delivery failed",
			zap.String("channel", string(key.Channel)),
			zap.String("target", result.MaskedTarget),
			zap.Error(err))
		metrics.OTPSent(string(key.Channel), string(key.Purpose), "delivery_failed")
		if e.cfg.Production {
			return nil, ErrDeliveryFailed
		}
		result.DebugCode = code
		return result, nil
	}

	metrics.OTPSent(string(key.Channel), string(key.Purpose), "sent")
	return result, nil
}

func (e *Engine) deliver(ctx context.Context, key Key, code string) error {
	if e.sender == nil {
		return fmt.Errorf("no delivery backend configured")
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.DeliveryTimeout)
	defer cancel()

	started := time.Now()
	defer metrics.ObserveDelivery(string(key.Channel), started)

	minutes := e.cfg.ExpirySeconds / 60
	if minutes < 1 {
		minutes = 1
	}
	message := fmt.Sprintf("Your DomestyX verification code is %s. It expires in %d minutes.", code, minutes)
	return e.sender.Send(dctx, key.Channel, key.Target, message)
}

// VerifyRequest checks a code. UserID, when set, attributes the record to the caller.
type VerifyRequest struct {
	Channel string
	Target  string
	Purpose string
	Code    string
	UserID  *uuid.UUID
}

// Verify validates a code against the latest record for its key.
func (e *Engine) Verify(ctx context.Context, req VerifyRequest) (*models.OTPRecord, error) {
	key, err := NewKey(req.Channel, req.Target, req.Purpose)
	if err != nil {
		return nil, err
	}
	code := strings.TrimSpace(req.Code)

	now := e.now()
	var (
		outcome  error
		verified *models.OTPRecord
	)
	err = e.store.WithOTPLock(ctx, key, func(tx Tx) error {
		rec, err := tx.LatestOTP(ctx, key)
		if err != nil {
			return err
		}
		if rec == nil {
			outcome = ErrNotFound
			return nil
		}
		if !codePattern.MatchString(code) {
			outcome = apperr.Validation("invalid_code", "code must be 6 digits")
			return nil
		}

		if rec.IsUsed {
			// Terminal records keep reporting why they ended. Exhaustion wins
			// over a later expiry because the record never leaves that state.
			switch {
			case rec.VerifiedAt != nil:
				outcome = ErrNotFound
			case rec.Attempts >= rec.MaxAttempts:
				outcome = ErrAttemptsExhausted
			case rec.Expired(now):
				outcome = ErrExpired
			default:
				outcome = ErrNotFound
			}
			return nil
		}

		if rec.Expired(now) {
			rec.IsUsed = true
			outcome = ErrExpired
			return tx.SaveOTP(ctx, rec)
		}

		if rec.Attempts >= rec.MaxAttempts {
			rec.IsUsed = true
			outcome = ErrAttemptsExhausted
			return tx.SaveOTP(ctx, rec)
		}

		if !utils.CheckSecret(rec.CodeHash, code) {
			rec.Attempts++
			if rec.Attempts >= rec.MaxAttempts {
				rec.IsUsed = true
			}
			outcome = ErrInvalidCode
			return tx.SaveOTP(ctx, rec)
		}

		rec.IsUsed = true
		rec.VerifiedAt = &now
		if req.UserID != nil && rec.UserID == nil {
			owner := *req.UserID
			rec.UserID = &owner
		}
		verified = rec
		return tx.SaveOTP(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	if outcome != nil {
		metrics.OTPVerified(string(key.Purpose), outcomeLabel(outcome))
		return nil, outcome
	}

	metrics.OTPVerified(string(key.Purpose), "verified")
	return verified, nil
}

// RequireVerification reports ErrVerificationRequired unless a verified,
// unconsumed code created within the verification window exists. Nothing is
// spent; callers consume once the guarded action has succeeded.
func (e *Engine) RequireVerification(ctx context.Context, channel models.OTPChannel, target string, purpose models.OTPPurpose) error {
	return e.withVerified(ctx, channel, target, purpose, func(Tx, *models.OTPRecord, time.Time) error { return nil })
}

// ConsumeVerification spends a verified code created within the verification
// window. Each verification authorizes exactly one consumer.
func (e *Engine) ConsumeVerification(ctx context.Context, channel models.OTPChannel, target string, purpose models.OTPPurpose) error {
	return e.withVerified(ctx, channel, target, purpose, func(tx Tx, rec *models.OTPRecord, now time.Time) error {
		rec.ConsumedAt = &now
		return tx.SaveOTP(ctx, rec)
	})
}

func (e *Engine) withVerified(ctx context.Context, channel models.OTPChannel, target string, purpose models.OTPPurpose, fn func(Tx, *models.OTPRecord, time.Time) error) error {
	normalized, err := NormalizeTarget(channel, target)
	if err != nil {
		return err
	}
	key := Key{Channel: channel, Target: normalized, Purpose: purpose}

	now := e.now()
	since := now.Add(-time.Duration(e.cfg.VerificationWindowSeconds) * time.Second)
	return e.store.WithOTPLock(ctx, key, func(tx Tx) error {
		rec, err := tx.LatestVerifiedOTP(ctx, key, since)
		if err != nil {
			return err
		}
		if rec == nil {
			return ErrVerificationRequired
		}
		return fn(tx, rec, now)
	})
}

func outcomeLabel(err error) string {
	if e, ok := apperr.As(err); ok {
		return strings.TrimPrefix(e.Code, "otp_")
	}
	return "error"
}

// GenerateCode returns a uniformly random code in [100000, 999999].
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
