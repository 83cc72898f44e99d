package otp

import (
	"regexp"
	"strings"

	"github.com/example/domestyx/internal/apperr"
	"github.com/example/domestyx/internal/models"
	"github.com/example/domestyx/internal/utils"
)

var (
	phonePattern   = regexp.MustCompile(`^\+?[0-9]{8,15}$`)
	phoneSeparator = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
	codePattern    = regexp.MustCompile(`^[0-9]{6}$`)
)

// Key identifies the (channel, target, purpose) scope of a code.
type Key struct {
	Channel models.OTPChannel
	Target  string
	Purpose models.OTPPurpose
}

// String renders the key for locking and logging.
func (k Key) String() string {
	return string(k.Channel) + "|" + k.Target + "|" + string(k.Purpose)
}

// ParseChannel validates a channel name.
func ParseChannel(value string) (models.OTPChannel, error) {
	switch models.OTPChannel(strings.ToLower(strings.TrimSpace(value))) {
	case models.OTPChannelEmail:
		return models.OTPChannelEmail, nil
	case models.OTPChannelPhone:
		return models.OTPChannelPhone, nil
	}
	return "", apperr.InvalidChoice("channel", value, []string{string(models.OTPChannelEmail), string(models.OTPChannelPhone)})
}

// ParsePurpose validates a purpose name. Empty input means registration.
func ParsePurpose(value string) (models.OTPPurpose, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return models.OTPPurposeRegistration, nil
	}
	allowed := make([]string, len(models.OTPPurposes))
	for i, p := range models.OTPPurposes {
		if string(p) == normalized {
			return p, nil
		}
		allowed[i] = string(p)
	}
	return "", apperr.InvalidChoice("purpose", value, allowed)
}

// NormalizeTarget validates and canonicalizes a contact for its channel.
func NormalizeTarget(channel models.OTPChannel, target string) (string, error) {
	target = strings.TrimSpace(target)
	switch channel {
	case models.OTPChannelEmail:
		email := strings.ToLower(target)
		if !utils.IsEmail(email) {
			return "", apperr.Validation("invalid_target", "enter a valid email address")
		}
		return email, nil
	case models.OTPChannelPhone:
		phone := phoneSeparator.Replace(target)
		if !phonePattern.MatchString(phone) {
			return "", apperr.Validation("invalid_target", "enter a valid phone number with 8 to 15 digits")
		}
		return phone, nil
	}
	return "", apperr.InvalidChoice("channel", string(channel), []string{string(models.OTPChannelEmail), string(models.OTPChannelPhone)})
}

// NewKey validates every component of a key.
func NewKey(channel, target, purpose string) (Key, error) {
	ch, err := ParseChannel(channel)
	if err != nil {
		return Key{}, err
	}
	p, err := ParsePurpose(purpose)
	if err != nil {
		return Key{}, err
	}
	t, err := NormalizeTarget(ch, target)
	if err != nil {
		return Key{}, err
	}
	return Key{Channel: ch, Target: t, Purpose: p}, nil
}

// Mask redacts a normalized target for display.
func Mask(channel models.OTPChannel, target string) string {
	if channel == models.OTPChannelEmail {
		local, domain, ok := strings.Cut(target, "@")
		if !ok {
			return "***"
		}
		visible := 2
		if len(local) <= 2 {
			visible = 1
		}
		if len(local) < visible {
			visible = len(local)
		}
		return local[:visible] + "***@" + domain
	}

	digits := 0
	for _, r := range target {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	var b strings.Builder
	seen := 0
	for _, r := range target {
		if r >= '0' && r <= '9' {
			seen++
			if seen <= digits-4 {
				b.WriteRune('*')
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}
