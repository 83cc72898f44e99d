package services

import (
	"context"
	"errors"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/example/domestyx/internal/config"
)

// TwilioSender delivers SMS through the Twilio messaging API.
type TwilioSender struct {
	client *twilio.RestClient
	from   string
}

func NewTwilioSender(cfg config.TwilioConfig) (*TwilioSender, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.From == "" {
		return nil, errors.New("twilio backend requires TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_PHONE_NUMBER")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioSender{client: client, from: cfg.From}, nil
}

// Send returns when Twilio answers or ctx is done, whichever comes first.
func (t *TwilioSender) Send(ctx context.Context, to, message string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(to)
	params.SetBody(message)

	done := make(chan error, 1)
	go func() {
		_, err := t.client.Api.CreateMessage(params)
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
