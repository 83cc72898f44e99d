package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/example/domestyx/internal/config"
)

var deliveryHTTPClient = &http.Client{Timeout: 15 * time.Second}

// HTTPAPISender posts a JSON payload with a bearer key to a transactional
// e-mail or SMS provider. Any 2xx response counts as delivered.
type HTTPAPISender struct {
	url     string
	apiKey  string
	client  *http.Client
	payload func(target, message string) any
}

type emailAPIRequest struct {
	From    string `json:"from,omitempty"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

type smsAPIRequest struct {
	Sender  string `json:"sender,omitempty"`
	To      string `json:"to"`
	Message string `json:"message"`
}

func NewEmailAPISender(cfg config.HTTPAPIConfig) (*HTTPAPISender, error) {
	if cfg.URL == "" {
		return nil, errors.New("email_api backend requires EMAIL_API_URL")
	}
	return &HTTPAPISender{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		client: deliveryHTTPClient,
		payload: func(target, message string) any {
			return emailAPIRequest{From: cfg.From, To: target, Subject: otpSubject, Text: message}
		},
	}, nil
}

func NewSMSAPISender(cfg config.HTTPAPIConfig) (*HTTPAPISender, error) {
	if cfg.URL == "" {
		return nil, errors.New("sms_api backend requires SMS_API_URL")
	}
	return &HTTPAPISender{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		client: deliveryHTTPClient,
		payload: func(target, message string) any {
			return smsAPIRequest{Sender: cfg.From, To: target, Message: message}
		},
	}, nil
}

func (s *HTTPAPISender) Send(ctx context.Context, target, message string) error {
	body, err := json.Marshal(s.payload(target, message))
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivery request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("delivery provider returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}
