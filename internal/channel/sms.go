package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"groupsend/internal/entity"
)

// SMSSender posts messages to an external SMS gateway's HTTP API.
type SMSSender struct {
	apiURL string
	apiKey string
	sender string
	client *http.Client
}

func NewSMSSender(apiURL, apiKey, sender string) *SMSSender {
	return &SMSSender{
		apiURL: apiURL,
		apiKey: apiKey,
		sender: sender,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *SMSSender) Name() string {
	return NameSMS
}

func (s *SMSSender) AddressOf(r *entity.RecipientSnapshot) string {
	return r.Phone
}

func (s *SMSSender) Send(ctx context.Context, address string, msg Message) error {
	payload := map[string]string{
		"from": s.sender,
		"to":   address,
		"text": msg.Body,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal sms payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build sms request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway error: %s", resp.Status)
	}
	return nil
}
