package channel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"groupsend/internal/entity"
)

// TelegramSender bridges to group chats through the Telegram Bot API.
type TelegramSender struct {
	token   string
	baseURL string
	client  *http.Client
}

func NewTelegramSender(token string) *TelegramSender {
	return &TelegramSender{
		token:   token,
		baseURL: "https://api.telegram.org/bot" + token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *TelegramSender) Name() string {
	return NameTelegram
}

func (t *TelegramSender) AddressOf(r *entity.RecipientSnapshot) string {
	return r.ChatID
}

func (t *TelegramSender) Send(ctx context.Context, address string, msg Message) error {
	endpoint := t.baseURL + "/sendMessage"

	text := msg.Body
	if msg.Subject != "" {
		text = msg.Subject + "\n\n" + msg.Body
	}

	params := url.Values{}
	params.Add("chat_id", address)
	params.Add("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build telegram request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API error: %s", resp.Status)
	}

	return nil
}
