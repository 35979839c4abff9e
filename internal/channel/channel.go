package channel

import (
	"context"

	"groupsend/internal/entity"
)

const (
	NameSMS      = "sms"
	NameEmail    = "email"
	NameTelegram = "telegram"
)

// Message is the payload handed to a channel for one recipient.
type Message struct {
	Subject string
	Body    string
}

// Sender delivers one message to one address on one channel. AddressOf
// returns the recipient's address for this channel, or empty when the
// recipient is unreachable here; Send is never called with an empty
// address.
type Sender interface {
	Name() string
	AddressOf(r *entity.RecipientSnapshot) string
	Send(ctx context.Context, address string, msg Message) error
}

// Enabled filters senders down to those the user has an enabled channel
// config for.
func Enabled(senders []Sender, configs []*entity.ChannelConfig) []Sender {
	enabled := make(map[string]bool, len(configs))
	for _, cfg := range configs {
		if cfg.Enabled {
			enabled[cfg.Channel] = true
		}
	}

	var out []Sender
	for _, s := range senders {
		if enabled[s.Name()] {
			out = append(out, s)
		}
	}
	return out
}
