package entity

import (
	"time"
)

type GroupMember struct {
	ID        int64     `json:"id" db:"id"`
	GroupID   int64     `json:"group_id" db:"group_id"`
	Name      string    `json:"name" db:"name"`
	Phone     string    `json:"phone,omitempty" db:"phone"`
	Email     string    `json:"email,omitempty" db:"email"`
	ChatID    string    `json:"chat_id,omitempty" db:"chat_id"`
	Notes     string    `json:"notes,omitempty" db:"notes"`
	IsDefault bool      `json:"is_default_recipient" db:"is_default_recipient"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Reachable reports whether the member has at least one usable contact
// address. Members without any are never offered as recipients.
func (m *GroupMember) Reachable() bool {
	return m.Phone != "" || m.Email != ""
}

// ChannelConfig is per-user channel enablement owned by the account
// layer. A loaded config with Enabled=true means the channel takes part
// in dispatch for that user's messages.
type ChannelConfig struct {
	UserID  int64  `json:"user_id" db:"user_id"`
	Channel string `json:"channel" db:"channel"`
	Enabled bool   `json:"enabled" db:"enabled"`
}
