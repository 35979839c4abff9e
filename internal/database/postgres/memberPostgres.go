package repository

import (
	"context"
	"database/sql"
	"fmt"

	"groupsend/internal/entity"
)

type memberRepository struct {
	db *sql.DB
}

func NewMemberRepository(db *sql.DB) MemberRepository {
	return &memberRepository{db: db}
}

func (r *memberRepository) GetGroupMembers(ctx context.Context, groupID int64) ([]*entity.GroupMember, error) {
	query := `
		SELECT id, group_id, name, phone, email, chat_id, notes, is_default_recipient, created_at
		FROM group_members
		WHERE group_id = $1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group members: %v", err)
	}
	defer rows.Close()

	var members []*entity.GroupMember
	for rows.Next() {
		var m entity.GroupMember
		err := rows.Scan(
			&m.ID, &m.GroupID, &m.Name, &m.Phone, &m.Email,
			&m.ChatID, &m.Notes, &m.IsDefault, &m.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group member: %v", err)
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

func (r *memberRepository) GetMemberByID(ctx context.Context, id int64) (*entity.GroupMember, error) {
	query := `
		SELECT id, group_id, name, phone, email, chat_id, notes, is_default_recipient, created_at
		FROM group_members
		WHERE id = $1
	`

	var m entity.GroupMember
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.GroupID, &m.Name, &m.Phone, &m.Email,
		&m.ChatID, &m.Notes, &m.IsDefault, &m.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, entity.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group member: %v", err)
	}
	return &m, nil
}

func (r *memberRepository) GetChannelConfigs(ctx context.Context, userID int64) ([]*entity.ChannelConfig, error) {
	query := `
		SELECT user_id, channel, enabled
		FROM channel_configs
		WHERE user_id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get channel configs: %v", err)
	}
	defer rows.Close()

	var configs []*entity.ChannelConfig
	for rows.Next() {
		var c entity.ChannelConfig
		if err := rows.Scan(&c.UserID, &c.Channel, &c.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan channel config: %v", err)
		}
		configs = append(configs, &c)
	}
	return configs, rows.Err()
}

func (r *memberRepository) GetGroupName(ctx context.Context, groupID int64) (string, error) {
	var name string
	err := r.db.QueryRowContext(ctx, `SELECT name FROM groups WHERE id = $1`, groupID).Scan(&name)
	if err == sql.ErrNoRows {
		return "", entity.ErrGroupNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get group name: %v", err)
	}
	return name, nil
}
