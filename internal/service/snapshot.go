package service

import (
	"context"
	"fmt"

	repository "groupsend/internal/database/postgres"
	"groupsend/internal/entity"
)

// Snapshotter freezes a group's membership into a per-message recipient
// list, so later membership edits cannot change who an already
// finalized message goes to.
type Snapshotter struct {
	memberRepo repository.MemberRepository
}

func NewSnapshotter(memberRepo repository.MemberRepository) *Snapshotter {
	return &Snapshotter{memberRepo: memberRepo}
}

// Snapshot copies each eligible member's contact fields along with the
// resolved inclusion flag. Members without any contact address are not
// eligible and never appear in the snapshot. include overrides the
// group default per member id.
func (s *Snapshotter) Snapshot(ctx context.Context, groupID int64, include map[int64]bool) ([]entity.RecipientSnapshot, error) {
	members, err := s.memberRepo.GetGroupMembers(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load group members: %w", err)
	}

	var snapshot []entity.RecipientSnapshot
	for _, m := range members {
		if !m.Reachable() {
			continue
		}

		isRecipient := m.IsDefault
		if explicit, ok := include[m.ID]; ok {
			isRecipient = explicit
		}

		snapshot = append(snapshot, entity.RecipientSnapshot{
			MemberID:    m.ID,
			Name:        m.Name,
			Phone:       m.Phone,
			Email:       m.Email,
			ChatID:      m.ChatID,
			Notes:       m.Notes,
			IsRecipient: isRecipient,
		})
	}

	return snapshot, nil
}
