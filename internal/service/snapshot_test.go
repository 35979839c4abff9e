package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupsend/internal/entity"
)

func TestSnapshot_IncludeOverridesDefaults(t *testing.T) {
	memberRepo := &fakeMemberRepo{members: testMembers()}
	snapshotter := NewSnapshotter(memberRepo)

	// Deselect a default recipient, select a non-default one.
	snapshot, err := snapshotter.Snapshot(context.Background(), 7, map[int64]bool{
		2: false,
		5: true,
	})
	require.NoError(t, err)

	byMember := make(map[int64]entity.RecipientSnapshot, len(snapshot))
	for _, snap := range snapshot {
		byMember[snap.MemberID] = snap
	}

	assert.True(t, byMember[1].IsRecipient, "untouched default stays selected")
	assert.False(t, byMember[2].IsRecipient, "explicit deselect wins over default")
	assert.True(t, byMember[5].IsRecipient, "explicit select wins over default")
	_, hasUnreachable := byMember[4]
	assert.False(t, hasUnreachable, "members without contact data are not snapshotted")
}

func TestSnapshot_CopiesContactFields(t *testing.T) {
	memberRepo := &fakeMemberRepo{members: testMembers()}
	snapshotter := NewSnapshotter(memberRepo)

	snapshot, err := snapshotter.Snapshot(context.Background(), 7, nil)
	require.NoError(t, err)
	require.NotEmpty(t, snapshot)

	first := snapshot[0]
	assert.Equal(t, "Anna", first.Name)
	assert.Equal(t, "+4915550001", first.Phone)
	assert.Equal(t, "anna@example.com", first.Email)
	assert.Zero(t, first.ID, "row id is assigned on persist, not here")
}
