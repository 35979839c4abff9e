package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"groupsend/internal/entity"
)

func TestMaxAllowed(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		unit        entity.ReminderUnit
		scheduledAt time.Time
		want        int
	}{
		{
			name:        "ten days out allows nine day-reminders",
			unit:        entity.ReminderUnitDays,
			scheduledAt: now.Add(9*24*time.Hour + 12*time.Hour),
			want:        9,
		},
		{
			name:        "days are capped at 15 even far out",
			unit:        entity.ReminderUnitDays,
			scheduledAt: now.Add(200 * 24 * time.Hour),
			want:        15,
		},
		{
			name:        "weeks are capped at 3",
			unit:        entity.ReminderUnitWeeks,
			scheduledAt: now.Add(10 * 7 * 24 * time.Hour),
			want:        3,
		},
		{
			name:        "months are capped at 6",
			unit:        entity.ReminderUnitMonths,
			scheduledAt: now.Add(365 * 24 * time.Hour),
			want:        6,
		},
		{
			name:        "month counts as a flat 30 days",
			unit:        entity.ReminderUnitMonths,
			scheduledAt: now.Add(31 * 24 * time.Hour),
			want:        1,
		},
		{
			name:        "less than one unit remaining is illegal",
			unit:        entity.ReminderUnitDays,
			scheduledAt: now.Add(10 * time.Minute),
			want:        0,
		},
		{
			name:        "past schedule allows nothing",
			unit:        entity.ReminderUnitMinutes,
			scheduledAt: now.Add(-time.Hour),
			want:        0,
		},
		{
			name:        "minutes are capped at 59",
			unit:        entity.ReminderUnitMinutes,
			scheduledAt: now.Add(3 * time.Hour),
			want:        59,
		},
		{
			name:        "hours are capped at 24",
			unit:        entity.ReminderUnitHours,
			scheduledAt: now.Add(5 * 24 * time.Hour),
			want:        24,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaxAllowed(tt.unit, tt.scheduledAt, now)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLegalUnits(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		scheduledAt time.Time
		want        []entity.ReminderUnit
	}{
		{
			name:        "under 15 minutes away no unit is legal",
			scheduledAt: now.Add(10 * time.Minute),
			want:        nil,
		},
		{
			name:        "two hours away allows minutes and hours",
			scheduledAt: now.Add(2 * time.Hour),
			want:        []entity.ReminderUnit{entity.ReminderUnitMinutes, entity.ReminderUnitHours},
		},
		{
			name:        "forty days away allows everything",
			scheduledAt: now.Add(40 * 24 * time.Hour),
			want: []entity.ReminderUnit{
				entity.ReminderUnitMinutes,
				entity.ReminderUnitHours,
				entity.ReminderUnitDays,
				entity.ReminderUnitWeeks,
				entity.ReminderUnitMonths,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LegalUnits(tt.scheduledAt, now)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReminderFireTime(t *testing.T) {
	scheduledAt := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

	r := entity.Reminder{Count: 2, Unit: entity.ReminderUnitWeeks}
	assert.Equal(t, scheduledAt.Add(-14*24*time.Hour), ReminderFireTime(r, scheduledAt))

	r = entity.Reminder{Count: 3, Unit: entity.ReminderUnitDays}
	assert.Equal(t, scheduledAt.Add(-72*time.Hour), ReminderFireTime(r, scheduledAt))
}
