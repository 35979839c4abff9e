package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupsend/internal/entity"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestNormalizeUnscheduled(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Scheduling and reminder fields are forced empty for an immediate
	// send, even when the caller supplied them.
	in := ScheduleInput{
		IsScheduled: false,
		ScheduledAt: timePtr(now.Add(time.Hour)),
		IsReminders: true,
		Reminders:   []entity.Reminder{{Count: 1, Unit: entity.ReminderUnitDays}},
	}

	norm, err := Normalize(in, now)
	require.NoError(t, err)
	assert.False(t, norm.IsScheduled)
	assert.Nil(t, norm.ScheduledAt)
	assert.False(t, norm.IsReminders)
	assert.Empty(t, norm.Reminders)

	fires := norm.FireTimes()
	require.Len(t, fires, 1)
	assert.Equal(t, FireKindSend, fires[0].Kind)
	assert.Equal(t, now, fires[0].At)
}

func TestNormalizeRejectsRecurrenceWithoutSchedule(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	in := ScheduleInput{
		IsScheduled: false,
		IsRecurring: true,
		Recurring:   &entity.RecurringInterval{Count: 1, Unit: entity.IntervalUnitWeeks},
	}

	_, err := Normalize(in, now)
	var verr *entity.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "recurringInterval", verr.Field)
}

func TestNormalizeScheduledAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		scheduledAt *time.Time
		wantField   string
	}{
		{
			name:        "missing scheduled time",
			scheduledAt: nil,
			wantField:   "scheduledAt",
		},
		{
			name:        "scheduled time in the past",
			scheduledAt: timePtr(now.Add(-time.Minute)),
			wantField:   "scheduledAt",
		},
		{
			name:        "scheduled time exactly now",
			scheduledAt: timePtr(now),
			wantField:   "scheduledAt",
		},
		{
			name:        "scheduled time beyond one year",
			scheduledAt: timePtr(now.Add(366 * 24 * time.Hour)),
			wantField:   "scheduledAt",
		},
		{
			name:        "valid future time",
			scheduledAt: timePtr(now.Add(48 * time.Hour)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(ScheduleInput{IsScheduled: true, ScheduledAt: tt.scheduledAt}, now)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *entity.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestNormalizeRecurringInterval(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	at := timePtr(now.Add(40 * 24 * time.Hour))

	tests := []struct {
		name     string
		interval *entity.RecurringInterval
		wantErr  bool
	}{
		{
			name:     "five weeks exceeds the weeks cap of four",
			interval: &entity.RecurringInterval{Count: 5, Unit: entity.IntervalUnitWeeks},
			wantErr:  true,
		},
		{
			name:     "missing interval",
			interval: nil,
			wantErr:  true,
		},
		{
			name:     "zero count",
			interval: &entity.RecurringInterval{Count: 0, Unit: entity.IntervalUnitDays},
			wantErr:  true,
		},
		{
			name:     "thirty two days exceeds the days cap",
			interval: &entity.RecurringInterval{Count: 32, Unit: entity.IntervalUnitDays},
			wantErr:  true,
		},
		{
			name:     "two years exceeds the years cap of one",
			interval: &entity.RecurringInterval{Count: 2, Unit: entity.IntervalUnitYears},
			wantErr:  true,
		},
		{
			name:     "unknown unit",
			interval: &entity.RecurringInterval{Count: 1, Unit: "fortnights"},
			wantErr:  true,
		},
		{
			name:     "two weeks is fine",
			interval: &entity.RecurringInterval{Count: 2, Unit: entity.IntervalUnitWeeks},
		},
		{
			name:     "twelve months is fine",
			interval: &entity.RecurringInterval{Count: 12, Unit: entity.IntervalUnitMonths},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := ScheduleInput{
				IsScheduled: true,
				ScheduledAt: at,
				IsRecurring: true,
				Recurring:   tt.interval,
			}
			_, err := Normalize(in, now)
			if tt.wantErr {
				var verr *entity.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, "recurringInterval", verr.Field)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizeDropsOutOfWindowReminders(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Ten minutes out: a one-day reminder cannot fit, and with the list
	// emptied IsReminders flips to false rather than erroring.
	in := ScheduleInput{
		IsScheduled: true,
		ScheduledAt: timePtr(now.Add(10 * time.Minute)),
		IsReminders: true,
		Reminders:   []entity.Reminder{{Count: 1, Unit: entity.ReminderUnitDays}},
	}

	norm, err := Normalize(in, now)
	require.NoError(t, err)
	assert.False(t, norm.IsReminders)
	assert.Empty(t, norm.Reminders)

	fires := norm.FireTimes()
	require.Len(t, fires, 1)
	assert.Equal(t, FireKindSend, fires[0].Kind)
}

func TestNormalizeReminderDeduplication(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	at := now.Add(40 * 24 * time.Hour)

	in := ScheduleInput{
		IsScheduled: true,
		ScheduledAt: &at,
		IsReminders: true,
		Reminders: []entity.Reminder{
			{Count: 2, Unit: entity.ReminderUnitDays},
			{Count: 2, Unit: entity.ReminderUnitDays},
			{Count: 1, Unit: entity.ReminderUnitWeeks},
			{Count: 2, Unit: entity.ReminderUnitMonths}, // 60d lead, outside 40d window
		},
	}

	norm, err := Normalize(in, now)
	require.NoError(t, err)
	require.True(t, norm.IsReminders)
	require.Len(t, norm.Reminders, 2)
	assert.Equal(t, entity.Reminder{Count: 2, Unit: entity.ReminderUnitDays}, norm.Reminders[0])
	assert.Equal(t, entity.Reminder{Count: 1, Unit: entity.ReminderUnitWeeks}, norm.Reminders[1])

	// One callback per surviving reminder plus the send itself.
	fires := norm.FireTimes()
	require.Len(t, fires, 3)
	assert.Equal(t, FireKindReminder, fires[0].Kind)
	assert.Equal(t, at.Add(-48*time.Hour), fires[0].At)
	assert.Equal(t, FireKindReminder, fires[1].Kind)
	assert.Equal(t, at.Add(-7*24*time.Hour), fires[1].At)
	assert.Equal(t, FireKindSend, fires[2].Kind)
	assert.Equal(t, at, fires[2].At)
}

func TestNormalizeEmptyReminderListIsAnError(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	at := now.Add(40 * 24 * time.Hour)

	in := ScheduleInput{
		IsScheduled: true,
		ScheduledAt: &at,
		IsReminders: true,
	}

	_, err := Normalize(in, now)
	var verr *entity.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "reminders", verr.Field)
}

func TestNextOccurrence(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		interval entity.RecurringInterval
		want     time.Time
	}{
		{
			name:     "two weeks",
			interval: entity.RecurringInterval{Count: 2, Unit: entity.IntervalUnitWeeks},
			want:     time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC),
		},
		{
			name:     "ten days",
			interval: entity.RecurringInterval{Count: 10, Unit: entity.IntervalUnitDays},
			want:     time.Date(2026, 3, 11, 9, 30, 0, 0, time.UTC),
		},
		{
			name:     "one month keeps the day of month",
			interval: entity.RecurringInterval{Count: 1, Unit: entity.IntervalUnitMonths},
			want:     time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC),
		},
		{
			name:     "one year",
			interval: entity.RecurringInterval{Count: 1, Unit: entity.IntervalUnitYears},
			want:     time.Date(2027, 3, 1, 9, 30, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextOccurrence(at, tt.interval))
		})
	}
}
