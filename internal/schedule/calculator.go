package schedule

import (
	"time"

	"groupsend/internal/entity"
)

const (
	maxScheduleHorizon = 365 * 24 * time.Hour
	maxReminders       = 6
	maxIntervalCount   = 36
)

// recurringCaps bounds the interval count per unit.
var recurringCaps = map[entity.IntervalUnit]int{
	entity.IntervalUnitDays:   31,
	entity.IntervalUnitWeeks:  4,
	entity.IntervalUnitMonths: 12,
	entity.IntervalUnitYears:  1,
}

// apiReminderUnits is the subset of reminder units accepted from the
// compose surface. Hours and minutes exist in the window policy but are
// not offered to end users.
var apiReminderUnits = map[entity.ReminderUnit]bool{
	entity.ReminderUnitMonths: true,
	entity.ReminderUnitWeeks:  true,
	entity.ReminderUnitDays:   true,
}

// ScheduleInput carries the raw scheduling choices from a compose or
// edit request.
type ScheduleInput struct {
	IsScheduled bool
	ScheduledAt *time.Time
	IsRecurring bool
	Recurring   *entity.RecurringInterval
	IsReminders bool
	Reminders   []entity.Reminder
}

type FireKind string

const (
	FireKindReminder FireKind = "reminder"
	FireKindSend     FireKind = "send"
)

// FireTime is one concrete moment the scheduler must call back at.
type FireTime struct {
	Kind     FireKind
	At       time.Time
	Reminder *entity.Reminder
}

// NormalizedSchedule is a self-consistent schedule: every invariant on
// the message scheduling fields holds, and reminders that fell outside
// the window have already been dropped.
type NormalizedSchedule struct {
	IsScheduled bool
	ScheduledAt *time.Time
	IsRecurring bool
	Recurring   *entity.RecurringInterval
	IsReminders bool
	Reminders   []entity.Reminder

	now time.Time
}

// Normalize validates and normalizes raw scheduling intent against now.
// It is pure: no clock reads, no I/O.
func Normalize(in ScheduleInput, now time.Time) (*NormalizedSchedule, error) {
	norm := &NormalizedSchedule{now: now}

	if !in.IsScheduled {
		// Unscheduled send: scheduling and reminder fields are forced
		// empty. Recurrence without a schedule has nothing to anchor
		// the next occurrence to, so it is rejected outright.
		if in.IsRecurring {
			return nil, entity.NewValidationError("recurringInterval", "recurrence requires a scheduled send time")
		}
		return norm, nil
	}

	if in.ScheduledAt == nil {
		return nil, entity.NewValidationError("scheduledAt", "scheduled time is required")
	}
	if !in.ScheduledAt.After(now) {
		return nil, entity.NewValidationError("scheduledAt", "scheduled time must be in the future")
	}
	if in.ScheduledAt.Sub(now) > maxScheduleHorizon {
		return nil, entity.NewValidationError("scheduledAt", "scheduled time must be within one year")
	}

	at := *in.ScheduledAt
	norm.IsScheduled = true
	norm.ScheduledAt = &at

	if in.IsRecurring {
		if err := validateInterval(in.Recurring); err != nil {
			return nil, err
		}
		norm.IsRecurring = true
		norm.Recurring = &entity.RecurringInterval{Count: in.Recurring.Count, Unit: in.Recurring.Unit}
	}

	if in.IsReminders {
		if len(in.Reminders) == 0 {
			return nil, entity.NewValidationError("reminders", "at least one reminder is required")
		}
		if len(in.Reminders) > maxReminders {
			return nil, entity.NewValidationError("reminders", "at most 6 reminders are allowed")
		}

		kept := filterReminders(in.Reminders, at, now)
		if len(kept) == 0 {
			// Every reminder fell outside the remaining window. Not a
			// hard error: the send itself is still valid.
			norm.IsReminders = false
		} else {
			norm.IsReminders = true
			norm.Reminders = kept
		}
	}

	return norm, nil
}

func validateInterval(iv *entity.RecurringInterval) error {
	if iv == nil || iv.Unit == "" {
		return entity.NewValidationError("recurringInterval", "interval count and unit are required")
	}
	limit, ok := recurringCaps[iv.Unit]
	if !ok {
		return entity.NewValidationError("recurringInterval", "unknown interval unit")
	}
	if iv.Count < 1 || iv.Count > maxIntervalCount || iv.Count > limit {
		return entity.NewValidationError("recurringInterval", "interval count out of range for unit")
	}
	return nil
}

// filterReminders dedupes by (count, unit) and drops every reminder the
// window policy no longer permits.
func filterReminders(reminders []entity.Reminder, scheduledAt, now time.Time) []entity.Reminder {
	seen := make(map[entity.ReminderUnit]map[int]bool)
	var kept []entity.Reminder

	for _, r := range reminders {
		if !apiReminderUnits[r.Unit] {
			continue
		}
		if r.Count < 1 || r.Count > maxIntervalCount {
			continue
		}
		if seen[r.Unit] == nil {
			seen[r.Unit] = make(map[int]bool)
		}
		if seen[r.Unit][r.Count] {
			continue
		}
		seen[r.Unit][r.Count] = true

		if r.Count > MaxAllowed(r.Unit, scheduledAt, now) {
			continue
		}
		kept = append(kept, entity.Reminder{Count: r.Count, Unit: r.Unit})
	}
	return kept
}

// FireTimes expands the schedule into the concrete callbacks to enqueue:
// one per surviving reminder plus one for the send. An unscheduled send
// fires at the normalization time.
func (n *NormalizedSchedule) FireTimes() []FireTime {
	if !n.IsScheduled {
		return []FireTime{{Kind: FireKindSend, At: n.now}}
	}

	var fires []FireTime
	for i := range n.Reminders {
		r := n.Reminders[i]
		fires = append(fires, FireTime{
			Kind:     FireKindReminder,
			At:       ReminderFireTime(r, *n.ScheduledAt),
			Reminder: &n.Reminders[i],
		})
	}
	fires = append(fires, FireTime{Kind: FireKindSend, At: *n.ScheduledAt})
	return fires
}

// NextSchedule builds the schedule of the following occurrence of a
// recurring message. Reminders are re-anchored to the new scheduled
// time and re-filtered against the window policy. The one-year compose
// horizon does not apply here: the interval caps already bound how far
// ahead an occurrence can land.
func NextSchedule(m *entity.Message, now time.Time) *NormalizedSchedule {
	next := NextOccurrence(*m.ScheduledAt, *m.Recurring)
	norm := &NormalizedSchedule{
		IsScheduled: true,
		ScheduledAt: &next,
		IsRecurring: true,
		Recurring:   &entity.RecurringInterval{Count: m.Recurring.Count, Unit: m.Recurring.Unit},
		now:         now,
	}

	if m.IsReminders {
		if kept := filterReminders(m.Reminders, next, now); len(kept) > 0 {
			norm.IsReminders = true
			norm.Reminders = kept
		}
	}
	return norm
}

// NextOccurrence computes the scheduled time of the following occurrence
// of a recurring message. Months and years use calendar arithmetic so
// monthly recurrences stay on the same day of month where possible.
func NextOccurrence(scheduledAt time.Time, iv entity.RecurringInterval) time.Time {
	switch iv.Unit {
	case entity.IntervalUnitYears:
		return scheduledAt.AddDate(iv.Count, 0, 0)
	case entity.IntervalUnitMonths:
		return scheduledAt.AddDate(0, iv.Count, 0)
	case entity.IntervalUnitWeeks:
		return scheduledAt.AddDate(0, 0, 7*iv.Count)
	case entity.IntervalUnitDays:
		return scheduledAt.AddDate(0, 0, iv.Count)
	default:
		return scheduledAt
	}
}
