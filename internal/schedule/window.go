package schedule

import (
	"time"

	"groupsend/internal/entity"
)

// Fixed unit lengths used for window math. Months are a flat 30 days on
// purpose: the window check is a coarse "does this lead time still fit",
// not calendar arithmetic.
const (
	unitMinute = time.Minute
	unitHour   = time.Hour
	unitDay    = 24 * time.Hour
	unitWeek   = 7 * unitDay
	unitMonth  = 30 * unitDay
)

// minMinuteLead is the smallest minute reminder worth scheduling.
const minMinuteLead = 15

// reminderCaps is the hard ceiling per unit regardless of how far away
// the send is.
var reminderCaps = map[entity.ReminderUnit]int{
	entity.ReminderUnitMinutes: 59,
	entity.ReminderUnitHours:   24,
	entity.ReminderUnitDays:    15,
	entity.ReminderUnitWeeks:   3,
	entity.ReminderUnitMonths:  6,
}

// reminderUnitOrder lists units smallest first, which is the order the
// compose surface presents them in.
var reminderUnitOrder = []entity.ReminderUnit{
	entity.ReminderUnitMinutes,
	entity.ReminderUnitHours,
	entity.ReminderUnitDays,
	entity.ReminderUnitWeeks,
	entity.ReminderUnitMonths,
}

func unitDuration(unit entity.ReminderUnit) time.Duration {
	switch unit {
	case entity.ReminderUnitMinutes:
		return unitMinute
	case entity.ReminderUnitHours:
		return unitHour
	case entity.ReminderUnitDays:
		return unitDay
	case entity.ReminderUnitWeeks:
		return unitWeek
	case entity.ReminderUnitMonths:
		return unitMonth
	default:
		return 0
	}
}

// MaxAllowed returns the largest reminder count permitted for unit given
// the time remaining until scheduledAt. Zero means the unit is not legal
// at all.
func MaxAllowed(unit entity.ReminderUnit, scheduledAt, now time.Time) int {
	d := unitDuration(unit)
	if d <= 0 {
		return 0
	}

	remaining := scheduledAt.Sub(now)
	if remaining <= 0 {
		return 0
	}

	fit := int(remaining / d)
	if fit < 1 {
		return 0
	}

	// Minute reminders under 15 minutes of lead time are pointless;
	// below that threshold no unit is legal at all.
	if unit == entity.ReminderUnitMinutes && fit < minMinuteLead {
		return 0
	}

	if limit, ok := reminderCaps[unit]; ok && fit > limit {
		return limit
	}
	return fit
}

// LegalUnits returns every reminder unit with at least one whole unit of
// lead time left before scheduledAt. Less than 15 minutes away means no
// unit is legal and reminders must be dropped upstream.
func LegalUnits(scheduledAt, now time.Time) []entity.ReminderUnit {
	var units []entity.ReminderUnit
	for _, unit := range reminderUnitOrder {
		if MaxAllowed(unit, scheduledAt, now) >= 1 {
			units = append(units, unit)
		}
	}
	return units
}

// ReminderFireTime computes the absolute moment a reminder goes out:
// count*unit before the scheduled send.
func ReminderFireTime(r entity.Reminder, scheduledAt time.Time) time.Time {
	return scheduledAt.Add(-time.Duration(r.Count) * unitDuration(r.Unit))
}
