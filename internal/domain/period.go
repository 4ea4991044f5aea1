package domain

import "time"

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ValidatePeriod enforces the scheduling rules shared by promotions and
// promotion projects. checkPast is false when an update leaves the start
// date untouched, so that running periods stay editable.
func ValidatePeriod(start, end, now time.Time, checkPast bool) error {
	if start.IsZero() {
		return NewValidationError("start_date", "is required", nil)
	}
	if end.IsZero() {
		return NewValidationError("end_date", "is required", nil)
	}
	if checkPast && start.Before(StartOfDay(now)) {
		return NewValidationError("start_date", "cannot be in the past", nil)
	}
	if start.Equal(end) {
		return NewValidationError("end_date", "cannot be the same as start_date", nil)
	}
	if end.Before(start) {
		return NewValidationError("end_date", "must be after start_date", nil)
	}
	return nil
}
