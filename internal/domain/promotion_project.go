package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// GroupRule decides how students end up in project groups.
type GroupRule string

const (
	GroupRuleManual GroupRule = "MANUAL"
	GroupRuleRandom GroupRule = "RANDOM"
	GroupRuleFree   GroupRule = "FREE"
)

// Valid reports whether g is a known rule.
func (g GroupRule) Valid() bool {
	switch g {
	case GroupRuleManual, GroupRuleRandom, GroupRuleFree:
		return true
	}
	return false
}

// MalusTimeType is the unit a late penalty accrues per.
type MalusTimeType string

const (
	MalusPerHour MalusTimeType = "HOUR"
	MalusPerDay  MalusTimeType = "DAY"
	MalusPerWeek MalusTimeType = "WEEK"
)

// Duration returns the length of one unit, or zero for unknown units.
func (m MalusTimeType) Duration() time.Duration {
	switch m {
	case MalusPerHour:
		return time.Hour
	case MalusPerDay:
		return 24 * time.Hour
	case MalusPerWeek:
		return 7 * 24 * time.Hour
	}
	return 0
}

// PromotionProject attaches a project to a promotion with its grouping
// and submission policy.
type PromotionProject struct {
	ID                  uuid.UUID      `json:"id"`
	ProjectID           uuid.UUID      `json:"project_id"`
	PromotionID         uuid.UUID      `json:"promotion_id"`
	MinPerGroup         int            `json:"min_per_group"`
	MaxPerGroup         int            `json:"max_per_group"`
	AllowLateSubmission bool           `json:"allow_late_submission"`
	IsReportRequired    bool           `json:"is_report_required"`
	GroupRule           GroupRule      `json:"group_rule"`
	Malus               *float64       `json:"malus,omitempty"`
	MalusTimeType       *MalusTimeType `json:"malus_time_type,omitempty"`
	StartDate           time.Time      `json:"start_date"`
	EndDate             time.Time      `json:"end_date"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// Validate checks group bounds, the rule, the malus and the period.
func (pp *PromotionProject) Validate(now time.Time, checkPast bool) error {
	if pp.ProjectID == uuid.Nil {
		return NewValidationError("project_id", "cannot be empty", ErrInvalidID)
	}
	if pp.PromotionID == uuid.Nil {
		return NewValidationError("promotion_id", "cannot be empty", ErrInvalidID)
	}
	if pp.MinPerGroup < 1 {
		return NewValidationError("min_per_group", "must be at least 1", nil)
	}
	if pp.MaxPerGroup < pp.MinPerGroup {
		return NewValidationError("max_per_group", "must be greater than or equal to min_per_group", nil)
	}
	if !pp.GroupRule.Valid() {
		return NewValidationError("group_rule", "must be MANUAL, RANDOM or FREE", nil)
	}
	if pp.Malus != nil {
		if *pp.Malus < 0 {
			return NewValidationError("malus", "cannot be negative", nil)
		}
		if pp.MalusTimeType == nil || pp.MalusTimeType.Duration() == 0 {
			return NewValidationError("malus_time_type", "must be HOUR, DAY or WEEK when malus is set", nil)
		}
	}
	return ValidatePeriod(pp.StartDate, pp.EndDate, now, checkPast)
}

// LateMalus returns the penalty for a submission made at submittedAt
// against deadline: malus times the number of started units of lateness.
func (pp *PromotionProject) LateMalus(deadline, submittedAt time.Time) float64 {
	if pp.Malus == nil || pp.MalusTimeType == nil || !submittedAt.After(deadline) {
		return 0
	}
	unit := pp.MalusTimeType.Duration()
	if unit == 0 {
		return 0
	}
	units := math.Ceil(float64(submittedAt.Sub(deadline)) / float64(unit))
	return *pp.Malus * units
}

// PromotionProjectDetail is the expanded view used by teacher and student
// project pages.
type PromotionProjectDetail struct {
	PromotionProject
	Project        Project                   `json:"project"`
	Groups         []ProjectGroupWithMembers `json:"groups"`
	ReportSections []ReportSection           `json:"report_sections"`
}
