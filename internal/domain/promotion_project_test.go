package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestPromotionProjectValidate(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	base := func() PromotionProject {
		return PromotionProject{
			ProjectID:   uuid.New(),
			PromotionID: uuid.New(),
			MinPerGroup: 2,
			MaxPerGroup: 4,
			GroupRule:   GroupRuleRandom,
			StartDate:   now.Add(time.Hour),
			EndDate:     now.Add(72 * time.Hour),
		}
	}

	pp := base()
	assert.NoError(t, pp.Validate(now, true))

	pp = base()
	pp.MaxPerGroup = 1
	assert.ErrorContains(t, pp.Validate(now, true), "max_per_group")

	pp = base()
	pp.MinPerGroup = 0
	assert.ErrorContains(t, pp.Validate(now, true), "min_per_group")

	pp = base()
	pp.GroupRule = "ALPHABETICAL"
	assert.ErrorContains(t, pp.Validate(now, true), "group_rule")

	pp = base()
	pp.Malus = ptr(2.0)
	assert.ErrorContains(t, pp.Validate(now, true), "malus_time_type")

	pp.MalusTimeType = ptr(MalusPerDay)
	assert.NoError(t, pp.Validate(now, true))
}

func TestLateMalus(t *testing.T) {
	deadline := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		malus     *float64
		unit      *MalusTimeType
		submitted time.Time
		want      float64
	}{
		{name: "on time", malus: ptr(1.5), unit: ptr(MalusPerHour), submitted: deadline, want: 0},
		{name: "no malus configured", submitted: deadline.Add(5 * time.Hour), want: 0},
		{name: "one minute late counts a whole hour", malus: ptr(1.5), unit: ptr(MalusPerHour), submitted: deadline.Add(time.Minute), want: 1.5},
		{name: "three hours late", malus: ptr(0.5), unit: ptr(MalusPerHour), submitted: deadline.Add(3 * time.Hour), want: 1.5},
		{name: "day and a bit", malus: ptr(2.0), unit: ptr(MalusPerDay), submitted: deadline.Add(25 * time.Hour), want: 4},
		{name: "week unit", malus: ptr(3.0), unit: ptr(MalusPerWeek), submitted: deadline.Add(24 * time.Hour), want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pp := PromotionProject{Malus: tt.malus, MalusTimeType: tt.unit}
			assert.InDelta(t, tt.want, pp.LateMalus(deadline, tt.submitted), 1e-9)
		})
	}
}
