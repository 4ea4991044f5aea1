package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mygeslike/api/internal/domain"
)

func keepOrder(int, func(i, j int)) {}

func newPromotionProjectTestService(pps *mockPromotionProjectStore, promotions *mockPromotionStore, groups *mockGroupStore) *promotionProjectService {
	projects := &mockProjectStore{GetByIDFn: func(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
		return &domain.Project{ID: id, Name: "Compiler"}, nil
	}}
	svc := NewPromotionProjectService(pps, promotions, projects, groups, nil, noTx, quietLogger()).(*promotionProjectService)
	svc.shuffle = keepOrder
	return svc
}

func TestPromotionProjectService_CreateRandomAssignsGroups(t *testing.T) {
	students := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	promotions := &mockPromotionStore{
		GetByIDFn: func(ctx context.Context, id uuid.UUID) (*domain.Promotion, error) {
			return &domain.Promotion{ID: id}, nil
		},
		ListStudentIDsFn: func(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) { return students, nil },
	}
	var createdPP *domain.PromotionProject
	pps := &mockPromotionProjectStore{CreateFn: func(ctx context.Context, pp *domain.PromotionProject) error {
		createdPP = pp
		return nil
	}}
	var names []string
	members := map[uuid.UUID][]uuid.UUID{}
	groups := &mockGroupStore{
		CreateFn: func(ctx context.Context, g *domain.ProjectGroup) error {
			names = append(names, g.Name)
			return nil
		},
		AddStudentFn: func(ctx context.Context, m domain.ProjectGroupStudent) error {
			assert.Equal(t, createdPP.ID, m.PromotionProjectID)
			members[m.ProjectGroupID] = append(members[m.ProjectGroupID], m.StudentID)
			return nil
		},
	}
	svc := newPromotionProjectTestService(pps, promotions, groups)

	start := time.Now().UTC().AddDate(0, 0, 1)
	pp, err := svc.Create(context.Background(), PromotionProjectInput{
		ProjectID:   uuid.New(),
		PromotionID: uuid.New(),
		MinPerGroup: 2,
		MaxPerGroup: 3,
		GroupRule:   domain.GroupRuleRandom,
		StartDate:   start,
		EndDate:     start.AddDate(0, 1, 0),
	})
	require.NoError(t, err)
	assert.Same(t, createdPP, pp)
	assert.Equal(t, []string{"Group 1", "Group 2"}, names)

	var sizes []int
	total := 0
	for _, m := range members {
		sizes = append(sizes, len(m))
		total += len(m)
	}
	assert.ElementsMatch(t, []int{3, 2}, sizes)
	assert.Equal(t, len(students), total)
}

func TestPromotionProjectService_CreateRejectsBadBounds(t *testing.T) {
	svc := newPromotionProjectTestService(&mockPromotionProjectStore{}, &mockPromotionStore{}, &mockGroupStore{})
	start := time.Now().UTC().AddDate(0, 0, 1)

	_, err := svc.Create(context.Background(), PromotionProjectInput{
		ProjectID:   uuid.New(),
		PromotionID: uuid.New(),
		MinPerGroup: 4,
		MaxPerGroup: 2,
		StartDate:   start,
		EndDate:     start.AddDate(0, 1, 0),
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPromotionProjectService_UpdateGroupingRules(t *testing.T) {
	start := time.Now().UTC().AddDate(0, 0, -3)
	existing := func(rule domain.GroupRule) *domain.PromotionProject {
		return &domain.PromotionProject{
			ID:          uuid.New(),
			ProjectID:   uuid.New(),
			PromotionID: uuid.New(),
			MinPerGroup: 2,
			MaxPerGroup: 3,
			GroupRule:   rule,
			StartDate:   start,
			EndDate:     start.AddDate(0, 2, 0),
		}
	}
	random := domain.GroupRuleRandom
	four := 4

	tests := []struct {
		name    string
		current domain.GroupRule
		groups  int
		in      UpdatePromotionProjectInput
		wantErr bool
	}{
		{"switch to random with groups", domain.GroupRuleManual, 2, UpdatePromotionProjectInput{GroupRule: &random}, true},
		{"resize under random", domain.GroupRuleRandom, 2, UpdatePromotionProjectInput{MaxPerGroup: &four}, true},
		{"resize under manual", domain.GroupRuleManual, 2, UpdatePromotionProjectInput{MaxPerGroup: &four}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pp := existing(tt.current)
			pps := &mockPromotionProjectStore{
				GetByIDFn: func(ctx context.Context, id uuid.UUID) (*domain.PromotionProject, error) { return pp, nil },
				UpdateFn:  func(ctx context.Context, pp *domain.PromotionProject) error { return nil },
			}
			groups := &mockGroupStore{CountFn: func(ctx context.Context, id uuid.UUID) (int, error) { return tt.groups, nil }}
			svc := newPromotionProjectTestService(pps, &mockPromotionStore{}, groups)

			_, err := svc.Update(context.Background(), pp.ID, tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 4, pp.MaxPerGroup)
		})
	}
}

func TestPromotionProjectService_SwitchToRandomAssigns(t *testing.T) {
	start := time.Now().UTC().AddDate(0, 0, -3)
	pp := &domain.PromotionProject{
		ID: uuid.New(), ProjectID: uuid.New(), PromotionID: uuid.New(),
		MinPerGroup: 1, MaxPerGroup: 2, GroupRule: domain.GroupRuleManual,
		StartDate: start, EndDate: start.AddDate(0, 2, 0),
	}
	pps := &mockPromotionProjectStore{
		GetByIDFn: func(ctx context.Context, id uuid.UUID) (*domain.PromotionProject, error) { return pp, nil },
		UpdateFn:  func(ctx context.Context, pp *domain.PromotionProject) error { return nil },
	}
	promotions := &mockPromotionStore{ListStudentIDsFn: func(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
		return []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}, nil
	}}
	created, assigned := 0, 0
	groups := &mockGroupStore{
		CountFn:      func(ctx context.Context, id uuid.UUID) (int, error) { return 0, nil },
		CreateFn:     func(ctx context.Context, g *domain.ProjectGroup) error { created++; return nil },
		AddStudentFn: func(ctx context.Context, m domain.ProjectGroupStudent) error { assigned++; return nil },
	}
	svc := newPromotionProjectTestService(pps, promotions, groups)

	random := domain.GroupRuleRandom
	out, err := svc.Update(context.Background(), pp.ID, UpdatePromotionProjectInput{GroupRule: &random})
	require.NoError(t, err)
	assert.Equal(t, domain.GroupRuleRandom, out.GroupRule)
	assert.Equal(t, 2, created)
	assert.Equal(t, 3, assigned)
}
