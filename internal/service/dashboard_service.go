package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/store"
)

// Overview summarizes a promotion project for its teacher.
type Overview struct {
	ProjectID          uuid.UUID `json:"project_id"`
	ProjectName        string    `json:"project_name"`
	ProjectDescription *string   `json:"project_description,omitempty"`
	TotalGroups        int       `json:"total_groups"`
	SubmittedGroups    int       `json:"submitted_groups"`
	PendingGroups      int       `json:"pending_groups"`
	ComplianceRate     float64   `json:"compliance_rate"`
	AverageSimilarity  *float64  `json:"average_similarity"`
}

// StudentRef is a group member as listed on dashboards.
type StudentRef struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// DeliverableStatus is one deliverable's submission state.
type DeliverableStatus struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Submitted   bool       `json:"submitted"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	IsLate      bool       `json:"is_late"`
	Malus       float64    `json:"malus"`
}

// GroupSubmissions lists a group's members and deliverables.
type GroupSubmissions struct {
	GroupID      uuid.UUID           `json:"group_id"`
	GroupName    string              `json:"group_name"`
	Students     []StudentRef        `json:"students"`
	Deliverables []DeliverableStatus `json:"deliverables"`
}

// RuleCheck is one rule's outcome for a group.
type RuleCheck struct {
	RuleID   uuid.UUID       `json:"rule_id"`
	RuleType domain.RuleType `json:"rule_type"`
	Passed   bool            `json:"passed"`
	Message  string          `json:"message"`
}

// GroupCompliance totals a group's rule results.
type GroupCompliance struct {
	GroupID   uuid.UUID   `json:"group_id"`
	GroupName string      `json:"group_name"`
	Total     int         `json:"total"`
	Passed    int         `json:"passed"`
	Failed    int         `json:"failed"`
	Rules     []RuleCheck `json:"rules"`
}

// DashboardService builds the teacher's promotion project views.
type DashboardService interface {
	Overview(ctx context.Context, promotionProjectID uuid.UUID) (*Overview, error)
	Submissions(ctx context.Context, promotionProjectID uuid.UUID) ([]GroupSubmissions, error)
	Compliance(ctx context.Context, promotionProjectID uuid.UUID) ([]GroupCompliance, error)
	// Similarity returns the pair results of the latest completed analysis,
	// highest score first.
	Similarity(ctx context.Context, promotionProjectID uuid.UUID) ([]domain.SimilarityResultView, error)
}

type dashboardService struct {
	promotionProjects store.PromotionProjectStore
	projects          store.ProjectStore
	groups            store.ProjectGroupStore
	deliverables      store.DeliverableStore
	similarity        store.SimilarityStore
	logger            *slog.Logger
	now               func() time.Time
}

// NewDashboardService creates a DashboardService.
func NewDashboardService(
	promotionProjects store.PromotionProjectStore,
	projects store.ProjectStore,
	groups store.ProjectGroupStore,
	deliverables store.DeliverableStore,
	similarity store.SimilarityStore,
	logger *slog.Logger,
) DashboardService {
	return &dashboardService{
		promotionProjects: promotionProjects,
		projects:          projects,
		groups:            groups,
		deliverables:      deliverables,
		similarity:        similarity,
		logger:            logger.With("component", "dashboard_service"),
		now:               time.Now,
	}
}

func (s *dashboardService) Overview(ctx context.Context, promotionProjectID uuid.UUID) (*Overview, error) {
	pp, err := s.promotionProjects.GetByID(ctx, promotionProjectID)
	if err != nil {
		return nil, err
	}
	project, err := s.projects.GetByID(ctx, pp.ProjectID)
	if err != nil {
		return nil, err
	}
	groups, err := s.groups.ListWithMembers(ctx, pp.ID)
	if err != nil {
		return nil, err
	}
	deliverables, err := s.deliverables.ListByPromotionProject(ctx, pp.ID)
	if err != nil {
		return nil, err
	}
	results, err := s.deliverables.ListRuleResultsByPromotionProject(ctx, pp.ID)
	if err != nil {
		return nil, err
	}

	submitted := make(map[uuid.UUID]bool)
	for _, d := range deliverables {
		if d.IsSubmitted() {
			submitted[d.ProjectGroupID] = true
		}
	}
	var total, passed int
	for _, rs := range results {
		for _, r := range rs {
			total++
			if r.IsValid {
				passed++
			}
		}
	}

	o := &Overview{
		ProjectID:          project.ID,
		ProjectName:        project.Name,
		ProjectDescription: project.Description,
		TotalGroups:        len(groups),
		SubmittedGroups:    len(submitted),
		PendingGroups:      len(groups) - len(submitted),
	}
	if o.PendingGroups < 0 {
		o.PendingGroups = 0
	}
	if total > 0 {
		o.ComplianceRate = round2(float64(passed) / float64(total) * 100)
	}

	a, err := s.similarity.LatestAnalysis(ctx, pp.ID, domain.AnalysisCompleted)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, err
	case a.Summary != nil:
		avg := a.Summary.AverageSimilarity
		o.AverageSimilarity = &avg
	}
	return o, nil
}

func (s *dashboardService) Submissions(ctx context.Context, promotionProjectID uuid.UUID) ([]GroupSubmissions, error) {
	pp, err := s.promotionProjects.GetByID(ctx, promotionProjectID)
	if err != nil {
		return nil, err
	}
	groups, err := s.groups.ListWithMembers(ctx, pp.ID)
	if err != nil {
		return nil, err
	}
	deliverables, err := s.deliverables.ListByPromotionProject(ctx, pp.ID)
	if err != nil {
		return nil, err
	}

	byGroup := make(map[uuid.UUID][]DeliverableStatus)
	now := s.now()
	for _, d := range deliverables {
		st := DeliverableStatus{
			ID:          d.ID,
			Name:        d.Name,
			Submitted:   d.IsSubmitted(),
			SubmittedAt: d.SubmittedAt,
		}
		at := now
		if d.SubmittedAt != nil {
			at = *d.SubmittedAt
		}
		st.IsLate = d.IsLateAt(at)
		if st.IsLate && st.Submitted {
			st.Malus = pp.LateMalus(*d.Deadline, *d.SubmittedAt)
		}
		byGroup[d.ProjectGroupID] = append(byGroup[d.ProjectGroupID], st)
	}

	out := make([]GroupSubmissions, 0, len(groups))
	for _, g := range groups {
		gs := GroupSubmissions{
			GroupID:      g.ID,
			GroupName:    g.Name,
			Students:     make([]StudentRef, 0, len(g.Students)),
			Deliverables: byGroup[g.ID],
		}
		if gs.Deliverables == nil {
			gs.Deliverables = []DeliverableStatus{}
		}
		for _, u := range g.Students {
			gs.Students = append(gs.Students, StudentRef{ID: u.ProfileID, Name: u.FullName(), Email: u.Email})
		}
		out = append(out, gs)
	}
	return out, nil
}

func (s *dashboardService) Compliance(ctx context.Context, promotionProjectID uuid.UUID) ([]GroupCompliance, error) {
	if _, err := s.promotionProjects.GetByID(ctx, promotionProjectID); err != nil {
		return nil, err
	}
	groups, err := s.groups.ListWithMembers(ctx, promotionProjectID)
	if err != nil {
		return nil, err
	}
	results, err := s.deliverables.ListRuleResultsByPromotionProject(ctx, promotionProjectID)
	if err != nil {
		return nil, err
	}

	out := make([]GroupCompliance, 0, len(groups))
	for _, g := range groups {
		gc := GroupCompliance{GroupID: g.ID, GroupName: g.Name, Rules: []RuleCheck{}}
		for _, r := range results[g.ID] {
			gc.Total++
			if r.IsValid {
				gc.Passed++
			} else {
				gc.Failed++
			}
			gc.Rules = append(gc.Rules, RuleCheck{
				RuleID:   r.RuleID,
				RuleType: r.RuleType,
				Passed:   r.IsValid,
				Message:  r.Message,
			})
		}
		out = append(out, gc)
	}
	return out, nil
}

func (s *dashboardService) Similarity(ctx context.Context, promotionProjectID uuid.UUID) ([]domain.SimilarityResultView, error) {
	if _, err := s.promotionProjects.GetByID(ctx, promotionProjectID); err != nil {
		return nil, err
	}
	a, err := s.similarity.LatestAnalysis(ctx, promotionProjectID, domain.AnalysisCompleted)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return []domain.SimilarityResultView{}, nil
		}
		return nil, err
	}
	return s.similarity.ListResults(ctx, a.ID)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
