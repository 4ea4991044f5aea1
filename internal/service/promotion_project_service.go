package service

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/domain/grouping"
	"github.com/mygeslike/api/internal/platform/logger"
	"github.com/mygeslike/api/internal/store"
)

// PromotionProjectInput attaches a project to a promotion.
type PromotionProjectInput struct {
	ProjectID           uuid.UUID
	PromotionID         uuid.UUID
	MinPerGroup         int
	MaxPerGroup         int
	AllowLateSubmission bool
	IsReportRequired    bool
	GroupRule           domain.GroupRule
	Malus               *float64
	MalusTimeType       *domain.MalusTimeType
	StartDate           time.Time
	EndDate             time.Time
}

// UpdatePromotionProjectInput is a partial update.
type UpdatePromotionProjectInput struct {
	MinPerGroup         *int
	MaxPerGroup         *int
	AllowLateSubmission *bool
	IsReportRequired    *bool
	GroupRule           *domain.GroupRule
	Malus               *float64
	MalusTimeType       *domain.MalusTimeType
	StartDate           *time.Time
	EndDate             *time.Time
}

// PromotionProjectService manages projects attached to promotions.
type PromotionProjectService interface {
	// Create attaches the project. With the RANDOM rule the promotion's
	// students are split into groups in the same transaction.
	Create(ctx context.Context, in PromotionProjectInput) (*domain.PromotionProject, error)
	Update(ctx context.Context, id uuid.UUID, in UpdatePromotionProjectInput) (*domain.PromotionProject, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListForStudent(ctx context.Context, studentID uuid.UUID) ([]domain.PromotionProject, error)
	// DetailForTeacher and DetailForStudent look a promotion project up by
	// its project name, restricted to what the caller can see.
	DetailForTeacher(ctx context.Context, teacherID uuid.UUID, projectName string) (*domain.PromotionProjectDetail, error)
	DetailForStudent(ctx context.Context, studentID uuid.UUID, projectName string) (*domain.PromotionProjectDetail, error)
}

type promotionProjectService struct {
	promotionProjects store.PromotionProjectStore
	promotions        store.PromotionStore
	projects          store.ProjectStore
	groups            store.ProjectGroupStore
	sections          store.ReportSectionStore
	tx                store.TxManager
	logger            *slog.Logger
	shuffle           grouping.Shuffler
	now               func() time.Time
}

// NewPromotionProjectService creates a PromotionProjectService.
func NewPromotionProjectService(
	promotionProjects store.PromotionProjectStore,
	promotions store.PromotionStore,
	projects store.ProjectStore,
	groups store.ProjectGroupStore,
	sections store.ReportSectionStore,
	tx store.TxManager,
	logger *slog.Logger,
) PromotionProjectService {
	return &promotionProjectService{
		promotionProjects: promotionProjects,
		promotions:        promotions,
		projects:          projects,
		groups:            groups,
		sections:          sections,
		tx:                tx,
		logger:            logger.With("component", "promotion_project_service"),
		shuffle:           grouping.DefaultShuffler,
		now:               time.Now,
	}
}

func (s *promotionProjectService) Create(ctx context.Context, in PromotionProjectInput) (*domain.PromotionProject, error) {
	now := s.now().UTC()
	pp := &domain.PromotionProject{
		ID:                  uuid.New(),
		ProjectID:           in.ProjectID,
		PromotionID:         in.PromotionID,
		MinPerGroup:         in.MinPerGroup,
		MaxPerGroup:         in.MaxPerGroup,
		AllowLateSubmission: in.AllowLateSubmission,
		IsReportRequired:    in.IsReportRequired,
		GroupRule:           in.GroupRule,
		Malus:               in.Malus,
		MalusTimeType:       in.MalusTimeType,
		StartDate:           in.StartDate.UTC(),
		EndDate:             in.EndDate.UTC(),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if pp.GroupRule == "" {
		pp.GroupRule = domain.GroupRuleManual
	}
	if err := pp.Validate(now, true); err != nil {
		return nil, err
	}
	if _, err := s.projects.GetByID(ctx, pp.ProjectID); err != nil {
		return nil, err
	}
	if _, err := s.promotions.GetByID(ctx, pp.PromotionID); err != nil {
		return nil, err
	}

	created := 0
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.promotionProjects.WithTx(tx).Create(ctx, pp); err != nil {
			return err
		}
		if pp.GroupRule != domain.GroupRuleRandom {
			return nil
		}
		var err error
		created, err = s.assignRandom(ctx, tx, pp)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "create", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("promotion project created",
		slog.String("promotion_project_id", pp.ID.String()),
		slog.String("group_rule", string(pp.GroupRule)),
		slog.Int("groups_created", created))
	return pp, nil
}

// assignRandom creates groups for the promotion's students and fills them.
// It returns the number of groups created.
func (s *promotionProjectService) assignRandom(ctx context.Context, tx *sql.Tx, pp *domain.PromotionProject) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	students, err := s.promotions.WithTx(tx).ListStudentIDs(ctx, pp.PromotionID)
	if err != nil {
		return 0, err
	}
	assignment, leftovers := grouping.AssignRandom(students, pp.MinPerGroup, pp.MaxPerGroup, s.shuffle)
	if len(leftovers) > 0 {
		log.Warn("students left without a group",
			slog.String("promotion_project_id", pp.ID.String()),
			slog.Int("count", len(leftovers)))
	}

	groups := s.groups.WithTx(tx)
	for i, members := range assignment {
		g, err := domain.NewProjectGroup(grouping.GroupName(i+1), pp.ID)
		if err != nil {
			return 0, err
		}
		if err := groups.Create(ctx, g); err != nil {
			return 0, err
		}
		for _, studentID := range members {
			err := groups.AddStudent(ctx, domain.ProjectGroupStudent{
				ProjectGroupID:     g.ID,
				StudentID:          studentID,
				PromotionProjectID: pp.ID,
			})
			if err != nil {
				return 0, err
			}
		}
	}
	return len(assignment), nil
}

func (s *promotionProjectService) Update(ctx context.Context, id uuid.UUID, in UpdatePromotionProjectInput) (*domain.PromotionProject, error) {
	pp, err := s.promotionProjects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	groupCount, err := s.groups.CountByPromotionProject(ctx, id)
	if err != nil {
		return nil, err
	}

	wasRandom := pp.GroupRule == domain.GroupRuleRandom
	toRandom := in.GroupRule != nil && *in.GroupRule == domain.GroupRuleRandom && !wasRandom
	if toRandom && groupCount > 0 {
		return nil, domain.Invalid("cannot switch to RANDOM grouping once groups exist")
	}
	if wasRandom && (changed(in.MinPerGroup, pp.MinPerGroup) || changed(in.MaxPerGroup, pp.MaxPerGroup)) {
		return nil, domain.Invalid("group sizes cannot change under RANDOM grouping")
	}

	checkPast := false
	if in.MinPerGroup != nil {
		pp.MinPerGroup = *in.MinPerGroup
	}
	if in.MaxPerGroup != nil {
		pp.MaxPerGroup = *in.MaxPerGroup
	}
	if in.AllowLateSubmission != nil {
		pp.AllowLateSubmission = *in.AllowLateSubmission
	}
	if in.IsReportRequired != nil {
		pp.IsReportRequired = *in.IsReportRequired
	}
	if in.GroupRule != nil {
		pp.GroupRule = *in.GroupRule
	}
	if in.Malus != nil {
		pp.Malus = in.Malus
	}
	if in.MalusTimeType != nil {
		pp.MalusTimeType = in.MalusTimeType
	}
	if in.StartDate != nil && !in.StartDate.Equal(pp.StartDate) {
		pp.StartDate = in.StartDate.UTC()
		checkPast = true
	}
	if in.EndDate != nil {
		pp.EndDate = in.EndDate.UTC()
	}
	now := s.now().UTC()
	if err := pp.Validate(now, checkPast); err != nil {
		return nil, err
	}
	pp.UpdatedAt = now

	err = s.tx.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.promotionProjects.WithTx(tx).Update(ctx, pp); err != nil {
			return err
		}
		if !toRandom {
			return nil
		}
		_, err := s.assignRandom(ctx, tx, pp)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "update", err)
	}
	return pp, nil
}

func changed(v *int, current int) bool {
	return v != nil && *v != current
}

func (s *promotionProjectService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.promotionProjects.Delete(ctx, id)
}

func (s *promotionProjectService) ListForStudent(ctx context.Context, studentID uuid.UUID) ([]domain.PromotionProject, error) {
	return s.promotionProjects.ListForStudent(ctx, studentID)
}

func (s *promotionProjectService) DetailForTeacher(ctx context.Context, teacherID uuid.UUID, projectName string) (*domain.PromotionProjectDetail, error) {
	pp, err := s.promotionProjects.FindByProjectName(ctx, projectName, &teacherID, nil)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, pp)
}

func (s *promotionProjectService) DetailForStudent(ctx context.Context, studentID uuid.UUID, projectName string) (*domain.PromotionProjectDetail, error) {
	pp, err := s.promotionProjects.FindByProjectName(ctx, projectName, nil, &studentID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, pp)
}

func (s *promotionProjectService) detail(ctx context.Context, pp *domain.PromotionProject) (*domain.PromotionProjectDetail, error) {
	project, err := s.projects.GetByID(ctx, pp.ProjectID)
	if err != nil {
		return nil, err
	}
	groups, err := s.groups.ListWithMembers(ctx, pp.ID)
	if err != nil {
		return nil, err
	}
	sections, err := s.sections.ListByPromotionProject(ctx, pp.ID)
	if err != nil {
		return nil, err
	}
	return &domain.PromotionProjectDetail{
		PromotionProject: *pp,
		Project:          *project,
		Groups:           groups,
		ReportSections:   sections,
	}, nil
}

func (s *promotionProjectService) fail(ctx context.Context, op string, err error) error {
	if isExpected(err) {
		return err
	}
	logger.FromContextOrDefault(ctx, s.logger).Error("promotion project operation failed",
		slog.String("operation", op),
		slog.String("error", err.Error()))
	return NewServiceError("promotion_project", op, "failed to save promotion project", err)
}
