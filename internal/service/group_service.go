package service

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/domain/grouping"
	"github.com/mygeslike/api/internal/platform/logger"
	"github.com/mygeslike/api/internal/service/auth"
	"github.com/mygeslike/api/internal/store"
)

// UpdateGroupInput renames a group and, when StudentIDs is non-nil,
// replaces its members.
type UpdateGroupInput struct {
	Name       *string
	StudentIDs *[]uuid.UUID
}

// GroupService manages project groups and their members.
type GroupService interface {
	Create(ctx context.Context, name string, promotionProjectID uuid.UUID) (*domain.ProjectGroup, error)
	// CreateAll creates floor(n/max)+1 groups for the promotion's n
	// students. Under the RANDOM rule the students are dealt into them.
	CreateAll(ctx context.Context, promotionProjectID uuid.UUID) ([]domain.ProjectGroupWithMembers, error)
	Update(ctx context.Context, id uuid.UUID, in UpdateGroupInput) (*domain.ProjectGroupWithMembers, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListWithMembers(ctx context.Context, promotionProjectID uuid.UUID) ([]domain.ProjectGroupWithMembers, error)
	// MyGroup returns the caller's group in the promotion project.
	MyGroup(ctx context.Context, promotionProjectID, studentID uuid.UUID) (*domain.ProjectGroupWithMembers, error)
	// AddStudent and RemoveStudent are open to teachers. A student may only
	// move themself, and only under the FREE rule.
	AddStudent(ctx context.Context, p auth.Principal, m domain.ProjectGroupStudent) error
	RemoveStudent(ctx context.Context, p auth.Principal, groupID, studentID uuid.UUID) error
}

type groupService struct {
	groups            store.ProjectGroupStore
	promotionProjects store.PromotionProjectStore
	promotions        store.PromotionStore
	tx                store.TxManager
	logger            *slog.Logger
	shuffle           grouping.Shuffler
}

// NewGroupService creates a GroupService.
func NewGroupService(
	groups store.ProjectGroupStore,
	promotionProjects store.PromotionProjectStore,
	promotions store.PromotionStore,
	tx store.TxManager,
	logger *slog.Logger,
) GroupService {
	return &groupService{
		groups:            groups,
		promotionProjects: promotionProjects,
		promotions:        promotions,
		tx:                tx,
		logger:            logger.With("component", "group_service"),
		shuffle:           grouping.DefaultShuffler,
	}
}

func (s *groupService) Create(ctx context.Context, name string, promotionProjectID uuid.UUID) (*domain.ProjectGroup, error) {
	g, err := domain.NewProjectGroup(name, promotionProjectID)
	if err != nil {
		return nil, err
	}
	if _, err := s.promotionProjects.GetByID(ctx, promotionProjectID); err != nil {
		return nil, err
	}
	if err := s.groups.Create(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *groupService) CreateAll(ctx context.Context, promotionProjectID uuid.UUID) ([]domain.ProjectGroupWithMembers, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	pp, err := s.promotionProjects.GetByID(ctx, promotionProjectID)
	if err != nil {
		return nil, err
	}
	students, err := s.promotions.ListStudentIDs(ctx, pp.PromotionID)
	if err != nil {
		return nil, err
	}
	count := len(students)/pp.MaxPerGroup + 1

	var members [][]uuid.UUID
	if pp.GroupRule == domain.GroupRuleRandom {
		members = grouping.AssignRoundRobin(students, count, s.shuffle)
	}

	err = s.tx.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		groups := s.groups.WithTx(tx)
		for i := 0; i < count; i++ {
			g, err := domain.NewProjectGroup(grouping.GroupName(i+1), pp.ID)
			if err != nil {
				return err
			}
			if err := groups.Create(ctx, g); err != nil {
				return err
			}
			if members == nil {
				continue
			}
			for _, studentID := range members[i] {
				err := groups.AddStudent(ctx, domain.ProjectGroupStudent{
					ProjectGroupID:     g.ID,
					StudentID:          studentID,
					PromotionProjectID: pp.ID,
				})
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		if !isExpected(err) {
			log.Error("failed to create groups",
				slog.String("promotion_project_id", pp.ID.String()),
				slog.String("error", err.Error()))
			return nil, NewServiceError("group", "create_all", "failed to create groups", err)
		}
		return nil, err
	}

	log.Info("groups created",
		slog.String("promotion_project_id", pp.ID.String()),
		slog.Int("count", count),
		slog.Bool("assigned", members != nil))
	return s.groups.ListWithMembers(ctx, pp.ID)
}

func (s *groupService) Update(ctx context.Context, id uuid.UUID, in UpdateGroupInput) (*domain.ProjectGroupWithMembers, error) {
	g, err := s.groups.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		g.Name = strings.TrimSpace(*in.Name)
		if g.Name == "" {
			return nil, domain.NewValidationError("name", "cannot be empty", nil)
		}
	}
	g.UpdatedAt = time.Now().UTC()

	err = s.tx.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		groups := s.groups.WithTx(tx)
		if err := groups.Update(ctx, g); err != nil {
			return err
		}
		if in.StudentIDs == nil {
			return nil
		}
		return groups.ReplaceStudents(ctx, g.ID, g.PromotionProjectID, *in.StudentIDs)
	})
	if err != nil {
		if !isExpected(err) {
			return nil, NewServiceError("group", "update", "failed to update group", err)
		}
		return nil, err
	}
	return s.groups.GetWithMembers(ctx, id)
}

func (s *groupService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.groups.Delete(ctx, id)
}

func (s *groupService) ListWithMembers(ctx context.Context, promotionProjectID uuid.UUID) ([]domain.ProjectGroupWithMembers, error) {
	return s.groups.ListWithMembers(ctx, promotionProjectID)
}

func (s *groupService) MyGroup(ctx context.Context, promotionProjectID, studentID uuid.UUID) (*domain.ProjectGroupWithMembers, error) {
	g, err := s.groups.FindForStudent(ctx, promotionProjectID, studentID)
	if err != nil {
		return nil, err
	}
	return s.groups.GetWithMembers(ctx, g.ID)
}

func (s *groupService) AddStudent(ctx context.Context, p auth.Principal, m domain.ProjectGroupStudent) error {
	g, err := s.groups.GetByID(ctx, m.ProjectGroupID)
	if err != nil {
		return err
	}
	if m.PromotionProjectID == uuid.Nil {
		m.PromotionProjectID = g.PromotionProjectID
	}
	if m.PromotionProjectID != g.PromotionProjectID {
		return domain.NewValidationError("promotion_project_id", "does not match the group", nil)
	}
	if err := s.checkSelfService(ctx, p, g.PromotionProjectID, m.StudentID); err != nil {
		return err
	}
	return s.groups.AddStudent(ctx, m)
}

func (s *groupService) RemoveStudent(ctx context.Context, p auth.Principal, groupID, studentID uuid.UUID) error {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if err := s.checkSelfService(ctx, p, g.PromotionProjectID, studentID); err != nil {
		return err
	}
	return s.groups.RemoveStudent(ctx, groupID, studentID)
}

func (s *groupService) checkSelfService(ctx context.Context, p auth.Principal, promotionProjectID, studentID uuid.UUID) error {
	if p.Role == domain.RoleTeacher {
		return nil
	}
	if studentID != p.ScopeID {
		return ErrNotOwned
	}
	pp, err := s.promotionProjects.GetByID(ctx, promotionProjectID)
	if err != nil {
		return err
	}
	if pp.GroupRule != domain.GroupRuleFree {
		return ErrGroupsNotFree
	}
	return nil
}
