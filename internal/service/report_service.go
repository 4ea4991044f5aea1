package service

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/platform/logger"
	"github.com/mygeslike/api/internal/store"
)

// CreateSectionInput is a new report section.
type CreateSectionInput struct {
	Title              string
	Description        *string
	PromotionProjectID uuid.UUID
}

// UpdateSectionInput is a partial section update. Order moves the section
// and is clamped to the existing positions.
type UpdateSectionInput struct {
	Title       *string
	Description *string
	Order       *int
}

// UpsertReportInput is a group's text for one section.
type UpsertReportInput struct {
	Content         string
	ProjectGroupID  uuid.UUID
	ReportSectionID uuid.UUID
}

// ContentQuery addresses a group's report by names.
type ContentQuery struct {
	PromotionID  uuid.UUID
	ProjectName  string
	GroupName    string
	SectionTitle *string
}

// ReportService manages report sections and the reports groups write
// against them.
type ReportService interface {
	CreateSection(ctx context.Context, teacherID uuid.UUID, in CreateSectionInput) (*domain.ReportSection, error)
	// UpdateSection and DeleteSection only touch sections teacherID
	// created. Orders are kept contiguous per teacher and project.
	UpdateSection(ctx context.Context, teacherID, id uuid.UUID, in UpdateSectionInput) (*domain.ReportSection, error)
	DeleteSection(ctx context.Context, teacherID, id uuid.UUID) error
	ListSections(ctx context.Context, promotionProjectID uuid.UUID) ([]domain.ReportSection, error)

	Upsert(ctx context.Context, studentID uuid.UUID, in UpsertReportInput) (*domain.Report, error)
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.ReportWithSection, error)
	ListByPromotion(ctx context.Context, promotionID uuid.UUID) ([]domain.ReportWithSection, error)
	// Content joins the section texts in order. Unknown groups yield "".
	Content(ctx context.Context, q ContentQuery) (string, error)
}

type reportService struct {
	sections store.ReportSectionStore
	reports  store.ReportStore
	groups   store.ProjectGroupStore
	tx       store.TxManager
	logger   *slog.Logger
}

// NewReportService creates a ReportService.
func NewReportService(
	sections store.ReportSectionStore,
	reports store.ReportStore,
	groups store.ProjectGroupStore,
	tx store.TxManager,
	logger *slog.Logger,
) ReportService {
	return &reportService{
		sections: sections,
		reports:  reports,
		groups:   groups,
		tx:       tx,
		logger:   logger.With("component", "report_service"),
	}
}

func (s *reportService) CreateSection(ctx context.Context, teacherID uuid.UUID, in CreateSectionInput) (*domain.ReportSection, error) {
	now := time.Now().UTC()
	sec := &domain.ReportSection{
		ID:                 uuid.New(),
		Title:              strings.TrimSpace(in.Title),
		Description:        in.Description,
		PromotionProjectID: in.PromotionProjectID,
		CreatedByTeacherID: teacherID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err := s.tx.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		sections := s.sections.WithTx(tx)
		n, err := sections.CountByOwner(ctx, in.PromotionProjectID, teacherID)
		if err != nil {
			return err
		}
		sec.Order = n + 1
		if err := sec.Validate(); err != nil {
			return err
		}
		return sections.Create(ctx, sec)
	})
	if err != nil {
		return nil, s.fail(ctx, "create_section", err)
	}
	return sec, nil
}

// ownedSection loads a section and checks teacherID created it.
func ownedSection(ctx context.Context, sections store.ReportSectionStore, teacherID, id uuid.UUID) (*domain.ReportSection, error) {
	sec, err := sections.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sec.CreatedByTeacherID != teacherID {
		return nil, ErrNotOwned
	}
	return sec, nil
}

func (s *reportService) UpdateSection(ctx context.Context, teacherID, id uuid.UUID, in UpdateSectionInput) (*domain.ReportSection, error) {
	var sec *domain.ReportSection
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		sections := s.sections.WithTx(tx)
		var err error
		if sec, err = ownedSection(ctx, sections, teacherID, id); err != nil {
			return err
		}
		if in.Title != nil {
			sec.Title = strings.TrimSpace(*in.Title)
		}
		if in.Description != nil {
			sec.Description = in.Description
		}
		if in.Order != nil && *in.Order != sec.Order {
			n, err := sections.CountByOwner(ctx, sec.PromotionProjectID, teacherID)
			if err != nil {
				return err
			}
			target := min(max(*in.Order, 1), n)
			switch {
			case target < sec.Order:
				err = sections.ShiftOrders(ctx, sec.PromotionProjectID, teacherID, target, sec.Order-1, 1)
			case target > sec.Order:
				err = sections.ShiftOrders(ctx, sec.PromotionProjectID, teacherID, sec.Order+1, target, -1)
			}
			if err != nil {
				return err
			}
			sec.Order = target
		}
		if err := sec.Validate(); err != nil {
			return err
		}
		sec.UpdatedAt = time.Now().UTC()
		return sections.Update(ctx, sec)
	})
	if err != nil {
		return nil, s.fail(ctx, "update_section", err)
	}
	return sec, nil
}

func (s *reportService) DeleteSection(ctx context.Context, teacherID, id uuid.UUID) error {
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		sections := s.sections.WithTx(tx)
		sec, err := ownedSection(ctx, sections, teacherID, id)
		if err != nil {
			return err
		}
		n, err := sections.CountByOwner(ctx, sec.PromotionProjectID, teacherID)
		if err != nil {
			return err
		}
		if err := sections.Delete(ctx, id); err != nil {
			return err
		}
		if sec.Order >= n {
			return nil
		}
		return sections.ShiftOrders(ctx, sec.PromotionProjectID, teacherID, sec.Order+1, n, -1)
	})
	if err != nil {
		return s.fail(ctx, "delete_section", err)
	}
	return nil
}

func (s *reportService) ListSections(ctx context.Context, promotionProjectID uuid.UUID) ([]domain.ReportSection, error) {
	return s.sections.ListByPromotionProject(ctx, promotionProjectID)
}

func (s *reportService) Upsert(ctx context.Context, studentID uuid.UUID, in UpsertReportInput) (*domain.Report, error) {
	if in.ProjectGroupID == uuid.Nil {
		return nil, domain.NewValidationError("project_group_id", "cannot be empty", domain.ErrInvalidID)
	}
	if in.ReportSectionID == uuid.Nil {
		return nil, domain.NewValidationError("report_section_id", "cannot be empty", domain.ErrInvalidID)
	}
	ok, err := s.groups.IsMember(ctx, in.ProjectGroupID, studentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotGroupMember
	}

	now := time.Now().UTC()
	r := &domain.Report{
		ID:                 uuid.New(),
		Content:            in.Content,
		ProjectGroupID:     in.ProjectGroupID,
		ReportSectionID:    in.ReportSectionID,
		CreatedByStudentID: studentID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.reports.Upsert(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *reportService) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.ReportWithSection, error) {
	return s.reports.ListByGroup(ctx, groupID)
}

func (s *reportService) ListByPromotion(ctx context.Context, promotionID uuid.UUID) ([]domain.ReportWithSection, error) {
	return s.reports.ListByPromotion(ctx, promotionID)
}

func (s *reportService) Content(ctx context.Context, q ContentQuery) (string, error) {
	reports, err := s.reports.FindContent(ctx, q.PromotionID, q.ProjectName, q.GroupName, q.SectionTitle)
	if err != nil {
		return "", err
	}
	return domain.JoinReportContent(reports), nil
}

func (s *reportService) fail(ctx context.Context, op string, err error) error {
	if isExpected(err) {
		return err
	}
	logger.FromContextOrDefault(ctx, s.logger).Error("report section operation failed",
		slog.String("operation", op),
		slog.String("error", err.Error()))
	return NewServiceError("report", op, "failed to save report section", err)
}
