package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/mygeslike/api/internal/domain"
)

// ReportSectionStore persists report sections and keeps their order.
type ReportSectionStore interface {
	Create(ctx context.Context, s *domain.ReportSection) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ReportSection, error)
	Update(ctx context.Context, s *domain.ReportSection) error
	Delete(ctx context.Context, id uuid.UUID) error

	// ListByPromotionProject returns sections ordered by position.
	ListByPromotionProject(ctx context.Context, promotionProjectID uuid.UUID) ([]domain.ReportSection, error)

	// CountByOwner counts the sections teacherID created for the promotion
	// project. Orders run per teacher.
	CountByOwner(ctx context.Context, promotionProjectID, teacherID uuid.UUID) (int, error)

	// ShiftOrders adds delta to the order of every section teacherID
	// created for the promotion project whose order lies in [from, to].
	ShiftOrders(ctx context.Context, promotionProjectID, teacherID uuid.UUID, from, to, delta int) error

	WithTx(tx *sql.Tx) ReportSectionStore
}

// ReportStore persists group reports.
type ReportStore interface {
	// Upsert inserts or updates the report of (group, section). The
	// author is only recorded on insert.
	Upsert(ctx context.Context, r *domain.Report) error

	// ListByGroup returns a group's reports by section order.
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.ReportWithSection, error)

	// ListByPromotion returns every report of a promotion, by group name
	// then section order.
	ListByPromotion(ctx context.Context, promotionID uuid.UUID) ([]domain.ReportWithSection, error)

	// FindContent returns the reports of the named group for the named
	// project within a promotion, optionally restricted to one section
	// title, by section order.
	FindContent(ctx context.Context, promotionID uuid.UUID, projectName, groupName string, sectionTitle *string) ([]domain.ReportWithSection, error)

	WithTx(tx *sql.Tx) ReportStore
}
