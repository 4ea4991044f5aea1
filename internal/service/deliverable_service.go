package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/domain/rules"
	"github.com/mygeslike/api/internal/platform/logger"
	"github.com/mygeslike/api/internal/platform/storage"
	"github.com/mygeslike/api/internal/service/auth"
	"github.com/mygeslike/api/internal/store"
)

// CreateDeliverableInput is a new deliverable.
type CreateDeliverableInput struct {
	Name           string
	Description    *string
	Deadline       *time.Time
	ProjectGroupID uuid.UUID
}

// UpdateDeliverableInput is a partial deliverable update.
type UpdateDeliverableInput struct {
	Name        *string
	Description *string
	Deadline    *time.Time
}

// SubmitInput confirms a submission.
type SubmitInput struct {
	Comment    *string
	SubmitLate bool
}

// Submission is a submitted deliverable with its late penalty.
type Submission struct {
	*domain.Deliverable
	IsLate bool    `json:"is_late"`
	Malus  float64 `json:"malus"`
}

// Download locates a deliverable's archive.
type Download struct {
	URL      string `json:"url"`
	FileName string `json:"file_name"`
	Size     int64  `json:"size"`
}

// ArchiveFile is an open deliverable archive. Callers close Body.
type ArchiveFile struct {
	Body     io.ReadCloser
	FileName string
	Size     int64
}

// DeliverableFileURL is the authenticated route that streams a
// deliverable's archive.
func DeliverableFileURL(id uuid.UUID) string {
	return "/api/deliverables/" + id.String() + "/file"
}

// DeliverableService manages deliverables, their archives and rule
// validation.
type DeliverableService interface {
	Create(ctx context.Context, p auth.Principal, in CreateDeliverableInput) (*domain.Deliverable, error)
	ListByGroup(ctx context.Context, p auth.Principal, groupID uuid.UUID) ([]domain.Deliverable, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Deliverable, error)
	Update(ctx context.Context, p auth.Principal, id uuid.UUID, in UpdateDeliverableInput) (*domain.Deliverable, error)
	Delete(ctx context.Context, p auth.Principal, id uuid.UUID) error

	// UploadArchive stores the archive, replacing any previous one, then
	// validates it against the promotion project's rules. A failing
	// validation never rejects the upload.
	UploadArchive(ctx context.Context, p auth.Principal, id uuid.UUID, file *Upload) (*domain.Deliverable, *domain.ValidationReport, error)
	AttachGit(ctx context.Context, p auth.Principal, id uuid.UUID, repo domain.GitRepo) (*domain.Deliverable, error)
	Submit(ctx context.Context, p auth.Principal, id uuid.UUID, in SubmitInput) (*Submission, error)
	Download(ctx context.Context, p auth.Principal, id uuid.UUID) (*Download, error)

	// OpenArchive streams the archive to anyone Download allows.
	OpenArchive(ctx context.Context, p auth.Principal, id uuid.UUID) (*ArchiveFile, error)

	// Validate re-runs validation on the current archive.
	Validate(ctx context.Context, p auth.Principal, id uuid.UUID) (*domain.ValidationReport, error)
	ValidationResults(ctx context.Context, id uuid.UUID) (*domain.ValidationReport, error)
	Compliance(ctx context.Context, id uuid.UUID) (*domain.Compliance, error)
}

type deliverableService struct {
	deliverables      store.DeliverableStore
	groups            store.ProjectGroupStore
	promotionProjects store.PromotionProjectStore
	rules             store.RuleStore
	files             storage.Store
	logger            *slog.Logger
	now               func() time.Time
}

// NewDeliverableService creates a DeliverableService.
func NewDeliverableService(
	deliverables store.DeliverableStore,
	groups store.ProjectGroupStore,
	promotionProjects store.PromotionProjectStore,
	ruleStore store.RuleStore,
	files storage.Store,
	logger *slog.Logger,
) DeliverableService {
	return &deliverableService{
		deliverables:      deliverables,
		groups:            groups,
		promotionProjects: promotionProjects,
		rules:             ruleStore,
		files:             files,
		logger:            logger.With("component", "deliverable_service"),
		now:               time.Now,
	}
}

func (s *deliverableService) requireMember(ctx context.Context, groupID, studentID uuid.UUID) error {
	ok, err := s.groups.IsMember(ctx, groupID, studentID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotGroupMember
	}
	return nil
}

// canRead lets teachers through and restricts students to their group.
func (s *deliverableService) canRead(ctx context.Context, p auth.Principal, groupID uuid.UUID) error {
	if p.Role == domain.RoleTeacher {
		return nil
	}
	return s.requireMember(ctx, groupID, p.ScopeID)
}

func (s *deliverableService) owned(ctx context.Context, p auth.Principal, id uuid.UUID) (*domain.Deliverable, error) {
	d, err := s.deliverables.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.UploadedByStudentID != p.ScopeID {
		return nil, ErrNotOwned
	}
	return d, nil
}

func (s *deliverableService) promotionProjectOf(ctx context.Context, groupID uuid.UUID) (*domain.PromotionProject, error) {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return s.promotionProjects.GetByID(ctx, g.PromotionProjectID)
}

func (s *deliverableService) Create(ctx context.Context, p auth.Principal, in CreateDeliverableInput) (*domain.Deliverable, error) {
	d, err := domain.NewDeliverable(in.Name, in.Description, in.Deadline, in.ProjectGroupID, p.ScopeID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, in.ProjectGroupID, p.ScopeID); err != nil {
		return nil, err
	}
	if err := s.deliverables.Create(ctx, d); err != nil {
		return nil, err
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("deliverable created",
		slog.String("deliverable_id", d.ID.String()),
		slog.String("project_group_id", d.ProjectGroupID.String()))
	return d, nil
}

func (s *deliverableService) ListByGroup(ctx context.Context, p auth.Principal, groupID uuid.UUID) ([]domain.Deliverable, error) {
	if err := s.canRead(ctx, p, groupID); err != nil {
		return nil, err
	}
	list, err := s.deliverables.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	for i := range list {
		s.setArchiveURL(&list[i])
	}
	return list, nil
}

func (s *deliverableService) Get(ctx context.Context, id uuid.UUID) (*domain.Deliverable, error) {
	d, err := s.deliverables.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.setArchiveURL(d)
	return d, nil
}

func (s *deliverableService) Update(ctx context.Context, p auth.Principal, id uuid.UUID, in UpdateDeliverableInput) (*domain.Deliverable, error) {
	d, err := s.owned(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		d.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		d.Description = in.Description
	}
	if in.Deadline != nil {
		d.Deadline = in.Deadline
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	d.UpdatedAt = s.now().UTC()
	if err := s.deliverables.Update(ctx, d); err != nil {
		return nil, err
	}
	s.setArchiveURL(d)
	return d, nil
}

func (s *deliverableService) Delete(ctx context.Context, p auth.Principal, id uuid.UUID) error {
	d, err := s.owned(ctx, p, id)
	if err != nil {
		return err
	}
	if err := s.deliverables.Delete(ctx, id); err != nil {
		return err
	}
	if d.Archive != nil {
		discard(ctx, s.files, logger.FromContextOrDefault(ctx, s.logger), d.Archive.Key)
	}
	return nil
}

func (s *deliverableService) UploadArchive(ctx context.Context, p auth.Principal, id uuid.UUID, file *Upload) (*domain.Deliverable, *domain.ValidationReport, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	d, err := s.owned(ctx, p, id)
	if err != nil {
		return nil, nil, err
	}
	if err := checkUpload(file, MaxArchiveBytes, archiveTypes); err != nil {
		return nil, nil, err
	}
	pp, err := s.promotionProjectOf(ctx, d.ProjectGroupID)
	if err != nil {
		return nil, nil, err
	}
	now := s.now()
	if d.IsLateAt(now) && !pp.AllowLateSubmission {
		return nil, nil, domain.Invalid("late submission is not allowed for this project")
	}

	old := d.Archive
	if d.Archive, err = putUpload(ctx, s.files, storage.FolderDeliverables, file, MaxArchiveBytes); err != nil {
		return nil, nil, err
	}
	d.UpdatedAt = now.UTC()
	if err := s.deliverables.Update(ctx, d); err != nil {
		discard(ctx, s.files, log, d.Archive.Key)
		return nil, nil, err
	}
	if old != nil && old.Key != d.Archive.Key {
		discard(ctx, s.files, log, old.Key)
	}
	log.Info("archive uploaded",
		slog.String("deliverable_id", d.ID.String()),
		slog.Int64("size", d.Archive.Size))

	report, err := s.validate(ctx, d, pp.ID)
	if err != nil {
		log.Warn("archive validation failed",
			slog.String("deliverable_id", d.ID.String()),
			slog.String("error", err.Error()))
		report = nil
	} else if !report.IsValid {
		log.Warn("archive breaks deliverable rules",
			slog.String("deliverable_id", d.ID.String()),
			slog.Int("failed", report.Summary.Failed))
	}

	s.setArchiveURL(d)
	return d, report, nil
}

// validate checks the stored archive against the rules and saves the
// results for the group.
func (s *deliverableService) validate(ctx context.Context, d *domain.Deliverable, promotionProjectID uuid.UUID) (*domain.ValidationReport, error) {
	if d.Archive == nil {
		return nil, domain.Invalid("no archive attached to validate")
	}
	ruleSet, err := s.rules.ListByPromotionProject(ctx, promotionProjectID)
	if err != nil {
		return nil, err
	}

	rc, err := s.files.Open(ctx, d.Archive.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, MaxArchiveBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	report := rules.Validate(rules.NewArchive(bytes.NewReader(data), int64(len(data))), ruleSet)
	validatedAt := s.now().UTC()
	report.ValidatedAt = &validatedAt
	if err := s.deliverables.SaveRuleResults(ctx, d.ID, d.ProjectGroupID, report.Results, validatedAt); err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *deliverableService) AttachGit(ctx context.Context, p auth.Principal, id uuid.UUID, repo domain.GitRepo) (*domain.Deliverable, error) {
	d, err := s.owned(ctx, p, id)
	if err != nil {
		return nil, err
	}
	repo.URL = strings.TrimSpace(repo.URL)
	if repo.Branch == "" {
		repo.Branch = domain.DefaultGitBranch
	}
	d.GitRepo = &repo
	if err := d.Validate(); err != nil {
		return nil, err
	}
	d.UpdatedAt = s.now().UTC()
	if err := s.deliverables.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *deliverableService) Submit(ctx context.Context, p auth.Principal, id uuid.UUID, in SubmitInput) (*Submission, error) {
	d, err := s.owned(ctx, p, id)
	if err != nil {
		return nil, err
	}
	pp, err := s.promotionProjectOf(ctx, d.ProjectGroupID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	late := d.IsLateAt(now)
	if late && in.SubmitLate && !pp.AllowLateSubmission {
		return nil, domain.Invalid("late submission is not allowed for this project")
	}
	if err := d.Submit(now, in.Comment, in.SubmitLate); err != nil {
		return nil, err
	}
	if err := s.deliverables.Update(ctx, d); err != nil {
		return nil, err
	}

	sub := &Submission{Deliverable: d, IsLate: late}
	if late {
		sub.Malus = pp.LateMalus(*d.Deadline, *d.SubmittedAt)
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("deliverable submitted",
		slog.String("deliverable_id", d.ID.String()),
		slog.Bool("late", late),
		slog.Float64("malus", sub.Malus))
	s.setArchiveURL(d)
	return sub, nil
}

// readableArchive loads a deliverable whose archive p may fetch.
func (s *deliverableService) readableArchive(ctx context.Context, p auth.Principal, id uuid.UUID) (*domain.Deliverable, error) {
	d, err := s.deliverables.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.UploadedByStudentID != p.ScopeID {
		if err := s.canRead(ctx, p, d.ProjectGroupID); err != nil {
			return nil, err
		}
	}
	if d.Archive == nil || d.Archive.Key == "" {
		return nil, ErrNoArchive
	}
	return d, nil
}

func (s *deliverableService) Download(ctx context.Context, p auth.Principal, id uuid.UUID) (*Download, error) {
	d, err := s.readableArchive(ctx, p, id)
	if err != nil {
		return nil, err
	}
	s.setArchiveURL(d)
	return &Download{
		URL:      d.Archive.URL,
		FileName: d.Archive.FileName,
		Size:     d.Archive.Size,
	}, nil
}

func (s *deliverableService) OpenArchive(ctx context.Context, p auth.Principal, id uuid.UUID) (*ArchiveFile, error) {
	d, err := s.readableArchive(ctx, p, id)
	if err != nil {
		return nil, err
	}
	body, err := s.files.Open(ctx, d.Archive.Key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrNoArchive
		}
		return nil, NewServiceError("deliverable", "open_archive", "failed to open archive", err)
	}
	return &ArchiveFile{Body: body, FileName: d.Archive.FileName, Size: d.Archive.Size}, nil
}

// setArchiveURL fills the archive URL. Archives on local disk are only
// reachable through the authenticated file route.
func (s *deliverableService) setArchiveURL(d *domain.Deliverable) {
	if d.Archive == nil || d.Archive.Key == "" {
		return
	}
	if _, local := s.files.(storage.LocalPather); local {
		d.Archive.URL = DeliverableFileURL(d.ID)
		return
	}
	d.Archive.URL = s.files.PublicURL(d.Archive.Key)
}

func (s *deliverableService) Validate(ctx context.Context, p auth.Principal, id uuid.UUID) (*domain.ValidationReport, error) {
	d, err := s.deliverables.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canRead(ctx, p, d.ProjectGroupID); err != nil {
		return nil, err
	}
	pp, err := s.promotionProjectOf(ctx, d.ProjectGroupID)
	if err != nil {
		return nil, err
	}
	report, err := s.validate(ctx, d, pp.ID)
	if err != nil {
		if isExpected(err) {
			return nil, err
		}
		return nil, NewServiceError("deliverable", "validate", "failed to validate archive", err)
	}
	return report, nil
}

func (s *deliverableService) ValidationResults(ctx context.Context, id uuid.UUID) (*domain.ValidationReport, error) {
	if _, err := s.deliverables.GetByID(ctx, id); err != nil {
		return nil, err
	}
	results, validatedAt, err := s.deliverables.GetRuleResults(ctx, id)
	if err != nil {
		return nil, err
	}
	report := domain.NewValidationReport(results)
	report.ValidatedAt = validatedAt
	return &report, nil
}

func (s *deliverableService) Compliance(ctx context.Context, id uuid.UUID) (*domain.Compliance, error) {
	report, err := s.ValidationResults(ctx, id)
	if err != nil {
		return nil, err
	}
	c := domain.ComplianceFrom(*report)
	if report.ValidatedAt == nil {
		c.Compliant = false
	}
	return &c, nil
}
