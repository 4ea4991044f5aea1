package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/platform/logger"
	"github.com/mygeslike/api/internal/platform/storage"
	"github.com/mygeslike/api/internal/store"
)

// CreateProjectInput is a new project.
type CreateProjectInput struct {
	Name        string
	Description *string
	Visibility  domain.Visibility
}

// UpdateProjectInput is a partial project update.
type UpdateProjectInput struct {
	Name        *string
	Description *string
	Visibility  *domain.Visibility
}

// ProjectService manages teacher projects and their attached file.
type ProjectService interface {
	// ListMine returns the teacher's projects, newest first.
	ListMine(ctx context.Context, teacherID uuid.UUID) ([]domain.Project, error)
	Create(ctx context.Context, teacherID uuid.UUID, in CreateProjectInput, file *Upload) (*domain.Project, error)
	// Update replaces the attached file when file is set.
	Update(ctx context.Context, teacherID, id uuid.UUID, in UpdateProjectInput, file *Upload) (*domain.Project, error)
	Delete(ctx context.Context, teacherID, id uuid.UUID) error
}

type projectService struct {
	projects store.ProjectStore
	files    storage.Store
	logger   *slog.Logger
}

// NewProjectService creates a ProjectService.
func NewProjectService(projects store.ProjectStore, files storage.Store, logger *slog.Logger) ProjectService {
	return &projectService{
		projects: projects,
		files:    files,
		logger:   logger.With("component", "project_service"),
	}
}

func (s *projectService) ListMine(ctx context.Context, teacherID uuid.UUID) ([]domain.Project, error) {
	projects, err := s.projects.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	for i := range projects {
		withURL(s.files, projects[i].File)
	}
	return projects, nil
}

func (s *projectService) Create(ctx context.Context, teacherID uuid.UUID, in CreateProjectInput, file *Upload) (*domain.Project, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	p, err := domain.NewProject(in.Name, in.Description, in.Visibility, teacherID)
	if err != nil {
		return nil, err
	}
	if file != nil {
		if err := checkUpload(file, MaxProjectFileBytes, projectFileTypes); err != nil {
			return nil, err
		}
		if p.File, err = putUpload(ctx, s.files, storage.FolderProjects, file, MaxProjectFileBytes); err != nil {
			return nil, err
		}
	}

	if err := s.projects.Create(ctx, p); err != nil {
		if p.File != nil {
			discard(ctx, s.files, log, p.File.Key)
		}
		return nil, err
	}

	log.Info("project created",
		slog.String("project_id", p.ID.String()),
		slog.Bool("with_file", p.File != nil))
	withURL(s.files, p.File)
	return p, nil
}

func (s *projectService) owned(ctx context.Context, teacherID, id uuid.UUID) (*domain.Project, error) {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.CreatedByTeacherID != teacherID {
		return nil, ErrNotOwned
	}
	return p, nil
}

func (s *projectService) Update(ctx context.Context, teacherID, id uuid.UUID, in UpdateProjectInput, file *Upload) (*domain.Project, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	p, err := s.owned(ctx, teacherID, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = in.Description
	}
	if in.Visibility != nil {
		p.Visibility = *in.Visibility
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var old *domain.StoredFile
	if file != nil {
		if err := checkUpload(file, MaxProjectFileBytes, projectFileTypes); err != nil {
			return nil, err
		}
		old = p.File
		if p.File, err = putUpload(ctx, s.files, storage.FolderProjects, file, MaxProjectFileBytes); err != nil {
			return nil, err
		}
	}
	p.UpdatedAt = time.Now().UTC()

	if err := s.projects.Update(ctx, p); err != nil {
		if file != nil {
			discard(ctx, s.files, log, p.File.Key)
		}
		return nil, err
	}
	if old != nil {
		discard(ctx, s.files, log, old.Key)
	}

	withURL(s.files, p.File)
	return p, nil
}

func (s *projectService) Delete(ctx context.Context, teacherID, id uuid.UUID) error {
	p, err := s.owned(ctx, teacherID, id)
	if err != nil {
		return err
	}
	if err := s.projects.Delete(ctx, id); err != nil {
		return err
	}
	if p.File != nil {
		discard(ctx, s.files, logger.FromContextOrDefault(ctx, s.logger), p.File.Key)
	}
	return nil
}
