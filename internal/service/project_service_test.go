package service

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/platform/storage"
)

func textUpload(name, body string) *Upload {
	return &Upload{Name: name, ContentType: "text/plain", Size: int64(len(body)), Body: strings.NewReader(body)}
}

func TestProjectService_CreateWithFile(t *testing.T) {
	files := newLocalFiles(t)
	var saved *domain.Project
	projects := &mockProjectStore{CreateFn: func(ctx context.Context, p *domain.Project) error {
		saved = p
		return nil
	}}
	svc := NewProjectService(projects, files, quietLogger())

	teacher := uuid.New()
	p, err := svc.Create(context.Background(), teacher, CreateProjectInput{Name: " Compiler ", Visibility: domain.VisibilityVisible},
		textUpload("subject v1.md", "# Build a compiler"))
	require.NoError(t, err)

	assert.Same(t, saved, p)
	assert.Equal(t, "Compiler", p.Name)
	require.NotNil(t, p.File)
	assert.True(t, strings.HasPrefix(p.File.Key, storage.FolderProjects+"/subject_v1-"))
	assert.Equal(t, int64(18), p.File.Size)
	assert.Equal(t, "http://files.test/"+p.File.Key, p.File.URL)

	rc, err := files.Open(context.Background(), p.File.Key)
	require.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "# Build a compiler", string(body))
}

func TestProjectService_CreateRejectsUploads(t *testing.T) {
	svc := NewProjectService(&mockProjectStore{}, newLocalFiles(t), quietLogger())

	tests := []struct {
		name string
		file *Upload
	}{
		{"wrong type", textUpload("virus.exe", "MZ")},
		{"announced too large", &Upload{Name: "a.pdf", Size: MaxProjectFileBytes + 1, Body: strings.NewReader("x")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), uuid.New(), CreateProjectInput{Name: "P"}, tt.file)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestProjectService_UpdateReplacesFile(t *testing.T) {
	files := newLocalFiles(t)
	ctx := context.Background()
	teacher := uuid.New()

	old, err := files.Put(ctx, storage.FolderProjects, "old.txt", "text/plain", strings.NewReader("old"))
	require.NoError(t, err)
	existing := &domain.Project{
		ID:                 uuid.New(),
		Name:               "P",
		Visibility:         domain.VisibilityDraft,
		CreatedByTeacherID: teacher,
		File:               &domain.StoredFile{Key: old.Key, FileName: old.FileName, Size: old.Size},
	}
	projects := &mockProjectStore{
		GetByIDFn: func(ctx context.Context, id uuid.UUID) (*domain.Project, error) { return existing, nil },
		UpdateFn:  func(ctx context.Context, p *domain.Project) error { return nil },
	}
	svc := NewProjectService(projects, files, quietLogger())

	p, err := svc.Update(ctx, teacher, existing.ID, UpdateProjectInput{}, textUpload("new.txt", "new"))
	require.NoError(t, err)
	assert.NotEqual(t, old.Key, p.File.Key)

	_, err = files.Open(ctx, old.Key)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestProjectService_OwnerOnly(t *testing.T) {
	existing := &domain.Project{ID: uuid.New(), Name: "P", Visibility: domain.VisibilityDraft, CreatedByTeacherID: uuid.New()}
	projects := &mockProjectStore{
		GetByIDFn: func(ctx context.Context, id uuid.UUID) (*domain.Project, error) { return existing, nil },
	}
	svc := NewProjectService(projects, newLocalFiles(t), quietLogger())

	_, err := svc.Update(context.Background(), uuid.New(), existing.ID, UpdateProjectInput{}, nil)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(context.Background(), uuid.New(), existing.ID), domain.ErrForbidden)
}
