package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/service"
	"github.com/mygeslike/api/internal/service/auth"
	"github.com/mygeslike/api/internal/store"
)

func multipartBody(t *testing.T, fields map[string]string, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestPromotionHandler_CreateUsesTeacherProfile(t *testing.T) {
	var got service.CreatePromotionInput
	svc := &mockPromotionService{CreateFn: func(ctx context.Context, teacherID uuid.UUID, in service.CreatePromotionInput) (*domain.Promotion, error) {
		assert.Equal(t, teacherPrincipal.ScopeID, teacherID)
		got = in
		return &domain.Promotion{ID: uuid.New(), Name: in.Name}, nil
	}}
	srv := testServer(t, Handlers{Promotions: NewPromotionHandler(svc, quietLogger())})

	w := do(t, srv, http.MethodPost, "/api/promotions", "teacher",
		`{"name":"ESGI 2026","start_date":"2030-09-01","end_date":"2031-06-30T12:00:00Z"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, time.Date(2030, 9, 1, 0, 0, 0, 0, time.UTC), got.StartDate)
	assert.Equal(t, time.Date(2031, 6, 30, 12, 0, 0, 0, time.UTC), got.EndDate)
}

func TestPromotionHandler_AddStudentsRejectsBadRow(t *testing.T) {
	svc := &mockPromotionService{AddStudentsFn: func(ctx context.Context, in []service.NewStudentInput) ([]domain.User, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}
	srv := testServer(t, Handlers{Promotions: NewPromotionHandler(svc, quietLogger())})
	pid := uuid.NewString()

	w := do(t, srv, http.MethodPost, "/api/promotions/students", "teacher",
		`[{"email":"a@school.test","first_name":"A","last_name":"B","promotion_id":"`+pid+`"},
		  {"email":"broken","first_name":"C","last_name":"D","promotion_id":"`+pid+`"}]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorBody(t, w), "students[1]:")
	assert.Contains(t, errorBody(t, w), "email must be a valid email address")
}

func TestProjectHandler_CreateMultipart(t *testing.T) {
	svc := &mockProjectService{CreateFn: func(ctx context.Context, teacherID uuid.UUID, in service.CreateProjectInput, file *service.Upload) (*domain.Project, error) {
		assert.Equal(t, "Compilers", in.Name)
		assert.Equal(t, domain.VisibilityVisible, in.Visibility)
		assert.Nil(t, in.Description)
		require.NotNil(t, file)
		assert.Equal(t, "brief.md", file.Name)
		b, err := io.ReadAll(file.Body)
		require.NoError(t, err)
		assert.Equal(t, "# brief", string(b))
		return &domain.Project{ID: uuid.New(), Name: in.Name}, nil
	}}
	srv := testServer(t, Handlers{Projects: NewProjectHandler(svc, quietLogger())})

	body, ct := multipartBody(t, map[string]string{"name": "Compilers", "visibility": "VISIBLE"}, "brief.md", "# brief")
	req := httptest.NewRequest(http.MethodPost, "/api/projects", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-Test-As", "teacher")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestProjectHandler_CreateRequiresMultipart(t *testing.T) {
	srv := testServer(t, Handlers{})
	w := do(t, srv, http.MethodPost, "/api/projects", "teacher", `{"name":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPromotionProjectHandler_UpdateRejection(t *testing.T) {
	svc := &mockPromotionProjectService{UpdateFn: func(ctx context.Context, id uuid.UUID, in service.UpdatePromotionProjectInput) (*domain.PromotionProject, error) {
		require.NotNil(t, in.GroupRule)
		assert.Equal(t, domain.GroupRuleRandom, *in.GroupRule)
		return nil, domain.Invalid("cannot switch to RANDOM once groups exist")
	}}
	srv := testServer(t, Handlers{PromotionProjects: NewPromotionProjectHandler(svc, quietLogger())})

	w := do(t, srv, http.MethodPut, "/api/promotion-projects/"+uuid.NewString(), "teacher", `{"group_rule":"RANDOM"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "cannot switch to RANDOM once groups exist", errorBody(t, w))
}

func TestGroupHandler_AddStudentAlreadyGrouped(t *testing.T) {
	svc := &mockGroupService{AddStudentFn: func(ctx context.Context, p auth.Principal, m domain.ProjectGroupStudent) error {
		assert.Equal(t, studentPrincipal, p)
		return store.ErrStudentHasGroup
	}}
	srv := testServer(t, Handlers{Groups: NewGroupHandler(svc, quietLogger())})

	body := `{"student_id":"` + uuid.NewString() + `","project_group_id":"` + uuid.NewString() + `"}`
	w := do(t, srv, http.MethodPost, "/api/project-group-students", "student", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Student already has a group in this promotion project", errorBody(t, w))
}

func TestRuleHandler_AssignTwice(t *testing.T) {
	svc := &mockRuleService{AssignFn: func(ctx context.Context, ruleID, ppID uuid.UUID) error {
		return store.ErrRuleAlreadyAssigned
	}}
	srv := testServer(t, Handlers{Rules: NewRuleHandler(svc, quietLogger())})

	body := `{"deliverable_rule_id":"` + uuid.NewString() + `","promotion_project_id":"` + uuid.NewString() + `"}`
	w := do(t, srv, http.MethodPost, "/api/deliverable-rules/assign", "teacher", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeliverableHandler_UploadArchive(t *testing.T) {
	id := uuid.New()
	report := domain.NewValidationReport(nil)
	svc := &mockDeliverableService{UploadArchiveFn: func(ctx context.Context, p auth.Principal, got uuid.UUID, file *service.Upload) (*domain.Deliverable, *domain.ValidationReport, error) {
		assert.Equal(t, studentPrincipal, p)
		assert.Equal(t, id, got)
		assert.Equal(t, "work.zip", file.Name)
		return &domain.Deliverable{ID: id}, &report, nil
	}}
	srv := testServer(t, Handlers{Deliverables: NewDeliverableHandler(svc, quietLogger())})

	body, ct := multipartBody(t, nil, "work.zip", "PK")
	req := httptest.NewRequest(http.MethodPost, "/api/deliverables/"+id.String()+"/archive", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-Test-As", "student")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp, "deliverable")
	assert.Contains(t, resp, "validation")
}

func TestDeliverableHandler_UploadArchiveWithoutFile(t *testing.T) {
	srv := testServer(t, Handlers{})
	body, ct := multipartBody(t, map[string]string{"note": "x"}, "", "")
	req := httptest.NewRequest(http.MethodPost, "/api/deliverables/"+uuid.NewString()+"/archive", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-Test-As", "student")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "file is required", errorBody(t, w))
}

func TestDeliverableHandler_Submit(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantLate   bool
		wantStatus int
	}{
		{name: "empty body", wantStatus: http.StatusOK},
		{name: "late flag", body: `{"submit_late":true}`, wantLate: true, wantStatus: http.StatusOK},
		{
			name:       "already submitted",
			body:       `{}`,
			err:        domain.NewValidationError("", "deliverable has already been submitted", domain.ErrConflict),
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockDeliverableService{SubmitFn: func(ctx context.Context, p auth.Principal, id uuid.UUID, in service.SubmitInput) (*service.Submission, error) {
				assert.Equal(t, tc.wantLate, in.SubmitLate)
				if tc.err != nil {
					return nil, tc.err
				}
				return &service.Submission{Deliverable: &domain.Deliverable{ID: id}, IsLate: in.SubmitLate, Malus: 2}, nil
			}}
			srv := testServer(t, Handlers{Deliverables: NewDeliverableHandler(svc, quietLogger())})

			w := do(t, srv, http.MethodPost, "/api/deliverables/"+uuid.NewString()+"/submit", "student", tc.body)
			assert.Equal(t, tc.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestDeliverableHandler_DownloadWithoutArchive(t *testing.T) {
	svc := &mockDeliverableService{DownloadFn: func(ctx context.Context, p auth.Principal, id uuid.UUID) (*service.Download, error) {
		return nil, service.ErrNoArchive
	}}
	srv := testServer(t, Handlers{Deliverables: NewDeliverableHandler(svc, quietLogger())})

	w := do(t, srv, http.MethodGet, "/api/deliverables/"+uuid.NewString()+"/download", "teacher", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Deliverable has no archive", errorBody(t, w))
}

func TestReportHandler_Content(t *testing.T) {
	pid := uuid.New()
	svc := &mockReportService{ContentFn: func(ctx context.Context, q service.ContentQuery) (string, error) {
		assert.Equal(t, pid, q.PromotionID)
		assert.Equal(t, "Compilers", q.ProjectName)
		assert.Equal(t, "Group 1", q.GroupName)
		require.NotNil(t, q.SectionTitle)
		assert.Equal(t, "Intro", *q.SectionTitle)
		return "", nil
	}}
	srv := testServer(t, Handlers{Reports: NewReportHandler(svc, quietLogger())})

	path := "/api/reports/promotion/" + pid.String() + "/project/Compilers/project-group/Group%201/content?section=Intro"
	w := do(t, srv, http.MethodGet, path, "teacher", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"content":""}`, w.Body.String())
}

func TestDashboardHandler_Overview(t *testing.T) {
	avg := 0.42
	svc := &mockDashboardService{OverviewFn: func(ctx context.Context, id uuid.UUID) (*service.Overview, error) {
		return &service.Overview{ProjectID: id, TotalGroups: 3, SubmittedGroups: 1, PendingGroups: 2, ComplianceRate: 50, AverageSimilarity: &avg}, nil
	}}
	srv := testServer(t, Handlers{Dashboard: NewDashboardHandler(svc, quietLogger())})

	w := do(t, srv, http.MethodGet, "/api/teacher/promotion-projects/"+uuid.NewString()+"/overview", "teacher", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got service.Overview
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 2, got.PendingGroups)
	assert.Equal(t, 0.42, *got.AverageSimilarity)
}

func TestSimilarityHandler_Analyze(t *testing.T) {
	ppID := uuid.New()
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "accepted", wantStatus: http.StatusAccepted},
		{name: "too few deliverables", err: service.ErrNotEnoughDeliverables, wantStatus: http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockSimilarityService{AnalyzeFn: func(ctx context.Context, teacherID, got uuid.UUID) (*domain.SimilarityAnalysis, error) {
				assert.Equal(t, teacherPrincipal.ScopeID, teacherID)
				assert.Equal(t, ppID, got)
				if tc.err != nil {
					return nil, tc.err
				}
				return domain.NewSimilarityAnalysis(got, teacherID), nil
			}}
			srv := testServer(t, Handlers{Similarity: NewSimilarityHandler(svc, quietLogger())})

			w := do(t, srv, http.MethodPost, "/api/similarity/analyze", "teacher", `{"promotion_project_id":"`+ppID.String()+`"}`)
			require.Equal(t, tc.wantStatus, w.Code, w.Body.String())
			if tc.err != nil {
				assert.Equal(t, "need at least 2 deliverables to analyze similarity", errorBody(t, w))
				return
			}
			var resp AnalysisResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, domain.AnalysisPending, resp.Analysis.Status)
		})
	}
}
