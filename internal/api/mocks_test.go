package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mygeslike/api/internal/api/shared"
	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/service"
	"github.com/mygeslike/api/internal/service/auth"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Test principals, selected per request with the X-Test-As header.
var (
	teacherPrincipal = auth.Principal{UserID: uuid.New(), Role: domain.RoleTeacher, ScopeID: uuid.New()}
	studentPrincipal = auth.Principal{UserID: uuid.New(), Role: domain.RoleStudent, ScopeID: uuid.New()}
)

// fakeAuthenticate stands in for the JWT middleware.
func fakeAuthenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("X-Test-As") {
		case "teacher":
			r = r.WithContext(shared.WithPrincipal(r.Context(), teacherPrincipal))
		case "student":
			r = r.WithContext(shared.WithPrincipal(r.Context(), studentPrincipal))
		default:
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// testServer mounts h the way the server does. Nil handlers are filled
// with handlers over empty mocks.
func testServer(t *testing.T, h Handlers) http.Handler {
	t.Helper()
	log := quietLogger()
	if h.Auth == nil {
		h.Auth = NewAuthHandler(&mockAuthService{}, &mockUserService{}, log)
	}
	if h.Promotions == nil {
		h.Promotions = NewPromotionHandler(&mockPromotionService{}, log)
	}
	if h.Projects == nil {
		h.Projects = NewProjectHandler(&mockProjectService{}, log)
	}
	if h.PromotionProjects == nil {
		h.PromotionProjects = NewPromotionProjectHandler(&mockPromotionProjectService{}, log)
	}
	if h.Groups == nil {
		h.Groups = NewGroupHandler(&mockGroupService{}, log)
	}
	if h.Rules == nil {
		h.Rules = NewRuleHandler(&mockRuleService{}, log)
	}
	if h.Deliverables == nil {
		h.Deliverables = NewDeliverableHandler(&mockDeliverableService{}, log)
	}
	if h.Reports == nil {
		h.Reports = NewReportHandler(&mockReportService{}, log)
	}
	if h.Dashboard == nil {
		h.Dashboard = NewDashboardHandler(&mockDashboardService{}, log)
	}
	if h.Similarity == nil {
		h.Similarity = NewSimilarityHandler(&mockSimilarityService{}, log)
	}
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) { h.Routes(r, fakeAuthenticate) })
	return r
}

func do(t *testing.T, srv http.Handler, method, path, as, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != "" {
		req.Header.Set("X-Test-As", as)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body shared.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

type mockAuthService struct {
	auth.Service
	RegisterFn func(ctx context.Context, in auth.RegisterInput) (*domain.User, *auth.TokenPair, error)
	LoginFn    func(ctx context.Context, email, password string) (*domain.User, *auth.TokenPair, error)
	MeFn       func(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*domain.User, *auth.TokenPair, error) {
	return m.RegisterFn(ctx, in)
}
func (m *mockAuthService) Login(ctx context.Context, email, password string) (*domain.User, *auth.TokenPair, error) {
	return m.LoginFn(ctx, email, password)
}
func (m *mockAuthService) Me(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return m.MeFn(ctx, id)
}

type mockUserService struct {
	service.UserService
	UpdateUserFn func(ctx context.Context, actorID, id uuid.UUID, in service.UpdateUserInput) (*domain.User, error)
}

func (m *mockUserService) UpdateUser(ctx context.Context, actorID, id uuid.UUID, in service.UpdateUserInput) (*domain.User, error) {
	return m.UpdateUserFn(ctx, actorID, id, in)
}

type mockPromotionService struct {
	service.PromotionService
	ListFn        func(ctx context.Context) ([]domain.Promotion, error)
	CreateFn      func(ctx context.Context, teacherID uuid.UUID, in service.CreatePromotionInput) (*domain.Promotion, error)
	AddStudentsFn func(ctx context.Context, in []service.NewStudentInput) ([]domain.User, error)
}

func (m *mockPromotionService) List(ctx context.Context) ([]domain.Promotion, error) {
	return m.ListFn(ctx)
}
func (m *mockPromotionService) Create(ctx context.Context, teacherID uuid.UUID, in service.CreatePromotionInput) (*domain.Promotion, error) {
	return m.CreateFn(ctx, teacherID, in)
}
func (m *mockPromotionService) AddStudents(ctx context.Context, in []service.NewStudentInput) ([]domain.User, error) {
	return m.AddStudentsFn(ctx, in)
}

type mockProjectService struct {
	service.ProjectService
	CreateFn func(ctx context.Context, teacherID uuid.UUID, in service.CreateProjectInput, file *service.Upload) (*domain.Project, error)
}

func (m *mockProjectService) Create(ctx context.Context, teacherID uuid.UUID, in service.CreateProjectInput, file *service.Upload) (*domain.Project, error) {
	return m.CreateFn(ctx, teacherID, in, file)
}

type mockPromotionProjectService struct {
	service.PromotionProjectService
	UpdateFn func(ctx context.Context, id uuid.UUID, in service.UpdatePromotionProjectInput) (*domain.PromotionProject, error)
}

func (m *mockPromotionProjectService) Update(ctx context.Context, id uuid.UUID, in service.UpdatePromotionProjectInput) (*domain.PromotionProject, error) {
	return m.UpdateFn(ctx, id, in)
}

type mockGroupService struct {
	service.GroupService
	AddStudentFn func(ctx context.Context, p auth.Principal, m domain.ProjectGroupStudent) error
}

func (m *mockGroupService) AddStudent(ctx context.Context, p auth.Principal, gs domain.ProjectGroupStudent) error {
	return m.AddStudentFn(ctx, p, gs)
}

type mockRuleService struct {
	service.RuleService
	AssignFn func(ctx context.Context, ruleID, ppID uuid.UUID) error
}

func (m *mockRuleService) Assign(ctx context.Context, ruleID, ppID uuid.UUID) error {
	return m.AssignFn(ctx, ruleID, ppID)
}

type mockDeliverableService struct {
	service.DeliverableService
	UploadArchiveFn func(ctx context.Context, p auth.Principal, id uuid.UUID, file *service.Upload) (*domain.Deliverable, *domain.ValidationReport, error)
	SubmitFn        func(ctx context.Context, p auth.Principal, id uuid.UUID, in service.SubmitInput) (*service.Submission, error)
	DownloadFn      func(ctx context.Context, p auth.Principal, id uuid.UUID) (*service.Download, error)
}

func (m *mockDeliverableService) UploadArchive(ctx context.Context, p auth.Principal, id uuid.UUID, file *service.Upload) (*domain.Deliverable, *domain.ValidationReport, error) {
	return m.UploadArchiveFn(ctx, p, id, file)
}
func (m *mockDeliverableService) Submit(ctx context.Context, p auth.Principal, id uuid.UUID, in service.SubmitInput) (*service.Submission, error) {
	return m.SubmitFn(ctx, p, id, in)
}
func (m *mockDeliverableService) Download(ctx context.Context, p auth.Principal, id uuid.UUID) (*service.Download, error) {
	return m.DownloadFn(ctx, p, id)
}

type mockReportService struct {
	service.ReportService
	ContentFn func(ctx context.Context, q service.ContentQuery) (string, error)
}

func (m *mockReportService) Content(ctx context.Context, q service.ContentQuery) (string, error) {
	return m.ContentFn(ctx, q)
}

type mockDashboardService struct {
	service.DashboardService
	OverviewFn func(ctx context.Context, id uuid.UUID) (*service.Overview, error)
}

func (m *mockDashboardService) Overview(ctx context.Context, id uuid.UUID) (*service.Overview, error) {
	return m.OverviewFn(ctx, id)
}

type mockSimilarityService struct {
	service.SimilarityService
	AnalyzeFn func(ctx context.Context, teacherID, ppID uuid.UUID) (*domain.SimilarityAnalysis, error)
}

func (m *mockSimilarityService) Analyze(ctx context.Context, teacherID, ppID uuid.UUID) (*domain.SimilarityAnalysis, error) {
	return m.AnalyzeFn(ctx, teacherID, ppID)
}
