package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/events"
	"github.com/mygeslike/api/internal/platform/storage"
	"github.com/mygeslike/api/internal/store"
)

// Each mock embeds its store interface: calling a method without a
// configured Fn panics, which flags unexpected store access.

var noTx = store.TxFunc(func(ctx context.Context, fn store.TxFn) error { return fn(ctx, nil) })

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLocalFiles(t *testing.T) *storage.LocalStore {
	t.Helper()
	files, err := storage.NewLocalStore(t.TempDir(), "http://files.test/")
	require.NoError(t, err)
	return files
}

type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "hashed:" + p, nil }

func (plainHasher) Compare(h, p string) error {
	if h != "hashed:"+p {
		return domain.ErrUnauthorized
	}
	return nil
}

type emitterFunc func(ctx context.Context, e *events.TaskRequestEvent) error

func (f emitterFunc) EmitEvent(ctx context.Context, e *events.TaskRequestEvent) error { return f(ctx, e) }

type mockUserStore struct {
	store.UserStore
	CreateFn     func(ctx context.Context, u *domain.User) error
	GetByIDFn    func(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmailFn func(ctx context.Context, email string) (*domain.User, error)
	UpdateFn     func(ctx context.Context, u *domain.User) error
	DeleteFn     func(ctx context.Context, id uuid.UUID) error
	ListFn       func(ctx context.Context, role *domain.Role) ([]domain.User, error)
}

func (m *mockUserStore) List(ctx context.Context, role *domain.Role) ([]domain.User, error) {
	return m.ListFn(ctx, role)
}

func (m *mockUserStore) Create(ctx context.Context, u *domain.User) error { return m.CreateFn(ctx, u) }
func (m *mockUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return m.GetByIDFn(ctx, id)
}
func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.GetByEmailFn(ctx, email)
}
func (m *mockUserStore) Update(ctx context.Context, u *domain.User) error { return m.UpdateFn(ctx, u) }
func (m *mockUserStore) Delete(ctx context.Context, id uuid.UUID) error  { return m.DeleteFn(ctx, id) }
func (m *mockUserStore) WithTx(*sql.Tx) store.UserStore                  { return m }

type mockPromotionStore struct {
	store.PromotionStore
	GetByIDFn        func(ctx context.Context, id uuid.UUID) (*domain.Promotion, error)
	UpdateFn         func(ctx context.Context, p *domain.Promotion) error
	AddStudentFn     func(ctx context.Context, promotionID, studentID uuid.UUID) error
	ListStudentIDsFn func(ctx context.Context, promotionID uuid.UUID) ([]uuid.UUID, error)
}

func (m *mockPromotionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Promotion, error) {
	return m.GetByIDFn(ctx, id)
}
func (m *mockPromotionStore) Update(ctx context.Context, p *domain.Promotion) error {
	return m.UpdateFn(ctx, p)
}
func (m *mockPromotionStore) AddStudent(ctx context.Context, promotionID, studentID uuid.UUID) error {
	return m.AddStudentFn(ctx, promotionID, studentID)
}
func (m *mockPromotionStore) ListStudentIDs(ctx context.Context, promotionID uuid.UUID) ([]uuid.UUID, error) {
	return m.ListStudentIDsFn(ctx, promotionID)
}
func (m *mockPromotionStore) WithTx(*sql.Tx) store.PromotionStore { return m }

type mockProjectStore struct {
	store.ProjectStore
	CreateFn  func(ctx context.Context, p *domain.Project) error
	GetByIDFn func(ctx context.Context, id uuid.UUID) (*domain.Project, error)
	UpdateFn  func(ctx context.Context, p *domain.Project) error
	DeleteFn  func(ctx context.Context, id uuid.UUID) error
}

func (m *mockProjectStore) Create(ctx context.Context, p *domain.Project) error { return m.CreateFn(ctx, p) }
func (m *mockProjectStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	return m.GetByIDFn(ctx, id)
}
func (m *mockProjectStore) Update(ctx context.Context, p *domain.Project) error { return m.UpdateFn(ctx, p) }
func (m *mockProjectStore) Delete(ctx context.Context, id uuid.UUID) error      { return m.DeleteFn(ctx, id) }
func (m *mockProjectStore) WithTx(*sql.Tx) store.ProjectStore                   { return m }

type mockPromotionProjectStore struct {
	store.PromotionProjectStore
	CreateFn  func(ctx context.Context, pp *domain.PromotionProject) error
	GetByIDFn func(ctx context.Context, id uuid.UUID) (*domain.PromotionProject, error)
	UpdateFn  func(ctx context.Context, pp *domain.PromotionProject) error
}

func (m *mockPromotionProjectStore) Create(ctx context.Context, pp *domain.PromotionProject) error {
	return m.CreateFn(ctx, pp)
}
func (m *mockPromotionProjectStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.PromotionProject, error) {
	return m.GetByIDFn(ctx, id)
}
func (m *mockPromotionProjectStore) Update(ctx context.Context, pp *domain.PromotionProject) error {
	return m.UpdateFn(ctx, pp)
}
func (m *mockPromotionProjectStore) WithTx(*sql.Tx) store.PromotionProjectStore { return m }

type mockGroupStore struct {
	store.ProjectGroupStore
	CreateFn          func(ctx context.Context, g *domain.ProjectGroup) error
	GetByIDFn         func(ctx context.Context, id uuid.UUID) (*domain.ProjectGroup, error)
	CountFn           func(ctx context.Context, promotionProjectID uuid.UUID) (int, error)
	IsMemberFn        func(ctx context.Context, groupID, studentID uuid.UUID) (bool, error)
	AddStudentFn      func(ctx context.Context, m domain.ProjectGroupStudent) error
	RemoveStudentFn   func(ctx context.Context, groupID, studentID uuid.UUID) error
	ListWithMembersFn func(ctx context.Context, promotionProjectID uuid.UUID) ([]domain.ProjectGroupWithMembers, error)
}

func (m *mockGroupStore) Create(ctx context.Context, g *domain.ProjectGroup) error {
	return m.CreateFn(ctx, g)
}
func (m *mockGroupStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ProjectGroup, error) {
	return m.GetByIDFn(ctx, id)
}
func (m *mockGroupStore) CountByPromotionProject(ctx context.Context, id uuid.UUID) (int, error) {
	return m.CountFn(ctx, id)
}
func (m *mockGroupStore) IsMember(ctx context.Context, groupID, studentID uuid.UUID) (bool, error) {
	return m.IsMemberFn(ctx, groupID, studentID)
}
func (m *mockGroupStore) AddStudent(ctx context.Context, gs domain.ProjectGroupStudent) error {
	return m.AddStudentFn(ctx, gs)
}
func (m *mockGroupStore) RemoveStudent(ctx context.Context, groupID, studentID uuid.UUID) error {
	return m.RemoveStudentFn(ctx, groupID, studentID)
}
func (m *mockGroupStore) ListWithMembers(ctx context.Context, id uuid.UUID) ([]domain.ProjectGroupWithMembers, error) {
	return m.ListWithMembersFn(ctx, id)
}
func (m *mockGroupStore) WithTx(*sql.Tx) store.ProjectGroupStore { return m }

type mockDeliverableStore struct {
	store.DeliverableStore
	GetByIDFn                func(ctx context.Context, id uuid.UUID) (*domain.Deliverable, error)
	UpdateFn                 func(ctx context.Context, d *domain.Deliverable) error
	ListByPromotionProjectFn func(ctx context.Context, id uuid.UUID) ([]domain.Deliverable, error)
	SaveRuleResultsFn        func(ctx context.Context, deliverableID, groupID uuid.UUID, results []domain.RuleResult, at time.Time) error
	GetRuleResultsFn         func(ctx context.Context, id uuid.UUID) ([]domain.RuleResult, *time.Time, error)
	ListRuleResultsFn        func(ctx context.Context, id uuid.UUID) (map[uuid.UUID][]domain.RuleResult, error)
}

func (m *mockDeliverableStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Deliverable, error) {
	return m.GetByIDFn(ctx, id)
}
func (m *mockDeliverableStore) Update(ctx context.Context, d *domain.Deliverable) error {
	return m.UpdateFn(ctx, d)
}
func (m *mockDeliverableStore) ListByPromotionProject(ctx context.Context, id uuid.UUID) ([]domain.Deliverable, error) {
	return m.ListByPromotionProjectFn(ctx, id)
}
func (m *mockDeliverableStore) SaveRuleResults(ctx context.Context, deliverableID, groupID uuid.UUID, results []domain.RuleResult, at time.Time) error {
	return m.SaveRuleResultsFn(ctx, deliverableID, groupID, results, at)
}
func (m *mockDeliverableStore) GetRuleResults(ctx context.Context, id uuid.UUID) ([]domain.RuleResult, *time.Time, error) {
	return m.GetRuleResultsFn(ctx, id)
}
func (m *mockDeliverableStore) ListRuleResultsByPromotionProject(ctx context.Context, id uuid.UUID) (map[uuid.UUID][]domain.RuleResult, error) {
	return m.ListRuleResultsFn(ctx, id)
}
func (m *mockDeliverableStore) WithTx(*sql.Tx) store.DeliverableStore { return m }

type mockRuleStore struct {
	store.RuleStore
	CreateFn                 func(ctx context.Context, r *domain.DeliverableRule) error
	GetByIDFn                func(ctx context.Context, id uuid.UUID) (*domain.DeliverableRule, error)
	UpdateFn                 func(ctx context.Context, r *domain.DeliverableRule) error
	AssignFn                 func(ctx context.Context, ruleID, promotionProjectID uuid.UUID) error
	ListByPromotionProjectFn func(ctx context.Context, id uuid.UUID) ([]domain.DeliverableRule, error)
}

func (m *mockRuleStore) Create(ctx context.Context, r *domain.DeliverableRule) error {
	return m.CreateFn(ctx, r)
}
func (m *mockRuleStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.DeliverableRule, error) {
	return m.GetByIDFn(ctx, id)
}
func (m *mockRuleStore) Update(ctx context.Context, r *domain.DeliverableRule) error {
	return m.UpdateFn(ctx, r)
}
func (m *mockRuleStore) Assign(ctx context.Context, ruleID, promotionProjectID uuid.UUID) error {
	return m.AssignFn(ctx, ruleID, promotionProjectID)
}

func (m *mockRuleStore) ListByPromotionProject(ctx context.Context, id uuid.UUID) ([]domain.DeliverableRule, error) {
	return m.ListByPromotionProjectFn(ctx, id)
}
func (m *mockRuleStore) WithTx(*sql.Tx) store.RuleStore { return m }

type mockSectionStore struct {
	store.ReportSectionStore
	CreateFn      func(ctx context.Context, s *domain.ReportSection) error
	GetByIDFn     func(ctx context.Context, id uuid.UUID) (*domain.ReportSection, error)
	UpdateFn      func(ctx context.Context, s *domain.ReportSection) error
	DeleteFn      func(ctx context.Context, id uuid.UUID) error
	CountFn       func(ctx context.Context, id, teacherID uuid.UUID) (int, error)
	ShiftOrdersFn func(ctx context.Context, id, teacherID uuid.UUID, from, to, delta int) error
}

func (m *mockSectionStore) Create(ctx context.Context, s *domain.ReportSection) error {
	return m.CreateFn(ctx, s)
}
func (m *mockSectionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReportSection, error) {
	return m.GetByIDFn(ctx, id)
}
func (m *mockSectionStore) Update(ctx context.Context, s *domain.ReportSection) error {
	return m.UpdateFn(ctx, s)
}
func (m *mockSectionStore) Delete(ctx context.Context, id uuid.UUID) error { return m.DeleteFn(ctx, id) }
func (m *mockSectionStore) CountByOwner(ctx context.Context, id, teacherID uuid.UUID) (int, error) {
	return m.CountFn(ctx, id, teacherID)
}
func (m *mockSectionStore) ShiftOrders(ctx context.Context, id, teacherID uuid.UUID, from, to, delta int) error {
	return m.ShiftOrdersFn(ctx, id, teacherID, from, to, delta)
}
func (m *mockSectionStore) WithTx(*sql.Tx) store.ReportSectionStore { return m }

type mockSimilarityStore struct {
	store.SimilarityStore
	CreateAnalysisFn func(ctx context.Context, a *domain.SimilarityAnalysis) error
	GetAnalysisFn    func(ctx context.Context, id uuid.UUID) (*domain.SimilarityAnalysis, error)
	UpdateAnalysisFn func(ctx context.Context, a *domain.SimilarityAnalysis) error
	LatestFn         func(ctx context.Context, id uuid.UUID, status domain.AnalysisStatus) (*domain.SimilarityAnalysis, error)
	UpsertResultFn   func(ctx context.Context, r *domain.SimilarityResult) error
}

func (m *mockSimilarityStore) CreateAnalysis(ctx context.Context, a *domain.SimilarityAnalysis) error {
	return m.CreateAnalysisFn(ctx, a)
}
func (m *mockSimilarityStore) GetAnalysis(ctx context.Context, id uuid.UUID) (*domain.SimilarityAnalysis, error) {
	return m.GetAnalysisFn(ctx, id)
}
func (m *mockSimilarityStore) UpdateAnalysis(ctx context.Context, a *domain.SimilarityAnalysis) error {
	return m.UpdateAnalysisFn(ctx, a)
}
func (m *mockSimilarityStore) LatestAnalysis(ctx context.Context, id uuid.UUID, status domain.AnalysisStatus) (*domain.SimilarityAnalysis, error) {
	return m.LatestFn(ctx, id, status)
}
func (m *mockSimilarityStore) UpsertResult(ctx context.Context, r *domain.SimilarityResult) error {
	return m.UpsertResultFn(ctx, r)
}
func (m *mockSimilarityStore) WithTx(*sql.Tx) store.SimilarityStore { return m }
