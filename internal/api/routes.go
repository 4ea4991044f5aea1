package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mygeslike/api/internal/api/middleware"
	"github.com/mygeslike/api/internal/domain"
)

// Handlers groups every API handler mounted under /api.
type Handlers struct {
	Auth              *AuthHandler
	Promotions        *PromotionHandler
	Projects          *ProjectHandler
	PromotionProjects *PromotionProjectHandler
	Groups            *GroupHandler
	Rules             *RuleHandler
	Deliverables      *DeliverableHandler
	Reports           *ReportHandler
	Dashboard         *DashboardHandler
	Similarity        *SimilarityHandler
}

// Routes registers the API on r. authenticate guards every route except
// register, login and refresh.
func (h *Handlers) Routes(r chi.Router, authenticate func(http.Handler) http.Handler) {
	teacher := middleware.RequireRole(domain.RoleTeacher)
	student := middleware.RequireRole(domain.RoleStudent)

	r.Post("/auth/register", h.Auth.Register)
	r.Post("/auth/login", h.Auth.Login)
	r.Post("/auth/refresh", h.Auth.RefreshToken)

	r.Group(func(r chi.Router) {
		r.Use(authenticate)

		r.Get("/auth/me", h.Auth.Me)
		r.Put("/users/{id}", h.Auth.UpdateUser)
		r.Delete("/users/{id}", h.Auth.DeleteUser)

		r.Route("/promotions", func(r chi.Router) {
			r.Use(teacher)
			r.Get("/", h.Promotions.List)
			r.Post("/", h.Promotions.Create)
			r.Post("/students", h.Promotions.AddStudents)
			r.Put("/{id}", h.Promotions.Update)
			r.Delete("/{id}", h.Promotions.Delete)
		})

		r.Route("/projects", func(r chi.Router) {
			r.Use(teacher)
			r.Get("/me", h.Projects.ListMine)
			r.Post("/", h.Projects.Create)
			r.Put("/{id}", h.Projects.Update)
			r.Delete("/{id}", h.Projects.Delete)
		})

		r.Route("/promotion-projects", func(r chi.Router) {
			r.With(student).Get("/current-student", h.PromotionProjects.ListForStudent)
			r.With(student).Get("/student/project/{name}", h.PromotionProjects.DetailForStudent)
			r.With(teacher).Get("/teacher/project/{name}", h.PromotionProjects.DetailForTeacher)
			r.With(teacher).Post("/", h.PromotionProjects.Create)
			r.With(teacher).Put("/{id}", h.PromotionProjects.Update)
			r.With(teacher).Delete("/{id}", h.PromotionProjects.Delete)
		})

		r.Route("/project-groups", func(r chi.Router) {
			r.Post("/", h.Groups.Create)
			r.With(teacher).Post("/all", h.Groups.CreateAll)
			r.With(teacher).Put("/{id}", h.Groups.Update)
			r.With(teacher).Delete("/{id}", h.Groups.Delete)
			r.Get("/promotion-project/{id}", h.Groups.ListByPromotionProject)
			r.With(student).Get("/promotion-project/{id}/me", h.Groups.MyGroup)
		})
		r.Post("/project-group-students", h.Groups.AddStudent)
		r.Delete("/project-group-students", h.Groups.RemoveStudent)

		r.Route("/deliverable-rules", func(r chi.Router) {
			r.Get("/", h.Rules.List)
			r.Get("/{id}", h.Rules.Get)
			r.Get("/promotion-project/{id}", h.Rules.ListByPromotionProject)
			r.Group(func(r chi.Router) {
				r.Use(teacher)
				r.Post("/", h.Rules.Create)
				r.Post("/assign", h.Rules.Assign)
				r.Patch("/{id}", h.Rules.Update)
				r.Delete("/{id}", h.Rules.Delete)
				r.Delete("/{id}/promotion-project/{ppId}", h.Rules.Unassign)
			})
		})

		r.Route("/deliverables", func(r chi.Router) {
			r.With(student).Post("/", h.Deliverables.Create)
			r.Get("/project-group/{id}", h.Deliverables.ListByGroup)
			r.Get("/{id}", h.Deliverables.Get)
			r.Patch("/{id}", h.Deliverables.Update)
			r.Delete("/{id}", h.Deliverables.Delete)
			r.Post("/{id}/archive", h.Deliverables.UploadArchive)
			r.Post("/{id}/git", h.Deliverables.AttachGit)
			r.Post("/{id}/submit", h.Deliverables.Submit)
			r.Get("/{id}/download", h.Deliverables.Download)
			r.Get("/{id}/file", h.Deliverables.File)
			r.Post("/{id}/validate", h.Deliverables.Validate)
			r.Get("/{id}/validation-results", h.Deliverables.ValidationResults)
			r.Get("/{id}/compliance", h.Deliverables.Compliance)
		})

		r.Route("/report-sections", func(r chi.Router) {
			r.Get("/promotion-project/{id}", h.Reports.ListSections)
			r.With(teacher).Post("/", h.Reports.CreateSection)
			r.With(teacher).Patch("/{id}", h.Reports.UpdateSection)
			r.With(teacher).Delete("/{id}", h.Reports.DeleteSection)
		})

		r.Route("/reports", func(r chi.Router) {
			r.With(student).Post("/", h.Reports.Upsert)
			r.Get("/project-group/{id}", h.Reports.ListByGroup)
			r.Get("/promotion/{id}", h.Reports.ListByPromotion)
			r.Get("/promotion/{id}/project/{projectName}/project-group/{groupName}/content", h.Reports.Content)
		})

		r.Route("/teacher/promotion-projects/{id}", func(r chi.Router) {
			r.Use(teacher)
			r.Get("/overview", h.Dashboard.Overview)
			r.Get("/submissions", h.Dashboard.Submissions)
			r.Get("/compliance", h.Dashboard.Compliance)
			r.Get("/similarity", h.Dashboard.Similarity)
		})

		r.Route("/similarity", func(r chi.Router) {
			r.Use(teacher)
			r.Post("/analyze", h.Similarity.Analyze)
			r.Get("/analyses/{id}", h.Similarity.GetAnalysis)
			r.Get("/project/{id}", h.Similarity.ProjectResults)
			r.Get("/deliverable/{id}", h.Similarity.DeliverableResults)
		})
	})
}
