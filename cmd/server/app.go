package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/mygeslike/api/internal/analyzer"
	"github.com/mygeslike/api/internal/analyzer/builtin"
	"github.com/mygeslike/api/internal/api"
	"github.com/mygeslike/api/internal/config"
	"github.com/mygeslike/api/internal/events"
	"github.com/mygeslike/api/internal/platform/email"
	"github.com/mygeslike/api/internal/platform/postgres"
	"github.com/mygeslike/api/internal/platform/storage"
	"github.com/mygeslike/api/internal/service"
	"github.com/mygeslike/api/internal/service/auth"
	"github.com/mygeslike/api/internal/store"
	"github.com/mygeslike/api/internal/task"
)

// builtinAnalyzer selects the in-process comparator instead of a
// subprocess.
const builtinAnalyzer = "builtin"

const analyzerBackoff = 2 * time.Second

// application holds the wired dependencies and owns their shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	files      storage.Store
	jwtService auth.JWTService
	taskRunner *task.TaskRunner
	handlers   *api.Handlers
}

// newApplication builds stores, services and handlers, then starts the
// task runner so that analyses interrupted by a previous shutdown resume.
func newApplication(ctx context.Context, cfg *config.Config, log *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{config: cfg, logger: log, db: db}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	log.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes,
		"refresh_token_lifetime_minutes", cfg.Auth.RefreshTokenLifetimeMinutes)

	app.files, err = storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize file storage: %w", err)
	}

	mailer, err := email.New(cfg.Email, cfg.Email.FromName, log.With("component", "email"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize email sender: %w", err)
	}

	users := postgres.NewPostgresUserStore(db, log)
	promotions := postgres.NewPostgresPromotionStore(db, log)
	projects := postgres.NewPostgresProjectStore(db, log)
	promotionProjects := postgres.NewPostgresPromotionProjectStore(db, log)
	groups := postgres.NewPostgresProjectGroupStore(db, log)
	rules := postgres.NewPostgresRuleStore(db, log)
	deliverables := postgres.NewPostgresDeliverableStore(db, log)
	sections := postgres.NewPostgresReportSectionStore(db, log)
	reports := postgres.NewPostgresReportStore(db, log)
	similarity := postgres.NewPostgresSimilarityStore(db, log)
	tasks := postgres.NewPostgresTaskStore(db, log)
	tx := store.SQLTxManager{DB: db}

	hasher := auth.NewBcryptHasher(cfg.Auth.BCryptCost)
	mail := service.MailSettings{
		AppName:  cfg.Email.FromName,
		LoginURL: loginURL(cfg.Server.ClientURL),
	}

	emitter := events.NewInMemoryEventEmitter(log)
	pool := analyzer.NewPool(newComparator(cfg.Analyzer, log), analyzer.PoolConfig{
		Workers:     cfg.Analyzer.WorkerCount,
		JobTimeout:  cfg.Analyzer.Timeout,
		MaxAttempts: cfg.Analyzer.MaxAttempts,
		Backoff:     analyzerBackoff,
	}, log)

	similaritySvc := service.NewSimilarityService(
		similarity, deliverables, app.files, pool, emitter, cfg.Analyzer.SuspiciousThreshold, log)

	registry := task.NewRegistry()
	registry.Register(task.TaskTypeSimilarityAnalysis, task.SimilarityAnalysisFactory(similaritySvc, log))
	app.taskRunner = task.NewTaskRunner(tasks, registry, task.TaskRunnerConfig{
		WorkerCount:  cfg.Tasks.WorkerCount,
		QueueSize:    cfg.Tasks.QueueSize,
		StuckTaskAge: cfg.Tasks.StuckTaskAge,
	}, log)
	emitter.RegisterHandler(task.NewTaskFactoryEventHandler(registry, app.taskRunner, log))

	authSvc := auth.NewService(users, tx, app.jwtService, hasher, log)
	userSvc := service.NewUserService(users, tx, hasher, log)
	promotionSvc := service.NewPromotionService(promotions, promotionProjects, users, tx, hasher, mailer, mail, log)
	projectSvc := service.NewProjectService(projects, app.files, log)
	promotionProjectSvc := service.NewPromotionProjectService(
		promotionProjects, promotions, projects, groups, sections, tx, log)
	groupSvc := service.NewGroupService(groups, promotionProjects, promotions, tx, log)
	ruleSvc := service.NewRuleService(rules, log)
	deliverableSvc := service.NewDeliverableService(deliverables, groups, promotionProjects, rules, app.files, log)
	reportSvc := service.NewReportService(sections, reports, groups, tx, log)
	dashboardSvc := service.NewDashboardService(promotionProjects, projects, groups, deliverables, similarity, log)

	app.handlers = &api.Handlers{
		Auth:              api.NewAuthHandler(authSvc, userSvc, log),
		Promotions:        api.NewPromotionHandler(promotionSvc, log),
		Projects:          api.NewProjectHandler(projectSvc, log),
		PromotionProjects: api.NewPromotionProjectHandler(promotionProjectSvc, log),
		Groups:            api.NewGroupHandler(groupSvc, log),
		Rules:             api.NewRuleHandler(ruleSvc, log),
		Deliverables:      api.NewDeliverableHandler(deliverableSvc, log),
		Reports:           api.NewReportHandler(reportSvc, log),
		Dashboard:         api.NewDashboardHandler(dashboardSvc, log),
		Similarity:        api.NewSimilarityHandler(similaritySvc, log),
	}

	if err := app.taskRunner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start task runner: %w", err)
	}

	log.Info("application initialized")
	return app, nil
}

// newComparator returns the in-process comparator for "builtin" and the
// subprocess bridge otherwise.
func newComparator(cfg config.AnalyzerConfig, log *slog.Logger) analyzer.Comparator {
	if cfg.Command == builtinAnalyzer {
		log.Info("using builtin archive comparator", "threshold", cfg.SuspiciousThreshold)
		return builtin.New(cfg.SuspiciousThreshold)
	}
	log.Info("using analyzer subprocess", "command", cfg.Command, "script", cfg.Script)
	return analyzer.NewBridge(cfg, log)
}

func loginURL(clientURL string) string {
	if clientURL == "" {
		return ""
	}
	return strings.TrimRight(clientURL, "/") + "/login"
}

// Run serves HTTP until ctx is done, then shuts everything down.
func (app *application) Run(ctx context.Context) error {
	router := newRouter(app.logger, app.handlers, app.jwtService, app.uploadsDir())
	if err := app.serve(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// uploadsDir is the directory served under /uploads/projects, or empty
// when files live in a bucket.
func (app *application) uploadsDir() string {
	if _, ok := app.files.(*storage.LocalStore); !ok {
		return ""
	}
	return app.config.Storage.LocalDir
}

func (app *application) cleanup() {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}
	if c, ok := app.files.(io.Closer); ok {
		if err := c.Close(); err != nil {
			app.logger.Error("error closing file storage", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}
	app.logger.Info("application shutdown completed")
}
