package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mygeslike/api/internal/config"
	"github.com/mygeslike/api/internal/platform/logger"
	"github.com/mygeslike/api/internal/platform/postgres"
	"github.com/mygeslike/api/internal/service"
	"github.com/mygeslike/api/internal/service/auth"
	"github.com/mygeslike/api/internal/store"
)

// commandContext opens the configuration and database lazily so that
// commands which need neither, like "migrate create", work anywhere.
// Tests replace the function fields.
type commandContext struct {
	users        func(ctx context.Context) (service.UserService, error)
	migrate      func(ctx context.Context, command string, args ...string) error
	create       func(dir, name string) error
	readPassword func(fd int) ([]byte, error)
	stdinFd      int

	once   sync.Once
	cfg    *config.Config
	db     *sql.DB
	logger *slog.Logger
	err    error
}

func newCommandContext() *commandContext {
	cc := &commandContext{
		readPassword: term.ReadPassword,
		stdinFd:      int(os.Stdin.Fd()),
	}
	cc.users = cc.openUsers
	cc.migrate = cc.runMigration
	cc.create = func(dir, name string) error {
		return postgres.CreateMigration(slog.New(slog.NewTextHandler(os.Stderr, nil)), dir, name)
	}
	return cc
}

func (c *commandContext) open(ctx context.Context) (*sql.DB, error) {
	c.once.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.err = fmt.Errorf("failed to load configuration: %w", err)
			return
		}
		c.cfg = cfg
		c.logger = logger.SetupWithWriter(cfg.Server, os.Stderr)

		db, err := sql.Open("pgx", cfg.Database.URL)
		if err != nil {
			c.err = fmt.Errorf("failed to open database connection: %w", err)
			return
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			c.err = fmt.Errorf("failed to ping database: %w", err)
			return
		}
		c.db = db
	})
	return c.db, c.err
}

func (c *commandContext) openUsers(ctx context.Context) (service.UserService, error) {
	db, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	return service.NewUserService(
		postgres.NewPostgresUserStore(db, c.logger),
		store.SQLTxManager{DB: db},
		auth.NewBcryptHasher(c.cfg.Auth.BCryptCost),
		c.logger,
	), nil
}

func (c *commandContext) runMigration(ctx context.Context, command string, args ...string) error {
	db, err := c.open(ctx)
	if err != nil {
		return err
	}
	return postgres.Migrate(ctx, db, c.logger, command, args...)
}

func (c *commandContext) close() {
	if c.db != nil {
		_ = c.db.Close()
		c.db = nil
	}
}

func newRootCommand(cc *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "admin",
		Short:         "MyGES Like operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newMigrateCommand(cc))
	rootCmd.AddCommand(newTeacherCommand(cc))
	rootCmd.AddCommand(newUsersCommand(cc))
	return rootCmd
}
