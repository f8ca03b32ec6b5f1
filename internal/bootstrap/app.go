package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"applique-backend/internal/attachments"
	"applique-backend/internal/compile"
	"applique-backend/internal/compose"
	"applique-backend/internal/generate"
	"applique-backend/internal/generations"
	"applique-backend/internal/services/health"
	"applique-backend/internal/shared/config"
	"applique-backend/internal/shared/server"
	"applique-backend/internal/shared/storage/db"
	"applique-backend/internal/shared/storage/object"
	localstore "applique-backend/internal/shared/storage/object/local"
	s3store "applique-backend/internal/shared/storage/object/s3"
	"applique-backend/internal/shared/telemetry"
	"applique-backend/internal/templates"
	"applique-backend/internal/variables"
)

// App holds shared dependencies. Router is nil when built with BuildCore.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore

	Templates          *templates.Store
	Attachments        *attachments.Catalog
	Generations        *generations.Service
	Generate           *generate.Service
	TemplateHandler    *templates.Handler
	AttachmentHandler  *attachments.Handler
	GenerateHandler    *generate.Handler
	GenerationsHandler *generations.Handler
}

// Build prepares every dependency and the HTTP router. The template watcher
// runs until ctx is done or Close is called.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	app, err := BuildCore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := app.Templates.Start(ctx); err != nil {
		telemetry.Warn("bootstrap.template_watch_failed", map[string]any{"err": err})
	}

	app.TemplateHandler = templates.NewHandler(app.Templates)
	app.AttachmentHandler = attachments.NewHandler(app.Attachments)
	app.GenerateHandler = generate.NewHandler(app.Generate)
	app.GenerationsHandler = generations.NewHandler(app.Generations)
	app.Router = server.NewRouter(server.RouterDeps{
		Config:             app.Config,
		Health:             health.NewService(app.DB, cfg.LatexCommand, cfg.DefaultTemplatesDir),
		TemplateHandler:    app.TemplateHandler,
		AttachmentHandler:  app.AttachmentHandler,
		GenerateHandler:    app.GenerateHandler,
		GenerationsHandler: app.GenerationsHandler,
	})
	return app, nil
}

// BuildCore prepares services without HTTP wiring or file watching, for the CLI.
func BuildCore(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, repo, err := buildLedger(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tmpl, err := templates.NewStore(templates.Config{
		UserDir:      cfg.UserTemplatesDir,
		DefaultDir:   cfg.DefaultTemplatesDir,
		CacheSize:    cfg.TemplateCacheSize,
		HotReload:    cfg.TemplateHotReload,
		Placeholders: compose.Placeholders,
	})
	if err != nil {
		if sqlDB != nil {
			sqlDB.Close()
		}
		return nil, err
	}

	app := &App{
		Config:      cfg,
		DB:          sqlDB,
		Store:       store,
		Templates:   tmpl,
		Attachments: &attachments.Catalog{Dir: cfg.AttachmentsDir},
		Generations: &generations.Service{Repo: repo, Store: store},
	}
	app.Generate = &generate.Service{
		Templates:   tmpl,
		Attachments: app.Attachments,
		Profile:     variables.FileProfile{Path: cfg.ProfilePath},
		Postings:    variables.PostingDir{Dir: cfg.PostingsDir},
		Policy:      buildPolicy(cfg.VariablePrecedence),
		Compiler: &compile.Orchestrator{
			Compiler: &compile.LaTeX{
				Command: cfg.LatexCommand,
				Passes:  cfg.LatexPasses,
				Timeout: cfg.LatexTimeout,
			},
			MaxParallel: cfg.CompileMaxParallel,
		},
		Store:   store,
		Ledger:  app.Generations,
		WorkDir: cfg.WorkDir,
	}

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":          cfg.Env,
		"object_store": cfg.ObjectStoreType,
		"ledger":       cfg.LedgerDriver,
		"latex":        cfg.LatexCommand,
		"max_parallel": cfg.CompileMaxParallel,
	})
	return app, nil
}

// Close stops the template watcher and releases the database.
func (a *App) Close() error {
	var errs []error
	if a.Templates != nil {
		errs = append(errs, a.Templates.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.OutputDir), nil
	}
}

// buildLedger opens the configured ledger backend. Outside production a
// database that cannot be reached falls back to memory so local work goes on.
func buildLedger(ctx context.Context, cfg config.Config) (*sql.DB, generations.Repo, error) {
	var (
		dialect db.Dialect
		dsn     string
	)
	switch cfg.LedgerDriver {
	case "postgres":
		dialect, dsn = db.Postgres, cfg.DatabaseURL
	case "sqlite":
		dialect, dsn = db.SQLite, cfg.SQLitePath
	default:
		return nil, generations.NewMemoryRepo(), nil
	}

	sqlDB, err := db.Connect(ctx, dialect, dsn, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err == nil {
		err = db.RunMigrations(ctx, sqlDB, dialect)
		if err != nil {
			sqlDB.Close()
		}
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.ledger_fallback", map[string]any{"driver": cfg.LedgerDriver, "err": err})
			return nil, generations.NewMemoryRepo(), nil
		}
		return nil, nil, fmt.Errorf("ledger %s: %w", cfg.LedgerDriver, err)
	}

	if dialect == db.SQLite {
		return sqlDB, &generations.SQLiteRepo{DB: sqlDB}, nil
	}
	return sqlDB, &generations.PGRepo{DB: sqlDB}, nil
}

func buildPolicy(precedence []string) variables.Policy {
	if len(precedence) == 0 {
		return variables.DefaultPolicy()
	}
	return variables.Policy{Precedence: precedence}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
