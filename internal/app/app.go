package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/willvault/core/internal/config"
	"github.com/willvault/core/internal/database"
	"github.com/willvault/core/internal/middleware"
	"github.com/willvault/core/internal/modules/archive"
	"github.com/willvault/core/internal/modules/draft"
	"github.com/willvault/core/internal/modules/editor"
	"github.com/willvault/core/internal/pkg/backup"
	pkgcron "github.com/willvault/core/internal/pkg/cron"
	"github.com/willvault/core/internal/pkg/genapi"
	pkgredis "github.com/willvault/core/internal/pkg/redis"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	db     *gorm.DB
	rc     *pkgredis.Client
	editor *editor.Manager
	logger *zap.Logger
	cancel context.CancelFunc
	sched  *pkgcron.Scheduler
}

// New initializes the application: store → redis → sessions → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	rc, err := pkgredis.Connect(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg)))

	channel := backup.NewChannel(backup.NewRedisKV(rc), logger)
	gen := genapi.New(cfg.Generator.URL, cfg.Generator.Token, cfg.GeneratorTimeout())
	drafts := draft.NewService(db)
	mgr := editor.NewManager(editor.Defaults{
		Delay:      cfg.AutosaveDelay(),
		Disabled:   !cfg.AutosaveEnabled(),
		MaxRetries: cfg.Autosave.MaxRetries,
		RetryDelay: cfg.AutosaveRetryDelay(),
	}, gen, channel, drafts, logger)

	archiveSvc, err := archive.NewService(db, cfg.Archive, cfg.Paths.Archives, logger)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sched := pkgcron.New()
	if cfg.Archive.Enabled {
		sched.Register(archiveSvc.Job(cfg.ArchiveInterval()))
		go sched.Start(ctx)
	}

	app := &App{
		cfg:    cfg,
		router: router,
		db:     db,
		rc:     rc,
		editor: mgr,
		logger: logger,
		cancel: cancel,
		sched:  sched,
	}
	app.registerRoutes(drafts, gen, mgr, archiveSvc)

	return app, nil
}

func corsConfig(cfg *config.AppConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		patterns := cfg.AllowedOrigins
		c.AllowOriginFunc = func(origin string) bool {
			return originAllowed(patterns, origin)
		}
	} else {
		c.AllowOriginFunc = func(origin string) bool { return true }
	}
	return c
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown closes editing sessions and background goroutines.
func (a *App) Shutdown() {
	a.editor.CloseAll()
	a.cancel()
	if err := a.rc.Close(); err != nil {
		a.logger.Warn("redis close failed", zap.Error(err))
	}
}

var processStart = time.Now()
