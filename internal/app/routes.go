package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/healthmate/core/internal/middleware"
	"github.com/healthmate/core/internal/modules/admin"
	"github.com/healthmate/core/internal/modules/file"
	"github.com/healthmate/core/internal/modules/gemini"
	"github.com/healthmate/core/internal/modules/report"
	"github.com/healthmate/core/internal/modules/stats"
	"github.com/healthmate/core/internal/modules/user"
	"github.com/healthmate/core/internal/modules/vitals"
	"github.com/healthmate/core/internal/pkg/mail"
	pkgredis "github.com/healthmate/core/internal/pkg/redis"
	"github.com/healthmate/core/internal/pkg/taskqueue"
)

func (a *App) registerRoutes(rc *pkgredis.Client) {
	authMW := middleware.Auth(a.db)

	api := a.router.Group("/api")
	api.Use(middleware.RateLimit(rc.Raw()))
	api.Use(middleware.Idempotence(rc.Raw()))

	// OptionalAuth must resolve the user before the cache runs, so
	// authenticated responses are never stored or served cross-user.
	// Public share links are the only cacheable surface.
	api.Use(middleware.OptionalAuth(a.db))
	api.Use(middleware.HTTPCache(rc.Raw(), middleware.HTTPCacheOptions{
		TTL: 15 * time.Second,
	}))

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": 1, "status": "healthy"})
	})

	v1 := api.Group("/v1")

	aiSvc := gemini.New(a.cfg.Gemini, a.cfg.Cloudinary.CloudName, a.logger.Named("gemini"))
	fileSvc := file.NewService(a.cfg.Cloudinary, a.logger.Named("file"))
	tasks := taskqueue.NewService(rc)

	reportSvc := report.NewService(a.db, aiSvc, fileSvc, a.logger.Named("report"))
	report.NewHandler(reportSvc, tasks, a.logger.Named("report")).RegisterRoutes(v1, authMW)

	vitalsSvc := vitals.NewService(a.db, aiSvc, a.logger.Named("vitals"))
	vitals.NewHandler(vitalsSvc).RegisterRoutes(v1, authMW)

	var mailer user.Mailer
	if a.cfg.Mail.Enable {
		mailer = mail.New(mail.BuildMailConfig(a.cfg))
	}
	userSvc := user.NewService(a.db, mailer, rc, a.cfg.FrontendURL, a.logger.Named("user"))
	user.NewHandler(userSvc).RegisterRoutes(v1, authMW)

	file.NewHandler(fileSvc).RegisterRoutes(v1, authMW)
	stats.NewHandler(stats.NewService(a.db)).RegisterRoutes(v1, authMW)

	admin.NewHandler(tasks, a.sched).RegisterRoutes(v1, middleware.AdminOnly(a.db))
}
