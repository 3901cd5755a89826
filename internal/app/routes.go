package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/willvault/core/internal/modules/archive"
	"github.com/willvault/core/internal/modules/draft"
	"github.com/willvault/core/internal/modules/editor"
	"github.com/willvault/core/internal/modules/setting"
	"github.com/willvault/core/internal/pkg/genapi"
	"github.com/willvault/core/internal/pkg/response"
)

const apiPrefix = "/api/v1"

func (a *App) registerRoutes(drafts *draft.Service, gen *genapi.Client, mgr *editor.Manager, archiveSvc *archive.Service) {
	r := a.router

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	appInfo := gin.H{
		"name":     "willvault-core",
		"version":  "1.0.0",
		"homepage": "https://github.com/willvault/core",
	}

	api := r.Group(apiPrefix)

	api.GET("", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/info", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": "pong"}) })
	api.GET("/uptime", func(c *gin.Context) {
		uptimeMs := time.Since(processStart).Milliseconds()
		c.JSON(http.StatusOK, gin.H{
			"timestamp": uptimeMs,
			"humanize":  humanizeDuration(time.Duration(uptimeMs) * time.Millisecond),
		})
	})

	draft.NewHandler(drafts, gen).RegisterRoutes(api)
	setting.NewHandler(setting.NewService(a.db)).RegisterRoutes(api)
	editor.NewHandler(mgr).RegisterRoutes(api)
	archive.NewHandler(archiveSvc).RegisterRoutes(api)

	api.GET("/jobs", func(c *gin.Context) {
		response.OK(c, a.sched.List())
	})
	api.POST("/jobs/:name/run", func(c *gin.Context) {
		if err := a.sched.Run(c.Request.Context(), c.Param("name")); err != nil {
			response.NotFoundMsg(c, err.Error())
			return
		}
		response.NoContent(c)
	})
}

func humanizeDuration(d time.Duration) string {
	if d < time.Minute {
		return d.Truncate(time.Second).String()
	}
	if d < time.Hour {
		return d.Truncate(time.Minute).String()
	}
	if d < 24*time.Hour {
		return d.Truncate(time.Hour).String()
	}
	return d.Truncate(24 * time.Hour).String()
}
