package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vivianur/hackathon-web/internal/handler"
	"github.com/vivianur/hackathon-web/internal/metrics"
	"github.com/vivianur/hackathon-web/internal/middleware"
)

type Handlers struct {
	Auth     *handler.AuthHandler
	Pomodoro *handler.PomodoroHandler
	Alerts   *handler.AlertHandler
	Settings *handler.SettingsHandler
	Tasks    *handler.TaskHandler
}

func New(
	tokens middleware.TokenParser,
	handlers Handlers,
	collector *metrics.Collector,
	logger zerolog.Logger,
	corsOrigins []string,
) *gin.Engine {
	engine := gin.New()
	engine.Use(
		middleware.RequestLogger(logger, collector),
		gin.Recovery(),
		middleware.CORS(corsOrigins),
	)

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(collector.Handler()))

	api := engine.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/register", handlers.Auth.Register)
	auth.POST("/login", handlers.Auth.Login)

	protected := api.Group("")
	protected.Use(middleware.Auth(tokens))

	me := protected.Group("/me")
	me.GET("", handlers.Auth.Me)
	me.PUT("", handlers.Auth.UpdateProfile)

	pomodoro := protected.Group("/pomodoro")
	pomodoro.GET("/state", handlers.Pomodoro.GetState)
	pomodoro.POST("/focus", handlers.Pomodoro.StartFocus)
	pomodoro.POST("/break", handlers.Pomodoro.StartBreak)
	pomodoro.POST("/pause", handlers.Pomodoro.Pause)
	pomodoro.POST("/resume", handlers.Pomodoro.Resume)
	pomodoro.POST("/stop", handlers.Pomodoro.Stop)
	pomodoro.GET("/history", handlers.Pomodoro.GetHistory)
	pomodoro.GET("/events", handlers.Pomodoro.Events)

	alerts := protected.Group("/alerts")
	alerts.GET("", handlers.Alerts.Get)
	alerts.POST("/dismiss", handlers.Alerts.Dismiss)

	settings := protected.Group("/settings")
	settings.GET("", handlers.Settings.Get)
	settings.PUT("", handlers.Settings.Update)
	settings.POST("/reset", handlers.Settings.Reset)

	tasks := protected.Group("/tasks")
	tasks.GET("", handlers.Tasks.List)
	tasks.POST("", handlers.Tasks.Create)
	tasks.GET("/:id", handlers.Tasks.Get)
	tasks.PUT("/:id", handlers.Tasks.Update)
	tasks.DELETE("/:id", handlers.Tasks.Delete)
	tasks.PUT("/:id/status", handlers.Tasks.UpdateStatus)
	tasks.POST("/:id/subtasks", handlers.Tasks.AddSubtask)
	tasks.PUT("/:id/subtasks/:subtaskId", handlers.Tasks.UpdateSubtask)
	tasks.DELETE("/:id/subtasks/:subtaskId", handlers.Tasks.DeleteSubtask)

	return engine
}
