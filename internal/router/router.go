package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"studytrack/backend/internal/handler"
	"studytrack/backend/internal/logging"
	"studytrack/backend/internal/metrics"
	"studytrack/backend/internal/middleware"
	"studytrack/backend/internal/service"
)

// Services is everything the API serves.
type Services struct {
	Auth     *service.AuthService
	Users    *service.UserService
	Subjects *service.SubjectService
	Timer    *service.TimerService
	Sessions *service.SessionService
	Stats    *service.StatsService
	Goals    *service.GoalService
}

type Options struct {
	CORS middleware.CORSConfig
	// AuthRateLimit is requests per minute per client IP on the auth
	// routes; 0 disables it.
	AuthRateLimit int
	Subscriber    handler.TimerSubscriber
	// StreamInterval is the display tick of timer event streams; 0 means
	// one second.
	StreamInterval time.Duration
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
}

func New(services Services, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	engine := gin.New()
	engine.Use(logging.Middleware(logger), gin.Recovery(), middleware.CORS(opts.CORS))
	if opts.Metrics != nil {
		engine.Use(opts.Metrics.Middleware())
		engine.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authHandler := handler.NewAuthHandler(services.Auth, services.Users)
	settingsHandler := handler.NewSettingsHandler(services.Users)
	subjectHandler := handler.NewSubjectHandler(services.Subjects)
	timerHandler := handler.NewTimerHandler(services.Timer, opts.Subscriber, opts.Metrics, logger)
	timerHandler.SetStreamInterval(opts.StreamInterval)
	sessionHandler := handler.NewSessionHandler(services.Sessions, services.Stats)
	goalHandler := handler.NewGoalHandler(services.Goals)

	api := engine.Group("/api")
	auth := api.Group("/auth")
	auth.Use(middleware.RateLimit(middleware.NewRateLimiter(opts.AuthRateLimit)))
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	private := api.Group("")
	private.Use(middleware.Auth(services.Auth))
	private.GET("/me", authHandler.Me)
	private.GET("/settings", settingsHandler.Get)
	private.PUT("/settings", settingsHandler.Update)

	subjects := private.Group("/subjects")
	subjects.GET("", subjectHandler.List)
	subjects.POST("", subjectHandler.Create)
	subjects.PUT("/:id", subjectHandler.Update)
	subjects.POST("/:id/archive", subjectHandler.ToggleArchive)

	timer := private.Group("/timer")
	timer.GET("", timerHandler.GetState)
	timer.POST("/start", timerHandler.Start)
	timer.POST("/pause", timerHandler.Pause)
	timer.POST("/stop", timerHandler.Stop)
	timer.POST("/reset", timerHandler.Reset)
	timer.PUT("/mode", timerHandler.SetMode)
	timer.PUT("/subject", timerHandler.SetSubject)
	timer.PUT("/duration", timerHandler.SetDuration)
	timer.GET("/events", timerHandler.Events)

	sessions := private.Group("/sessions")
	sessions.GET("", sessionHandler.List)
	sessions.GET("/grouped", sessionHandler.Grouped)
	sessions.GET("/heatmap", sessionHandler.Heatmap)
	sessions.GET("/export", sessionHandler.Export)

	private.GET("/dashboard", sessionHandler.Dashboard)

	goals := private.Group("/goals")
	goals.GET("/today", goalHandler.Today)
	goals.PUT("/target", goalHandler.SetTarget)
	goals.POST("/habits", goalHandler.AddHabit)
	goals.POST("/habits/:id/toggle", goalHandler.ToggleHabit)
	goals.DELETE("/habits/:id", goalHandler.DeleteHabit)

	return engine
}
