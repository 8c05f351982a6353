package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/coursegen-backend/internal/http/handlers"
	httpMW "github.com/yungbote/coursegen-backend/internal/http/middleware"
	"github.com/yungbote/coursegen-backend/internal/observability"
	"github.com/yungbote/coursegen-backend/internal/pkg/ctxutil"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	CORSOrigins    []string
	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler     *httpH.HealthHandler
	CourseHandler     *httpH.CourseHandler
	JobHandler        *httpH.JobHandler
	AssessmentHandler *httpH.AssessmentHandler
	TutorHandler      *httpH.TutorHandler
	RealtimeHandler   *httpH.RealtimeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	r.Use(httpMW.Metrics())
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	r.GET("/metrics", gin.WrapH(observability.Handler()))

	// Realtime authenticates from the token query itself.
	if cfg.RealtimeHandler != nil {
		r.GET("/ws", cfg.RealtimeHandler.Serve)
	}

	protected := r.Group("/")
	if cfg.AuthMiddleware != nil {
		protected.Use(cfg.AuthMiddleware.RequireAuth())
	}

	// Admin
	admin := protected.Group("/admin")
	if cfg.AuthMiddleware != nil {
		admin.Use(cfg.AuthMiddleware.RequireRole(ctxutil.RoleAdmin))
	}
	if cfg.CourseHandler != nil {
		admin.POST("/courses", cfg.CourseHandler.CreateCourse)
		admin.GET("/courses/:id", cfg.CourseHandler.GetCourse)
		admin.POST("/courses/:id/compose", cfg.CourseHandler.Compose)
		admin.GET("/courses/:id/draft", cfg.CourseHandler.GetDraft)
		admin.POST("/courses/:id/draft/approve", cfg.CourseHandler.ReviewDraft)
		admin.POST("/courses/:id/draft/chat", cfg.CourseHandler.DraftChat)
		admin.GET("/courses/:id/draft/history", cfg.CourseHandler.DraftHistory)
		admin.POST("/courses/:id/lessons/generate", cfg.CourseHandler.GenerateLessons)
		admin.POST("/courses/:id/documents", cfg.CourseHandler.AddDocument)

		protected.POST("/courses/:id/tests/generate", cfg.CourseHandler.GenerateTests)
	}

	// Jobs
	if cfg.JobHandler != nil {
		protected.GET("/jobs/:id", cfg.JobHandler.GetJob)
		protected.POST("/jobs/:id/cancel", cfg.JobHandler.CancelJob)
	}

	// Learner
	if cfg.AssessmentHandler != nil {
		protected.POST("/test-sessions/:id/analyze", cfg.AssessmentHandler.AnalyzeSession)
	}
	if cfg.TutorHandler != nil {
		protected.POST("/tutor/chat", cfg.TutorHandler.Chat)
	}

	return r
}
