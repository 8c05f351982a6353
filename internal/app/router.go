package app

import (
	"net"

	httpserver "github.com/yungbote/coursegen-backend/internal/http"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
)

const serviceName = "coursegen-backend"

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware) *httpserver.Server {
	return httpserver.NewServer(net.JoinHostPort("", cfg.Port), httpserver.RouterConfig{
		Log:               log,
		ServiceName:       serviceName,
		CORSOrigins:       cfg.CORSOrigins,
		AuthMiddleware:    middleware.Auth,
		HealthHandler:     handlers.Health,
		CourseHandler:     handlers.Course,
		JobHandler:        handlers.Job,
		AssessmentHandler: handlers.Assessment,
		TutorHandler:      handlers.Tutor,
		RealtimeHandler:   handlers.Realtime,
	})
}
