package app

import (
	"gorm.io/gorm"

	httpH "github.com/yungbote/coursegen-backend/internal/http/handlers"
	httpMW "github.com/yungbote/coursegen-backend/internal/http/middleware"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
	"github.com/yungbote/coursegen-backend/internal/realtime"
)

type Handlers struct {
	Health     *httpH.HealthHandler
	Course     *httpH.CourseHandler
	Job        *httpH.JobHandler
	Assessment *httpH.AssessmentHandler
	Tutor      *httpH.TutorHandler
	Realtime   *httpH.RealtimeHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, cfg Config, svcs Services, auth *httpMW.AuthMiddleware, hub *realtime.Hub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     httpH.NewHealthHandler(db),
		Course:     httpH.NewCourseHandler(svcs.Course, svcs.Generation, svcs.Review),
		Job:        httpH.NewJobHandler(svcs.Jobs),
		Assessment: httpH.NewAssessmentHandler(svcs.Assessment),
		Tutor:      httpH.NewTutorHandler(log, svcs.Tutor, cfg.DevMode),
		Realtime:   httpH.NewRealtimeHandler(log, hub, auth, realtime.DefaultRouter(log, svcs.Progress), cfg.CORSOrigins),
	}
}
