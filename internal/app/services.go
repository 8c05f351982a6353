package app

import (
	"fmt"

	"gorm.io/gorm"

	repos "github.com/yungbote/coursegen-backend/internal/data/repos/learning"
	"github.com/yungbote/coursegen-backend/internal/jobs/pipeline/assessment"
	"github.com/yungbote/coursegen-backend/internal/jobs/pipeline/composition"
	"github.com/yungbote/coursegen-backend/internal/jobs/pipeline/ingestion"
	"github.com/yungbote/coursegen-backend/internal/jobs/pipeline/lessons"
	"github.com/yungbote/coursegen-backend/internal/jobs/runner"
	jobrt "github.com/yungbote/coursegen-backend/internal/jobs/runtime"
	"github.com/yungbote/coursegen-backend/internal/learning/prompts"
	"github.com/yungbote/coursegen-backend/internal/platform/llm"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
	"github.com/yungbote/coursegen-backend/internal/platform/vector"
	"github.com/yungbote/coursegen-backend/internal/realtime"
	"github.com/yungbote/coursegen-backend/internal/services"
)

type Services struct {
	Runner *runner.Runner

	Course     services.CourseService
	Generation services.CourseGenerationService
	Review     services.ReviewService
	Jobs       services.JobService
	Assessment services.AssessmentService
	Tutor      services.TutorService
	Progress   *services.LessonProgressService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, rs repos.Set, clients *Clients, hub *realtime.Hub) (Services, error) {
	log.Info("Wiring services...")

	reg, err := prompts.Default()
	if err != nil {
		return Services{}, fmt.Errorf("load prompts: %w", err)
	}
	facade := llm.NewFacade(log, clients.LLM, reg, cfg.LLM.Timeout)
	retriever := vector.NewRetriever(log, clients.LLM, clients.Index, cfg.Retriever)

	// Job pipelines
	lessonsPipeline := lessons.New(db, log, rs.Courses, rs.Topics, rs.Lessons, facade, retriever, cfg.TopK)
	registry := jobrt.NewRegistry()
	for _, h := range []jobrt.Handler{
		composition.New(db, log, rs.Courses, rs.Drafts, clients.History, facade, retriever, cfg.TopK),
		lessonsPipeline,
		assessment.New(db, log, rs.Courses, rs.Topics, rs.Tests, facade),
		ingestion.New(log, clients.Converter, retriever),
	} {
		if err := registry.Register(h); err != nil {
			return Services{}, fmt.Errorf("register %s pipeline: %w", h.Kind(), err)
		}
	}

	tracker := services.NewCourseStatusTracker(db, log, rs.Courses)
	notifier := services.NewJobNotifier(hub)
	jobRunner := runner.New(log, cfg.Runner, registry, tracker, notifier)
	lessonsPipeline.UseEnqueuer(jobRunner)

	return Services{
		Runner:     jobRunner,
		Course:     services.NewCourseService(log, rs.Courses, rs.Topics),
		Generation: services.NewCourseGenerationService(log, rs.Courses, rs.Drafts, rs.Topics, jobRunner),
		Review:     services.NewReviewService(db, log, rs.Courses, rs.Drafts, rs.Topics, clients.History, jobRunner),
		Jobs:       services.NewJobService(log, jobRunner),
		Assessment: services.NewAssessmentService(log, rs.Assessments, facade),
		Tutor:      services.NewTutorService(log, rs.Topics, rs.Lessons, facade, retriever, clients.Memory, cfg.TopK),
		Progress:   services.NewLessonProgressService(log, rs.Lessons, rs.Progress),
	}, nil
}
