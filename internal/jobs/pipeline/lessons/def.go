package lessons

import (
	"gorm.io/gorm"

	repos "github.com/yungbote/coursegen-backend/internal/data/repos/learning"
	"github.com/yungbote/coursegen-backend/internal/domain/jobs"
	jobrt "github.com/yungbote/coursegen-backend/internal/jobs/runtime"
	"github.com/yungbote/coursegen-backend/internal/platform/llm"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
	"github.com/yungbote/coursegen-backend/internal/platform/vector"
)

const DefaultLessonCount = 3

// Payload targets one topic. LessonCount falls back to the topic's outlines.
type Payload struct {
	TopicID     uint `json:"topic_id"`
	Regenerate  bool `json:"regenerate,omitempty"`
	LessonCount int  `json:"lesson_count,omitempty"`
}

type Result struct {
	TopicID   uint   `json:"topic_id"`
	Skipped   bool   `json:"skipped,omitempty"`
	LessonIDs []uint `json:"lesson_ids,omitempty"`
}

type Pipeline struct {
	db        *gorm.DB
	log       *logger.Logger
	courses   repos.CourseRepo
	topics    repos.TopicRepo
	lessons   repos.LessonRepo
	llm       *llm.Facade
	retriever *vector.Retriever
	topK      int
	enqueuer  jobrt.Enqueuer
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	courses repos.CourseRepo,
	topics repos.TopicRepo,
	lessons repos.LessonRepo,
	facade *llm.Facade,
	retriever *vector.Retriever,
	topK int,
) *Pipeline {
	if topK <= 0 {
		topK = 6
	}
	return &Pipeline{
		db:        db,
		log:       baseLog.With("job", "lessons"),
		courses:   courses,
		topics:    topics,
		lessons:   lessons,
		llm:       facade,
		retriever: retriever,
		topK:      topK,
	}
}

// UseEnqueuer wires the runner in after construction; the runner needs the
// registry this pipeline is registered in.
func (p *Pipeline) UseEnqueuer(e jobrt.Enqueuer) { p.enqueuer = e }

func (p *Pipeline) Kind() jobs.Kind { return jobs.KindLessons }
