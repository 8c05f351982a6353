package assessment

import (
	"gorm.io/gorm"

	repos "github.com/yungbote/coursegen-backend/internal/data/repos/learning"
	"github.com/yungbote/coursegen-backend/internal/domain/jobs"
	"github.com/yungbote/coursegen-backend/internal/platform/llm"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
)

const (
	DefaultQuestionCount   = 10
	DefaultDurationMinutes = 30
)

// Payload is the test-generation request. Zero values take the defaults.
type Payload struct {
	QuestionCount   int         `json:"question_count,omitempty"`
	DurationMinutes int         `json:"duration_minutes,omitempty"`
	Difficulty      *Difficulty `json:"difficulty,omitempty"`
}

type Result struct {
	TestID    uint `json:"test_id"`
	Questions int  `json:"questions"`
}

type Pipeline struct {
	db      *gorm.DB
	log     *logger.Logger
	courses repos.CourseRepo
	topics  repos.TopicRepo
	tests   repos.TestRepo
	llm     *llm.Facade
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	courses repos.CourseRepo,
	topics repos.TopicRepo,
	tests repos.TestRepo,
	facade *llm.Facade,
) *Pipeline {
	return &Pipeline{
		db:      db,
		log:     baseLog.With("job", "assessment"),
		courses: courses,
		topics:  topics,
		tests:   tests,
		llm:     facade,
	}
}

func (p *Pipeline) Kind() jobs.Kind { return jobs.KindAssessment }
