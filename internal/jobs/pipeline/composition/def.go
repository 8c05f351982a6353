package composition

import (
	"gorm.io/gorm"

	"github.com/yungbote/coursegen-backend/internal/data/docstore"
	repos "github.com/yungbote/coursegen-backend/internal/data/repos/learning"
	"github.com/yungbote/coursegen-backend/internal/domain/jobs"
	"github.com/yungbote/coursegen-backend/internal/platform/llm"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
	"github.com/yungbote/coursegen-backend/internal/platform/vector"
)

const (
	DefaultMaxTopics       = 5
	DefaultLessonsPerTopic = 3
)

// Payload is what the compose endpoint and a rejection with feedback enqueue.
type Payload struct {
	MaxTopics       int    `json:"max_topics"`
	LessonsPerTopic int    `json:"lessons_per_topic"`
	Feedback        string `json:"feedback,omitempty"`
}

type Result struct {
	DraftVersion int    `json:"draft_version"`
	SessionID    string `json:"session_id"`
	Topics       int    `json:"topics"`
}

type Pipeline struct {
	db        *gorm.DB
	log       *logger.Logger
	courses   repos.CourseRepo
	drafts    repos.DraftRepo
	history   docstore.DraftHistory
	llm       *llm.Facade
	retriever *vector.Retriever
	topK      int
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	courses repos.CourseRepo,
	drafts repos.DraftRepo,
	history docstore.DraftHistory,
	facade *llm.Facade,
	retriever *vector.Retriever,
	topK int,
) *Pipeline {
	if topK <= 0 {
		topK = 6
	}
	return &Pipeline{
		db:        db,
		log:       baseLog.With("job", "composition"),
		courses:   courses,
		drafts:    drafts,
		history:   history,
		llm:       facade,
		retriever: retriever,
		topK:      topK,
	}
}

func (p *Pipeline) Kind() jobs.Kind { return jobs.KindComposition }
