package ingestion

import (
	"github.com/yungbote/coursegen-backend/internal/clients/docconvert"
	"github.com/yungbote/coursegen-backend/internal/domain/jobs"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
	"github.com/yungbote/coursegen-backend/internal/platform/vector"
)

const (
	ChunkSize    = 1200
	ChunkOverlap = 200
)

// Payload names one source document. The pair is the conversion idempotency key.
type Payload struct {
	URL      string `json:"url"`
	Revision string `json:"revision,omitempty"`
}

type Result struct {
	SourceURL string `json:"source_url"`
	Chunks    int    `json:"chunks"`
}

type Pipeline struct {
	log       *logger.Logger
	converter docconvert.Converter
	retriever *vector.Retriever
}

// New accepts a nil converter; jobs then fail with a validation error.
func New(baseLog *logger.Logger, converter docconvert.Converter, retriever *vector.Retriever) *Pipeline {
	return &Pipeline{
		log:       baseLog.With("job", "ingestion"),
		converter: converter,
		retriever: retriever,
	}
}

func (p *Pipeline) Kind() jobs.Kind { return jobs.KindIngestion }
