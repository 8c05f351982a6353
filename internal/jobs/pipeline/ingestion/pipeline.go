package ingestion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/coursegen-backend/internal/clients/docconvert"
	jobrt "github.com/yungbote/coursegen-backend/internal/jobs/runtime"
	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
	"github.com/yungbote/coursegen-backend/internal/platform/vector"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil {
		return nil
	}
	ctx := jc.Ctx
	courseID := jc.Job.CourseID

	var in Payload
	if err := jc.DecodePayload(&in); err != nil {
		return err
	}
	in.URL = strings.TrimSpace(in.URL)
	if in.URL == "" {
		return apierr.Validation("ingestion job needs a url")
	}
	if p.converter == nil {
		return apierr.New(apierr.KindValidation, docconvert.ErrDisabled)
	}

	if err := jc.Checkpoint(); err != nil {
		return err
	}
	jc.Progress("convert")
	text, err := p.converter.Convert(ctx, in.URL, in.Revision)
	if errors.Is(err, docconvert.ErrDisabled) {
		return apierr.New(apierr.KindValidation, err)
	}
	if err != nil {
		return fmt.Errorf("convert %s: %w", in.URL, err)
	}

	chunks := Chunk(text, ChunkSize, ChunkOverlap)
	if len(chunks) == 0 {
		p.log.Warn("Converted document is empty", "course_id", courseID, "url", in.URL)
		jc.SetResult(Result{SourceURL: in.URL})
		return nil
	}

	if err := jc.Checkpoint(); err != nil {
		return err
	}
	jc.Progress("embed")
	vecs, err := p.retriever.EmbedBatch(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}

	if err := jc.Checkpoint(); err != nil {
		return err
	}
	jc.Progress("index")
	key := docconvert.MessageID(in.URL, in.Revision)[:16]
	batch := make([]vector.Vector, len(chunks))
	for i, c := range chunks {
		batch[i] = vector.Vector{
			ID:     fmt.Sprintf("doc:%d:%s:%d", courseID, key, i),
			Values: vecs[i],
			Metadata: map[string]any{
				"course_id":  courseID,
				"source_url": in.URL,
				"chunk":      i,
				"text":       c,
			},
		}
	}
	if err := p.retriever.UpsertMany(ctx, vector.NamespaceDocument, batch); err != nil {
		return fmt.Errorf("index chunks: %w", err)
	}

	p.log.Info("Document ingested", "course_id", courseID, "url", in.URL, "chunks", len(chunks))
	jc.SetResult(Result{SourceURL: in.URL, Chunks: len(chunks)})
	return nil
}
