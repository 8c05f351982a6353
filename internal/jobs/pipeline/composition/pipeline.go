package composition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/coursegen-backend/internal/data/docstore"
	"github.com/yungbote/coursegen-backend/internal/domain/learning"
	jobrt "github.com/yungbote/coursegen-backend/internal/jobs/runtime"
	"github.com/yungbote/coursegen-backend/internal/learning/draftdoc"
	"github.com/yungbote/coursegen-backend/internal/learning/prompts"
	"github.com/yungbote/coursegen-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
	"github.com/yungbote/coursegen-backend/internal/platform/llm"
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
	if in.MaxTopics <= 0 {
		in.MaxTopics = DefaultMaxTopics
	}
	if in.LessonsPerTopic <= 0 {
		in.LessonsPerTopic = DefaultLessonsPerTopic
	}

	course, err := p.courses.GetByID(dbctx.New(ctx), courseID)
	if err != nil {
		return err
	}

	if err := jc.Checkpoint(); err != nil {
		return err
	}
	jc.Progress("retrieve")
	snippets, err := p.retriever.SearchTexts(ctx, vector.NamespaceDocument,
		strings.TrimSpace(course.Title+"\n"+course.Description), p.topK,
		map[string]any{"course_id": courseID})
	if err != nil {
		return fmt.Errorf("retrieve snippets: %w", err)
	}
	history, err := p.drafts.ListTurns(dbctx.New(ctx), courseID)
	if err != nil {
		return err
	}

	if err := jc.Checkpoint(); err != nil {
		return err
	}
	jc.Progress("generate")
	vars := map[string]any{
		"Title":           course.Title,
		"Description":     course.Description,
		"Level":           course.Level,
		"MaxTopics":       in.MaxTopics,
		"LessonsPerTopic": in.LessonsPerTopic,
		"Snippets":        snippets,
		"History":         history,
		"Feedback":        in.Feedback,
	}
	comp, err := p.generate(ctx, vars, in.MaxTopics, in.LessonsPerTopic)
	if err != nil {
		var verr *draftdoc.ValidationError
		if !errors.As(err, &verr) {
			return err
		}
		if err := jc.Checkpoint(); err != nil {
			return err
		}
		jc.Progress("repair")
		p.log.Warn("Composition failed validation, re-prompting", "course_id", courseID, "issues", len(verr.Issues))
		prev, _ := json.Marshal(comp)
		vars["PreviousOutput"] = string(prev)
		vars["Issues"] = verr.Issues
		comp, err = p.generate(ctx, vars, in.MaxTopics, in.LessonsPerTopic)
		if errors.As(err, &verr) {
			return apierr.New(apierr.KindProviderInvalidOutput, verr)
		}
		if err != nil {
			return err
		}
	}

	if err := jc.Checkpoint(); err != nil {
		return err
	}
	jc.Progress("persist")
	content := draftdoc.NewContent(comp, in.Feedback)
	content.LessonsPerTopic = in.LessonsPerTopic
	var draft, displaced *learning.Draft
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		var err error
		draft, displaced, err = p.drafts.Replace(dbc, courseID, jc.Job.SessionID, content)
		if err != nil {
			return err
		}
		if err := p.courses.SetCompositionStatus(dbc, courseID, learning.CompositionReady, ""); err != nil {
			return err
		}
		if err := p.drafts.AppendTurn(dbc, &learning.ReviewChatTurn{
			CourseID:     courseID,
			DraftVersion: draft.Version,
			Author:       learning.AuthorAgent,
			Message:      summarize(comp),
		}); err != nil {
			return err
		}
		return jc.Checkpoint()
	})
	if err != nil {
		return err
	}

	if displaced != nil && p.history != nil {
		if err := p.history.Archive(context.WithoutCancel(ctx), docstore.SnapshotOf(displaced)); err != nil {
			p.log.Warn("Failed to archive displaced draft", "course_id", courseID, "version", displaced.Version, "error", err)
		}
	}

	p.log.Info("Composition drafted", "course_id", courseID, "version", draft.Version, "topics", len(comp.Topics))
	jc.SetResult(Result{DraftVersion: draft.Version, SessionID: draft.SessionID, Topics: len(comp.Topics)})
	return nil
}

// generate returns the composition alongside a *draftdoc.ValidationError when
// the model answered but broke a rule, so the caller can repair it.
func (p *Pipeline) generate(ctx context.Context, vars map[string]any, maxTopics, lessonsPerTopic int) (draftdoc.Composition, error) {
	comp, fail := llm.GenerateInto[draftdoc.Composition](ctx, p.llm, llm.Request{Prompt: prompts.Composition, Vars: vars})
	if fail != nil {
		return draftdoc.Composition{}, fail.AsError()
	}
	if err := draftdoc.ValidateComposition(comp, maxTopics, lessonsPerTopic); err != nil {
		return comp, err
	}
	return comp, nil
}

func summarize(c draftdoc.Composition) string {
	names := make([]string, 0, len(c.Topics))
	for _, t := range c.Topics {
		names = append(names, t.Name)
	}
	return fmt.Sprintf("Drafted %d topics: %s.", len(c.Topics), strings.Join(names, ", "))
}
