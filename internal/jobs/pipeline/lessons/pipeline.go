package lessons

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"gorm.io/gorm"

	"github.com/yungbote/coursegen-backend/internal/domain/jobs"
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
	if in.TopicID == 0 {
		if id, err := strconv.ParseUint(jc.Job.Scope, 10, 64); err == nil {
			in.TopicID = uint(id)
		}
	}
	if in.TopicID == 0 {
		return apierr.Validation("lessons job needs a topic_id")
	}

	dbc := dbctx.New(ctx)
	topic, err := p.topics.GetByID(dbc, in.TopicID)
	if err != nil {
		return err
	}
	if topic.CourseID == nil || *topic.CourseID != courseID {
		return apierr.NotFound("topic %d does not belong to course %d", in.TopicID, courseID)
	}

	existing, err := p.lessons.CountByTopic(dbc, topic.ID)
	if err != nil {
		return err
	}
	if existing > 0 && !in.Regenerate {
		p.log.Info("Topic already has lessons, skipping", "course_id", courseID, "topic_id", topic.ID, "lessons", existing)
		jc.SetResult(Result{TopicID: topic.ID, Skipped: true})
		p.maybeEnqueueAssessment(ctx, jc.Job)
		return nil
	}

	var outlines []draftdoc.LessonOutline
	if len(topic.LessonOutlines) > 0 {
		if err := json.Unmarshal(topic.LessonOutlines, &outlines); err != nil {
			p.log.Warn("Ignoring unreadable lesson outlines", "topic_id", topic.ID, "error", err)
			outlines = nil
		}
	}
	sort.SliceStable(outlines, func(i, j int) bool { return outlines[i].Order < outlines[j].Order })
	count := in.LessonCount
	if count <= 0 {
		count = len(outlines)
	}
	if count <= 0 {
		count = DefaultLessonCount
	}

	if err := jc.Checkpoint(); err != nil {
		return err
	}
	jc.Progress("retrieve")
	snippets, err := p.retriever.SearchTexts(ctx, vector.NamespaceDocument,
		topic.Name+"\n"+topic.Description, p.topK,
		map[string]any{"course_id": courseID})
	if err != nil {
		return fmt.Errorf("retrieve snippets: %w", err)
	}

	skills := make([]string, 0, len(topic.Skills))
	for _, s := range topic.Skills {
		skills = append(skills, s.Name)
	}

	docs := make([]draftdoc.LessonDoc, 0, count)
	titles := make([]string, 0, count)
	for order := 1; order <= count; order++ {
		if err := jc.Checkpoint(); err != nil {
			return err
		}
		jc.Progress(fmt.Sprintf("lesson %d/%d", order, count))
		outline := ""
		if order <= len(outlines) {
			outline = outlines[order-1].Title
			if outlines[order-1].Summary != "" {
				outline += ": " + outlines[order-1].Summary
			}
		}
		vars := map[string]any{
			"Topic":       topic,
			"Skills":      skills,
			"Order":       order,
			"Count":       count,
			"Outline":     outline,
			"PriorTitles": titles,
			"Snippets":    snippets,
		}
		doc, err := p.generateLesson(ctx, vars, titles)
		if err != nil {
			var verr *draftdoc.ValidationError
			if !errors.As(err, &verr) {
				return err
			}
			p.log.Warn("Lesson failed validation, retrying", "topic_id", topic.ID, "order", order, "issues", len(verr.Issues))
			vars["Issues"] = verr.Issues
			doc, err = p.generateLesson(ctx, vars, titles)
			if errors.As(err, &verr) {
				return apierr.New(apierr.KindProviderInvalidOutput, verr)
			}
			if err != nil {
				return err
			}
		}
		docs = append(docs, doc)
		titles = append(titles, doc.Title)
	}

	if err := jc.Checkpoint(); err != nil {
		return err
	}
	jc.Progress("persist")
	rows := toLessons(docs)
	var saved []*learning.Lesson
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		saved, err = p.lessons.ReplaceForTopic(dbctx.Context{Ctx: ctx, Tx: tx}, topic.ID, rows)
		if err != nil {
			return err
		}
		return jc.Checkpoint()
	})
	if err != nil {
		return err
	}

	ids := make([]uint, 0, len(saved))
	for _, l := range saved {
		ids = append(ids, l.ID)
	}
	p.log.Info("Lessons generated", "course_id", courseID, "topic_id", topic.ID, "lessons", len(saved), "regenerate", in.Regenerate)

	p.indexExercises(ctx, courseID, topic.ID, saved)
	jc.SetResult(Result{TopicID: topic.ID, LessonIDs: ids})
	p.maybeEnqueueAssessment(ctx, jc.Job)
	return nil
}

func (p *Pipeline) generateLesson(ctx context.Context, vars map[string]any, priorTitles []string) (draftdoc.LessonDoc, error) {
	doc, fail := llm.GenerateInto[draftdoc.LessonDoc](ctx, p.llm, llm.Request{Prompt: prompts.Lesson, Vars: vars})
	if fail != nil {
		return draftdoc.LessonDoc{}, fail.AsError()
	}
	if err := draftdoc.ValidateLesson(doc, priorTitles); err != nil {
		return doc, err
	}
	return doc, nil
}

func toLessons(docs []draftdoc.LessonDoc) []*learning.Lesson {
	out := make([]*learning.Lesson, 0, len(docs))
	for _, d := range docs {
		sections := append([]draftdoc.SectionDoc(nil), d.Sections...)
		sort.SliceStable(sections, func(i, j int) bool { return sections[i].Order < sections[j].Order })
		l := &learning.Lesson{Title: d.Title, Description: d.Description}
		for _, s := range sections {
			sec := learning.LessonSection{
				Type:        learning.SectionType(s.Type),
				Content:     s.Content,
				Order:       s.Order,
				Explanation: s.Explanation,
			}
			if s.Type == string(learning.SectionQuiz) {
				sec.Options = s.Options
				sec.Answer = s.Answer
			}
			l.Sections = append(l.Sections, sec)
		}
		for _, e := range d.Exercises {
			ex := learning.Exercise{
				Title:        e.Title,
				Description:  e.Description,
				Difficulty:   e.Difficulty,
				Content:      e.Content,
				CodeTemplate: e.CodeTemplate,
				Executable:   e.Executable,
			}
			for _, tc := range e.TestCases {
				ex.TestCases = append(ex.TestCases, learning.ExerciseTestCase{
					Input:          tc.Input,
					ExpectedOutput: tc.ExpectedOutput,
					Explanation:    tc.Explanation,
				})
			}
			l.Exercises = append(l.Exercises, ex)
		}
		out = append(out, l)
	}
	return out
}

// indexExercises writes executable exercises to the exercise namespace.
// Failures are logged only; the lessons are already committed.
func (p *Pipeline) indexExercises(ctx context.Context, courseID, topicID uint, lessons []*learning.Lesson) {
	var texts []string
	var metas []map[string]any
	var ids []string
	for _, l := range lessons {
		for _, e := range l.Exercises {
			if !e.Executable {
				continue
			}
			text := e.Title + "\n" + e.Description + "\n" + e.Content
			ids = append(ids, "exercise:"+strconv.FormatUint(uint64(e.ID), 10))
			texts = append(texts, text)
			metas = append(metas, map[string]any{
				"course_id":   courseID,
				"topic_id":    topicID,
				"lesson_id":   l.ID,
				"exercise_id": e.ID,
				"difficulty":  e.Difficulty,
				"text":        text,
			})
		}
	}
	if len(texts) == 0 {
		return
	}
	vecs, err := p.retriever.EmbedBatch(ctx, texts)
	if err != nil {
		p.log.Warn("Failed to embed exercises", "topic_id", topicID, "error", err)
		return
	}
	batch := make([]vector.Vector, len(vecs))
	for i := range vecs {
		batch[i] = vector.Vector{ID: ids[i], Values: vecs[i], Metadata: metas[i]}
	}
	if err := p.retriever.UpsertMany(ctx, vector.NamespaceExercise, batch); err != nil {
		p.log.Warn("Failed to index exercises", "topic_id", topicID, "error", err)
	}
}

// maybeEnqueueAssessment starts test generation once every topic of the
// course has lessons and no test was generated yet.
func (p *Pipeline) maybeEnqueueAssessment(ctx context.Context, job jobs.GenerationJob) {
	if p.enqueuer == nil {
		return
	}
	dbc := dbctx.New(ctx)
	course, err := p.courses.GetByID(dbc, job.CourseID)
	if err != nil || course.TestGenerationStatus != learning.TestGenNotStarted {
		return
	}
	topics, err := p.topics.ListByCourse(dbc, job.CourseID)
	if err != nil || len(topics) == 0 {
		return
	}
	for _, t := range topics {
		n, err := p.lessons.CountByTopic(dbc, t.ID)
		if err != nil || n == 0 {
			return
		}
	}
	_, err = p.enqueuer.Enqueue(ctx, jobrt.Spec{
		CourseID:    job.CourseID,
		Kind:        jobs.KindAssessment,
		OwnerUserID: job.OwnerUserID,
	})
	switch {
	case err == nil:
		p.log.Info("All topics have lessons, test generation enqueued", "course_id", job.CourseID)
	case apierr.Is(err, apierr.KindConflict):
	default:
		p.log.Warn("Failed to enqueue test generation", "course_id", job.CourseID, "error", err)
	}
}
