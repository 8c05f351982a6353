package assessment

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/coursegen-backend/internal/domain/learning"
	jobrt "github.com/yungbote/coursegen-backend/internal/jobs/runtime"
	"github.com/yungbote/coursegen-backend/internal/learning/draftdoc"
	"github.com/yungbote/coursegen-backend/internal/learning/prompts"
	"github.com/yungbote/coursegen-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
	"github.com/yungbote/coursegen-backend/internal/platform/llm"
)

type topicSkills struct {
	Name   string
	Skills []string
}

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
	if in.QuestionCount <= 0 {
		in.QuestionCount = DefaultQuestionCount
	}
	if in.DurationMinutes <= 0 {
		in.DurationMinutes = DefaultDurationMinutes
	}
	diff, err := NormalizeDifficulty(in.Difficulty)
	if err != nil {
		return err
	}

	dbc := dbctx.New(ctx)
	course, err := p.courses.GetByID(dbc, courseID)
	if err != nil {
		return err
	}
	topics, err := p.topics.ListByCourse(dbc, courseID)
	if err != nil {
		return err
	}
	if len(topics) == 0 {
		return apierr.Validation("course %d has no topics to test", courseID)
	}
	skills := map[string]string{}
	catalog := make([]topicSkills, 0, len(topics))
	for _, t := range topics {
		ts := topicSkills{Name: t.Name}
		for _, s := range t.Skills {
			skills[draftdoc.NormalizeName(s.Name)] = t.Name
			ts.Skills = append(ts.Skills, s.Name)
		}
		catalog = append(catalog, ts)
	}

	if err := jc.Checkpoint(); err != nil {
		return err
	}
	jc.Progress("generate")
	easy, medium, hard := diff.Counts(in.QuestionCount)
	vars := map[string]any{
		"Title":           course.Title,
		"DurationMinutes": in.DurationMinutes,
		"QuestionCount":   in.QuestionCount,
		"Easy":            easy,
		"Medium":          medium,
		"Hard":            hard,
		"Topics":          catalog,
	}
	mix := &draftdoc.DifficultyMix{Easy: easy, Medium: medium, Hard: hard}
	doc, err := p.generate(ctx, vars, skills, in.QuestionCount, mix)
	if err != nil {
		var verr *draftdoc.ValidationError
		if !errors.As(err, &verr) {
			return err
		}
		if err := jc.Checkpoint(); err != nil {
			return err
		}
		jc.Progress("repair")
		vars["Issues"] = verr.Issues
		doc, err = p.generate(ctx, vars, skills, in.QuestionCount, mix)
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
	diffJSON, _ := json.Marshal(diff)
	test := &learning.Test{
		CourseID:        courseID,
		Title:           doc.Title,
		DurationMinutes: in.DurationMinutes,
		Difficulty:      datatypes.JSON(diffJSON),
	}
	if test.Title == "" {
		test.Title = course.Title + " entry test"
	}
	for _, q := range doc.Questions {
		tq := learning.TestQuestion{
			Type:       learning.QuestionType(q.Type),
			Prompt:     q.Prompt,
			Answer:     q.Answer,
			TopicName:  skills[draftdoc.NormalizeName(q.Skill)],
			SkillName:  q.Skill,
			Difficulty: q.Difficulty,
		}
		if q.Type == string(learning.QuestionMultipleChoice) {
			tq.Options = q.Options
		}
		test.Questions = append(test.Questions, tq)
	}
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if _, err := p.tests.Create(dbc, test); err != nil {
			return err
		}
		if err := p.courses.SetTestGenerationStatus(dbc, courseID, learning.TestGenSuccess, ""); err != nil {
			return err
		}
		return jc.Checkpoint()
	})
	if err != nil {
		return err
	}

	p.log.Info("Entry test generated", "course_id", courseID, "test_id", test.ID, "questions", len(test.Questions))
	jc.SetResult(Result{TestID: test.ID, Questions: len(test.Questions)})
	return nil
}

func (p *Pipeline) generate(ctx context.Context, vars map[string]any, skills map[string]string, want int, mix *draftdoc.DifficultyMix) (draftdoc.TestDoc, error) {
	doc, fail := llm.GenerateInto[draftdoc.TestDoc](ctx, p.llm, llm.Request{Prompt: prompts.TestBank, Vars: vars})
	if fail != nil {
		return draftdoc.TestDoc{}, fail.AsError()
	}
	if err := draftdoc.ValidateTest(doc, skills, want, mix); err != nil {
		return doc, err
	}
	return doc, nil
}
