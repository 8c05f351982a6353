package services

import (
	"context"
	"sort"

	repos "github.com/yungbote/coursegen-backend/internal/data/repos/learning"
	"github.com/yungbote/coursegen-backend/internal/domain/learning"
	"github.com/yungbote/coursegen-backend/internal/learning/draftdoc"
	"github.com/yungbote/coursegen-backend/internal/learning/prompts"
	"github.com/yungbote/coursegen-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
	"github.com/yungbote/coursegen-backend/internal/platform/llm"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
)

const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

// SeverityFor maps a skill's share of wrong answers onto a severity.
func SeverityFor(incorrectRatio float64) learning.Severity {
	switch {
	case incorrectRatio >= 0.6:
		return learning.SeverityHigh
	case incorrectRatio >= 0.3:
		return learning.SeverityMedium
	default:
		return learning.SeverityLow
	}
}

// LevelFor buckets overall session accuracy.
func LevelFor(accuracy float64) string {
	switch {
	case accuracy < 0.5:
		return LevelBeginner
	case accuracy < 0.8:
		return LevelIntermediate
	default:
		return LevelAdvanced
	}
}

type AssessmentService interface {
	AnalyzeSession(ctx context.Context, sessionID uint) ([]*learning.UserAssessment, error)
}

type assessmentService struct {
	log         *logger.Logger
	assessments repos.AssessmentRepo
	llm         *llm.Facade
}

func NewAssessmentService(baseLog *logger.Logger, assessments repos.AssessmentRepo, facade *llm.Facade) AssessmentService {
	return &assessmentService{
		log:         baseLog.With("service", "AssessmentService"),
		assessments: assessments,
		llm:         facade,
	}
}

type mistake struct {
	Prompt   string
	Answer   string
	Response string
}

type skillTally struct {
	Name      string
	Total     int
	Incorrect int
	Mistakes  []mistake
}

// AnalyzeSession computes severity per skill and the overall level from the
// answers, asks the model for the narrative, and replaces any earlier
// assessments of the session.
func (s *assessmentService) AnalyzeSession(ctx context.Context, sessionID uint) ([]*learning.UserAssessment, error) {
	session, err := s.assessments.GetSession(dbctx.New(ctx), sessionID)
	if err != nil {
		return nil, err
	}
	if session.CompletedAt == nil {
		return nil, apierr.Conflict("test session %d is not finished", sessionID)
	}

	bySkill := map[string]*skillTally{}
	var order []string
	correct, total := 0, 0
	for _, a := range session.Answers {
		if a.Question == nil {
			continue
		}
		name := a.Question.SkillName
		if name == "" {
			name = a.Question.TopicName
		}
		key := draftdoc.NormalizeName(name)
		if key == "" {
			continue
		}
		t, ok := bySkill[key]
		if !ok {
			t = &skillTally{Name: name}
			bySkill[key] = t
			order = append(order, key)
		}
		t.Total++
		total++
		if a.Correct {
			correct++
			continue
		}
		t.Incorrect++
		t.Mistakes = append(t.Mistakes, mistake{Prompt: a.Question.Prompt, Answer: a.Question.Answer, Response: a.Response})
	}
	if total == 0 {
		return nil, apierr.Validation("test session %d has no answers mapped to skills", sessionID)
	}
	level := LevelFor(float64(correct) / float64(total))

	narrative := s.narrate(ctx, sessionID, order, bySkill)

	rows := make([]*learning.UserAssessment, 0, len(order))
	for _, key := range order {
		t := bySkill[key]
		ratio := float64(t.Incorrect) / float64(t.Total)
		row := &learning.UserAssessment{
			UserID:         session.UserID,
			SkillName:      t.Name,
			CurrentLevel:   level,
			Severity:       SeverityFor(ratio),
			IncorrectRatio: ratio,
		}
		if n, ok := narrative[key]; ok {
			row.Weaknesses = n.Weaknesses
			row.WeaknessAnalysis = n.WeaknessAnalysis
			row.ImprovementSuggestions = n.ImprovementSuggestions
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].IncorrectRatio > rows[j].IncorrectRatio })

	saved, err := s.assessments.ReplaceForSession(dbctx.New(ctx), sessionID, rows)
	if err != nil {
		return nil, err
	}
	s.log.Info("Session analyzed", "session_id", sessionID, "skills", len(saved), "level", level)
	return saved, nil
}

// narrate asks the model to describe the skills that had mistakes. A failed
// call leaves the narrative empty; severity and level do not depend on it.
func (s *assessmentService) narrate(ctx context.Context, sessionID uint, order []string, bySkill map[string]*skillTally) map[string]draftdoc.SkillWeaknessDoc {
	var weak []*skillTally
	for _, key := range order {
		if bySkill[key].Incorrect > 0 {
			weak = append(weak, bySkill[key])
		}
	}
	out := map[string]draftdoc.SkillWeaknessDoc{}
	if len(weak) == 0 || s.llm == nil {
		return out
	}
	doc, fail := llm.GenerateInto[draftdoc.WeaknessDoc](ctx, s.llm, llm.Request{
		Prompt: prompts.Weakness,
		Vars:   map[string]any{"Skills": weak},
	})
	if fail != nil {
		s.log.Warn("Weakness narrative unavailable", "session_id", sessionID, "kind", fail.Kind, "detail", fail.Detail)
		return out
	}
	for _, sk := range doc.Skills {
		key := draftdoc.NormalizeName(sk.SkillName)
		if _, ok := bySkill[key]; ok {
			out[key] = sk
		}
	}
	return out
}
