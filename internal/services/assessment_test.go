package services

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/coursegen-backend/internal/data/repos/testutil"
	"github.com/yungbote/coursegen-backend/internal/domain/learning"
	"github.com/yungbote/coursegen-backend/internal/jobs/pipeline/pipelinetest"
	"github.com/yungbote/coursegen-backend/internal/learning/prompts"
	"github.com/yungbote/coursegen-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
)

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		ratio float64
		want  learning.Severity
	}{
		{0, learning.SeverityLow},
		{0.29, learning.SeverityLow},
		{0.3, learning.SeverityMedium},
		{0.59, learning.SeverityMedium},
		{0.6, learning.SeverityHigh},
		{1, learning.SeverityHigh},
	}
	for _, tc := range tests {
		if got := SeverityFor(tc.ratio); got != tc.want {
			t.Fatalf("SeverityFor(%v): want=%s got=%s", tc.ratio, tc.want, got)
		}
	}
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		accuracy float64
		want     string
	}{
		{0, LevelBeginner},
		{0.49, LevelBeginner},
		{0.5, LevelIntermediate},
		{0.79, LevelIntermediate},
		{0.8, LevelAdvanced},
		{1, LevelAdvanced},
	}
	for _, tc := range tests {
		if got := LevelFor(tc.accuracy); got != tc.want {
			t.Fatalf("LevelFor(%v): want=%s got=%s", tc.accuracy, tc.want, got)
		}
	}
}

func answers(skill string, correct, wrong int) []testutil.AnswerSpec {
	var out []testutil.AnswerSpec
	for i := 0; i < correct; i++ {
		out = append(out, testutil.AnswerSpec{Skill: skill, Correct: true})
	}
	for i := 0; i < wrong; i++ {
		out = append(out, testutil.AnswerSpec{Skill: skill, Correct: false})
	}
	return out
}

const weaknessReply = `{"skills":[{"skill_name":"recursion","weaknesses":["base cases"],"weakness_analysis":"Stops recursing too late.","improvement_suggestions":["Trace small inputs by hand"]}]}`

func TestAnalyzeSession(t *testing.T) {
	tests := []struct {
		name      string
		answers   []testutil.AnswerSpec
		reply     pipelinetest.Reply
		wantLevel string
		want      map[string]learning.Severity
		narrated  bool
	}{
		{
			name:      "six of ten wrong",
			answers:   answers("Recursion", 4, 6),
			reply:     pipelinetest.Text(weaknessReply),
			wantLevel: LevelBeginner,
			want:      map[string]learning.Severity{"Recursion": learning.SeverityHigh},
			narrated:  true,
		},
		{
			name:      "mixed skills",
			answers:   append(answers("Recursion", 4, 6), answers("Graphs", 10, 0)...),
			reply:     pipelinetest.Text(weaknessReply),
			wantLevel: LevelIntermediate,
			want: map[string]learning.Severity{
				"Recursion": learning.SeverityHigh,
				"Graphs":    learning.SeverityLow,
			},
			narrated: true,
		},
		{
			name:      "model down",
			answers:   answers("Recursion", 6, 4),
			reply:     pipelinetest.Fail(errors.New("upstream unavailable")),
			wantLevel: LevelIntermediate,
			want:      map[string]learning.Severity{"Recursion": learning.SeverityMedium},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			course := testutil.SeedCourse(t, ctx, f.db, "algorithms")
			session := testutil.SeedFinishedSession(t, ctx, f.db, course.ID, "learner-1", tc.answers)

			provider := pipelinetest.NewProvider().On(prompts.Weakness, tc.reply)
			svc := NewAssessmentService(testutil.Logger(t), f.repos.Assessments, pipelinetest.Facade(t, provider))

			rows, err := svc.AnalyzeSession(ctx, session.ID)
			if err != nil {
				t.Fatalf("AnalyzeSession: %v", err)
			}
			if len(rows) != len(tc.want) {
				t.Fatalf("rows: want=%d got=%d", len(tc.want), len(rows))
			}
			for i, row := range rows {
				if i > 0 && rows[i-1].IncorrectRatio < row.IncorrectRatio {
					t.Fatalf("rows not sorted by incorrect ratio")
				}
				if row.Severity != tc.want[row.SkillName] {
					t.Fatalf("%s severity: want=%s got=%s", row.SkillName, tc.want[row.SkillName], row.Severity)
				}
				if row.CurrentLevel != tc.wantLevel {
					t.Fatalf("%s level: want=%s got=%s", row.SkillName, tc.wantLevel, row.CurrentLevel)
				}
				if row.UserID != "learner-1" || row.SessionID != session.ID {
					t.Fatalf("row owner: %+v", row)
				}
			}
			if rows[0].SkillName == "Recursion" && tc.narrated != (rows[0].WeaknessAnalysis != "") {
				t.Fatalf("narrative: want=%v got=%q", tc.narrated, rows[0].WeaknessAnalysis)
			}

			stored, err := f.repos.Assessments.ListBySession(dbctx.New(ctx), session.ID)
			if err != nil {
				t.Fatalf("ListBySession: %v", err)
			}
			if len(stored) != len(tc.want) {
				t.Fatalf("stored: want=%d got=%d", len(tc.want), len(stored))
			}
		})
	}
}

func TestAnalyzeSessionReplacesEarlierRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := testutil.SeedCourse(t, ctx, f.db, "algorithms")
	session := testutil.SeedFinishedSession(t, ctx, f.db, course.ID, "learner-1", answers("Recursion", 4, 6))
	provider := pipelinetest.NewProvider().On(prompts.Weakness, pipelinetest.Text(weaknessReply))
	svc := NewAssessmentService(testutil.Logger(t), f.repos.Assessments, pipelinetest.Facade(t, provider))

	for i := 0; i < 2; i++ {
		if _, err := svc.AnalyzeSession(ctx, session.ID); err != nil {
			t.Fatalf("AnalyzeSession #%d: %v", i+1, err)
		}
	}
	stored, err := f.repos.Assessments.ListBySession(dbctx.New(ctx), session.ID)
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("stored: want=1 got=%d", len(stored))
	}
}

func TestAnalyzeSessionRejectsUnfinished(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := testutil.SeedCourse(t, ctx, f.db, "algorithms")
	test := &learning.Test{CourseID: course.ID, Title: "Entry"}
	if err := f.db.Create(test).Error; err != nil {
		t.Fatalf("create test: %v", err)
	}
	session := &learning.TestSession{TestID: test.ID, UserID: "learner-1"}
	if err := f.db.Create(session).Error; err != nil {
		t.Fatalf("create session: %v", err)
	}
	svc := NewAssessmentService(testutil.Logger(t), f.repos.Assessments, nil)

	if _, err := svc.AnalyzeSession(ctx, session.ID); !apierr.Is(err, apierr.KindConflict) {
		t.Fatalf("unfinished: want conflict got %v", err)
	}
	if _, err := svc.AnalyzeSession(ctx, session.ID+100); !apierr.Is(err, apierr.KindNotFound) {
		t.Fatalf("missing: want not_found got %v", err)
	}
}
