package assessment

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"

	repos "github.com/yungbote/coursegen-backend/internal/data/repos/learning"
	"github.com/yungbote/coursegen-backend/internal/data/repos/testutil"
	"github.com/yungbote/coursegen-backend/internal/domain/jobs"
	"github.com/yungbote/coursegen-backend/internal/domain/learning"
	"github.com/yungbote/coursegen-backend/internal/jobs/pipeline/pipelinetest"
	"github.com/yungbote/coursegen-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
)

func TestNormalizeDifficulty(t *testing.T) {
	tests := []struct {
		name    string
		in      *Difficulty
		want    Difficulty
		wantErr bool
	}{
		{name: "default", in: nil, want: DefaultDifficulty},
		{name: "normalised", in: &Difficulty{Easy: 1, Medium: 1, Hard: 2}, want: Difficulty{Easy: .25, Medium: .25, Hard: .5}},
		{name: "only hard", in: &Difficulty{Hard: 3}, want: Difficulty{Hard: 1}},
		{name: "negative", in: &Difficulty{Easy: -1, Medium: 2}, wantErr: true},
		{name: "zero sum", in: &Difficulty{}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDifficulty(tt.in)
			if tt.wantErr {
				if !apierr.Is(err, apierr.KindValidation) {
					t.Fatalf("want validation got=%v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			if math.Abs(got.Easy-tt.want.Easy) > 1e-9 || math.Abs(got.Medium-tt.want.Medium) > 1e-9 || math.Abs(got.Hard-tt.want.Hard) > 1e-9 {
				t.Fatalf("want=%+v got=%+v", tt.want, got)
			}
		})
	}
}

func TestDifficultyCounts(t *testing.T) {
	tests := []struct {
		d                 Difficulty
		n                 int
		easy, medium, hard int
	}{
		{d: DefaultDifficulty, n: 10, easy: 3, medium: 5, hard: 2},
		{d: Difficulty{Easy: 1.0 / 3, Medium: 1.0 / 3, Hard: 1.0 / 3}, n: 10},
		{d: DefaultDifficulty, n: 7},
		{d: Difficulty{Hard: 1}, n: 4, hard: 4},
	}
	for _, tt := range tests {
		e, m, h := tt.d.Counts(tt.n)
		if e+m+h != tt.n {
			t.Fatalf("counts %d+%d+%d != %d", e, m, h, tt.n)
		}
		if tt.easy+tt.medium+tt.hard == tt.n && (e != tt.easy || m != tt.medium || h != tt.hard) {
			t.Fatalf("counts: want=%d/%d/%d got=%d/%d/%d", tt.easy, tt.medium, tt.hard, e, m, h)
		}
	}
}

func questionsJSON(skills ...string) string {
	var qs []map[string]any
	for i, s := range skills {
		q := map[string]any{
			"type":       "multiple_choice",
			"prompt":     "Question about " + s,
			"options":    []string{"yes", "no"},
			"answer":     "yes",
			"topic":      "Stacks",
			"skill":      s,
			"difficulty": "easy",
		}
		if i%2 == 1 {
			q["type"] = "problem"
			q["options"] = []string{}
			q["difficulty"] = "hard"
		}
		qs = append(qs, q)
	}
	b, _ := json.Marshal(map[string]any{"title": "Entry test", "questions": qs})
	return string(b)
}

func levelsJSON(levels ...string) string {
	var qs []map[string]any
	for _, l := range levels {
		qs = append(qs, map[string]any{
			"type":       "multiple_choice",
			"prompt":     "A " + l + " question",
			"options":    []string{"yes", "no"},
			"answer":     "yes",
			"topic":      "Stacks",
			"skill":      "push",
			"difficulty": l,
		})
	}
	b, _ := json.Marshal(map[string]any{"title": "Entry test", "questions": qs})
	return string(b)
}

type fixture struct {
	set      repos.Set
	provider *pipelinetest.Provider
	pipeline *Pipeline
	course   *learning.Course
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	set := repos.NewSet(db, log)
	provider := pipelinetest.NewProvider()
	ctx := context.Background()
	course := testutil.SeedCourse(t, ctx, db, "Data Structures")
	testutil.SeedTopic(t, ctx, db, course.ID, "Stacks", 1, "push", "pop")
	testutil.SeedTopic(t, ctx, db, course.ID, "Recursion", 2, "base case")
	return &fixture{
		set:      set,
		provider: provider,
		pipeline: New(db, log, set.Courses, set.Topics, set.Tests, pipelinetest.Facade(t, provider)),
		course:   course,
	}
}

func TestGenerateTest(t *testing.T) {
	f := newFixture(t)
	f.provider.On("test_bank",
		pipelinetest.Text(questionsJSON("push", "heap sort", "pop", "base case")),
		pipelinetest.Text(questionsJSON("push", "pop", "base case", "Base Case")),
	)
	b, _ := json.Marshal(Payload{QuestionCount: 4, Difficulty: &Difficulty{Easy: 1, Hard: 1}})
	jc := pipelinetest.Job(t, jobs.KindAssessment, f.course.ID, "", b, nil)
	if err := f.pipeline.Run(jc); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := len(f.provider.Requests("test_bank")); got != 2 {
		t.Fatalf("unknown skill should trigger one retry, requests=%d", got)
	}

	dbc := dbctx.New(context.Background())
	test, err := f.set.Tests.LatestByCourse(dbc, f.course.ID)
	if err != nil {
		t.Fatalf("latest test: %v", err)
	}
	if len(test.Questions) != 4 || test.DurationMinutes != DefaultDurationMinutes {
		t.Fatalf("test: questions=%d duration=%d", len(test.Questions), test.DurationMinutes)
	}
	if test.Questions[3].TopicName != "Recursion" {
		t.Fatalf("topic mapping: want=Recursion got=%q", test.Questions[3].TopicName)
	}
	if len(test.Questions[1].Options) != 0 {
		t.Fatalf("problem questions carry no options, got=%v", test.Questions[1].Options)
	}
	var stored Difficulty
	if err := json.Unmarshal(test.Difficulty, &stored); err != nil || stored.Easy != 0.5 || stored.Hard != 0.5 {
		t.Fatalf("stored difficulty: got=%s err=%v", test.Difficulty, err)
	}
	course, _ := f.set.Courses.GetByID(dbc, f.course.ID)
	if course.TestGenerationStatus != learning.TestGenSuccess {
		t.Fatalf("status: want=%s got=%s", learning.TestGenSuccess, course.TestGenerationStatus)
	}
}

func TestGenerateTestRejectsBadDifficulty(t *testing.T) {
	f := newFixture(t)
	b, _ := json.Marshal(Payload{Difficulty: &Difficulty{Easy: -0.5, Medium: 1}})
	jc := pipelinetest.Job(t, jobs.KindAssessment, f.course.ID, "", b, nil)
	err := f.pipeline.Run(jc)
	if !apierr.Is(err, apierr.KindValidation) {
		t.Fatalf("want validation got=%v", err)
	}
	if apierr.Retryable(err) {
		t.Fatalf("validation must be terminal")
	}
	if got := len(f.provider.Requests()); got != 0 {
		t.Fatalf("model should not be called, got=%d", got)
	}
}

func TestGenerateTestEnforcesDifficultyMix(t *testing.T) {
	tests := []struct {
		name     string
		replies  []pipelinetest.Reply
		wantKind apierr.Kind
	}{
		{
			name: "repaired mix is stored",
			replies: []pipelinetest.Reply{
				pipelinetest.Text(levelsJSON("easy", "easy", "easy", "easy")),
				pipelinetest.Text(levelsJSON("easy", "hard", "hard", "easy")),
			},
		},
		{
			name: "mix still wrong after repair",
			replies: []pipelinetest.Reply{
				pipelinetest.Text(levelsJSON("easy", "easy", "easy", "easy")),
				pipelinetest.Text(levelsJSON("medium", "medium", "hard", "hard")),
			},
			wantKind: apierr.KindProviderInvalidOutput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.provider.On("test_bank", tt.replies...)
			b, _ := json.Marshal(Payload{QuestionCount: 4, Difficulty: &Difficulty{Easy: 1, Hard: 1}})
			err := f.pipeline.Run(pipelinetest.Job(t, jobs.KindAssessment, f.course.ID, "", b, nil))
			reqs := f.provider.Requests("test_bank")
			if len(reqs) != 2 {
				t.Fatalf("requests: want=2 got=%d", len(reqs))
			}
			if !strings.Contains(reqs[1].User, "want 2/0/2") {
				t.Fatalf("repair prompt should name the mix, got=%q", reqs[1].User)
			}
			dbc := dbctx.New(context.Background())
			if tt.wantKind != "" {
				if !apierr.Is(err, tt.wantKind) {
					t.Fatalf("want %s got=%v", tt.wantKind, err)
				}
				if _, err := f.set.Tests.LatestByCourse(dbc, f.course.ID); !apierr.Is(err, apierr.KindNotFound) {
					t.Fatalf("no test expected, got=%v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			test, err := f.set.Tests.LatestByCourse(dbc, f.course.ID)
			if err != nil {
				t.Fatalf("latest test: %v", err)
			}
			tally := map[string]int{}
			for _, q := range test.Questions {
				tally[q.Difficulty]++
			}
			if tally["easy"] != 2 || tally["hard"] != 2 || tally["medium"] != 0 {
				t.Fatalf("stored mix: %v", tally)
			}
		})
	}
}
