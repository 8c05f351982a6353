package composition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/yungbote/coursegen-backend/internal/data/docstore"
	repos "github.com/yungbote/coursegen-backend/internal/data/repos/learning"
	"github.com/yungbote/coursegen-backend/internal/data/repos/testutil"
	"github.com/yungbote/coursegen-backend/internal/domain/jobs"
	"github.com/yungbote/coursegen-backend/internal/domain/learning"
	"github.com/yungbote/coursegen-backend/internal/jobs/pipeline/pipelinetest"
	jobrt "github.com/yungbote/coursegen-backend/internal/jobs/runtime"
	"github.com/yungbote/coursegen-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
	"github.com/yungbote/coursegen-backend/internal/platform/llm"
	"github.com/yungbote/coursegen-backend/internal/platform/vector"
)

func compositionJSON(names ...string) string {
	return compositionWithLessons(DefaultLessonsPerTopic, names...)
}

func compositionWithLessons(lessons int, names ...string) string {
	type outline struct {
		Title   string `json:"title"`
		Summary string `json:"summary"`
		Order   int    `json:"order"`
	}
	type skill struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	type topic struct {
		Name           string    `json:"name"`
		Description    string    `json:"description"`
		Prerequisites  []string  `json:"prerequisites"`
		Skills         []skill   `json:"skills"`
		LessonOutlines []outline `json:"lesson_outlines"`
	}
	var topics []topic
	for i, n := range names {
		t := topic{
			Name:        n,
			Description: n + " in depth",
			Skills:      []skill{{Name: n + " basics", Description: "core ideas"}},
		}
		for o := 1; o <= lessons; o++ {
			t.LessonOutlines = append(t.LessonOutlines, outline{Title: fmt.Sprintf("%s part %d", n, o), Order: o})
		}
		if i > 0 {
			t.Prerequisites = []string{names[0]}
		}
		topics = append(topics, t)
	}
	b, _ := json.Marshal(map[string]any{
		"topics":                    topics,
		"duration_estimate_minutes": 120,
		"description_refined":       "refined",
	})
	return string(b)
}

type fixture struct {
	set      repos.Set
	history  *docstore.MemoryHistory
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
	index := vector.NewMemoryIndex()
	retriever := pipelinetest.Retriever(index)
	history := docstore.NewMemoryHistory()
	course := testutil.SeedCourse(t, context.Background(), db, "Data Structures")
	return &fixture{
		set:      set,
		history:  history,
		provider: provider,
		pipeline: New(db, log, set.Courses, set.Drafts, history, pipelinetest.Facade(t, provider), retriever, 4),
		course:   course,
	}
}

func payload(t *testing.T, p Payload) []byte {
	t.Helper()
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return b
}

func TestComposeHappyPath(t *testing.T) {
	f := newFixture(t)
	f.provider.On("composition", pipelinetest.Text(compositionWithLessons(2, "Arrays", "Stacks", "Graphs")))

	jc := pipelinetest.Job(t, jobs.KindComposition, f.course.ID, "", payload(t, Payload{MaxTopics: 3, LessonsPerTopic: 2}), nil)
	if err := f.pipeline.Run(jc); err != nil {
		t.Fatalf("run: %v", err)
	}

	dbc := dbctx.New(context.Background())
	draft, content, err := f.set.Drafts.Load(dbc, f.course.ID)
	if err != nil {
		t.Fatalf("load draft: %v", err)
	}
	if draft.Status != learning.DraftPending || draft.Version != 1 {
		t.Fatalf("draft: want pending v1 got=%s v%d", draft.Status, draft.Version)
	}
	if draft.SessionID != jc.Job.SessionID {
		t.Fatalf("session: want=%s got=%s", jc.Job.SessionID, draft.SessionID)
	}
	if got := len(content.Composition.Topics); got != 3 {
		t.Fatalf("topics: want=3 got=%d", got)
	}
	if content.LessonsPerTopic != 2 {
		t.Fatalf("lessons_per_topic: want=2 got=%d", content.LessonsPerTopic)
	}
	course, err := f.set.Courses.GetByID(dbc, f.course.ID)
	if err != nil {
		t.Fatalf("get course: %v", err)
	}
	if course.CompositionStatus != learning.CompositionReady {
		t.Fatalf("status: want=%s got=%s", learning.CompositionReady, course.CompositionStatus)
	}
	turns, err := f.set.Drafts.ListTurns(dbc, f.course.ID)
	if err != nil {
		t.Fatalf("list turns: %v", err)
	}
	if len(turns) != 1 || turns[0].Author != learning.AuthorAgent || !strings.Contains(turns[0].Message, "Graphs") {
		t.Fatalf("turns: got=%+v", turns)
	}
	var res Result
	if err := json.Unmarshal(jc.Result(), &res); err != nil || res.Topics != 3 || res.DraftVersion != 1 {
		t.Fatalf("result: got=%s err=%v", jc.Result(), err)
	}
	req := f.provider.Requests("composition")[0]
	if !strings.Contains(req.User, "between 1 and 3 topics") {
		t.Fatalf("prompt should carry bounds, got=%q", req.User)
	}
}

func TestComposeRepairsOnce(t *testing.T) {
	tests := []struct {
		name     string
		replies  []pipelinetest.Reply
		wantKind apierr.Kind
		requests int
	}{
		{
			name: "repair succeeds",
			replies: []pipelinetest.Reply{
				pipelinetest.Text(compositionJSON("A", "B", "C", "D")),
				pipelinetest.Text(compositionJSON("A", "B")),
			},
			requests: 2,
		},
		{
			name: "repair fails",
			replies: []pipelinetest.Reply{
				pipelinetest.Text(compositionJSON("A", "B", "C", "D")),
				pipelinetest.Text(compositionJSON("A", "B", "C", "D", "E")),
			},
			wantKind: apierr.KindProviderInvalidOutput,
			requests: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.provider.On("composition", tt.replies...)
			jc := pipelinetest.Job(t, jobs.KindComposition, f.course.ID, "", payload(t, Payload{MaxTopics: 3}), nil)
			err := f.pipeline.Run(jc)
			if got := len(f.provider.Requests("composition")); got != tt.requests {
				t.Fatalf("requests: want=%d got=%d", tt.requests, got)
			}
			if tt.wantKind == "" {
				if err != nil {
					t.Fatalf("run: %v", err)
				}
				second := f.provider.Requests("composition")[1]
				if !strings.Contains(second.User, "topic count 4") {
					t.Fatalf("repair prompt should list issues, got=%q", second.User)
				}
				return
			}
			if !apierr.Is(err, tt.wantKind) {
				t.Fatalf("want %s got=%v", tt.wantKind, err)
			}
			if apierr.Retryable(err) {
				t.Fatalf("invalid output must not be retryable")
			}
			if _, err := f.set.Drafts.Get(dbctx.New(context.Background()), f.course.ID); !apierr.Is(err, apierr.KindNotFound) {
				t.Fatalf("no draft expected, got=%v", err)
			}
		})
	}
}

func TestComposeEnforcesLessonsPerTopic(t *testing.T) {
	tests := []struct {
		name     string
		replies  []pipelinetest.Reply
		wantKind apierr.Kind
	}{
		{
			name: "repaired to the requested count",
			replies: []pipelinetest.Reply{
				pipelinetest.Text(compositionWithLessons(2, "Arrays", "Stacks")),
				pipelinetest.Text(compositionWithLessons(1, "Arrays", "Stacks")),
			},
		},
		{
			name: "still wrong after repair",
			replies: []pipelinetest.Reply{
				pipelinetest.Text(compositionWithLessons(2, "Arrays", "Stacks")),
				pipelinetest.Text(compositionWithLessons(3, "Arrays", "Stacks")),
			},
			wantKind: apierr.KindProviderInvalidOutput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.provider.On("composition", tt.replies...)
			jc := pipelinetest.Job(t, jobs.KindComposition, f.course.ID, "", payload(t, Payload{MaxTopics: 3, LessonsPerTopic: 1}), nil)
			err := f.pipeline.Run(jc)
			reqs := f.provider.Requests("composition")
			if len(reqs) != 2 {
				t.Fatalf("requests: want=2 got=%d", len(reqs))
			}
			if !strings.Contains(reqs[1].User, "has 2 lesson_outlines, want 1") {
				t.Fatalf("repair prompt should name the outline count, got=%q", reqs[1].User)
			}
			dbc := dbctx.New(context.Background())
			if tt.wantKind != "" {
				if !apierr.Is(err, tt.wantKind) {
					t.Fatalf("want %s got=%v", tt.wantKind, err)
				}
				if _, err := f.set.Drafts.Get(dbc, f.course.ID); !apierr.Is(err, apierr.KindNotFound) {
					t.Fatalf("no draft expected, got=%v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			_, content, err := f.set.Drafts.Load(dbc, f.course.ID)
			if err != nil {
				t.Fatalf("load draft: %v", err)
			}
			if content.LessonsPerTopic != 1 {
				t.Fatalf("lessons_per_topic: want=1 got=%d", content.LessonsPerTopic)
			}
			for _, tp := range content.Composition.Topics {
				if len(tp.LessonOutlines) != 1 {
					t.Fatalf("topic %q outlines: want=1 got=%d", tp.Name, len(tp.LessonOutlines))
				}
			}
		})
	}
}

func TestComposeCancelledWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.provider.On("composition", pipelinetest.Text(compositionJSON("Arrays")))
	calls := 0
	// Cancel lands once the model has answered, before anything is written.
	cancelled := func() bool {
		calls++
		return len(f.provider.Requests()) > 0
	}
	jc := pipelinetest.Job(t, jobs.KindComposition, f.course.ID, "", nil, cancelled)
	err := f.pipeline.Run(jc)
	if !errors.Is(err, jobrt.ErrCancelled) {
		t.Fatalf("want ErrCancelled got=%v", err)
	}
	if calls == 0 {
		t.Fatalf("checkpoint never consulted")
	}
	dbc := dbctx.New(context.Background())
	if _, err := f.set.Drafts.Get(dbc, f.course.ID); !apierr.Is(err, apierr.KindNotFound) {
		t.Fatalf("no draft expected, got=%v", err)
	}
	course, _ := f.set.Courses.GetByID(dbc, f.course.ID)
	if course.CompositionStatus != learning.CompositionNotStarted {
		t.Fatalf("status: want=%s got=%s", learning.CompositionNotStarted, course.CompositionStatus)
	}
}

func TestRecomposeWithFeedbackArchivesPrevious(t *testing.T) {
	f := newFixture(t)
	f.provider.On("composition",
		pipelinetest.Text(compositionJSON("Arrays", "Stacks")),
		func(req llm.ChatRequest) (string, error) {
			if strings.Contains(req.User, "Add a topic on graphs") {
				return compositionJSON("Arrays", "Stacks", "Graph Traversal"), nil
			}
			return compositionJSON("Arrays", "Stacks"), nil
		},
	)

	first := pipelinetest.Job(t, jobs.KindComposition, f.course.ID, "", nil, nil)
	if err := f.pipeline.Run(first); err != nil {
		t.Fatalf("first run: %v", err)
	}
	second := pipelinetest.Job(t, jobs.KindComposition, f.course.ID, "", payload(t, Payload{Feedback: "Add a topic on graphs"}), nil)
	if err := f.pipeline.Run(second); err != nil {
		t.Fatalf("second run: %v", err)
	}

	dbc := dbctx.New(context.Background())
	draft, content, err := f.set.Drafts.Load(dbc, f.course.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if draft.Version != 2 || content.Feedback != "Add a topic on graphs" {
		t.Fatalf("draft: version=%d feedback=%q", draft.Version, content.Feedback)
	}
	found := false
	for _, tp := range content.Composition.Topics {
		if strings.Contains(strings.ToLower(tp.Name), "graph") {
			found = true
		}
	}
	if !found {
		t.Fatalf("feedback topic missing: %+v", content.Composition.Topics)
	}
	snaps, err := f.history.List(context.Background(), f.course.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(snaps) != 1 || snaps[0].Version != 1 {
		t.Fatalf("history: want version 1 archived got=%+v", snaps)
	}
}
