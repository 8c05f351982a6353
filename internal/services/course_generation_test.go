package services

import (
	"context"
	"strconv"
	"testing"

	"github.com/yungbote/coursegen-backend/internal/data/repos/testutil"
	"github.com/yungbote/coursegen-backend/internal/domain/jobs"
	"github.com/yungbote/coursegen-backend/internal/domain/learning"
	"github.com/yungbote/coursegen-backend/internal/jobs/pipeline/assessment"
	"github.com/yungbote/coursegen-backend/internal/jobs/pipeline/composition"
	"github.com/yungbote/coursegen-backend/internal/jobs/pipeline/ingestion"
	"github.com/yungbote/coursegen-backend/internal/jobs/pipeline/lessons"
	"github.com/yungbote/coursegen-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
)

func newGeneration(t *testing.T, f fixture) CourseGenerationService {
	t.Helper()
	return NewCourseGenerationService(testutil.Logger(t), f.repos.Courses, f.repos.Drafts, f.repos.Topics, f.runner)
}

func TestCourseCreateAndGet(t *testing.T) {
	f := newFixture(t)
	svc := NewCourseService(testutil.Logger(t), f.repos.Courses, f.repos.Topics)
	ctx := adminCtx()

	if _, err := svc.Create(ctx, CreateCourseInput{Title: "  "}); !apierr.Is(err, apierr.KindValidation) {
		t.Fatalf("blank title: want validation got %v", err)
	}
	course, err := svc.Create(ctx, CreateCourseInput{Title: " Graph Theory ", Level: "beginner"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if course.Title != "Graph Theory" || course.OwnerUserID != "admin-1" || course.CompositionStatus != learning.CompositionNotStarted {
		t.Fatalf("created: %+v", course)
	}
	testutil.SeedTopic(t, ctx, f.db, course.ID, "Trees", 1, "traversal")

	view, err := svc.Get(ctx, course.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(view.Topics) != 1 || len(view.Topics[0].Skills) != 1 {
		t.Fatalf("view topics: %+v", view.Topics)
	}
	if _, err := svc.Get(ctx, course.ID+1); !apierr.Is(err, apierr.KindNotFound) {
		t.Fatalf("missing course: want not_found got %v", err)
	}
}

func TestComposeEnqueuesWithFreshSession(t *testing.T) {
	f := newFixture(t)
	ctx := adminCtx()
	course := testutil.SeedCourse(t, ctx, f.db, "algorithms")
	svc := newGeneration(t, f)

	job, err := svc.Compose(ctx, course.ID, ComposeInput{MaxTopics: 4})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if job.Kind != jobs.KindComposition || job.SessionID == "" || job.OwnerUserID != "admin-1" {
		t.Fatalf("job: %+v", job)
	}
	specs := f.runner.recorded(jobs.KindComposition)
	if p, ok := specs[0].Payload.(composition.Payload); !ok || p.MaxTopics != 4 {
		t.Fatalf("payload: %#v", specs[0].Payload)
	}

	if _, err := svc.Compose(ctx, course.ID, ComposeInput{}); !apierr.Is(err, apierr.KindConflict) {
		t.Fatalf("second compose: want conflict got %v", err)
	}

	if err := f.repos.Courses.SetCompositionStatus(dbctx.New(ctx), course.ID, learning.CompositionApproved, ""); err != nil {
		t.Fatalf("SetCompositionStatus: %v", err)
	}
	if _, err := f.runner.Cancel(ctx, job.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := svc.Compose(ctx, course.ID, ComposeInput{}); !apierr.Is(err, apierr.KindConflict) {
		t.Fatalf("compose approved course: want conflict got %v", err)
	}
	if _, err := svc.Compose(ctx, course.ID+1, ComposeInput{}); !apierr.Is(err, apierr.KindNotFound) {
		t.Fatalf("compose missing course: want not_found got %v", err)
	}
}

func TestGetDraft(t *testing.T) {
	f := newFixture(t)
	ctx := adminCtx()
	course := testutil.SeedCourse(t, ctx, f.db, "algorithms")
	svc := newGeneration(t, f)

	if _, err := svc.GetDraft(ctx, course.ID); !apierr.Is(err, apierr.KindNotFound) {
		t.Fatalf("no draft: want not_found got %v", err)
	}
	f.seedDraft(t, course.ID, "sess-9", "Sorting", "Searching")
	view, err := svc.GetDraft(ctx, course.ID)
	if err != nil {
		t.Fatalf("GetDraft: %v", err)
	}
	if view.Version != 1 || view.SessionID != "sess-9" || view.Status != learning.DraftPending {
		t.Fatalf("draft view: %+v", view)
	}
	if len(view.Content.Composition.Topics) != 2 || len(view.Chat) != 0 {
		t.Fatalf("content topics=%d chat=%d", len(view.Content.Composition.Topics), len(view.Chat))
	}
}

func TestGenerateLessons(t *testing.T) {
	f := newFixture(t)
	ctx := adminCtx()
	course := testutil.SeedCourse(t, ctx, f.db, "algorithms")
	svc := newGeneration(t, f)

	if _, err := svc.GenerateLessons(ctx, course.ID, GenerateLessonsInput{}); !apierr.Is(err, apierr.KindValidation) {
		t.Fatalf("no topics: want validation got %v", err)
	}

	a := testutil.SeedTopic(t, ctx, f.db, course.ID, "Sorting", 1, "quicksort")
	b := testutil.SeedTopic(t, ctx, f.db, course.ID, "Searching", 2, "binary search")

	out, err := svc.GenerateLessons(ctx, course.ID, GenerateLessonsInput{TopicIDs: []uint{a.ID}, Regenerate: true})
	if err != nil {
		t.Fatalf("GenerateLessons: %v", err)
	}
	if len(out) != 1 || out[0].Job == nil || out[0].Job.Scope != strconv.FormatUint(uint64(a.ID), 10) {
		t.Fatalf("lesson jobs: %+v", out)
	}
	specs := f.runner.recorded(jobs.KindLessons)
	if p, ok := specs[0].Payload.(lessons.Payload); !ok || p.TopicID != a.ID || !p.Regenerate {
		t.Fatalf("payload: %#v", specs[0].Payload)
	}

	out, err = svc.GenerateLessons(ctx, course.ID, GenerateLessonsInput{})
	if err != nil {
		t.Fatalf("GenerateLessons all: %v", err)
	}
	if len(out) != 2 || out[0].Error == "" || out[1].Job == nil || out[1].TopicID != b.ID {
		t.Fatalf("mixed result: %+v", out)
	}

	if _, err := svc.GenerateLessons(ctx, course.ID, GenerateLessonsInput{}); !apierr.Is(err, apierr.KindConflict) {
		t.Fatalf("all in flight: want conflict got %v", err)
	}
	if _, err := svc.GenerateLessons(ctx, course.ID, GenerateLessonsInput{TopicIDs: []uint{a.ID, b.ID + 50}}); !apierr.Is(err, apierr.KindNotFound) {
		t.Fatalf("foreign topic: want not_found got %v", err)
	}
}

func TestGenerateTests(t *testing.T) {
	f := newFixture(t)
	ctx := adminCtx()
	course := testutil.SeedCourse(t, ctx, f.db, "algorithms")
	svc := newGeneration(t, f)

	if _, err := svc.GenerateTests(ctx, course.ID, GenerateTestsInput{}); !apierr.Is(err, apierr.KindValidation) {
		t.Fatalf("no topics: want validation got %v", err)
	}
	testutil.SeedTopic(t, ctx, f.db, course.ID, "Sorting", 1, "quicksort")

	bad := &assessment.Difficulty{Easy: -1}
	if _, err := svc.GenerateTests(ctx, course.ID, GenerateTestsInput{Difficulty: bad}); !apierr.Is(err, apierr.KindValidation) {
		t.Fatalf("negative weight: want validation got %v", err)
	}

	job, err := svc.GenerateTests(ctx, course.ID, GenerateTestsInput{QuestionCount: 12, Difficulty: &assessment.Difficulty{Easy: 1, Hard: 1}})
	if err != nil {
		t.Fatalf("GenerateTests: %v", err)
	}
	if job.Kind != jobs.KindAssessment {
		t.Fatalf("kind: %s", job.Kind)
	}
	p, ok := f.runner.recorded(jobs.KindAssessment)[0].Payload.(assessment.Payload)
	if !ok || p.QuestionCount != 12 || p.Difficulty == nil || p.Difficulty.Easy != 0.5 || p.Difficulty.Hard != 0.5 {
		t.Fatalf("payload: %#v", p)
	}
}

func TestAddDocument(t *testing.T) {
	f := newFixture(t)
	ctx := adminCtx()
	course := testutil.SeedCourse(t, ctx, f.db, "algorithms")
	svc := newGeneration(t, f)

	for _, raw := range []string{"", "notaurl", "ftp://example.com/a.pdf", "https://"} {
		if _, err := svc.AddDocument(ctx, course.ID, AddDocumentInput{URL: raw}); !apierr.Is(err, apierr.KindValidation) {
			t.Fatalf("url %q: want validation got %v", raw, err)
		}
	}
	job, err := svc.AddDocument(ctx, course.ID, AddDocumentInput{URL: " https://example.com/notes.pdf ", Revision: "r2"})
	if err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if job.Kind != jobs.KindIngestion {
		t.Fatalf("kind: %s", job.Kind)
	}
	p, ok := f.runner.recorded(jobs.KindIngestion)[0].Payload.(ingestion.Payload)
	if !ok || p.URL != "https://example.com/notes.pdf" || p.Revision != "r2" {
		t.Fatalf("payload: %#v", p)
	}
	if _, err := svc.AddDocument(context.Background(), course.ID+5, AddDocumentInput{URL: "https://example.com"}); !apierr.Is(err, apierr.KindNotFound) {
		t.Fatalf("missing course: want not_found got %v", err)
	}
}
