package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	repos "github.com/yungbote/coursegen-backend/internal/data/repos/learning"
	"github.com/yungbote/coursegen-backend/internal/data/repos/testutil"
	"github.com/yungbote/coursegen-backend/internal/domain/jobs"
	jobrt "github.com/yungbote/coursegen-backend/internal/jobs/runtime"
	"github.com/yungbote/coursegen-backend/internal/learning/draftdoc"
	"github.com/yungbote/coursegen-backend/internal/pkg/ctxutil"
	"github.com/yungbote/coursegen-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
)

// fakeRunner keeps jobs in memory and enforces one in-flight job per
// (course, kind, scope), like the real runner.
type fakeRunner struct {
	mu       sync.Mutex
	specs    []jobrt.Spec
	byID     map[uuid.UUID]jobs.GenerationJob
	inflight map[string]uuid.UUID
	err      error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{byID: map[uuid.UUID]jobs.GenerationJob{}, inflight: map[string]uuid.UUID{}}
}

func runnerKey(courseID uint, kind jobs.Kind, scope string) string {
	return fmt.Sprintf("%d|%s|%s", courseID, kind, scope)
}

func (r *fakeRunner) Enqueue(_ context.Context, spec jobrt.Spec) (jobs.GenerationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return jobs.GenerationJob{}, r.err
	}
	key := runnerKey(spec.CourseID, spec.Kind, spec.Scope)
	if id, ok := r.inflight[key]; ok {
		return jobs.GenerationJob{}, apierr.Conflict("job %s already in flight", id)
	}
	job := jobs.GenerationJob{
		ID:          uuid.New(),
		CourseID:    spec.CourseID,
		Kind:        spec.Kind,
		Scope:       spec.Scope,
		OwnerUserID: spec.OwnerUserID,
		SessionID:   spec.SessionID,
		State:       jobs.StateQueued,
	}
	r.specs = append(r.specs, spec)
	r.byID[job.ID] = job
	r.inflight[key] = job.ID
	return job, nil
}

func (r *fakeRunner) Status(id uuid.UUID) (jobs.GenerationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[id]
	if !ok {
		return jobs.GenerationJob{}, apierr.NotFound("job %s not found", id)
	}
	return job, nil
}

func (r *fakeRunner) Cancel(_ context.Context, id uuid.UUID) (jobs.GenerationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[id]
	if !ok {
		return jobs.GenerationJob{}, apierr.NotFound("job %s not found", id)
	}
	job.State = jobs.StateCancelled
	r.byID[id] = job
	delete(r.inflight, runnerKey(job.CourseID, job.Kind, job.Scope))
	return job, nil
}

func (r *fakeRunner) recorded(kind jobs.Kind) []jobrt.Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []jobrt.Spec
	for _, s := range r.specs {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

func adminCtx() context.Context {
	return ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: "admin-1", Role: ctxutil.RoleAdmin})
}

func learnerCtx(userID string) context.Context {
	return ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: userID, Role: "learner"})
}

type fixture struct {
	db     *gorm.DB
	repos  repos.Set
	runner *fakeRunner
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.DB(t)
	return fixture{db: db, repos: repos.NewSet(db, testutil.Logger(t)), runner: newFakeRunner()}
}

func draftContent(names ...string) draftdoc.Content {
	var c draftdoc.Composition
	for _, n := range names {
		c.Topics = append(c.Topics, draftdoc.TopicDraft{
			Name:        n,
			Description: n + " in depth",
			Skills:      []draftdoc.SkillDraft{{Name: n + " basics"}, {Name: n + " practice"}},
			LessonOutlines: []draftdoc.LessonOutline{
				{Title: "Intro to " + n, Order: 1},
				{Title: n + " exercises", Order: 2},
			},
		})
	}
	c.DurationEstimateMinutes = 60 * len(names)
	return draftdoc.NewContent(c, "")
}

func (f fixture) seedDraft(t *testing.T, courseID uint, sessionID string, names ...string) {
	t.Helper()
	if _, _, err := f.repos.Drafts.Replace(dbctx.New(context.Background()), courseID, sessionID, draftContent(names...)); err != nil {
		t.Fatalf("seed draft: %v", err)
	}
}
