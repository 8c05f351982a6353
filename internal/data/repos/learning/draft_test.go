package learning

import (
	"context"
	"testing"

	"github.com/yungbote/coursegen-backend/internal/data/repos/testutil"
	"github.com/yungbote/coursegen-backend/internal/domain/learning"
	"github.com/yungbote/coursegen-backend/internal/learning/draftdoc"
	"github.com/yungbote/coursegen-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
)

func sampleContent(names ...string) draftdoc.Content {
	var comp draftdoc.Composition
	for _, n := range names {
		comp.Topics = append(comp.Topics, draftdoc.TopicDraft{
			Name:   n,
			Skills: []draftdoc.SkillDraft{{Name: n + " skill"}},
		})
	}
	return draftdoc.NewContent(comp, "")
}

func TestDraftRepoReplaceAndTransition(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.New(ctx)
	repo := NewDraftRepo(db, testutil.Logger(t))
	course := testutil.SeedCourse(t, ctx, db, "algorithms")

	if _, err := repo.Get(dbc, course.ID); !apierr.Is(err, apierr.KindNotFound) {
		t.Fatalf("Get before create: want not_found got %v", err)
	}

	d1, prev, err := repo.Replace(dbc, course.ID, "s1", sampleContent("Stacks"))
	if err != nil || prev != nil {
		t.Fatalf("Replace first: err=%v prev=%v", err, prev)
	}
	if d1.Version != 1 || d1.Status != learning.DraftPending {
		t.Fatalf("first draft: %+v", d1)
	}

	ok, err := repo.Transition(dbc, course.ID, d1.Version, learning.DraftPending, learning.DraftRejected)
	if err != nil || !ok {
		t.Fatalf("Transition: ok=%v err=%v", ok, err)
	}
	ok, err = repo.Transition(dbc, course.ID, d1.Version, learning.DraftPending, learning.DraftApproved)
	if err != nil || ok {
		t.Fatalf("Transition from stale status: ok=%v err=%v", ok, err)
	}

	d2, prev, err := repo.Replace(dbc, course.ID, "s2", sampleContent("Stacks", "Graphs"))
	if err != nil {
		t.Fatalf("Replace second: %v", err)
	}
	if prev == nil || prev.Version != 1 || prev.Status != learning.DraftRejected {
		t.Fatalf("displaced draft: %+v", prev)
	}
	if d2.Version != 2 || d2.Status != learning.DraftPending || d2.SessionID != "s2" {
		t.Fatalf("second draft: %+v", d2)
	}

	loaded, content, err := repo.Load(dbc, course.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Version != 2 || len(content.Composition.Topics) != 2 {
		t.Fatalf("Load: version=%d topics=%d", loaded.Version, len(content.Composition.Topics))
	}
}

func TestDraftRepoLoadRejectsUnknownVersion(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.New(ctx)
	repo := NewDraftRepo(db, testutil.Logger(t))
	course := testutil.SeedCourse(t, ctx, db, "networks")

	row := &learning.Draft{CourseID: course.ID, Version: 1, Status: learning.DraftPending, ContentJSON: []byte(`{"schema_version":7}`)}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("seed draft: %v", err)
	}
	if _, _, err := repo.Load(dbc, course.ID); !apierr.Is(err, apierr.KindConflict) {
		t.Fatalf("Load: want conflict got %v", err)
	}
}

func TestDraftRepoTurnsOrdered(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.New(ctx)
	repo := NewDraftRepo(db, testutil.Logger(t))
	course := testutil.SeedCourse(t, ctx, db, "compilers")

	msgs := []struct {
		author learning.ChatAuthor
		text   string
	}{
		{learning.AuthorAgent, "Drafted 3 topics"},
		{learning.AuthorAdmin, "Add a topic on graphs"},
		{learning.AuthorAgent, "Drafted 4 topics"},
	}
	for _, m := range msgs {
		if err := repo.AppendTurn(dbc, &learning.ReviewChatTurn{CourseID: course.ID, Author: m.author, Message: m.text}); err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
	}
	if err := repo.AppendTurn(dbc, &learning.ReviewChatTurn{CourseID: course.ID, Author: learning.AuthorAdmin}); !apierr.Is(err, apierr.KindValidation) {
		t.Fatalf("AppendTurn empty: want validation got %v", err)
	}

	turns, err := repo.ListTurns(dbc, course.ID)
	if err != nil {
		t.Fatalf("ListTurns: %v", err)
	}
	if len(turns) != len(msgs) {
		t.Fatalf("ListTurns: want=%d got=%d", len(msgs), len(turns))
	}
	for i, m := range msgs {
		if turns[i].Message != m.text || turns[i].Author != m.author {
			t.Fatalf("turn %d: want=%s got=%s", i, m.text, turns[i].Message)
		}
	}
}
