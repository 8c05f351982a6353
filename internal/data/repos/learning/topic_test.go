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

func topicsFor(courseID uint, names ...string) []*learning.Topic {
	out := make([]*learning.Topic, 0, len(names))
	for i, n := range names {
		out = append(out, &learning.Topic{
			ExternalID: draftdoc.TopicExternalID(courseID, n),
			Name:       n,
			Order:      i + 1,
			Skills:     []learning.Skill{{Name: n + " basics"}},
		})
	}
	return out
}

func TestTopicUpsertIsIdempotent(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.New(ctx)
	repo := NewTopicRepo(db, testutil.Logger(t))
	course := testutil.SeedCourse(t, ctx, db, "ds")

	first, err := repo.UpsertByExternalID(dbc, course.ID, topicsFor(course.ID, "Stacks", "Queues", "Trees"))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	second, err := repo.UpsertByExternalID(dbc, course.ID, topicsFor(course.ID, "stacks", "Queues", "Trees"))
	if err != nil {
		t.Fatalf("Upsert again: %v", err)
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("topic %d: want id=%d got=%d", i, first[i].ID, second[i].ID)
		}
	}

	listed, err := repo.ListByCourse(dbc, course.ID)
	if err != nil {
		t.Fatalf("ListByCourse: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("topics: want=3 got=%d", len(listed))
	}
	var skills int64
	db.Model(&learning.Skill{}).Count(&skills)
	if skills != 3 {
		t.Fatalf("skills: want=3 got=%d", skills)
	}
	if listed[0].Name != "stacks" || len(listed[0].Skills) != 1 {
		t.Fatalf("first topic: %+v", listed[0])
	}
}

func TestTopicListByIDsRejectsForeignTopics(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.New(ctx)
	repo := NewTopicRepo(db, testutil.Logger(t))
	a := testutil.SeedCourse(t, ctx, db, "a")
	b := testutil.SeedCourse(t, ctx, db, "b")
	ta := testutil.SeedTopic(t, ctx, db, a.ID, "Recursion", 1, "base cases")
	tb := testutil.SeedTopic(t, ctx, db, b.ID, "Graphs", 1, "bfs")

	got, err := repo.ListByIDs(dbc, a.ID, []uint{ta.ID, ta.ID})
	if err != nil || len(got) != 1 {
		t.Fatalf("ListByIDs: err=%v len=%d", err, len(got))
	}
	if _, err := repo.ListByIDs(dbc, a.ID, []uint{ta.ID, tb.ID}); !apierr.Is(err, apierr.KindNotFound) {
		t.Fatalf("ListByIDs foreign: want not_found got %v", err)
	}
}
