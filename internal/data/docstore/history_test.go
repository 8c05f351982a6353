package docstore

import (
	"context"
	"testing"

	"github.com/yungbote/coursegen-backend/internal/domain/learning"
)

func TestMemoryHistoryNewestFirstAndIdempotent(t *testing.T) {
	h := NewMemoryHistory()
	ctx := context.Background()
	for _, v := range []int{1, 2, 2, 3} {
		d := &learning.Draft{CourseID: 7, Version: v, Status: learning.DraftRejected, ContentJSON: []byte(`{"schema_version":1}`)}
		if err := h.Archive(ctx, SnapshotOf(d)); err != nil {
			t.Fatalf("Archive: %v", err)
		}
	}
	got, err := h.List(ctx, 7)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("List: want=3 got=%d", len(got))
	}
	for i, want := range []int{3, 2, 1} {
		if got[i].Version != want {
			t.Fatalf("List[%d]: want=%d got=%d", i, want, got[i].Version)
		}
	}
	if other, _ := h.List(ctx, 8); len(other) != 0 {
		t.Fatalf("List other course: want empty got %d", len(other))
	}
}
