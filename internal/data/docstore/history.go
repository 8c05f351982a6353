// Package docstore keeps superseded draft versions. The relational draft row
// only ever holds the latest version.
package docstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/yungbote/coursegen-backend/internal/domain/learning"
)

type DraftSnapshot struct {
	CourseID   uint            `json:"course_id" bson:"course_id"`
	Version    int             `json:"version" bson:"version"`
	SessionID  string          `json:"session_id" bson:"session_id"`
	Status     string          `json:"status" bson:"status"`
	Content    json.RawMessage `json:"content" bson:"-"`
	ArchivedAt time.Time       `json:"archived_at" bson:"archived_at"`
}

func SnapshotOf(d *learning.Draft) DraftSnapshot {
	return DraftSnapshot{
		CourseID:   d.CourseID,
		Version:    d.Version,
		SessionID:  d.SessionID,
		Status:     string(d.Status),
		Content:    json.RawMessage(d.ContentJSON),
		ArchivedAt: time.Now().UTC(),
	}
}

type DraftHistory interface {
	// Archive is idempotent on (course_id, version).
	Archive(ctx context.Context, snap DraftSnapshot) error
	// List returns snapshots newest first.
	List(ctx context.Context, courseID uint) ([]DraftSnapshot, error)
}

type MemoryHistory struct {
	mu   sync.Mutex
	byID map[uint]map[int]DraftSnapshot
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{byID: map[uint]map[int]DraftSnapshot{}}
}

func (m *MemoryHistory) Archive(_ context.Context, snap DraftSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	versions, ok := m.byID[snap.CourseID]
	if !ok {
		versions = map[int]DraftSnapshot{}
		m.byID[snap.CourseID] = versions
	}
	versions[snap.Version] = snap
	return nil
}

func (m *MemoryHistory) List(_ context.Context, courseID uint) ([]DraftSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DraftSnapshot, 0, len(m.byID[courseID]))
	for _, s := range m.byID[courseID] {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}
