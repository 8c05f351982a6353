package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is an in-process cosine index used when no hosted index is
// configured, and in tests.
type MemoryIndex struct {
	mu     sync.RWMutex
	spaces map[Namespace]*memorySpace
}

type memorySpace struct {
	dimension int
	vectors   map[string]Vector
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{spaces: map[Namespace]*memorySpace{}}
}

func (m *MemoryIndex) EnsureIndex(_ context.Context, ns Namespace, dimension int, metric string) error {
	if metric != MetricCosine {
		return fmt.Errorf("memory index supports only %s, got %s", MetricCosine, metric)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.spaces[ns]; !ok {
		m.spaces[ns] = &memorySpace{dimension: dimension, vectors: map[string]Vector{}}
	}
	return nil
}

func (m *MemoryIndex) Upsert(_ context.Context, ns Namespace, vectors []Vector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	space, ok := m.spaces[ns]
	if !ok {
		return fmt.Errorf("upsert %s: %w", ns, ErrIndexNotFound)
	}
	for _, v := range vectors {
		if space.dimension > 0 && len(v.Values) != space.dimension {
			return fmt.Errorf("upsert %s: vector %s dimension %d != %d", ns, v.ID, len(v.Values), space.dimension)
		}
		space.vectors[v.ID] = v
	}
	return nil
}

func (m *MemoryIndex) Query(_ context.Context, ns Namespace, q []float32, k int, filter map[string]any) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	space, ok := m.spaces[ns]
	if !ok {
		return nil, ErrIndexNotFound
	}
	out := make([]Match, 0, len(space.vectors))
	for _, v := range space.vectors {
		if !matchesFilter(v.Metadata, filter) {
			continue
		}
		out = append(out, Match{ID: v.ID, Score: cosine(q, v.Values), Metadata: v.Metadata})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Len reports how many vectors ns holds, or -1 when the namespace was never created.
func (m *MemoryIndex) Len(ns Namespace) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	space, ok := m.spaces[ns]
	if !ok {
		return -1
	}
	return len(space.vectors)
}

func matchesFilter(meta, filter map[string]any) bool {
	for k, want := range filter {
		if fmt.Sprint(meta[k]) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
