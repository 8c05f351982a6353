package vector

import (
	"context"
	"errors"
)

type Namespace string

const (
	NamespaceDocument Namespace = "document"
	NamespaceExercise Namespace = "exercise"
)

const MetricCosine = "cosine"

// ErrIndexNotFound is returned by an Index queried before its namespace was created.
var ErrIndexNotFound = errors.New("vector index not found")

type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Text returns the "text" metadata field, which every indexed chunk carries.
func (m Match) Text() string {
	s, _ := m.Metadata["text"].(string)
	return s
}

type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// Index is a cosine-similarity store partitioned by namespace.
type Index interface {
	EnsureIndex(ctx context.Context, ns Namespace, dimension int, metric string) error
	Upsert(ctx context.Context, ns Namespace, vectors []Vector) error
	Query(ctx context.Context, ns Namespace, vector []float32, k int, filter map[string]any) ([]Match, error)
}
