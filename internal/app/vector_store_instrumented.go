package app

import (
	"context"
	"time"

	"github.com/yungbote/coursegen-backend/internal/observability"
	"github.com/yungbote/coursegen-backend/internal/platform/vector"
)

type instrumentedIndex struct {
	provider string
	inner    vector.Index
}

func instrumentIndex(provider string, inner vector.Index) vector.Index {
	if inner == nil {
		return nil
	}
	return &instrumentedIndex{provider: provider, inner: inner}
}

func (s *instrumentedIndex) EnsureIndex(ctx context.Context, ns vector.Namespace, dimension int, metric string) error {
	start := time.Now()
	err := s.inner.EnsureIndex(ctx, ns, dimension, metric)
	s.observe("ensure_index", err, time.Since(start))
	return err
}

func (s *instrumentedIndex) Upsert(ctx context.Context, ns vector.Namespace, vectors []vector.Vector) error {
	start := time.Now()
	err := s.inner.Upsert(ctx, ns, vectors)
	s.observe("upsert", err, time.Since(start))
	return err
}

func (s *instrumentedIndex) Query(ctx context.Context, ns vector.Namespace, q []float32, k int, filter map[string]any) ([]vector.Match, error) {
	start := time.Now()
	out, err := s.inner.Query(ctx, ns, q, k, filter)
	s.observe("query", err, time.Since(start))
	return out, err
}

func (s *instrumentedIndex) observe(operation string, err error, dur time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.ObserveVectorOp(s.provider, operation, status, dur)
}
