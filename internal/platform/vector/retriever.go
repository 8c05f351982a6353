package vector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/coursegen-backend/internal/pkg/httpx"
	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
	"github.com/yungbote/coursegen-backend/internal/platform/envutil"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
)

type RetrieverConfig struct {
	Dimension   int
	BatchSize   int
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func RetrieverConfigFromEnv() RetrieverConfig {
	return RetrieverConfig{
		Dimension:   envutil.Int("VECTOR_DIMENSION", 1536),
		BatchSize:   envutil.Int("EMBED_BATCH_SIZE", 96),
		MaxAttempts: envutil.Int("VECTOR_MAX_ATTEMPTS", 4),
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
	}
}

// Retriever embeds text and reads/writes the vector index. Every provider
// call retries transient failures; each namespace's index is created on
// first write.
type Retriever struct {
	log      *logger.Logger
	embedder Embedder
	index    Index
	cfg      RetrieverConfig

	mu      sync.Mutex
	ensured map[Namespace]bool
}

func NewRetriever(log *logger.Logger, embedder Embedder, index Index, cfg RetrieverConfig) *Retriever {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 96
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 8 * time.Second
	}
	return &Retriever{
		log:      log.With("component", "Retriever"),
		embedder: embedder,
		index:    index,
		cfg:      cfg,
		ensured:  map[Namespace]bool{},
	}
}

func (r *Retriever) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := r.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch splits texts into provider-sized batches and embeds them with
// bounded parallelism. Output order matches input order.
func (r *Retriever) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	for start := 0; start < len(texts); start += r.cfg.BatchSize {
		start := start
		end := min(start+r.cfg.BatchSize, len(texts))
		g.Go(func() error {
			var vecs [][]float32
			err := r.retry(gctx, "embed", func() error {
				var err error
				vecs, err = r.embedder.Embed(gctx, texts[start:end])
				return err
			})
			if err != nil {
				return err
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embed: want %d vectors, got %d", end-start, len(vecs))
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Retriever) Upsert(ctx context.Context, ns Namespace, id string, vec []float32, meta map[string]any) error {
	return r.UpsertMany(ctx, ns, []Vector{{ID: id, Values: vec, Metadata: meta}})
}

func (r *Retriever) UpsertMany(ctx context.Context, ns Namespace, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	for _, v := range vectors {
		if r.cfg.Dimension > 0 && len(v.Values) != r.cfg.Dimension {
			return apierr.Validation("vector %s has dimension %d, index expects %d", v.ID, len(v.Values), r.cfg.Dimension)
		}
	}
	if err := r.ensure(ctx, ns); err != nil {
		return err
	}
	return r.retry(ctx, "upsert", func() error {
		return r.index.Upsert(ctx, ns, vectors)
	})
}

// Query returns up to k matches. A namespace that has never been written has no matches.
func (r *Retriever) Query(ctx context.Context, ns Namespace, vec []float32, k int, filter map[string]any) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	var matches []Match
	err := r.retry(ctx, "query", func() error {
		var err error
		matches, err = r.index.Query(ctx, ns, vec, k, filter)
		return err
	})
	if errors.Is(err, ErrIndexNotFound) {
		return nil, nil
	}
	return matches, err
}

// Search embeds text and queries ns with it.
func (r *Retriever) Search(ctx context.Context, ns Namespace, text string, k int, filter map[string]any) ([]Match, error) {
	vec, err := r.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return r.Query(ctx, ns, vec, k, filter)
}

// SearchTexts is Search reduced to the non-empty snippet texts.
func (r *Retriever) SearchTexts(ctx context.Context, ns Namespace, text string, k int, filter map[string]any) ([]string, error) {
	matches, err := r.Search(ctx, ns, text, k, filter)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if t := m.Text(); t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *Retriever) ensure(ctx context.Context, ns Namespace) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ensured[ns] {
		return nil
	}
	err := r.retry(ctx, "ensure_index", func() error {
		return r.index.EnsureIndex(ctx, ns, r.cfg.Dimension, MetricCosine)
	})
	if err != nil {
		return err
	}
	r.ensured[ns] = true
	r.log.Info("Vector index ready", "namespace", string(ns), "dimension", r.cfg.Dimension)
	return nil
}

func (r *Retriever) retry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == r.cfg.MaxAttempts || !httpx.IsRetryableError(err) {
			break
		}
		delay := httpx.Backoff(attempt, r.cfg.BaseDelay, r.cfg.MaxDelay)
		r.log.Warn("Vector provider call retrying", "op", op, "attempt", attempt, "sleep", delay.String(), "error", err.Error())
		if serr := httpx.Sleep(ctx, delay); serr != nil {
			return serr
		}
	}
	return err
}
