// Package pipelinetest holds the provider fakes shared by the agent and
// service tests.
package pipelinetest

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/coursegen-backend/internal/domain/jobs"
	jobrt "github.com/yungbote/coursegen-backend/internal/jobs/runtime"
	"github.com/yungbote/coursegen-backend/internal/learning/prompts"
	"github.com/yungbote/coursegen-backend/internal/platform/llm"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
	"github.com/yungbote/coursegen-backend/internal/platform/vector"
)

// Reply produces one scripted completion. The request is passed so a reply
// can depend on what the agent asked.
type Reply func(req llm.ChatRequest) (string, error)

func Text(s string) Reply { return func(llm.ChatRequest) (string, error) { return s, nil } }

func Fail(err error) Reply { return func(llm.ChatRequest) (string, error) { return "", err } }

// Provider answers completions from per-schema queues. Once a queue is down
// to its last reply, that reply repeats. Streams emit Tokens.
type Provider struct {
	mu       sync.Mutex
	queues   map[string][]Reply
	requests []llm.ChatRequest

	Tokens    []string
	StreamErr error
}

func NewProvider() *Provider {
	return &Provider{queues: map[string][]Reply{}}
}

// On appends replies for requests carrying the given schema name. The tutor
// prompt has no schema; use "" for it.
func (p *Provider) On(schema string, replies ...Reply) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queues[schema] = append(p.queues[schema], replies...)
	return p
}

func (p *Provider) Complete(_ context.Context, req llm.ChatRequest) (string, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	q := p.queues[req.SchemaName]
	if len(q) == 0 {
		p.mu.Unlock()
		return "", errors.New("no scripted reply for schema " + req.SchemaName)
	}
	next := q[0]
	if len(q) > 1 {
		p.queues[req.SchemaName] = q[1:]
	}
	p.mu.Unlock()
	return next(req)
}

func (p *Provider) Stream(ctx context.Context, req llm.ChatRequest, onDelta func(string) error) error {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	tokens := append([]string(nil), p.Tokens...)
	streamErr := p.StreamErr
	p.mu.Unlock()
	for _, tok := range tokens {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onDelta(tok); err != nil {
			return err
		}
	}
	return streamErr
}

// Requests returns every request seen so far, optionally limited to one schema.
func (p *Provider) Requests(schema ...string) []llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(schema) == 0 {
		return append([]llm.ChatRequest(nil), p.requests...)
	}
	var out []llm.ChatRequest
	for _, r := range p.requests {
		if r.SchemaName == schema[0] {
			out = append(out, r)
		}
	}
	return out
}

// Embedder hashes words into a small fixed-dimension bag-of-words vector, so
// texts sharing words score higher under cosine.
type Embedder struct {
	Dim int
}

func (e Embedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	dim := e.Dim
	if dim <= 0 {
		dim = 16
	}
	out := make([][]float32, len(inputs))
	for i, s := range inputs {
		v := make([]float32, dim)
		for _, w := range strings.Fields(strings.ToLower(s)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(w))
			v[h.Sum32()%uint32(dim)]++
		}
		v[0] += 0.01
		out[i] = v
	}
	return out, nil
}

func Facade(tb testing.TB, p llm.Provider) *llm.Facade {
	tb.Helper()
	reg, err := prompts.Default()
	if err != nil {
		tb.Fatalf("prompts.Default: %v", err)
	}
	return llm.NewFacade(logger.Nop(), p, reg, 2*time.Second)
}

func Retriever(index vector.Index) *vector.Retriever {
	return vector.NewRetriever(logger.Nop(), Embedder{Dim: 16}, index, vector.RetrieverConfig{
		Dimension:   16,
		BatchSize:   8,
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
	})
}

// Enqueuer records follow-up jobs instead of running them.
type Enqueuer struct {
	mu    sync.Mutex
	Specs []jobrt.Spec
	Err   error
}

func (e *Enqueuer) Enqueue(_ context.Context, spec jobrt.Spec) (jobs.GenerationJob, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return jobs.GenerationJob{}, e.Err
	}
	e.Specs = append(e.Specs, spec)
	return jobs.GenerationJob{ID: uuid.New(), CourseID: spec.CourseID, Kind: spec.Kind, Scope: spec.Scope, State: jobs.StateQueued}, nil
}

func (e *Enqueuer) Recorded() []jobrt.Spec {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]jobrt.Spec(nil), e.Specs...)
}

// Job builds a handler context for a job with the given payload. cancelled
// may be nil.
func Job(tb testing.TB, kind jobs.Kind, courseID uint, scope string, payload []byte, cancelled func() bool) *jobrt.Context {
	tb.Helper()
	job := jobs.GenerationJob{
		ID:          uuid.New(),
		CourseID:    courseID,
		Kind:        kind,
		Scope:       scope,
		OwnerUserID: "admin-1",
		SessionID:   uuid.NewString(),
		State:       jobs.StateRunning,
		Attempts:    1,
		Payload:     payload,
	}
	return jobrt.NewContext(context.Background(), job, cancelled, nil)
}
