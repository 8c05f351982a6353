package pinecone

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/coursegen-backend/internal/pkg/httpx"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
	"github.com/yungbote/coursegen-backend/internal/platform/vector"
)

// Index implements vector.Index with one Pinecone index per namespace,
// named "<prefix>-<namespace>".
type Index struct {
	log       *logger.Logger
	client    *Client
	prefix    string
	readyWait time.Duration

	mu    sync.RWMutex
	hosts map[vector.Namespace]string
}

func NewIndex(log *logger.Logger, client *Client, prefix string) *Index {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = "coursegen"
	}
	return &Index{
		log:       log.With("component", "PineconeIndex"),
		client:    client,
		prefix:    prefix,
		readyWait: 2 * time.Second,
		hosts:     map[vector.Namespace]string{},
	}
}

func (x *Index) indexName(ns vector.Namespace) string {
	return x.prefix + "-" + strings.ReplaceAll(string(ns), "_", "-")
}

// EnsureIndex describes the namespace's index and creates it when missing,
// then waits for it to report ready.
func (x *Index) EnsureIndex(ctx context.Context, ns vector.Namespace, dimension int, metric string) error {
	name := x.indexName(ns)
	desc, err := x.client.DescribeIndex(ctx, name)
	if isNotFound(err) {
		x.log.Info("Creating vector index", "index", name, "dimension", dimension, "metric", metric)
		desc, err = x.client.CreateIndex(ctx, name, dimension, metric)
		if isConflict(err) {
			desc, err = x.client.DescribeIndex(ctx, name)
		}
	}
	if err != nil {
		return fmt.Errorf("ensure index %s: %w", name, err)
	}
	if desc.Dimension != 0 && desc.Dimension != dimension {
		return fmt.Errorf("index %s has dimension %d, want %d", name, desc.Dimension, dimension)
	}
	for !desc.Status.Ready || desc.Host == "" {
		if err := httpx.Sleep(ctx, x.readyWait); err != nil {
			return err
		}
		if desc, err = x.client.DescribeIndex(ctx, name); err != nil {
			return fmt.Errorf("ensure index %s: %w", name, err)
		}
	}
	x.mu.Lock()
	x.hosts[ns] = desc.Host
	x.mu.Unlock()
	return nil
}

func (x *Index) host(ctx context.Context, ns vector.Namespace) (string, error) {
	x.mu.RLock()
	h, ok := x.hosts[ns]
	x.mu.RUnlock()
	if ok {
		return h, nil
	}
	desc, err := x.client.DescribeIndex(ctx, x.indexName(ns))
	if isNotFound(err) {
		return "", vector.ErrIndexNotFound
	}
	if err != nil {
		return "", err
	}
	if desc.Host == "" {
		return "", vector.ErrIndexNotFound
	}
	x.mu.Lock()
	x.hosts[ns] = desc.Host
	x.mu.Unlock()
	return desc.Host, nil
}

func (x *Index) Upsert(ctx context.Context, ns vector.Namespace, vectors []vector.Vector) error {
	host, err := x.host(ctx, ns)
	if err != nil {
		return err
	}
	wire := make([]wireVector, 0, len(vectors))
	for _, v := range vectors {
		wire = append(wire, wireVector{ID: v.ID, Values: v.Values, Metadata: v.Metadata})
	}
	_, err = x.client.UpsertVectors(ctx, host, upsertRequest{Vectors: wire, Namespace: string(ns)})
	return err
}

func (x *Index) Query(ctx context.Context, ns vector.Namespace, q []float32, k int, filter map[string]any) ([]vector.Match, error) {
	host, err := x.host(ctx, ns)
	if err != nil {
		return nil, err
	}
	resp, err := x.client.Query(ctx, host, queryRequest{
		Namespace:       string(ns),
		Vector:          q,
		TopK:            k,
		Filter:          filter,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, err
	}
	out := make([]vector.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		out = append(out, vector.Match{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}
	return out, nil
}

func isNotFound(err error) bool {
	var se *httpx.StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

func isConflict(err error) bool {
	var se *httpx.StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusConflict
}
