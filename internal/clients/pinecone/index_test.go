package pinecone

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/coursegen-backend/internal/platform/logger"
	"github.com/yungbote/coursegen-backend/internal/platform/vector"
)

// fakePinecone serves both planes from one server; the data-plane host it
// hands out is the server URL itself.
type fakePinecone struct {
	mu       sync.Mutex
	srv      *httptest.Server
	indexes  map[string]int
	creates  int
	upserted map[string][]wireVector
	lastQ    queryRequest
}

func newFakePinecone(t *testing.T) *fakePinecone {
	f := &fakePinecone{indexes: map[string]int{}, upserted: map[string][]wireVector{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/indexes/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Api-Key") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		name := r.URL.Path[len("/indexes/"):]
		f.mu.Lock()
		dim, ok := f.indexes[name]
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		f.writeDesc(w, name, dim)
	})
	mux.HandleFunc("/indexes", func(w http.ResponseWriter, r *http.Request) {
		var req createIndexRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Metric != "cosine" {
			t.Errorf("metric: want cosine got %s", req.Metric)
		}
		f.mu.Lock()
		f.indexes[req.Name] = req.Dimension
		f.creates++
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		f.writeDesc(w, req.Name, req.Dimension)
	})
	mux.HandleFunc("/vectors/upsert", func(w http.ResponseWriter, r *http.Request) {
		var req upsertRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.upserted[req.Namespace] = append(f.upserted[req.Namespace], req.Vectors...)
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"upsertedCount": len(req.Vectors)})
	})
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.lastQ = req
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"matches":[{"id":"d1","score":0.9,"metadata":{"text":"stacks are LIFO"}}]}`))
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakePinecone) writeDesc(w http.ResponseWriter, name string, dim int) {
	desc := map[string]any{
		"name": name, "host": f.srv.URL, "dimension": dim, "metric": "cosine",
		"status": map[string]any{"ready": true, "state": "Ready"},
	}
	_ = json.NewEncoder(w).Encode(desc)
}

func newTestIndex(t *testing.T, f *fakePinecone) *Index {
	t.Helper()
	c, err := New(logger.Nop(), Config{APIKey: "k", BaseURL: f.srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return NewIndex(logger.Nop(), c, "cg")
}

func TestEnsureIndexCreatesOnce(t *testing.T) {
	f := newFakePinecone(t)
	x := newTestIndex(t, f)
	ctx := context.Background()

	if _, err := x.Query(ctx, vector.NamespaceDocument, []float32{1, 0}, 3, nil); err != vector.ErrIndexNotFound {
		t.Fatalf("Query before create: want ErrIndexNotFound, got %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := x.EnsureIndex(ctx, vector.NamespaceDocument, 2, vector.MetricCosine); err != nil {
			t.Fatalf("EnsureIndex: %v", err)
		}
	}
	if f.creates != 1 || f.indexes["cg-document"] != 2 {
		t.Fatalf("creates=%d indexes=%v", f.creates, f.indexes)
	}
	if err := x.EnsureIndex(ctx, vector.NamespaceDocument, 3, vector.MetricCosine); err == nil {
		t.Fatalf("EnsureIndex with other dimension: want error")
	}
}

func TestUpsertAndQueryUseNamespace(t *testing.T) {
	f := newFakePinecone(t)
	x := newTestIndex(t, f)
	ctx := context.Background()

	if err := x.EnsureIndex(ctx, vector.NamespaceExercise, 2, vector.MetricCosine); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	err := x.Upsert(ctx, vector.NamespaceExercise, []vector.Vector{{ID: "e1", Values: []float32{1, 0}, Metadata: map[string]any{"text": "push"}}})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if len(f.upserted["exercise"]) != 1 {
		t.Fatalf("upserted: %v", f.upserted)
	}
	matches, err := x.Query(ctx, vector.NamespaceExercise, []float32{1, 0}, 4, map[string]any{"course_id": "42"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 1 || matches[0].Text() != "stacks are LIFO" {
		t.Fatalf("Query: %v", matches)
	}
	if f.lastQ.Namespace != "exercise" || f.lastQ.TopK != 4 || !f.lastQ.IncludeMetadata {
		t.Fatalf("query request: %+v", f.lastQ)
	}
}
