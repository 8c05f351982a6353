package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/coursegen-backend/internal/pkg/httpx"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
)

func newTestClient(t *testing.T, srv *httptest.Server, retries int) *Client {
	t.Helper()
	c, err := NewClient(logger.Nop(), Config{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		Model:      "m",
		EmbedModel: "e",
		Timeout:    2 * time.Second,
		MaxRetries: retries,
		RetryBase:  5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestClientCompleteSendsSchemaAndRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer auth")
		}
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"slow down"}`))
			return
		}
		var body chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.ResponseFormat == nil || body.ResponseFormat.Type != "json_schema" {
			t.Errorf("response_format: want json_schema, got %+v", body.ResponseFormat)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 2)
	out, err := c.Complete(context.Background(), ChatRequest{System: "s", User: "u", SchemaName: "x", Schema: map[string]any{"type": "object"}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"ok":true}` {
		t.Fatalf("Complete: got=%q", out)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("calls: want=2 got=%d", calls)
	}
}

func TestClientCompleteGivesUpOnBadRequest(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, 3).Complete(context.Background(), ChatRequest{User: "u"})
	var se *httpx.StatusError
	if err == nil || !asStatus(err, &se) || se.StatusCode != 400 {
		t.Fatalf("Complete: want 400 status error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("4xx should not retry, calls=%d", calls)
	}
}

func asStatus(err error, target **httpx.StatusError) bool {
	se, ok := err.(*httpx.StatusError)
	if ok {
		*target = se
	}
	return ok
}

func TestClientStreamParsesDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, tok := range []string{"Hel", "lo"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", tok)
		}
		fmt.Fprint(w, ": keepalive\n\ndata: [DONE]\n\n")
	}))
	defer srv.Close()

	var sb strings.Builder
	err := newTestClient(t, srv, 0).Stream(context.Background(), ChatRequest{User: "hi"}, func(d string) error {
		sb.WriteString(d)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if sb.String() != "Hello" {
		t.Fatalf("Stream: got=%q", sb.String())
	}
}

func TestClientEmbedOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	vecs, err := newTestClient(t, srv, 0).Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 || vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Fatalf("Embed: got=%v", vecs)
	}
}
