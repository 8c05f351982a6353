package app

import (
	"errors"
	"testing"

	"github.com/yungbote/coursegen-backend/internal/clients/pinecone"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
	"github.com/yungbote/coursegen-backend/internal/platform/vector"
)

func TestResolveVectorIndex(t *testing.T) {
	log := logger.Nop()

	idx, err := resolveVectorIndex(log, Config{})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	wrapped, ok := idx.(*instrumentedIndex)
	if !ok || wrapped.provider != vectorProviderMemory {
		t.Fatalf("memory index: %#v", idx)
	}
	if _, ok := wrapped.inner.(*vector.MemoryIndex); !ok {
		t.Fatalf("inner: want *vector.MemoryIndex got %T", wrapped.inner)
	}

	idx, err = resolveVectorIndex(log, Config{VectorAPIKey: "pc-key", VectorIndexPrefix: "cg"})
	if err != nil {
		t.Fatalf("pinecone: %v", err)
	}
	wrapped, ok = idx.(*instrumentedIndex)
	if !ok || wrapped.provider != vectorProviderPinecone {
		t.Fatalf("pinecone index: %#v", idx)
	}
	if _, ok := wrapped.inner.(*pinecone.Index); !ok {
		t.Fatalf("inner: want *pinecone.Index got %T", wrapped.inner)
	}
}

func TestResolveVectorIndexClientFailure(t *testing.T) {
	orig := newPineconeClient
	t.Cleanup(func() { newPineconeClient = orig })

	want := errors.New("boom")
	newPineconeClient = func(*logger.Logger, pinecone.Config) (*pinecone.Client, error) { return nil, want }
	if _, err := resolveVectorIndex(logger.Nop(), Config{VectorAPIKey: "pc-key"}); !errors.Is(err, want) {
		t.Fatalf("want wrapped client error got %v", err)
	}
}
