package app

import (
	"fmt"
	"strings"

	"github.com/yungbote/coursegen-backend/internal/clients/pinecone"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
	"github.com/yungbote/coursegen-backend/internal/platform/vector"
)

const (
	vectorProviderPinecone = "pinecone"
	vectorProviderMemory   = "memory"
)

var newPineconeClient = pinecone.New

func vectorMode(cfg Config) string {
	if strings.TrimSpace(cfg.VectorAPIKey) != "" {
		return vectorProviderPinecone
	}
	return vectorProviderMemory
}

// resolveVectorIndex picks Pinecone when VECTOR_API_KEY is set and the
// in-process cosine index otherwise. Either way the result is instrumented.
func resolveVectorIndex(log *logger.Logger, cfg Config) (vector.Index, error) {
	switch vectorMode(cfg) {
	case vectorProviderPinecone:
		client, err := newPineconeClient(log, pinecone.Config{APIKey: cfg.VectorAPIKey})
		if err != nil {
			return nil, fmt.Errorf("init pinecone: %w", err)
		}
		log.Info("Vector index selected", "provider", vectorProviderPinecone, "prefix", cfg.VectorIndexPrefix)
		return instrumentIndex(vectorProviderPinecone, pinecone.NewIndex(log, client, cfg.VectorIndexPrefix)), nil
	default:
		log.Warn("VECTOR_API_KEY not set; using in-process vector index")
		return instrumentIndex(vectorProviderMemory, vector.NewMemoryIndex()), nil
	}
}
