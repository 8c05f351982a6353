package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/coursegen-backend/internal/clients/docconvert"
	"github.com/yungbote/coursegen-backend/internal/clients/redis"
	"github.com/yungbote/coursegen-backend/internal/data/docstore"
	"github.com/yungbote/coursegen-backend/internal/data/sessionmem"
	"github.com/yungbote/coursegen-backend/internal/platform/llm"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
	"github.com/yungbote/coursegen-backend/internal/platform/vector"
	"github.com/yungbote/coursegen-backend/internal/realtime"
	"github.com/yungbote/coursegen-backend/internal/realtime/bus"
)

// Clients holds the external connections. Redis, Mongo and RabbitMQ are
// optional; each falls back to an in-process equivalent or is disabled.
type Clients struct {
	LLM       *llm.Client
	Index     vector.Index
	Redis     *goredis.Client
	Bus       realtime.Bus
	Memory    sessionmem.Store
	History   docstore.DraftHistory
	Converter docconvert.Converter

	mongo *docstore.MongoHistory
	rpc   *docconvert.RPCClient
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (*Clients, error) {
	log.Info("Wiring clients...")
	c := &Clients{}

	// LLM
	llmClient, err := llm.NewClient(log, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("init llm client: %w", err)
	}
	c.LLM = llmClient

	// Vector
	index, err := resolveVectorIndex(log, cfg)
	if err != nil {
		return nil, err
	}
	c.Index = index

	// Redis
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		rdb, err := redis.Connect(ctx, log, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		c.Redis = rdb
		b, err := bus.NewRedisBus(log, rdb, cfg.RedisChannel)
		if err != nil {
			c.Close(ctx)
			return nil, fmt.Errorf("init redis bus: %w", err)
		}
		c.Bus = b
		c.Memory = sessionmem.NewRedisStore(rdb)
	} else {
		c.Bus = bus.NewLocalBus()
		c.Memory = sessionmem.NewMemoryStore()
	}

	// Mongo
	if strings.TrimSpace(cfg.MongoURI) != "" {
		h, err := docstore.ConnectMongo(ctx, log, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			c.Close(ctx)
			return nil, err
		}
		c.mongo = h
		c.History = h
	} else {
		c.History = docstore.NewMemoryHistory()
	}

	// RabbitMQ
	rpc, err := docconvert.Dial(log, cfg.RabbitURI, cfg.ConvertQueue, cfg.ConvertTimeout)
	switch {
	case errors.Is(err, docconvert.ErrDisabled):
		log.Warn("RABBITMQ_URI not set; document ingestion disabled")
	case err != nil:
		c.Close(ctx)
		return nil, fmt.Errorf("init docconvert: %w", err)
	default:
		c.rpc = rpc
		c.Converter = rpc
	}

	return c, nil
}

func (c *Clients) Close(ctx context.Context) {
	if c == nil {
		return
	}
	if c.rpc != nil {
		_ = c.rpc.Close()
	}
	if c.mongo != nil {
		_ = c.mongo.Close(ctx)
	}
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
