package bus

import (
	"context"
	"sync"

	"github.com/yungbote/coursegen-backend/internal/realtime"
)

// localBus is the single-instance bus: publish calls every forwarder in-process.
type localBus struct {
	mu   sync.RWMutex
	subs []func(realtime.Envelope)
}

func NewLocalBus() realtime.Bus { return &localBus{} }

func (b *localBus) Publish(_ context.Context, env realtime.Envelope) error {
	b.mu.RLock()
	subs := append([]func(realtime.Envelope){}, b.subs...)
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(env)
	}
	return nil
}

func (b *localBus) StartForwarder(_ context.Context, onMsg func(realtime.Envelope)) error {
	b.mu.Lock()
	b.subs = append(b.subs, onMsg)
	b.mu.Unlock()
	return nil
}

func (b *localBus) Close() error { return nil }
