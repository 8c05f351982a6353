package runtime

import (
	"fmt"
	"sync"

	"github.com/yungbote/coursegen-backend/internal/domain/jobs"
)

type Handler interface {
	Kind() jobs.Kind
	Run(ctx *Context) error
}

type Registry struct {
	mu       sync.RWMutex
	handlers map[jobs.Kind]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[jobs.Kind]Handler)}
}

func (r *Registry) Register(h Handler) error {
	if h == nil {
		return fmt.Errorf("nil handler")
	}
	k := h.Kind()
	if k == "" {
		return fmt.Errorf("handler Kind() is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[k]; exists {
		return fmt.Errorf("handler already registered for kind=%s", k)
	}
	r.handlers[k] = h
	return nil
}

func (r *Registry) Get(kind jobs.Kind) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	return h, ok
}
