package llm

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/coursegen-backend/internal/observability"
)

// TokenStream is a lazy, finite sequence of tokens. The provider call starts
// on the first Next. The sequence ends at provider end-of-stream, at the
// facade deadline, or when Close is called.
//
//	s := facade.Stream(ctx, req)
//	defer s.Close()
//	for tok, ok := s.Next(); ok; tok, ok = s.Next() { ... }
//	if f := s.Err(); f != nil { ... }
type TokenStream struct {
	start   func()
	once    sync.Once
	tokens  chan string
	cancel  context.CancelFunc
	closed  chan struct{}
	closeMu sync.Once

	mu      sync.Mutex
	failure *Failure
	text    strings.Builder
}

// Next blocks for the next token. ok is false once the stream has ended.
func (s *TokenStream) Next() (string, bool) {
	s.once.Do(s.start)
	tok, ok := <-s.tokens
	if ok {
		s.mu.Lock()
		s.text.WriteString(tok)
		s.mu.Unlock()
	}
	return tok, ok
}

// Err is the terminal failure, or nil for a clean end. Valid after Next returned false.
func (s *TokenStream) Err() *Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// Text is everything delivered through Next so far.
func (s *TokenStream) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.String()
}

// Close cancels the provider call and drains the stream. Safe to call twice.
func (s *TokenStream) Close() {
	s.closeMu.Do(func() {
		close(s.closed)
		s.cancel()
	})
	s.once.Do(func() { close(s.tokens) })
	for range s.tokens {
	}
}

func (s *TokenStream) fail(f *Failure) {
	s.mu.Lock()
	if s.failure == nil {
		s.failure = f
	}
	s.mu.Unlock()
}

// FailedStream returns a stream that yields nothing and reports f.
func FailedStream(f *Failure) *TokenStream {
	s := &TokenStream{tokens: make(chan string), closed: make(chan struct{}), cancel: func() {}, failure: f}
	s.start = func() { close(s.tokens) }
	return s
}

// Stream renders the prompt and returns a token stream over the provider's
// streaming variant.
func (f *Facade) Stream(ctx context.Context, req Request) *TokenStream {
	p, err := f.prompts.Build(req.Prompt, req.Vars)
	if err != nil {
		return FailedStream(&Failure{Kind: ProviderError, Detail: err.Error(), Err: err})
	}
	chat := ChatRequest{System: p.System, User: p.User}

	callCtx, cancel := context.WithTimeout(ctx, f.deadline)
	s := &TokenStream{
		tokens: make(chan string),
		cancel: cancel,
		closed: make(chan struct{}),
	}
	s.start = func() {
		go func() {
			started := time.Now()
			defer cancel()
			defer close(s.tokens)
			err := f.provider.Stream(callCtx, chat, func(delta string) error {
				select {
				case s.tokens <- delta:
					return nil
				case <-s.closed:
					return context.Canceled
				case <-callCtx.Done():
					return callCtx.Err()
				}
			})
			select {
			case <-s.closed:
				return
			default:
			}
			kind := "ok"
			if err != nil {
				fl := classify(ctx, err)
				s.fail(fl)
				kind = string(fl.Kind)
				f.log.Warn("LLM stream ended with failure", "prompt", p.Name, "kind", kind, "detail", fl.Detail)
			}
			observability.ObserveLLMCall(p.Name+".stream", kind, time.Since(started))
		}()
	}
	return s
}
