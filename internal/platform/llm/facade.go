package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/coursegen-backend/internal/learning/prompts"
	"github.com/yungbote/coursegen-backend/internal/observability"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
)

// Request names a catalog prompt and the variables to render it with. The
// prompt declares the output schema.
type Request struct {
	Prompt string
	Vars   map[string]any
}

// Outcome is the tagged result of Generate: exactly one of Raw or Failure is set.
type Outcome struct {
	Raw     json.RawMessage
	Failure *Failure
}

func (o Outcome) OK() bool { return o.Failure == nil }

func (o Outcome) Decode(v any) error {
	if o.Failure != nil {
		return o.Failure.AsError()
	}
	return json.Unmarshal(o.Raw, v)
}

type Facade struct {
	log      *logger.Logger
	provider Provider
	prompts  *prompts.Registry
	deadline time.Duration
}

func NewFacade(log *logger.Logger, provider Provider, reg *prompts.Registry, deadline time.Duration) *Facade {
	if deadline <= 0 {
		deadline = 90 * time.Second
	}
	return &Facade{
		log:      log.With("component", "LLMFacade"),
		provider: provider,
		prompts:  reg,
		deadline: deadline,
	}
}

// Generate renders the prompt, calls the provider under a hard deadline and
// parses the result against the prompt's schema. A parse failure is repaired
// once; a second one is returned as parse_error.
func (f *Facade) Generate(ctx context.Context, req Request) Outcome {
	start := time.Now()
	out := f.generate(ctx, req)
	kind := "ok"
	if out.Failure != nil {
		kind = string(out.Failure.Kind)
	}
	observability.ObserveLLMCall(req.Prompt, kind, time.Since(start))
	return out
}

func (f *Facade) generate(ctx context.Context, req Request) Outcome {
	p, err := f.prompts.Build(req.Prompt, req.Vars)
	if err != nil {
		return Outcome{Failure: &Failure{Kind: ProviderError, Detail: err.Error(), Err: err}}
	}
	chat := ChatRequest{System: p.System, User: p.User, SchemaName: p.SchemaName, Schema: p.Schema}

	text, fail := f.complete(ctx, chat)
	if fail != nil {
		return Outcome{Failure: fail}
	}
	if !p.Structured() {
		raw, _ := json.Marshal(text)
		return Outcome{Raw: raw}
	}
	raw, perr := parseStructured(text, p.Schema)
	if perr == nil {
		return Outcome{Raw: raw}
	}

	f.log.Warn("LLM output failed to parse, repairing", "prompt", p.Name, "error", perr.Error())
	rp, err := f.prompts.Build(prompts.Repair, map[string]any{"Error": perr.Error(), "Output": text})
	if err != nil {
		return Outcome{Failure: &Failure{Kind: ParseError, Detail: perr.Error(), Err: perr}}
	}
	text, fail = f.complete(ctx, ChatRequest{System: rp.System, User: rp.User, SchemaName: p.SchemaName, Schema: p.Schema})
	if fail != nil {
		return Outcome{Failure: fail}
	}
	raw, perr = parseStructured(text, p.Schema)
	if perr != nil {
		return Outcome{Failure: &Failure{Kind: ParseError, Detail: perr.Error(), Err: perr}}
	}
	return Outcome{Raw: raw}
}

func (f *Facade) complete(ctx context.Context, req ChatRequest) (string, *Failure) {
	callCtx, cancel := context.WithTimeout(ctx, f.deadline)
	defer cancel()
	text, err := f.provider.Complete(callCtx, req)
	if err != nil {
		return "", classify(ctx, err)
	}
	return text, nil
}

// GenerateInto runs Generate and decodes a successful outcome into T.
func GenerateInto[T any](ctx context.Context, f *Facade, req Request) (T, *Failure) {
	var zero T
	out := f.Generate(ctx, req)
	if out.Failure != nil {
		return zero, out.Failure
	}
	var v T
	if err := json.Unmarshal(out.Raw, &v); err != nil {
		return zero, &Failure{Kind: ParseError, Detail: err.Error(), Err: err}
	}
	return v, nil
}

// parseStructured strips a markdown fence if present, then checks the text is
// a JSON object carrying every top-level required key of schema.
func parseStructured(text string, schema map[string]any) (json.RawMessage, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, fmt.Errorf("not a json object: %w", err)
	}
	var missing []string
	for _, key := range requiredKeys(schema) {
		if _, ok := obj[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required keys: [%s]", strings.Join(missing, ", "))
	}
	return json.RawMessage(s), nil
}

func requiredKeys(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, v := range req {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
