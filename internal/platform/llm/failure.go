package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/coursegen-backend/internal/pkg/httpx"
	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
)

type FailureKind string

const (
	RateLimited   FailureKind = "rate_limited"
	ParseError    FailureKind = "parse_error"
	ProviderError FailureKind = "provider_error"
	Timeout       FailureKind = "timeout"
)

// Failure is the structured error half of an Outcome.
type Failure struct {
	Kind   FailureKind
	Detail string
	Err    error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("llm %s: %s", f.Kind, f.Detail)
}

func (f *Failure) Unwrap() error { return f.Err }

// AsError maps the failure onto the service error kinds. Provider errors stay
// unclassified so the job runner treats them as retryable.
func (f *Failure) AsError() error {
	if f == nil {
		return nil
	}
	switch f.Kind {
	case RateLimited:
		return apierr.New(apierr.KindProviderRateLimit, f)
	case Timeout:
		return apierr.New(apierr.KindProviderTimeout, f)
	case ParseError:
		return apierr.New(apierr.KindProviderInvalidOutput, f)
	default:
		return f
	}
}

// classify turns a provider error into a Failure. callerCtx distinguishes our
// own deadline from the caller giving up.
func classify(callerCtx context.Context, err error) *Failure {
	switch {
	case err == nil:
		return nil
	case callerCtx.Err() != nil && errors.Is(err, context.Canceled):
		return &Failure{Kind: ProviderError, Detail: "cancelled", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Failure{Kind: Timeout, Detail: "deadline exceeded", Err: err}
	case httpx.IsRateLimited(err):
		return &Failure{Kind: RateLimited, Detail: err.Error(), Err: err}
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Failure{Kind: Timeout, Detail: err.Error(), Err: err}
	}
	return &Failure{Kind: ProviderError, Detail: err.Error(), Err: err}
}
