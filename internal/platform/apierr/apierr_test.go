package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindAndStatus(t *testing.T) {
	err := fmt.Errorf("enqueue: %w", Conflict("job already in flight"))
	if KindOf(err) != KindConflict {
		t.Fatalf("KindOf: want=%s got=%s", KindConflict, KindOf(err))
	}
	var ae *Error
	if !errors.As(err, &ae) || ae.Status != http.StatusConflict {
		t.Fatalf("status: want=409 got=%v", ae)
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{New(KindProviderTimeout, errors.New("deadline")), true},
		{New(KindProviderRateLimit, errors.New("429")), true},
		{Persistence("insert", errors.New("conn reset")), true},
		{Validation("bad"), false},
		{New(KindProviderInvalidOutput, errors.New("schema")), false},
		{errors.New("unclassified"), true},
		{nil, false},
	}
	for i, tc := range cases {
		if got := Retryable(tc.err); got != tc.want {
			t.Fatalf("case %d: want=%v got=%v", i, tc.want, got)
		}
	}
}

func TestPersistenceKeepsTypedErrors(t *testing.T) {
	nf := NotFound("course %d", 1)
	if got := Persistence("load", nf); KindOf(got) != KindNotFound {
		t.Fatalf("want not_found preserved, got %s", KindOf(got))
	}
	if Persistence("noop", nil) != nil {
		t.Fatalf("nil in should be nil out")
	}
}
