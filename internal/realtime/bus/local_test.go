package bus

import (
	"context"
	"testing"

	"github.com/yungbote/coursegen-backend/internal/realtime"
)

func TestLocalBusFansOut(t *testing.T) {
	b := NewLocalBus()
	ctx := context.Background()
	var a, c []realtime.Envelope
	_ = b.StartForwarder(ctx, func(env realtime.Envelope) { a = append(a, env) })
	_ = b.StartForwarder(ctx, func(env realtime.Envelope) { c = append(c, env) })

	env := realtime.Envelope{UserID: "u1", Event: realtime.Event{Type: realtime.EventGenerationStatus, CourseID: 42}}
	if err := b.Publish(ctx, env); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(a) != 1 || len(c) != 1 || a[0].Event.CourseID != 42 {
		t.Fatalf("fan out: a=%v c=%v", a, c)
	}
}
