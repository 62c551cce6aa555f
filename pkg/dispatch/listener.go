package dispatch

import (
	"context"
	"time"

	"github.com/leadpop/funnelrelay/pkg/core"
)

// Listener observes provider lifecycle within a dispatch. Hooks for
// different providers run concurrently and must be safe for concurrent use.
// A panicking hook is logged and does not affect delivery.
type Listener struct {
	OnStart  func(ctx context.Context, key core.ProviderKey, event core.NormalizedEvent)
	OnSkip   func(ctx context.Context, key core.ProviderKey, reason core.SkipReason)
	OnFinish func(ctx context.Context, key core.ProviderKey, outcome *core.Outcome)
}

type startedAtKey struct{}

// StartedAt returns when delivery to the provider began. It is set on the
// context handed to OnStart and OnFinish.
func StartedAt(ctx context.Context) (time.Time, bool) {
	if ctx == nil {
		return time.Time{}, false
	}
	started, ok := ctx.Value(startedAtKey{}).(time.Time)
	return started, ok
}

// LatencyListener logs how long each provider call took.
func LatencyListener(logger Logger) Listener {
	if logger == nil {
		logger = stdLogger{}
	}
	return Listener{
		OnFinish: func(ctx context.Context, key core.ProviderKey, outcome *core.Outcome) {
			started, ok := StartedAt(ctx)
			if !ok {
				return
			}
			status := "failed"
			if outcome != nil && outcome.Success {
				status = "delivered"
			}
			logger.Printf("provider=%s status=%s elapsed=%s", key, status, time.Since(started).Round(time.Millisecond))
		},
	}
}

func (d *Dispatcher) notifyStart(ctx context.Context, key core.ProviderKey, event core.NormalizedEvent) {
	for _, listener := range d.listeners {
		if listener.OnStart != nil {
			d.safeNotify("start", key, func() { listener.OnStart(ctx, key, event) })
		}
	}
}

func (d *Dispatcher) notifySkip(ctx context.Context, key core.ProviderKey, reason core.SkipReason) {
	for _, listener := range d.listeners {
		if listener.OnSkip != nil {
			d.safeNotify("skip", key, func() { listener.OnSkip(ctx, key, reason) })
		}
	}
}

func (d *Dispatcher) notifyFinish(ctx context.Context, key core.ProviderKey, outcome *core.Outcome) {
	for _, listener := range d.listeners {
		if listener.OnFinish != nil {
			d.safeNotify("finish", key, func() { listener.OnFinish(ctx, key, outcome) })
		}
	}
}

func (d *Dispatcher) safeNotify(hook string, key core.ProviderKey, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Printf("listener panic hook=%s provider=%s err=%v", hook, key, r)
		}
	}()
	fn()
}
