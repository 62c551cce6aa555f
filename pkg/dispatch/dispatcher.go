// Package dispatch fans a normalized funnel event out to every provider.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leadpop/funnelrelay/pkg/core"
	"github.com/leadpop/funnelrelay/pkg/providers"
)

// Logger is the logging surface used by the dispatcher.
type Logger interface {
	Printf(format string, args ...interface{})
}

type stdLogger struct{}

func (stdLogger) Printf(format string, args ...interface{}) {
	log.Printf(format, args...)
}

// Dispatcher delivers events to all configured providers concurrently and
// waits for every one of them to settle.
type Dispatcher struct {
	providers []providers.Provider
	sender    providers.Sender
	logger    Logger
	listeners []Listener
	publisher core.OutcomePublisher
	now       func() time.Time
}

// New builds a dispatcher over the registry's providers.
func New(registry *providers.Registry, sender providers.Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		providers: registry.Providers(),
		sender:    sender,
		logger:    stdLogger{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type slot struct {
	key     core.ProviderKey
	outcome *core.Outcome
	skip    core.SkipReason
}

// Dispatch validates the event and delivers it. Provider failures are
// reported in the result and never returned as an error; the only error is
// an invalid event, in which case nothing is sent.
func (d *Dispatcher) Dispatch(ctx context.Context, event core.NormalizedEvent) (core.DispatchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	event = event.Normalize()
	if err := event.Validate(); err != nil {
		return nil, err
	}

	slots := make([]slot, len(d.providers))
	var wg sync.WaitGroup
	for i, provider := range d.providers {
		slots[i].key = provider.Key()
		if !provider.Configured() {
			slots[i].skip = core.SkipNotConfigured
			continue
		}
		wg.Add(1)
		go func(i int, provider providers.Provider, snapshot core.NormalizedEvent) {
			defer wg.Done()
			slots[i].outcome, slots[i].skip = d.deliver(ctx, provider, snapshot)
		}(i, provider, event.Normalize())
	}
	wg.Wait()

	result := make(core.DispatchResult, len(slots))
	for _, s := range slots {
		result[s.key] = s.outcome
		switch {
		case s.outcome == nil:
			d.logger.Printf("provider=%s skipped event=%s reason=%s", s.key, event.EventName, s.skip)
			d.notifySkip(ctx, s.key, s.skip)
		case s.outcome.Success:
			d.logger.Printf("provider=%s delivered event=%s", s.key, event.EventName)
		default:
			d.logger.Printf("provider=%s failed event=%s err=%s", s.key, event.EventName, s.outcome.Error)
		}
	}
	d.publish(ctx, event, slots)
	return result, nil
}

func (d *Dispatcher) deliver(ctx context.Context, provider providers.Provider, event core.NormalizedEvent) (outcome *core.Outcome, skip core.SkipReason) {
	key := provider.Key()
	ctx = context.WithValue(ctx, startedAtKey{}, d.now())
	defer func() {
		if outcome != nil {
			d.notifyFinish(ctx, key, outcome)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			outcome, skip = core.Failed(fmt.Sprintf("provider panic: %v", r)), core.SkipNone
		}
	}()
	d.notifyStart(ctx, key, event)
	outcome, skip = provider.Deliver(ctx, event, d.sender)
	if outcome == nil && skip == core.SkipNone {
		skip = core.SkipNotApplicable
	}
	return outcome, skip
}

func (d *Dispatcher) publish(ctx context.Context, event core.NormalizedEvent, slots []slot) {
	if d.publisher == nil {
		return
	}
	record := core.DispatchRecord{
		ID:         uuid.NewString(),
		RequestID:  core.RequestIDFromContext(ctx),
		EventName:  event.EventName,
		EventID:    event.EventID,
		SessionID:  event.SessionID,
		Step:       event.Step,
		OccurredAt: d.now().UTC(),
		Providers:  make(map[core.ProviderKey]core.ProviderRecord, len(slots)),
	}
	for _, s := range slots {
		record.Providers[s.key] = core.RecordFor(s.outcome, s.skip)
	}
	if err := d.publisher.Publish(ctx, record); err != nil {
		d.logger.Printf("dispatch record publish failed id=%s err=%v", record.ID, err)
	}
}
