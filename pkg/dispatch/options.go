package dispatch

import (
	"github.com/leadpop/funnelrelay/pkg/core"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger for the dispatcher.
func WithLogger(l Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithListener adds a listener to the dispatcher.
func WithListener(listener Listener) Option {
	return func(d *Dispatcher) {
		d.listeners = append(d.listeners, listener)
	}
}

// WithPublisher sets the outcome publisher that receives one record per dispatch.
func WithPublisher(publisher core.OutcomePublisher) Option {
	return func(d *Dispatcher) {
		d.publisher = publisher
	}
}
