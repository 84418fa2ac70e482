// Package reload watches a config file and announces reloaded configs on an
// event manager.
package reload

import "github.com/robinbraemer/event"

// ConfigReloadEvent announces a reloaded config of type T.
type ConfigReloadEvent[T any] struct {
	Prev   *T // the config in effect until now, nil if unknown
	Config *T
}

// OnReload registers fn for reloads of T and returns its unsubscribe func.
func OnReload[T any](mgr event.Manager, fn func(*ConfigReloadEvent[T])) func() {
	return event.Subscribe(mgr, 0, fn)
}

// Publish fires a ConfigReloadEvent and returns once all handlers ran.
func Publish[T any](mgr event.Manager, prev, next *T) {
	mgr.Fire(&ConfigReloadEvent[T]{Prev: prev, Config: next})
}
