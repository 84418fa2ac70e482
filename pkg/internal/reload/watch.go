package reload

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/knadh/koanf/providers/file"
)

// DebounceDuration is how long a file must stay unchanged before a reload.
const DebounceDuration = 100 * time.Millisecond

// Watch runs reload each time the file at path settled after a change, until
// ctx is done. Runs of reload never overlap. Watch returns an error only if
// watching could not start.
func Watch(ctx context.Context, path string, reload func() error) error {
	if ctx.Err() != nil {
		return nil
	}
	log := logr.FromContextOrDiscard(ctx).WithValues("path", path)
	d := &debouncer{delay: DebounceDuration, fn: func() {
		if ctx.Err() != nil {
			return
		}
		start := time.Now()
		if err := reload(); err != nil {
			log.Info("config reload failed, keeping the current config", "error", err)
			return
		}
		log.Info("config reloaded", "took", time.Since(start).Round(time.Millisecond).String())
	}}
	return file.Provider(path).Watch(func(_ any, err error) {
		switch {
		case ctx.Err() != nil:
			d.stop()
		case err != nil:
			log.Info("error watching config file", "error", err)
		default:
			d.trigger()
		}
	})
}

// debouncer runs fn once delay passed without another trigger.
type debouncer struct {
	delay time.Duration
	fn    func()

	run   sync.Mutex // held while fn runs
	mu    sync.Mutex
	timer *time.Timer
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.run.Lock()
		defer d.run.Unlock()
		d.fn()
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}
