// Package interrupt listens for process termination signals.
package interrupt

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// from https://github.com/kubernetes/kubernetes/blob/c285e781331a3785a7f436042c65c5641ce8a9e9/pkg/util/interrupt/interrupt.go#L28
var terminationSignals = []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}

// Notify returns a channel receiving termination signals from the OS.
// The channel is closed once ctx is canceled.
func Notify(ctx context.Context) <-chan os.Signal {
	sig := make(chan os.Signal, len(terminationSignals))
	signal.Notify(sig, terminationSignals...)
	go func() {
		<-ctx.Done()
		signal.Stop(sig)
		close(sig)
	}()
	return sig
}
