package proxy

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/dualspiral/velocity/pkg/proxy")

// instruments are created once. Failed ones stay nil and record nothing.
var instruments = struct {
	logins   metric.Int64Counter
	connects metric.Int64Counter
}{
	logins:   counter("velocity.logins", "Players that finished the login"),
	connects: counter("velocity.server_connects", "Attempts to connect a player to a backend, by result"),
}

func counter(name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit("1"))
	if err != nil {
		otel.Handle(err)
		return nil
	}
	return c
}

// initMeter registers the gauges that read the proxy's state.
func (p *Proxy) initMeter() error {
	gauge := func(name, description string, value func() int) error {
		_, err := meter.Int64ObservableGauge(name,
			metric.WithDescription(description),
			metric.WithUnit("1"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(int64(value()))
				return nil
			}),
		)
		return err
	}
	return errors.Join(
		gauge("velocity.player_count", "Players online on the proxy", p.PlayerCount),
		gauge("velocity.registered_servers", "Backend servers registered with the proxy",
			func() int { return len(p.Servers()) }),
	)
}

func (p *Proxy) loginCount(player Player) {
	if instruments.logins == nil {
		return
	}
	instruments.logins.Add(context.Background(), 1, metric.WithAttributes(
		attribute.Bool("online_mode", player.OnlineMode()),
		attribute.Int("protocol", int(player.Protocol())),
	))
}

// connectCount records the outcome of a backend login. An error counts as
// a failed result.
func connectCount(server RegisteredServer, res *connectionResult, err error) {
	if instruments.connects == nil {
		return
	}
	status := "Error"
	if err == nil && res != nil {
		status = res.status.String()
	}
	instruments.connects.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("server", server.ServerInfo().Name()),
		attribute.String("status", status),
	))
}
