// Package telemetry configures the OpenTelemetry exporters of the proxy.
//
// Exporter endpoints and protocols are read from the standard
// OTEL_* environment variables.
package telemetry

import (
	"fmt"

	"github.com/honeycombio/otel-config-go/otelconfig"

	"github.com/dualspiral/velocity/pkg/config"
	"github.com/dualspiral/velocity/pkg/version"
)

// Init sets up the global tracer and meter providers if telemetry is enabled.
// The returned cleanup func flushes and stops the exporters and is never nil.
func Init(cfg config.Telemetry) (cleanup func(), err error) {
	if !cfg.Enabled {
		return func() {}, nil
	}
	name := cfg.ServiceName
	if name == "" {
		name = config.DefaultConfig.Telemetry.ServiceName
	}
	shutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(name),
		otelconfig.WithServiceVersion(version.String()),
	)
	if err != nil {
		return nil, fmt.Errorf("error configuring OpenTelemetry: %w", err)
	}
	return shutdown, nil
}
