package netmc

import (
	"context"
	"reflect"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dualspiral/velocity/pkg/proto"
)

// PacketInterceptor wraps the handling of each inbound packet.
type PacketInterceptor interface {
	// InterceptPacket is called before the session handler sees pc. The
	// returned func runs after the handler returned.
	InterceptPacket(ctx context.Context, pc *proto.PacketContext) (context.Context, func())
}

const tracerName = "github.com/dualspiral/velocity/pkg/netmc"

// spanInterceptor opens a span per packet. At verbosity 2 it also logs a
// dump of every decoded packet.
type spanInterceptor struct {
	tracer trace.Tracer
	dump   logr.Logger
}

// NewTelemetryInterceptor returns a PacketInterceptor using the global
// OpenTelemetry tracer provider.
func NewTelemetryInterceptor(log logr.Logger) PacketInterceptor {
	return &spanInterceptor{
		tracer: otel.Tracer(tracerName),
		dump:   log.WithName("packets").V(2),
	}
}

func packetAttrs(pc *proto.PacketContext) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int("mc.packet.id", int(pc.PacketID)),
		attribute.String("mc.packet.direction", pc.Direction.String()),
		attribute.Int("mc.packet.bytes", pc.Size),
	}
	if pc.KnownPacket() {
		attrs = append(attrs, attribute.String("mc.packet.type", reflect.TypeOf(pc.Packet).String()))
	}
	return attrs
}

func (s *spanInterceptor) InterceptPacket(ctx context.Context, pc *proto.PacketContext) (context.Context, func()) {
	ctx, span := s.tracer.Start(ctx, "mc.packet", trace.WithAttributes(packetAttrs(pc)...))
	if pc.KnownPacket() && s.dump.Enabled() {
		s.dump.Info("decoded packet", "id", pc.PacketID, "packet", spew.Sdump(pc.Packet))
	}
	return ctx, func() { span.End() }
}
