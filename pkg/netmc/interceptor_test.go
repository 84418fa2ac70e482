package netmc

import (
	"context"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/assert"

	"github.com/dualspiral/velocity/pkg/proto"
	"github.com/dualspiral/velocity/pkg/proto/packet"
)

func TestTelemetryInterceptorDumpsKnownPackets(t *testing.T) {
	var lines []string
	log := funcr.New(func(prefix, args string) {
		lines = append(lines, prefix+" "+args)
	}, funcr.Options{Verbosity: 2})

	i := NewTelemetryInterceptor(log)
	ctx, done := i.InterceptPacket(context.Background(), &proto.PacketContext{
		Direction: proto.ServerBound,
		PacketID:  0x01,
		Packet:    &packet.StatusPing{RandomID: 42},
	})
	done()
	assert.NotNil(t, ctx)
	if assert.Len(t, lines, 1) {
		assert.True(t, strings.Contains(lines[0], "decoded packet"), lines[0])
		assert.Contains(t, lines[0], "RandomID")
	}

	// Unknown packets are traced but never dumped.
	lines = nil
	_, done = i.InterceptPacket(context.Background(), &proto.PacketContext{
		Direction: proto.ClientBound,
		PacketID:  0x7f,
		Payload:   []byte{0x7f},
	})
	done()
	assert.Empty(t, lines)
}

func TestTelemetryInterceptorQuietByDefault(t *testing.T) {
	_, done := NewTelemetryInterceptor(logr.Discard()).InterceptPacket(context.Background(),
		&proto.PacketContext{Packet: &packet.StatusPing{}})
	done()
}
