package util

import (
	"bytes"
	"strings"

	"go.minekube.com/common/minecraft/component"
	"go.minekube.com/common/minecraft/component/codec"

	"github.com/dualspiral/velocity/pkg/proto"
)

// Every supported version predates 1.16, so a single json
// codec downsampling colors and emitting legacy hover events is used.
var jsonCodec = &codec.Json{}

// JsonCodec returns the chat component codec for the given protocol version.
func JsonCodec(proto.Protocol) codec.Codec { return jsonCodec }

// Marshal marshals a component into its json form.
func Marshal(protocol proto.Protocol, c component.Component) (string, error) {
	buf := new(bytes.Buffer)
	err := JsonCodec(protocol).Marshal(buf, c)
	return buf.String(), err
}

// MarshalPlain returns the plain text of a component, used for log lines.
func MarshalPlain(c component.Component) string {
	if c == nil {
		return ""
	}
	b := new(strings.Builder)
	_ = (&codec.Plain{}).Marshal(b, c)
	return b.String()
}
