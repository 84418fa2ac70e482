// Package plugin has the plugin message packet and the few channels the
// proxy reads. Messages on other channels are relayed untouched.
package plugin

import (
	"io"

	"github.com/dualspiral/velocity/pkg/proto"
	"github.com/dualspiral/velocity/pkg/proto/util"
	"github.com/dualspiral/velocity/pkg/proto/version"
)

// Message is a plugin message on a named channel. From 1.13 on channel
// names are namespaced identifiers, legacy names are converted both ways.
type Message struct {
	Channel string
	Data    []byte
}

func channelFor(c *proto.PacketContext, channel string) string {
	if c.Protocol.GreaterEqual(version.Minecraft_1_13) {
		return TransformLegacyToModernChannel(channel)
	}
	return channel
}

func (p *Message) Encode(c *proto.PacketContext, wr io.Writer) error {
	w := util.NewFieldWriter(wr)
	w.Text(channelFor(c, p.Channel))
	w.Raw(p.Data)
	return w.Err()
}

func (p *Message) Decode(c *proto.PacketContext, rd io.Reader) error {
	r := util.NewFieldReader(rd)
	channel := r.Text(0)
	p.Data = r.Remaining()
	if err := r.Err(); err != nil {
		return err
	}
	p.Channel = channelFor(c, channel)
	return nil
}

var _ proto.Packet = (*Message)(nil)
