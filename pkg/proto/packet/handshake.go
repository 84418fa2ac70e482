package packet

import (
	"io"

	"github.com/dualspiral/velocity/pkg/proto"
	"github.com/dualspiral/velocity/pkg/proto/util"
)

// Handshake opens every connection and names the state to switch to.
type Handshake struct {
	ProtocolVersion int
	ServerAddress   string
	Port            int
	NextStatus      int
}

func (h *Handshake) Encode(_ *proto.PacketContext, wr io.Writer) error {
	w := util.NewFieldWriter(wr)
	w.VarInt(h.ProtocolVersion)
	w.Text(h.ServerAddress)
	w.Int16(int16(h.Port))
	w.VarInt(h.NextStatus)
	return w.Err()
}

func (h *Handshake) Decode(_ *proto.PacketContext, rd io.Reader) error {
	r := util.NewFieldReader(rd)
	h.ProtocolVersion = r.VarInt()
	h.ServerAddress = r.Text(255)
	h.Port = int(r.Uint16())
	h.NextStatus = r.VarInt()
	return r.Err()
}

var _ proto.Packet = (*Handshake)(nil)
