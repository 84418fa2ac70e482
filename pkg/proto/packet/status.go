package packet

import (
	"io"

	"github.com/dualspiral/velocity/pkg/proto"
	"github.com/dualspiral/velocity/pkg/proto/util"
)

// maxStatusLen is the longest status json a client accepts.
const maxStatusLen = 32767

// StatusRequest asks for the server list entry. It has no fields.
type StatusRequest struct{}

func (StatusRequest) Encode(*proto.PacketContext, io.Writer) error { return nil }
func (StatusRequest) Decode(*proto.PacketContext, io.Reader) error { return nil }

// StatusResponse holds the server list entry as json.
type StatusResponse struct {
	Status string
}

func (s *StatusResponse) Encode(_ *proto.PacketContext, wr io.Writer) error {
	return util.WriteString(wr, s.Status)
}

func (s *StatusResponse) Decode(_ *proto.PacketContext, rd io.Reader) (err error) {
	s.Status, err = util.ReadStringMax(rd, maxStatusLen)
	return err
}

// StatusPing is echoed back to measure the latency of a server list ping.
type StatusPing struct {
	RandomID int64
}

func (s *StatusPing) Encode(_ *proto.PacketContext, wr io.Writer) error {
	return util.WriteInt64(wr, s.RandomID)
}

func (s *StatusPing) Decode(_ *proto.PacketContext, rd io.Reader) (err error) {
	s.RandomID, err = util.ReadInt64(rd)
	return err
}

var (
	_ proto.Packet = (*StatusRequest)(nil)
	_ proto.Packet = (*StatusResponse)(nil)
	_ proto.Packet = (*StatusPing)(nil)
)
