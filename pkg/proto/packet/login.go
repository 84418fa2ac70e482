package packet

import (
	"errors"
	"fmt"
	"io"

	"github.com/dualspiral/velocity/pkg/proto"
	"github.com/dualspiral/velocity/pkg/proto/util"
	"github.com/dualspiral/velocity/pkg/util/uuid"
)

const maxUsernameLen = 16

var errEmptyUsername = errors.New("empty username")

// ServerLogin starts the login of a client.
type ServerLogin struct {
	Username string
}

func (s *ServerLogin) Encode(_ *proto.PacketContext, wr io.Writer) error {
	return util.WriteString(wr, s.Username)
}

func (s *ServerLogin) Decode(_ *proto.PacketContext, rd io.Reader) (err error) {
	if s.Username, err = util.ReadStringMax(rd, maxUsernameLen); err == nil && s.Username == "" {
		err = errEmptyUsername
	}
	return err
}

// EncryptionRequest asks an online mode client to enable encryption.
type EncryptionRequest struct {
	ServerID    string
	PublicKey   []byte
	VerifyToken []byte
}

func (e *EncryptionRequest) Encode(_ *proto.PacketContext, wr io.Writer) error {
	w := util.NewFieldWriter(wr)
	w.Text(e.ServerID)
	w.Bytes(e.PublicKey)
	w.Bytes(e.VerifyToken)
	return w.Err()
}

func (e *EncryptionRequest) Decode(_ *proto.PacketContext, rd io.Reader) error {
	r := util.NewFieldReader(rd)
	e.ServerID = r.Text(20)
	e.PublicKey = r.Bytes(256)
	e.VerifyToken = r.Bytes(16)
	return r.Err()
}

// EncryptionResponse carries the RSA encrypted shared secret and verify token.
type EncryptionResponse struct {
	SharedSecret []byte
	VerifyToken  []byte
}

func (e *EncryptionResponse) Encode(_ *proto.PacketContext, wr io.Writer) error {
	w := util.NewFieldWriter(wr)
	w.Bytes(e.SharedSecret)
	w.Bytes(e.VerifyToken)
	return w.Err()
}

func (e *EncryptionResponse) Decode(_ *proto.PacketContext, rd io.Reader) error {
	r := util.NewFieldReader(rd)
	e.SharedSecret = r.Bytes(256)
	e.VerifyToken = r.Bytes(128)
	return r.Err()
}

// ServerLoginSuccess ends the login state. Through 1.15.2 the id travels
// as a dashed string.
type ServerLoginSuccess struct {
	UUID     uuid.UUID
	Username string
}

func (s *ServerLoginSuccess) Encode(_ *proto.PacketContext, wr io.Writer) error {
	w := util.NewFieldWriter(wr)
	w.Text(s.UUID.String())
	w.Text(s.Username)
	return w.Err()
}

func (s *ServerLoginSuccess) Decode(_ *proto.PacketContext, rd io.Reader) error {
	r := util.NewFieldReader(rd)
	id := r.Text(36)
	s.Username = r.Text(maxUsernameLen)
	if err := r.Err(); err != nil {
		return err
	}
	var err error
	if s.UUID, err = uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid login success uuid %q: %w", id, err)
	}
	return nil
}

// SetCompression compresses every later packet of Threshold bytes or more.
type SetCompression struct {
	Threshold int
}

func (s *SetCompression) Encode(_ *proto.PacketContext, wr io.Writer) error {
	return util.WriteVarInt(wr, s.Threshold)
}

func (s *SetCompression) Decode(_ *proto.PacketContext, rd io.Reader) (err error) {
	s.Threshold, err = util.ReadVarInt(rd)
	return err
}

// LoginPluginMessage is a query on a channel during login, 1.13 and later.
type LoginPluginMessage struct {
	ID      int
	Channel string
	Data    []byte
}

func (l *LoginPluginMessage) Encode(_ *proto.PacketContext, wr io.Writer) error {
	w := util.NewFieldWriter(wr)
	w.VarInt(l.ID)
	w.Text(l.Channel)
	w.Raw(l.Data)
	return w.Err()
}

func (l *LoginPluginMessage) Decode(_ *proto.PacketContext, rd io.Reader) error {
	r := util.NewFieldReader(rd)
	l.ID = r.VarInt()
	l.Channel = r.Text(0)
	l.Data = r.Remaining()
	return r.Err()
}

// LoginPluginResponse answers the LoginPluginMessage of the same ID.
// Success is false if the channel is unknown to the client.
type LoginPluginResponse struct {
	ID      int
	Success bool
	Data    []byte
}

func (l *LoginPluginResponse) Encode(_ *proto.PacketContext, wr io.Writer) error {
	w := util.NewFieldWriter(wr)
	w.VarInt(l.ID)
	w.Bool(l.Success)
	w.Raw(l.Data)
	return w.Err()
}

func (l *LoginPluginResponse) Decode(_ *proto.PacketContext, rd io.Reader) error {
	r := util.NewFieldReader(rd)
	l.ID = r.VarInt()
	l.Success = r.Bool()
	l.Data = r.Remaining()
	return r.Err()
}

var (
	_ proto.Packet = (*ServerLogin)(nil)
	_ proto.Packet = (*EncryptionRequest)(nil)
	_ proto.Packet = (*EncryptionResponse)(nil)
	_ proto.Packet = (*ServerLoginSuccess)(nil)
	_ proto.Packet = (*SetCompression)(nil)
	_ proto.Packet = (*LoginPluginMessage)(nil)
	_ proto.Packet = (*LoginPluginResponse)(nil)
)
