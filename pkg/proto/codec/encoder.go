package codec

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/go-logr/logr"

	"github.com/dualspiral/velocity/pkg/proto"
	"github.com/dualspiral/velocity/pkg/proto/state"
	"github.com/dualspiral/velocity/pkg/proto/util"
	"github.com/dualspiral/velocity/pkg/proto/version"
)

var errNilPacket = errors.New("nil packet")

// Encoder writes packets of one direction, each as one frame. All methods
// are safe for concurrent use and a frame is never interleaved with another.
type Encoder struct {
	log       logr.Logger
	direction proto.Direction

	mu       sync.Mutex // held while a frame is written
	wr       io.Writer
	protocol proto.Protocol
	state    *state.Registry
	registry *state.ProtocolRegistry
	deflate  *deflater // nil while compression is off
}

// deflater compresses bodies of at least threshold bytes.
type deflater struct {
	threshold int
	zw        *zlib.Writer
}

// NewEncoder returns an Encoder writing packets bound to direction to w,
// starting in the handshake state.
func NewEncoder(w io.Writer, direction proto.Direction, log logr.Logger) *Encoder {
	e := &Encoder{
		log:       log.WithName("encoder"),
		wr:        w,
		direction: direction,
		protocol:  version.MinimumVersion.Protocol,
		state:     state.Handshake,
	}
	e.registry = state.FromDirection(direction, e.state, e.protocol)
	return e
}

// SetCompression compresses frames of threshold bytes and more at the
// zlib level. A negative threshold turns compression off.
func (e *Encoder) SetCompression(threshold, level int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if threshold < 0 {
		e.deflate = nil
		return nil
	}
	zw, err := zlib.NewWriterLevel(io.Discard, level)
	if err != nil {
		return err
	}
	e.deflate = &deflater{threshold: threshold, zw: zw}
	return nil
}

// WritePacket encodes packet under its id in the current state.
func (e *Encoder) WritePacket(packet proto.Packet) (int, error) {
	if packet == nil {
		return 0, errNilPacket
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	id, ok := e.registry.PacketID(packet)
	if !ok {
		return 0, fmt.Errorf("%T is not registered in the %s %s state of protocol %s",
			packet, e.direction, e.state.State, e.protocol)
	}
	pc := &proto.PacketContext{Direction: e.direction, Protocol: e.protocol, PacketID: id, Packet: packet}
	payload := new(bytes.Buffer)
	_ = util.WriteVarInt(payload, int(id))
	if err := packet.Encode(pc, payload); err != nil {
		return 0, fmt.Errorf("error encoding packet %T: %w", packet, err)
	}
	return e.writeFrame(payload.Bytes())
}

// Write frames a payload that is already encoded, packet id included.
func (e *Encoder) Write(payload []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.writeFrame(payload)
}

func (e *Encoder) writeFrame(payload []byte) (int, error) {
	body := payload
	if e.deflate != nil {
		var err error
		if body, err = e.deflate.wrap(payload); err != nil {
			return 0, err
		}
	}
	if len(body) > MaxFrameLength {
		return 0, fmt.Errorf("%w: %d", ErrFrameTooLarge, len(body))
	}
	frame := make([]byte, 0, util.VarIntLen(len(body))+len(body))
	buf := bytes.NewBuffer(frame)
	_ = util.WriteVarInt(buf, len(body))
	buf.Write(body)
	return e.wr.Write(buf.Bytes())
}

// wrap prefixes payload with its size and deflates it, or with 0 for a
// payload below the threshold.
func (d *deflater) wrap(payload []byte) ([]byte, error) {
	out := new(bytes.Buffer)
	if len(payload) < d.threshold {
		_ = util.WriteVarInt(out, 0)
		out.Write(payload)
		return out.Bytes(), nil
	}
	_ = util.WriteVarInt(out, len(payload))
	d.zw.Reset(out)
	if _, err := d.zw.Write(payload); err != nil {
		return nil, err
	}
	if err := d.zw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// SetWriter swaps the destination, e.g. for an encrypting one.
func (e *Encoder) SetWriter(w io.Writer) {
	e.mu.Lock()
	e.wr = w
	e.mu.Unlock()
}

// Sync runs fn while no frame is written, e.g. to flush a buffered writer.
func (e *Encoder) Sync(fn func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn()
}

func (e *Encoder) SetState(s *state.Registry) {
	e.mu.Lock()
	e.state = s
	e.registry = state.FromDirection(e.direction, s, e.protocol)
	e.mu.Unlock()
}

func (e *Encoder) SetProtocol(protocol proto.Protocol) {
	e.mu.Lock()
	e.protocol = protocol
	e.registry = state.FromDirection(e.direction, e.state, protocol)
	e.mu.Unlock()
}
