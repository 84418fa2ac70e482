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
	"github.com/dualspiral/velocity/pkg/util/errs"
)

const (
	// MaxFrameLength is the largest length a 3 byte VarInt prefix can hold.
	MaxFrameLength = 1<<21 - 1
	// MaxUncompressedLength caps what a compressed frame may claim to inflate to.
	MaxUncompressedLength = 8 * 1024 * 1024
)

// maxEmptyFrames is how many empty frames in a row Decode skips.
const maxEmptyFrames = 10

var (
	ErrFrameTooLarge              = errors.New("frame length exceeds maximum")
	ErrCompressedBelowThreshold   = errors.New("compressed packet size below threshold")
	ErrUncompressedAboveThreshold = errors.New("uncompressed packet size at or above threshold")
	ErrUnknownPacket              = errors.New("unknown packet id")
)

// Decoder reads packets of one direction. Decode calls are serialized and
// the setters may be called concurrently with them. A change made while
// Decode waits for a frame applies to that frame, except SetReader.
type Decoder struct {
	log       logr.Logger
	direction proto.Direction

	readMu sync.Mutex
	zr     io.ReadCloser // reused across frames, guarded by readMu

	mu       sync.RWMutex
	rd       io.Reader
	settings decodeSettings
}

type decodeSettings struct {
	protocol  proto.Protocol
	state     *state.Registry
	registry  *state.ProtocolRegistry
	threshold int // negative while compression is off
}

// NewDecoder returns a Decoder reading packets bound to direction from r,
// starting in the handshake state. Buffer r unless it is an io.ByteReader.
func NewDecoder(r io.Reader, direction proto.Direction, log logr.Logger) *Decoder {
	d := &Decoder{rd: r, direction: direction, log: log.WithName("decoder")}
	d.settings = decodeSettings{protocol: version.MinimumVersion.Protocol, state: state.Handshake, threshold: -1}
	d.settings.registry = state.FromDirection(direction, state.Handshake, d.settings.protocol)
	return d
}

func (d *Decoder) SetState(s *state.Registry) {
	d.update(func(cfg *decodeSettings) { cfg.state = s })
}

func (d *Decoder) SetProtocol(protocol proto.Protocol) {
	d.update(func(cfg *decodeSettings) { cfg.protocol = protocol })
}

// SetCompressionThreshold turns decompression on for threshold >= 0 and off
// for a negative one.
func (d *Decoder) SetCompressionThreshold(threshold int) {
	d.update(func(cfg *decodeSettings) { cfg.threshold = threshold })
}

func (d *Decoder) update(fn func(*decodeSettings)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.settings)
	d.settings.registry = state.FromDirection(d.direction, d.settings.state, d.settings.protocol)
}

// SetReader swaps the source, e.g. for a decrypting one. Call it between frames only.
func (d *Decoder) SetReader(rd io.Reader) {
	d.mu.Lock()
	d.rd = rd
	d.mu.Unlock()
}

func (d *Decoder) current() (io.Reader, decodeSettings) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.rd, d.settings
}

// Decode reads the next packet.
//
// In states that relay unknown packets an unregistered id yields a context
// with a nil Packet. Elsewhere it is ErrUnknownPacket. Together with
// proto.ErrDecoderLeftBytes the decoded context is returned as well.
func (d *Decoder) Decode() (*proto.PacketContext, error) {
	d.readMu.Lock()
	defer d.readMu.Unlock()

	for empty := 0; ; empty++ {
		rd, _ := d.current()
		frame, err := readFrame(rd)
		if err != nil {
			return nil, err
		}
		if len(frame) == 0 {
			if empty == maxEmptyFrames {
				return nil, errs.NewSilentErr("got too many empty packets")
			}
			continue
		}
		// Settings are read after the frame arrived.
		_, cfg := d.current()
		payload, err := d.uncompress(frame, cfg.threshold)
		if err != nil {
			return nil, err
		}
		pc, err := d.decode(payload, cfg)
		if pc != nil {
			pc.Size = len(frame)
		}
		return pc, err
	}
}

func readFrame(rd io.Reader) ([]byte, error) {
	length, err := util.ReadVarInt(rd)
	switch {
	case err != nil:
		return nil, fmt.Errorf("error reading frame length: %w", err)
	case length < 0 || length > MaxFrameLength:
		return nil, errs.WrapSilent(fmt.Errorf("%w: %d", ErrFrameTooLarge, length))
	case length == 0:
		return nil, nil
	}
	frame := make([]byte, length)
	if _, err = io.ReadFull(rd, frame); err != nil {
		return nil, fmt.Errorf("error reading frame payload: %w", err)
	}
	return frame, nil
}

// uncompress strips the size marker of a compressed frame and inflates the
// body if needed. Frames pass unchanged while compression is off.
func (d *Decoder) uncompress(frame []byte, threshold int) ([]byte, error) {
	if threshold < 0 {
		return frame, nil
	}
	body := bytes.NewReader(frame)
	claimed, err := util.ReadVarInt(body)
	if err != nil {
		return nil, errs.NewSilentErr("error reading claimed uncompressed size: %w", err)
	}
	if claimed == 0 {
		// An uncompressed packet must be smaller than the threshold.
		if n := body.Len(); n >= threshold {
			return nil, errs.WrapSilent(fmt.Errorf("%w: size %d, threshold %d",
				ErrUncompressedAboveThreshold, n, threshold))
		}
		return frame[len(frame)-body.Len():], nil
	}
	switch {
	case claimed < threshold:
		return nil, errs.WrapSilent(fmt.Errorf("%w: size %d, threshold %d",
			ErrCompressedBelowThreshold, claimed, threshold))
	case claimed < 0 || claimed > MaxUncompressedLength:
		return nil, errs.NewSilentErr("uncompressed size %d exceeds hard maximum of %d",
			claimed, MaxUncompressedLength)
	}
	return d.inflate(body, claimed)
}

func (d *Decoder) inflate(body io.Reader, size int) ([]byte, error) {
	var err error
	if d.zr == nil {
		d.zr, err = zlib.NewReader(body)
	} else {
		err = d.zr.(zlib.Resetter).Reset(body, nil)
	}
	if err != nil {
		return nil, errs.NewSilentErr("error initializing zlib reader: %w", err)
	}
	out := make([]byte, size)
	if _, err = io.ReadFull(d.zr, out); err != nil {
		return nil, errs.NewSilentErr("error decompressing payload: %w", err)
	}
	var extra [1]byte
	if n, _ := d.zr.Read(extra[:]); n != 0 {
		return nil, errs.NewSilentErr("decompressed payload is larger than claimed size %d", size)
	}
	return out, d.zr.Close()
}

// decode parses payload, the packet id followed by the packet data.
func (d *Decoder) decode(payload []byte, cfg decodeSettings) (*proto.PacketContext, error) {
	rd := bytes.NewReader(payload)
	id, err := util.ReadVarInt(rd)
	if err != nil {
		return nil, errs.NewSilentErr("error reading packet id: %w", err)
	}
	pc := &proto.PacketContext{
		Direction: d.direction,
		Protocol:  cfg.protocol,
		PacketID:  proto.PacketID(id),
		Payload:   payload,
	}
	if pc.Packet = cfg.registry.CreatePacket(pc.PacketID); pc.Packet == nil {
		if cfg.state.PassThroughUnknown() {
			return pc, nil
		}
		return nil, errs.WrapSilent(fmt.Errorf("%w %s in state %s (protocol %s, %s)",
			ErrUnknownPacket, pc.PacketID, cfg.state.State, pc.Protocol, d.direction))
	}

	if err = pc.Packet.Decode(pc, rd); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.Join(err, io.ErrUnexpectedEOF)
		}
		return nil, errs.NewSilentErr("error decoding %T (id %s, protocol %s, %s): %w",
			pc.Packet, pc.PacketID, pc.Protocol, pc.Direction, err)
	}
	if rd.Len() != 0 {
		d.log.V(1).Info("packet decoder left bytes unread",
			"packet", proto.TypeOf(pc.Packet), "id", pc.PacketID, "unread", rd.Len())
		return pc, proto.ErrDecoderLeftBytes
	}
	return pc, nil
}
