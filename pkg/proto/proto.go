// Package proto is the packet model shared by the frame codec, the
// packet registry and the session handlers.
package proto

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
)

// ErrDecoderLeftBytes is returned when a known packet decoded fine but did
// not consume the whole frame body. The leftover bytes are either a decoder
// bug or a peer sending garbage after a valid prefix.
var ErrDecoderLeftBytes = errors.New("packet decoder left unread bytes in frame")

// Packet is the body of one frame in a given phase and wire version.
// Implementations branch on PacketContext.Protocol for layout differences
// and must treat the context as read-only.
type Packet interface {
	Encode(c *PacketContext, wr io.Writer) error
	Decode(c *PacketContext, rd io.Reader) error
}

// PacketWriter writes packets to a peer.
type PacketWriter interface {
	WritePacket(Packet) error
}

// PacketContext describes one decoded frame, or one frame about to be encoded.
type PacketContext struct {
	Direction Direction
	Protocol  Protocol
	PacketID  PacketID

	// Packet is nil when PacketID has no mapping in the active registry.
	// Such frames only reach a handler in the Play phase, where they are relayed.
	Packet Packet

	// Payload is the decompressed and decrypted frame body including the id varint.
	// It is only set on decode.
	Payload []byte

	// Size is the frame length on the wire before decompression.
	Size int
}

// KnownPacket reports whether the frame was decoded into a Packet.
func (c *PacketContext) KnownPacket() bool {
	return c != nil && c.Packet != nil
}

func (c *PacketContext) String() string {
	kind := "unknown"
	if c.KnownPacket() {
		kind = reflect.TypeOf(c.Packet).String()
	}
	return fmt.Sprintf("%s %s id=%s protocol=%s payload=%dB", c.Direction, kind, c.PacketID, c.Protocol, len(c.Payload))
}

// PacketID is the varint that prefixes a frame body.
type PacketID int

func (id PacketID) String() string { return fmt.Sprintf("%#x", int(id)) }

// Direction tells which side a packet travels towards. Packets read from a
// client and packets written to a backend are ServerBound.
type Direction uint8

const (
	ClientBound Direction = iota
	ServerBound
)

func (d Direction) String() string {
	switch d {
	case ClientBound:
		return "ClientBound"
	case ServerBound:
		return "ServerBound"
	default:
		return "Direction(" + strconv.Itoa(int(d)) + ")"
	}
}

// Protocol is the wire version number sent in the Handshake.
type Protocol int

func (p Protocol) String() string { return strconv.Itoa(int(p)) }

// Version is a wire version together with the releases that speak it.
type Version struct {
	Protocol
	// Name is the first release using the protocol.
	Name string
	// Last is the final release using the protocol, empty if it was only Name.
	Last string
}

// FirstName returns the first release speaking this protocol.
func (v *Version) FirstName() string { return v.Name }

// LastName returns the final release speaking this protocol.
func (v *Version) LastName() string {
	if v.Last == "" {
		return v.Name
	}
	return v.Last
}

func (v Version) String() string {
	if v.Last == "" {
		return v.Name
	}
	return v.Name + "-" + v.Last
}

// GreaterEqual reports p >= v.
func (p Protocol) GreaterEqual(v *Version) bool { return p >= v.Protocol }

// Greater reports p > v.
func (p Protocol) Greater(v *Version) bool { return p > v.Protocol }

// LowerEqual reports p <= v.
func (p Protocol) LowerEqual(v *Version) bool { return p <= v.Protocol }

// Lower reports p < v.
func (p Protocol) Lower(v *Version) bool { return p < v.Protocol }

// PacketType keys registries by the dereferenced type of a packet.
type PacketType reflect.Type

// TypeOf strips pointers from the dynamic type of p.
func TypeOf(p Packet) PacketType {
	t := reflect.TypeOf(p)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
