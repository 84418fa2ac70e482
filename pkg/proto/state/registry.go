package state

import (
	"fmt"
	"reflect"

	"github.com/dualspiral/velocity/pkg/proto"
	"github.com/dualspiral/velocity/pkg/proto/version"
)

// Registry holds the packets of one state in both directions.
type Registry struct {
	State
	ServerBound *PacketRegistry
	ClientBound *PacketRegistry
}

func NewRegistry(s State) *Registry {
	return &Registry{
		State:       s,
		ServerBound: NewPacketRegistry(proto.ServerBound),
		ClientBound: NewPacketRegistry(proto.ClientBound),
	}
}

// PassThroughUnknown reports whether unregistered ids are relayed as opaque
// payloads. Only play traffic is relayed. In the other states the proxy
// takes part in every packet.
func (r *Registry) PassThroughUnknown() bool { return r.State == PlayState }

// FromDirection returns the packets of s bound to direction in protocol.
func FromDirection(direction proto.Direction, s *Registry, protocol proto.Protocol) *ProtocolRegistry {
	if direction == proto.ServerBound {
		return s.ServerBound.ProtocolRegistry(protocol)
	}
	return s.ClientBound.ProtocolRegistry(protocol)
}

// PacketRegistry holds the packets of one direction for every supported protocol.
type PacketRegistry struct {
	Direction proto.Direction
	// Fallback serves protocols that are not supported with the packets of
	// the lowest version. Without it they get no packets at all.
	Fallback bool

	protocols map[proto.Protocol]*ProtocolRegistry
}

func NewPacketRegistry(direction proto.Direction) *PacketRegistry {
	r := &PacketRegistry{
		Direction: direction,
		Fallback:  true,
		protocols: make(map[proto.Protocol]*ProtocolRegistry, len(version.SupportedVersions)),
	}
	for _, v := range version.SupportedVersions {
		r.protocols[v.Protocol] = newProtocolRegistry(v.Protocol)
	}
	return r
}

func (p *PacketRegistry) ProtocolRegistry(protocol proto.Protocol) *ProtocolRegistry {
	if r, ok := p.protocols[protocol]; ok {
		return r
	}
	if p.Fallback {
		return p.protocols[version.MinimumVersion.Protocol]
	}
	return newProtocolRegistry(protocol)
}

// Register assigns packet its ids. Each mapping holds from its protocol up
// to the next mapping's, the last one through version.MaximumVersion.
// Mappings must ascend. Register panics on a conflict.
func (p *PacketRegistry) Register(packet proto.Packet, mappings ...*PacketMapping) {
	typ := proto.TypeOf(packet)
	for i, mapping := range mappings {
		until := version.MaximumVersion.Protocol + 1
		if i+1 < len(mappings) {
			until = mappings[i+1].Protocol
		}
		if mapping.Protocol >= until {
			panic(fmt.Sprintf("mappings of %T must ascend, got %s before %s", packet, mapping.Protocol, until))
		}
		for _, v := range version.SupportedVersions {
			if v.Protocol >= mapping.Protocol && v.Protocol < until {
				p.protocols[v.Protocol].add(typ, mapping.ID)
			}
		}
	}
}

// ProtocolRegistry maps the packets of one direction, state and protocol.
type ProtocolRegistry struct {
	Protocol proto.Protocol

	types map[proto.PacketID]proto.PacketType
	ids   map[proto.PacketType]proto.PacketID
}

func newProtocolRegistry(protocol proto.Protocol) *ProtocolRegistry {
	return &ProtocolRegistry{
		Protocol: protocol,
		types:    map[proto.PacketID]proto.PacketType{},
		ids:      map[proto.PacketType]proto.PacketID{},
	}
}

func (r *ProtocolRegistry) add(typ proto.PacketType, id proto.PacketID) {
	if other, ok := r.types[id]; ok {
		panic(fmt.Sprintf("id %s of protocol %s is taken by %s", id, r.Protocol, other))
	}
	if _, ok := r.ids[typ]; ok {
		panic(fmt.Sprintf("%s is registered twice for protocol %s", typ, r.Protocol))
	}
	r.types[id] = typ
	r.ids[typ] = id
}

// PacketID returns the id of packet's type.
func (r *ProtocolRegistry) PacketID(packet proto.Packet) (proto.PacketID, bool) {
	id, ok := r.ids[proto.TypeOf(packet)]
	return id, ok
}

// CreatePacket returns a new zero packet registered under id, or nil.
func (r *ProtocolRegistry) CreatePacket(id proto.PacketID) proto.Packet {
	typ, ok := r.types[id]
	if !ok {
		return nil
	}
	packet, _ := reflect.New(typ).Interface().(proto.Packet)
	return packet
}

// PacketMapping is a packet id that holds from Protocol on.
type PacketMapping struct {
	ID       proto.PacketID
	Protocol proto.Protocol
}

func since(v *proto.Version, id proto.PacketID) *PacketMapping {
	return &PacketMapping{ID: id, Protocol: v.Protocol}
}
