// Package version lists the Minecraft Java wire versions the proxy speaks,
// 1.8 through 1.15.2.
package version

import (
	"fmt"
	"strconv"

	"github.com/dualspiral/velocity/pkg/proto"
)

func release(protocol proto.Protocol, first string, last ...string) *proto.Version {
	v := &proto.Version{Protocol: protocol, Name: first}
	if len(last) != 0 {
		v.Last = last[0]
	}
	return v
}

var (
	// Unknown stands in for any protocol number not listed below.
	Unknown = release(-1, "Unknown")
	// Legacy is the pre-netty server list ping.
	Legacy = release(-2, "Legacy")

	Minecraft_1_8    = release(47, "1.8", "1.8.9")
	Minecraft_1_9    = release(107, "1.9")
	Minecraft_1_9_1  = release(108, "1.9.1")
	Minecraft_1_9_2  = release(109, "1.9.2")
	Minecraft_1_9_4  = release(110, "1.9.3", "1.9.4")
	Minecraft_1_10   = release(210, "1.10", "1.10.2")
	Minecraft_1_11   = release(315, "1.11")
	Minecraft_1_11_1 = release(316, "1.11.1", "1.11.2")
	Minecraft_1_12   = release(335, "1.12")
	Minecraft_1_12_1 = release(338, "1.12.1")
	Minecraft_1_12_2 = release(340, "1.12.2")
	Minecraft_1_13   = release(393, "1.13")
	Minecraft_1_13_1 = release(401, "1.13.1")
	Minecraft_1_13_2 = release(404, "1.13.2")
	Minecraft_1_14   = release(477, "1.14")
	Minecraft_1_14_1 = release(480, "1.14.1")
	Minecraft_1_14_2 = release(485, "1.14.2")
	Minecraft_1_14_3 = release(490, "1.14.3")
	Minecraft_1_14_4 = release(498, "1.14.4")
	Minecraft_1_15   = release(573, "1.15")
	Minecraft_1_15_1 = release(575, "1.15.1")
	Minecraft_1_15_2 = release(578, "1.15.2")
)

// SupportedVersions holds every version the proxy accepts, oldest first.
var SupportedVersions = []*proto.Version{
	Minecraft_1_8,
	Minecraft_1_9, Minecraft_1_9_1, Minecraft_1_9_2, Minecraft_1_9_4,
	Minecraft_1_10,
	Minecraft_1_11, Minecraft_1_11_1,
	Minecraft_1_12, Minecraft_1_12_1, Minecraft_1_12_2,
	Minecraft_1_13, Minecraft_1_13_1, Minecraft_1_13_2,
	Minecraft_1_14, Minecraft_1_14_1, Minecraft_1_14_2, Minecraft_1_14_3, Minecraft_1_14_4,
	Minecraft_1_15, Minecraft_1_15_1, Minecraft_1_15_2,
}

var (
	MinimumVersion = SupportedVersions[0]
	MaximumVersion = SupportedVersions[len(SupportedVersions)-1]

	// SupportedVersionsString is shown to clients outside the range, e.g. "1.8-1.15.2".
	SupportedVersionsString = MinimumVersion.FirstName() + "-" + MaximumVersion.LastName()
)

var byProtocol = func() map[proto.Protocol]*proto.Version {
	m := make(map[proto.Protocol]*proto.Version, len(SupportedVersions))
	for _, v := range SupportedVersions {
		m[v.Protocol] = v
	}
	return m
}()

// Protocol adds version lookups to proto.Protocol.
type Protocol proto.Protocol

// Version returns the release for p, or Unknown.
func (p Protocol) Version() *proto.Version {
	if v, ok := byProtocol[proto.Protocol(p)]; ok {
		return v
	}
	if proto.Protocol(p) == Legacy.Protocol {
		return Legacy
	}
	return Unknown
}

// Supported reports whether p is one of SupportedVersions.
func (p Protocol) Supported() bool {
	_, ok := byProtocol[proto.Protocol(p)]
	return ok
}

// Legacy reports whether p is the pre-netty ping marker.
func (p Protocol) Legacy() bool { return proto.Protocol(p) == Legacy.Protocol }

// Unknown reports whether p matches no listed version.
func (p Protocol) Unknown() bool { return p.Version() == Unknown }

func (p Protocol) String() string {
	if !p.Supported() {
		return strconv.Itoa(int(p))
	}
	return fmt.Sprintf("%s(%d)", p.Version(), int(p))
}
