package netmc

// ConnectionType is the kind of client behind a connection,
// as far as the proxy needs to know it.
type ConnectionType uint8

const (
	// Undetermined is the type until the handshake was read.
	Undetermined ConnectionType = iota
	// Vanilla is a client without mod loader handshake.
	Vanilla
	// LegacyForge is a pre 1.13 Forge client that marked its
	// handshake address with the FML token.
	LegacyForge
)

func (t ConnectionType) String() string {
	switch t {
	case Vanilla:
		return "vanilla"
	case LegacyForge:
		return "legacy-forge"
	}
	return "undetermined"
}
