package proxy

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dualspiral/velocity/pkg/proto/util"
	"github.com/dualspiral/velocity/pkg/util/profile"
)

const velocityDefaultForwardingVersion = 1

// createLegacyForwardingAddress returns the BungeeCord compatible handshake address.
//
// The original host, the player's IP, their undashed UUID and their
// login properties are separated by null bytes.
func createLegacyForwardingAddress(serverHost, playerIP string, p *profile.GameProfile) string {
	props := p.Properties
	if props == nil {
		props = []profile.Property{}
	}
	b := new(strings.Builder)
	b.WriteString(serverHost)
	b.WriteByte(0)
	b.WriteString(playerIP)
	b.WriteByte(0)
	b.WriteString(p.ID.Undashed())
	b.WriteByte(0)
	j, _ := json.Marshal(props)
	b.Write(j)
	return b.String()
}

// createVelocityForwardingData returns the answer to the backend's
// player info request: an HMAC-SHA256 signature over the forwarded data,
// followed by the data itself.
func createVelocityForwardingData(hmacSecret []byte, address string, p *profile.GameProfile) ([]byte, error) {
	forwarded := bytes.NewBuffer(make([]byte, 0, 2048))
	err := util.WriteVarInt(forwarded, velocityDefaultForwardingVersion)
	if err != nil {
		return nil, err
	}
	err = util.WriteString(forwarded, address)
	if err != nil {
		return nil, err
	}
	err = util.WriteUUID(forwarded, p.ID)
	if err != nil {
		return nil, err
	}
	err = util.WriteString(forwarded, p.Name)
	if err != nil {
		return nil, err
	}
	err = util.WriteProperties(forwarded, p.Properties)
	if err != nil {
		return nil, fmt.Errorf("error writing profile properties: %w", err)
	}

	mac := hmac.New(sha256.New, hmacSecret)
	_, _ = mac.Write(forwarded.Bytes())

	data := bytes.NewBuffer(make([]byte, 0, mac.Size()+forwarded.Len()))
	data.Write(mac.Sum(nil))
	data.Write(forwarded.Bytes())
	return data.Bytes(), nil
}
