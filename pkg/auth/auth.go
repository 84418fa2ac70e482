// Package auth implements the server side of the Minecraft login encryption
// and asks the Mojang session server whether a player really joined.
package auth

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dualspiral/velocity/pkg/util/profile"
	"github.com/dualspiral/velocity/pkg/version"
)

// Authenticator holds the proxy's login key pair and checks joins.
type Authenticator interface {
	// PublicKey is sent to clients in the EncryptionRequest, DER encoded.
	PublicKey() []byte
	// Verify decrypts the token a client sent back and compares it to the
	// one the proxy handed out.
	Verify(encryptedVerifyToken, actualVerifyToken []byte) (equal bool, err error)
	DecryptSharedSecret(encrypted []byte) (decrypted []byte, err error)
	// GenerateServerID derives the id both the client and the proxy send to
	// the session server.
	GenerateServerID(decryptedSharedSecret []byte) (serverID string, err error)
	// AuthenticateJoin asks the session server about a join. The ip is only
	// sent when Options.PreventProxyConnections is set.
	AuthenticateJoin(ctx context.Context, serverID, username, ip string) (Response, error)
}

// Response is the session server's answer to one join.
type Response interface {
	// OnlineMode is false if the session server knows no such join.
	OnlineMode() bool
	// GameProfile fails for a Response that is not OnlineMode.
	GameProfile() (*profile.GameProfile, error)
}

// ErrVerifyTokenMismatch is the error of a client that sent back a wrong verify token.
var ErrVerifyTokenMismatch = errors.New("verify token mismatch")

// DefaultPrivateKeyBits is the size of a key generated by New.
const DefaultPrivateKeyBits = 1024

// Options configure New. The zero value is usable.
type Options struct {
	// HasJoinedURLFn builds the session server query, DefaultHasJoinedURL if nil.
	HasJoinedURLFn HasJoinedURLFn
	// PrivateKey is generated if nil.
	PrivateKey *rsa.PrivateKey
	// Client sends session server queries. A client with a 10s timeout is
	// used if nil. Its transport is wrapped for tracing.
	Client *http.Client
	// PreventProxyConnections has the session server reject joins from
	// another address than the one that authenticated.
	PreventProxyConnections bool
}

// New returns an Authenticator.
func New(options Options) (Authenticator, error) {
	key := options.PrivateKey
	if key == nil {
		var err error
		if key, err = rsa.GenerateKey(rand.Reader, DefaultPrivateKeyBits); err != nil {
			return nil, fmt.Errorf("error generating private key: %w", err)
		}
	}
	der, err := x509.MarshalPKIXPublicKey(key.Public())
	if err != nil {
		return nil, fmt.Errorf("error encoding public key: %w", err)
	}
	key.Precompute()

	client := options.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	client.Transport = userAgent{next: otelhttp.NewTransport(client.Transport), header: version.UserAgentHeader()}

	joinURL := options.HasJoinedURLFn
	if joinURL == nil {
		joinURL = DefaultHasJoinedURL
	}
	return &authenticator{
		key: key,
		der: der,
		sessions: &sessionServer{
			client:  client,
			joinURL: joinURL,
			sendIP:  options.PreventProxyConnections,
		},
	}, nil
}

type authenticator struct {
	key      *rsa.PrivateKey
	der      []byte
	sessions *sessionServer
}

var _ Authenticator = (*authenticator)(nil)

func (a *authenticator) PublicKey() []byte { return a.der }

func (a *authenticator) Verify(encrypted, actual []byte) (bool, error) {
	token, err := a.decrypt(encrypted)
	if err != nil {
		return false, fmt.Errorf("error decrypting verify token: %w", err)
	}
	return bytes.Equal(token, actual), nil
}

func (a *authenticator) DecryptSharedSecret(encrypted []byte) ([]byte, error) {
	return a.decrypt(encrypted)
}

func (a *authenticator) decrypt(b []byte) ([]byte, error) {
	return rsa.DecryptPKCS1v15(rand.Reader, a.key, b)
}

// GenerateServerID hashes the shared secret and the public key. The server
// id string that vanilla servers also hash in is always empty.
func (a *authenticator) GenerateServerID(secret []byte) (string, error) {
	h := sha1.New()
	_, _ = h.Write(secret)
	_, _ = h.Write(a.der)
	return minecraftHexDigest(h.Sum(nil)), nil
}

func (a *authenticator) AuthenticateJoin(ctx context.Context, serverID, username, ip string) (Response, error) {
	return a.sessions.hasJoined(ctx, serverID, username, ip)
}

// minecraftHexDigest prints sum as a signed two's complement big endian
// number in hex: negative with a minus sign, no leading zeros.
func minecraftHexDigest(sum []byte) string {
	n := new(big.Int).SetBytes(sum)
	if len(sum) != 0 && sum[0]&0x80 != 0 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(len(sum)*8)))
	}
	return n.Text(16)
}

// userAgent sets the proxy's User-Agent on every request.
type userAgent struct {
	next   http.RoundTripper
	header http.Header
}

func (u userAgent) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range u.header {
		req.Header[k] = v
	}
	return u.next.RoundTrip(req)
}
