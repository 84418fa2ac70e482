package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dualspiral/velocity/pkg/util/profile"
	"github.com/dualspiral/velocity/pkg/version"
)

func TestHasJoinedURL(t *testing.T) {
	for _, e := range []struct {
		serverID, username, ip string
		expected               string
	}{
		{serverID: "123456789", username: "Bob", ip: "", expected: defaultHasJoinedEndpoint + "?serverId=123456789&username=Bob"},
		{serverID: "987654321", username: "Alice", ip: "0.0.0.0", expected: defaultHasJoinedEndpoint + "?ip=0.0.0.0&serverId=987654321&username=Alice"},
	} {
		require.Equal(t, e.expected, DefaultHasJoinedURL(e.serverID, e.username, e.ip))
	}
}

func TestMinecraftHexDigest(t *testing.T) {
	for name, expected := range map[string]string{
		"Notch": "4ed1f46bbe04bc756bcb17c0c7ce3e4632f06a48",
		"jeb_":  "-7c9d5b0044c130109a5d7b5fb5c317c02b4e28c1",
		"simon": "88e16a1019277b15d58faf0541e11910eb756f6",
	} {
		sum := sha1.Sum([]byte(name))
		assert.Equal(t, expected, minecraftHexDigest(sum[:]), name)
	}
}

func newTestAuthenticator(t *testing.T, srv *httptest.Server, preventProxy bool) Authenticator {
	t.Helper()
	base, err := url.Parse(srv.URL + "/session/minecraft/hasJoined")
	require.NoError(t, err)
	a, err := New(Options{
		HasJoinedURLFn:          CustomHasJoinedURL(base),
		Client:                  srv.Client(),
		PreventProxyConnections: preventProxy,
	})
	require.NoError(t, err)
	return a
}

func TestVerifyAndDecrypt(t *testing.T) {
	a, err := New(Options{})
	require.NoError(t, err)

	pub, err := x509.ParsePKIXPublicKey(a.PublicKey())
	require.NoError(t, err)
	rsaPub := pub.(*rsa.PublicKey)

	token := []byte{1, 2, 3, 4}
	encrypted, err := rsa.EncryptPKCS1v15(rand.Reader, rsaPub, token)
	require.NoError(t, err)

	ok, err := a.Verify(encrypted, token)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.Verify(encrypted, []byte{4, 3, 2, 1})
	require.NoError(t, err)
	assert.False(t, ok)

	secret := []byte("0123456789abcdef")
	encrypted, err = rsa.EncryptPKCS1v15(rand.Reader, rsaPub, secret)
	require.NoError(t, err)
	decrypted, err := a.DecryptSharedSecret(encrypted)
	require.NoError(t, err)
	assert.Equal(t, secret, decrypted)

	_, err = a.Verify([]byte("garbage"), token)
	assert.Error(t, err)
}

func TestAuthenticateJoinOnline(t *testing.T) {
	var query url.Values
	var userAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		userAgent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{"id":"069a79f444e94726a5befca90e38aaf5","name":"Notch",` +
			`"properties":[{"name":"textures","value":"abc","signature":"sig"}]}`))
	}))
	defer srv.Close()

	a := newTestAuthenticator(t, srv, false)
	resp, err := a.AuthenticateJoin(context.Background(), "-abc", "Notch", "10.0.0.1")
	require.NoError(t, err)
	require.True(t, resp.OnlineMode())

	assert.Equal(t, "-abc", query.Get("serverId"))
	assert.Equal(t, "Notch", query.Get("username"))
	assert.False(t, query.Has("ip"))
	assert.Equal(t, version.UserAgent(), userAgent)

	p, err := resp.GameProfile()
	require.NoError(t, err)
	assert.Equal(t, "Notch", p.Name)
	assert.Equal(t, "069a79f4-44e9-4726-a5be-fca90e38aaf5", p.ID.String())
	assert.Equal(t, []profile.Property{{Name: "textures", Value: "abc", Signature: "sig"}}, p.Properties)
}

func TestAuthenticateJoinSendsIP(t *testing.T) {
	var ip string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = r.URL.Query().Get("ip")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	a := newTestAuthenticator(t, srv, true)
	_, err := a.AuthenticateJoin(context.Background(), "id", "Notch", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", ip)
}

func TestAuthenticateJoinNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	resp, err := newTestAuthenticator(t, srv, false).AuthenticateJoin(context.Background(), "id", "Notch", "")
	require.NoError(t, err)
	assert.False(t, resp.OnlineMode())
	_, err = resp.GameProfile()
	assert.Error(t, err)
}

func TestAuthenticateJoinUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestAuthenticator(t, srv, false).AuthenticateJoin(context.Background(), "id", "Notch", "")
	assert.Error(t, err)
}

func TestGenerateServerID(t *testing.T) {
	a, err := New(Options{})
	require.NoError(t, err)
	id1, err := a.GenerateServerID([]byte("0123456789abcdef"))
	require.NoError(t, err)
	id2, err := a.GenerateServerID([]byte("fedcba9876543210"))
	require.NoError(t, err)
	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2)
}
