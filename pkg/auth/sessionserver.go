package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dualspiral/velocity/pkg/util/profile"
)

const defaultHasJoinedEndpoint = `https://sessionserver.mojang.com/session/minecraft/hasJoined`

var defaultHasJoinedBaseURL, _ = url.Parse(defaultHasJoinedEndpoint)

// HasJoinedURLFn returns the session server url that checks a join. The
// userIP may be empty.
type HasJoinedURLFn func(serverID, username, userIP string) string

// DefaultHasJoinedURL queries Mojang's session server.
func DefaultHasJoinedURL(serverID, username, userIP string) string {
	return hasJoinedURL(defaultHasJoinedBaseURL, serverID, username, userIP)
}

// CustomHasJoinedURL queries another session server at baseURL, or Mojang's if nil.
func CustomHasJoinedURL(baseURL *url.URL) HasJoinedURLFn {
	if baseURL == nil {
		return DefaultHasJoinedURL
	}
	return func(serverID, username, userIP string) string {
		return hasJoinedURL(baseURL, serverID, username, userIP)
	}
}

func hasJoinedURL(base *url.URL, serverID, username, userIP string) string {
	q := url.Values{"serverId": {serverID}, "username": {username}}
	if userIP != "" {
		q.Set("ip", userIP)
	}
	return base.ResolveReference(&url.URL{RawQuery: q.Encode()}).String()
}

var tracer = otel.Tracer("github.com/dualspiral/velocity/pkg/auth")

type sessionServer struct {
	client  *http.Client
	joinURL HasJoinedURLFn
	sendIP  bool
}

// hasJoined treats 200 as an online join and 204 as an unknown one.
func (s *sessionServer) hasJoined(ctx context.Context, serverID, username, ip string) (_ Response, err error) {
	if !s.sendIP {
		ip = ""
	}
	ctx, span := tracer.Start(ctx, "AuthenticateJoin", trace.WithAttributes(
		attribute.String("server.id", serverID),
		attribute.String("user.name", username),
		attribute.String("user.ip", ip),
	))
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	target := s.joinURL(serverID, username, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating authentication request: %w", err)
	}
	log := logr.FromContextOrDiscard(ctx).V(1)
	start := time.Now()
	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error querying session server: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusNoContent {
		return nil, fmt.Errorf("session server answered with status %d", res.StatusCode)
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading session server response: %w", err)
	}
	online := res.StatusCode == http.StatusOK
	log.Info("session server answered", "url", target, "onlineMode", online, "took", time.Since(start))
	return &joinResponse{online: online, body: body}, nil
}

// joinResponse decodes the profile lazily.
type joinResponse struct {
	online bool
	body   []byte

	once    sync.Once
	profile *profile.GameProfile
	err     error
}

func (r *joinResponse) OnlineMode() bool { return r.online }

func (r *joinResponse) GameProfile() (*profile.GameProfile, error) {
	r.once.Do(func() {
		r.profile, r.err = decodeProfile(r.online, r.body)
		r.body = nil
	})
	return r.profile, r.err
}

func decodeProfile(online bool, body []byte) (*profile.GameProfile, error) {
	if !online {
		return nil, errors.New("session server knows no such join")
	}
	p := new(profile.GameProfile)
	if err := json.Unmarshal(body, p); err != nil {
		return nil, fmt.Errorf("error decoding game profile: %w", err)
	}
	if p.Name == "" {
		return nil, errors.New("game profile without a name")
	}
	return p, nil
}
