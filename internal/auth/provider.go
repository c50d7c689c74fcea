// Package auth gates sync passes on the user's remote-service
// credential. It understands the provider's packed access-token format
// and decides validity; the OAuth handshake that produces the token
// happens outside this service.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/notemirror/backend/internal/remote"
)

var (
	// ErrNotConnected indicates the user has no stored remote token.
	ErrNotConnected = errors.New("auth: remote account not connected")
	// ErrTokenExpired indicates the stored token is past its expiry.
	ErrTokenExpired = errors.New("auth: remote token expired")
	// ErrMalformedToken indicates the packed token string could not be parsed.
	ErrMalformedToken = errors.New("auth: malformed access token")

	errMissingFactory = errors.New("auth: client factory is required")
)

// Credentials is the decoded form of the provider's packed access token,
// e.g. "S=s432:U=4a535ee:E=154d9aa0:...". S names the storage shard,
// U is the remote user id in hex, E is the expiry epoch seconds in hex.
type Credentials struct {
	Token        string
	Shard        string
	RemoteUserID int64
	ExpiresAt    time.Time
}

// ParseAccessToken decodes the packed token string. Unknown fields are
// ignored; a token without an expiry field is treated as malformed
// because expiry drives every validity decision downstream.
func ParseAccessToken(token string) (Credentials, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Credentials{}, fmt.Errorf("%w: empty", ErrMalformedToken)
	}

	fields := map[string]string{}
	for _, part := range strings.Split(trimmed, ":") {
		key, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		fields[key] = value
	}

	creds := Credentials{Token: trimmed, Shard: fields["S"]}

	if raw := fields["U"]; raw != "" {
		userID, err := strconv.ParseInt(raw, 16, 64)
		if err != nil {
			return Credentials{}, fmt.Errorf("%w: user field %q", ErrMalformedToken, raw)
		}
		creds.RemoteUserID = userID
	}

	raw := fields["E"]
	if raw == "" {
		return Credentials{}, fmt.Errorf("%w: missing expiry field", ErrMalformedToken)
	}
	expiryEpoch, err := strconv.ParseInt(raw, 16, 64)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: expiry field %q", ErrMalformedToken, raw)
	}
	creds.ExpiresAt = time.Unix(expiryEpoch, 0).UTC()

	return creds, nil
}

// ClientFactory builds an authenticated content client for a token.
// The production implementation wraps the provider's transport; tests
// substitute scripted fakes.
type ClientFactory interface {
	NewClient(token, shard string) (remote.ContentClient, error)
}

// ProviderConfig describes the dependencies of the auth provider.
type ProviderConfig struct {
	Factory ClientFactory
	Clock   func() time.Time
}

// Provider answers "is this user's remote auth currently valid" and,
// when it is, hands out a content client scoped to that user.
type Provider struct {
	factory ClientFactory
	clock   func() time.Time
}

// NewProvider constructs the auth provider.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	if cfg.Factory == nil {
		return nil, errMissingFactory
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Provider{factory: cfg.Factory, clock: clock}, nil
}

// Valid reports whether a token is present and unexpired. A nil expiry
// means the expiry was never recorded, which counts as not connected.
func (p *Provider) Valid(token string, expiresAt *time.Time) bool {
	if strings.TrimSpace(token) == "" || expiresAt == nil {
		return false
	}
	return expiresAt.After(p.clock())
}

// ClientFor returns an authenticated content client for the stored
// credential, or a classification of why the credential is unusable.
func (p *Provider) ClientFor(token, shard string, expiresAt *time.Time) (remote.ContentClient, error) {
	if strings.TrimSpace(token) == "" || expiresAt == nil {
		return nil, ErrNotConnected
	}
	if !expiresAt.After(p.clock()) {
		return nil, ErrTokenExpired
	}
	return p.factory.NewClient(token, shard)
}
