package identity

import (
	"os"
	"strings"

	jw "github.com/golang-jwt/jwt/v5"
)

// TokenSource yields the current session credential. The agent reads it once
// per lookup so a rotated token file takes effect without a restart.
type TokenSource interface {
	Token() string
}

type StaticToken string

func (s StaticToken) Token() string { return string(s) }

type FileToken string

func (f FileToken) Token() string {
	b, err := os.ReadFile(string(f))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// Provider is the single authority for "who is the local user". Every
// component that filters by user id goes through it.
type Provider struct {
	src TokenSource
}

func NewProvider(src TokenSource) *Provider { return &Provider{src: src} }

func (p *Provider) Token() string { return p.src.Token() }

// CurrentUserID decodes the payload segment of the JWT-shaped credential and
// returns the "userId" claim, falling back to "sub". A missing or malformed
// credential yields "" rather than an error.
func (p *Provider) CurrentUserID() string {
	tok := strings.TrimSpace(p.src.Token())
	if tok == "" {
		return ""
	}
	// The backend already validated the token when it issued it; the client
	// only needs the claims, so the signature is not checked here.
	t, _, err := jw.NewParser().ParseUnverified(tok, jw.MapClaims{})
	if err != nil {
		return ""
	}
	mc, ok := t.Claims.(jw.MapClaims)
	if !ok {
		return ""
	}
	if uid, _ := mc["userId"].(string); uid != "" {
		return uid
	}
	if sub, _ := mc["sub"].(string); sub != "" {
		return sub
	}
	return ""
}
