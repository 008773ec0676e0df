package identity

import (
	"context"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

const audience = "Shule"

// mockable
var nowFunc = time.Now

// Metadata is the app metadata the identity provider attaches to a user.
type Metadata struct {
	Role string `json:"role,omitempty"`
}

// Claims represents the session claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Username string    `json:"username,omitempty"`
	Email    string    `json:"email,omitempty"`
	Metadata *Metadata `json:"metadata,omitempty"`
	Role     string    `json:"role,omitempty"` // legacy; metadata.role wins
}

// RoleClaim returns the role carried by the claims, or "".
func (c Claims) RoleClaim() string {
	if c.Metadata != nil && strings.TrimSpace(c.Metadata.Role) != "" {
		return c.Metadata.Role
	}
	return c.Role
}

// SessionProvider validates HS256 session tokens signed with the app secret.
type SessionProvider struct {
	appName         string
	secret          []byte
	expirationDelta time.Duration
}

var _ user.IdentityProvider = (*SessionProvider)(nil)

func NewSessionProvider(conf *core.Config) *SessionProvider {
	return &SessionProvider{
		appName:         conf.AppName,
		secret:          []byte(conf.SecretKey),
		expirationDelta: conf.Server.SessionExpirationDelta,
	}
}

// Identify returns the identity of a session token.
// Invalid, expired or foreign tokens give user.ErrUnauthenticated.
func (p *SessionProvider) Identify(_ context.Context, token string) (user.Identity, error) {
	claims := new(Claims)
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil || !parsed.Valid {
		return user.Identity{}, errors.Wrapf(user.ErrUnauthenticated, "parsing token: %v", err)
	}
	if !claims.VerifyAudience(audience, true) {
		return user.Identity{}, errors.Wrap(user.ErrUnauthenticated, "invalid audience")
	}
	// sessions without exp would never expire
	if !claims.VerifyExpiresAt(nowFunc().Unix(), true) {
		return user.Identity{}, errors.Wrap(user.ErrUnauthenticated, "missing expiration")
	}

	return user.Identity{
		Subject:  claims.Subject,
		Role:     claims.RoleClaim(),
		Email:    claims.Email,
		Username: claims.Username,
	}, nil
}

// IssueToken signs a session token for usr. An empty role gives a session without role claim.
func (p *SessionProvider) IssueToken(usr user.User) (string, error) {
	now := nowFunc()
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    p.appName,
			Subject:   usr.ID,
			Audience:  audience,
			ExpiresAt: now.Add(p.expirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Username: usr.Username,
		Email:    usr.Email,
	}
	if usr.Role != "" {
		claims.Metadata = &Metadata{Role: usr.Role}
	}

	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}
