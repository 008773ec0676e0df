package identity

import (
	"context"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

func sign(t *testing.T, method jwt.SigningMethod, claims *Claims, secret string) string {
	t.Helper()
	tkn, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tkn
}

func validClaims() *Claims {
	return &Claims{StandardClaims: jwt.StandardClaims{
		Subject:   "usr-1",
		Audience:  audience,
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}}
}

func TestSessionProvider_Identify(t *testing.T) {
	conf := core.NewTestConfig()
	p := NewSessionProvider(conf)
	ctx := context.Background()

	teacherToken, err := p.IssueToken(user.User{ID: "tch-1", Role: user.RoleTeacher, Email: "t@test.cd", Username: "teach"})
	require.NoError(t, err)
	noRoleToken, err := p.IssueToken(user.User{ID: "usr-1"})
	require.NoError(t, err)

	legacy := validClaims()
	legacy.Role = user.RoleParent
	both := validClaims()
	both.Role = user.RoleParent
	both.Metadata = &Metadata{Role: user.RoleAdmin}
	foreignAud := validClaims()
	foreignAud.Audience = "Other"
	noExp := validClaims()
	noExp.ExpiresAt = 0

	nowFunc = func() time.Time { return time.Now().Add(-2 * conf.Server.SessionExpirationDelta) }
	expiredToken, err := p.IssueToken(user.User{ID: "tch-1", Role: user.RoleTeacher})
	nowFunc = time.Now
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		want    user.Identity
		wantErr error
	}{
		{
			name: "issued token", token: teacherToken,
			want: user.Identity{Subject: "tch-1", Role: user.RoleTeacher, Email: "t@test.cd", Username: "teach"},
		},
		{name: "no role claim", token: noRoleToken, want: user.Identity{Subject: "usr-1"}},
		{
			name: "legacy role claim", token: sign(t, jwt.SigningMethodHS256, legacy, conf.SecretKey),
			want: user.Identity{Subject: "usr-1", Role: user.RoleParent},
		},
		{
			name: "metadata role wins", token: sign(t, jwt.SigningMethodHS256, both, conf.SecretKey),
			want: user.Identity{Subject: "usr-1", Role: user.RoleAdmin},
		},
		{name: "garbage", token: "not.a.token", wantErr: user.ErrUnauthenticated},
		{name: "expired", token: expiredToken, wantErr: user.ErrUnauthenticated},
		{name: "wrong secret", token: sign(t, jwt.SigningMethodHS256, validClaims(), "nope"), wantErr: user.ErrUnauthenticated},
		{name: "wrong method", token: sign(t, jwt.SigningMethodHS512, validClaims(), conf.SecretKey), wantErr: user.ErrUnauthenticated},
		{name: "wrong audience", token: sign(t, jwt.SigningMethodHS256, foreignAud, conf.SecretKey), wantErr: user.ErrUnauthenticated},
		{name: "no expiration", token: sign(t, jwt.SigningMethodHS256, noExp, conf.SecretKey), wantErr: user.ErrUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Identify(ctx, tt.token)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSessionProvider_WithPrincipalLookup(t *testing.T) {
	p := NewSessionProvider(core.NewTestConfig())
	svc := user.NewService(p, core.NopLogger{})
	ctx := context.Background()

	tkn, err := p.IssueToken(user.User{ID: "sa-1", Role: user.RoleSuperAdmin})
	require.NoError(t, err)
	usr, err := svc.ResolvePrincipal(ctx, tkn)
	require.NoError(t, err)
	assert.Equal(t, user.User{ID: "sa-1", Role: user.RoleSuperAdmin}, usr)

	tkn, err = p.IssueToken(user.User{ID: "usr-1"})
	require.NoError(t, err)
	_, err = svc.ResolvePrincipal(ctx, tkn)
	assert.True(t, errors.Is(err, user.ErrRoleMissing))
}
