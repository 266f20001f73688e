package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func TestIssueAndParseJWT(t *testing.T) {
	token, err := IssueJWT(Principal{Subject: "u-1", Name: "Dr. Chen", Email: "chen@example.org", Role: RoleAdmin}, testSecret, "medfleet", time.Hour)
	require.NoError(t, err)

	p, err := ParseJWT(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "u-1", p.Subject)
	assert.Equal(t, "Dr. Chen", p.Name)
	assert.Equal(t, RoleAdmin, p.Role)
}

func TestParseJWT_Rejects(t *testing.T) {
	good, err := IssueJWT(Principal{Subject: "u-1"}, testSecret, "", time.Hour)
	require.NoError(t, err)

	_, err = ParseJWT(good, []byte("other-secret"))
	assert.Error(t, err, "wrong secret")

	_, err = ParseJWT("", testSecret)
	assert.Error(t, err, "empty token")

	// ttl <= 0 不设置过期时间，因此手工签一个已过期的 token。
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	_, err = ParseJWT(expired, testSecret)
	assert.Error(t, err, "expired token")

	badRole := Claims{Role: "root", RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1"}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, badRole).SignedString(testSecret)
	require.NoError(t, err)
	_, err = ParseJWT(tok, testSecret)
	assert.Error(t, err, "unknown role")

	noSub := Claims{}
	tok, err = jwt.NewWithClaims(jwt.SigningMethodHS256, noSub).SignedString(testSecret)
	require.NoError(t, err)
	_, err = ParseJWT(tok, testSecret)
	assert.Error(t, err, "missing subject")
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Dr. Chen", (&Principal{Name: "Dr. Chen", Email: "c@example.org"}).DisplayName())
	assert.Equal(t, "c@example.org", (&Principal{Email: "c@example.org"}).DisplayName())
	assert.Equal(t, "User", (&Principal{Subject: "u-1"}).DisplayName())
	var nilPrincipal *Principal
	assert.Equal(t, "", nilPrincipal.DisplayName())
}

func TestContextGate(t *testing.T) {
	var gate Gate = ContextGate{}
	assert.Nil(t, gate.CurrentPrincipal(context.Background()))

	p := &Principal{Subject: "u-1"}
	ctx := WithPrincipal(context.Background(), p)
	assert.Same(t, p, gate.CurrentPrincipal(ctx))
}
