// identity/verifier_test.go
package identity_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gw_errors "github.com/GPT-Gradient/xynergy-core-sub001/errors"
	"github.com/GPT-Gradient/xynergy-core-sub001/identity"
	logger "github.com/GPT-Gradient/xynergy-core-sub001/logging"
)

func TestMain(m *testing.M) {
	logger.InitLogger()
	os.Exit(m.Run())
}

type jwksFixture struct {
	key    *rsa.PrivateKey
	kid    string
	server *httptest.Server
}

func newJWKSFixture(t *testing.T) *jwksFixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &jwksFixture{key: key, kid: "key-1"}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		pub := key.Public().(*rsa.PublicKey)
		doc := map[string]interface{}{
			"keys": []map[string]string{{
				"kty": "RSA",
				"use": "sig",
				"alg": "RS256",
				"kid": f.kid,
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			}},
		}
		json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *jwksFixture) sign(t *testing.T, claims identity.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = f.kid
	signed, err := token.SignedString(f.key)
	require.NoError(t, err)
	return signed
}

func validClaims() identity.Claims {
	return identity.Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   "user-1",
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		},
		Groups:       []string{"engineering"},
		ActiveTenant: "tenant-1",
		Email:        "user-1@example.com",
	}
}

func TestVerifyValidToken(t *testing.T) {
	f := newJWKSFixture(t)
	v := identity.NewJWKSVerifier(f.server.URL, "platform-admins")

	principal, err := v.Verify(context.Background(), "Bearer "+f.sign(t, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "user-1", principal.UserID)
	assert.Equal(t, "user-1@example.com", principal.Email)
	assert.Equal(t, "tenant-1", principal.ActiveTenant)
	assert.Equal(t, []string{"engineering"}, principal.Groups)
	assert.False(t, principal.SuperAdmin)
}

func TestVerifyDetectsSuperAdmin(t *testing.T) {
	f := newJWKSFixture(t)
	v := identity.NewJWKSVerifier(f.server.URL, "platform-admins")

	claims := validClaims()
	claims.Groups = []string{"engineering", "platform-admins"}
	principal, err := v.Verify(context.Background(), f.sign(t, claims))
	require.NoError(t, err)
	assert.True(t, principal.SuperAdmin)
}

func TestVerifyRejectsMissingToken(t *testing.T) {
	f := newJWKSFixture(t)
	v := identity.NewJWKSVerifier(f.server.URL, "platform-admins")

	_, err := v.Verify(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, gw_errors.CodeAuthentication, gw_errors.From(err).Code)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	f := newJWKSFixture(t)
	v := identity.NewJWKSVerifier(f.server.URL, "platform-admins")

	claims := validClaims()
	claims.ExpiresAt = time.Now().Add(-time.Hour).Unix()
	_, err := v.Verify(context.Background(), f.sign(t, claims))
	require.Error(t, err)
	assert.Equal(t, gw_errors.CodeAuthentication, gw_errors.From(err).Code)
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	f := newJWKSFixture(t)
	v := identity.NewJWKSVerifier(f.server.URL, "platform-admins")

	token := f.sign(t, validClaims())
	tampered := token[:len(token)-3] + "xyz"
	_, err := v.Verify(context.Background(), tampered)
	require.Error(t, err)
}

func TestVerifyRejectsWrongSigningMethod(t *testing.T) {
	f := newJWKSFixture(t)
	v := identity.NewJWKSVerifier(f.server.URL, "platform-admins")

	hmacToken := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
	hmacToken.Header["kid"] = f.kid
	signed, err := hmacToken.SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), signed)
	require.Error(t, err)
	assert.Equal(t, gw_errors.CodeAuthentication, gw_errors.From(err).Code)
}

func TestVerifyRejectsUnknownKidWithoutRefetchStorm(t *testing.T) {
	f := newJWKSFixture(t)
	v := identity.NewJWKSVerifier(f.server.URL, "platform-admins")

	// Prime the key set
	_, err := v.Verify(context.Background(), f.sign(t, validClaims()))
	require.NoError(t, err)

	// A token under a kid we have never seen is rejected straight away
	// because the key set was fetched within the refresh interval
	f.kid = "rotated-key"
	_, err = v.Verify(context.Background(), f.sign(t, validClaims()))
	require.Error(t, err)
	assert.Equal(t, gw_errors.CodeAuthentication, gw_errors.From(err).Code)
}

func TestVerifyAcceptsKidlessTokenAgainstSoleKey(t *testing.T) {
	f := newJWKSFixture(t)
	v := identity.NewJWKSVerifier(f.server.URL, "platform-admins")

	signWithoutKid := func() string {
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims())
		signed, err := token.SignedString(f.key)
		require.NoError(t, err)
		return signed
	}

	// First call fetches the key set, second must hit the cached sole key
	// without demanding a refresh
	principal, err := v.Verify(context.Background(), signWithoutKid())
	require.NoError(t, err)
	assert.Equal(t, "user-1", principal.UserID)

	f.server.Close()
	_, err = v.Verify(context.Background(), signWithoutKid())
	require.NoError(t, err)
}

func TestVerifierHealthy(t *testing.T) {
	f := newJWKSFixture(t)
	v := identity.NewJWKSVerifier(f.server.URL, "platform-admins")
	assert.NoError(t, v.Healthy(context.Background()))

	down := identity.NewJWKSVerifier("http://127.0.0.1:1/jwks", "platform-admins")
	assert.Error(t, down.Healthy(context.Background()))
}
