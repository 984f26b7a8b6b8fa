// identity/verifier.go
package identity

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"go.uber.org/zap"

	"github.com/GPT-Gradient/xynergy-core-sub001/db"
	gw_errors "github.com/GPT-Gradient/xynergy-core-sub001/errors"
	logger "github.com/GPT-Gradient/xynergy-core-sub001/logging"
)

// Principal is the authenticated caller behind a bearer token.
type Principal struct {
	UserID       string
	Email        string
	ActiveTenant string
	Groups       []string
	SuperAdmin   bool
}

// Verifier validates a bearer credential against the identity provider.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// Claims is the token shape issued by the identity provider.
type Claims struct {
	jwt.StandardClaims
	Groups       []string `json:"groups"`
	ActiveTenant string   `json:"active_tenant"`
	Email        string   `json:"email"`
}

type jsonWebKey struct {
	Kty string `json:"kty"`
	E   string `json:"e"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n"`
}

type jwks struct {
	Keys []jsonWebKey `json:"keys"`
}

// JWKSVerifier verifies RS256 bearer tokens against the provider's published
// key set, refreshing keys on unknown kid at a bounded rate.
type JWKSVerifier struct {
	jwksURL         string
	superAdminGroup string
	httpClient      *http.Client

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

const jwksRefreshInterval = time.Minute

func NewJWKSVerifier(jwksURL, superAdminGroup string) *JWKSVerifier {
	return &JWKSVerifier{
		jwksURL:         jwksURL,
		superAdminGroup: superAdminGroup,
		httpClient:      &http.Client{Timeout: 5 * time.Second},
		keys:            make(map[string]*rsa.PublicKey),
	}
}

func (v *JWKSVerifier) Verify(ctx context.Context, token string) (*Principal, error) {
	token = strings.TrimPrefix(token, "Bearer ")
	if token == "" {
		return nil, gw_errors.Authentication("missing bearer token", nil)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		kid, _ := t.Header["kid"].(string)
		return v.key(ctx, kid)
	})
	if err != nil {
		logger.Debug("Token verification failed", zap.Error(err))
		return nil, gw_errors.Authentication("invalid bearer token", err)
	}
	if !parsed.Valid {
		return nil, gw_errors.Authentication("invalid bearer token", nil)
	}

	principal := &Principal{
		UserID:       claims.Subject,
		Email:        claims.Email,
		ActiveTenant: claims.ActiveTenant,
		Groups:       claims.Groups,
	}
	for _, group := range claims.Groups {
		if group == v.superAdminGroup {
			principal.SuperAdmin = true
			break
		}
	}
	return principal, nil
}

// Healthy reports whether the provider's key endpoint is reachable.
func (v *JWKSVerifier) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return err
	}
	res, err := v.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks endpoint returned status %d", res.StatusCode)
	}
	return nil
}

func (v *JWKSVerifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	// Tokens without a kid fall back to the provider's sole key
	if !ok && kid == "" && len(v.keys) == 1 {
		for _, k := range v.keys {
			key, ok = k, true
		}
	}
	stale := time.Since(v.fetchedAt) > jwksRefreshInterval
	v.mu.RUnlock()
	if ok {
		return key, nil
	}
	if !stale {
		return nil, fmt.Errorf("no key for kid %q", kid)
	}
	// Single-flight the provider fetch across instances; if the lock store
	// is unreachable, refresh directly rather than failing verification.
	locked, err := db.LockResource(ctx, "jwks-refresh", 10*time.Second)
	if err != nil || locked {
		refreshErr := v.refresh(ctx)
		if locked {
			if unlockErr := db.UnlockResource(ctx, "jwks-refresh"); unlockErr != nil {
				logger.Warn("Failed to release JWKS refresh lock", zap.Error(unlockErr))
			}
		}
		if refreshErr != nil {
			return nil, refreshErr
		}
	} else {
		return nil, fmt.Errorf("jwks refresh in progress elsewhere, no key for kid %q", kid)
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	if key, ok := v.keys[kid]; ok {
		return key, nil
	}
	// Tokens without a kid fall back to the provider's first key
	if kid == "" && len(v.keys) == 1 {
		for _, k := range v.keys {
			return k, nil
		}
	}
	return nil, fmt.Errorf("no key for kid %q", kid)
}

func (v *JWKSVerifier) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return err
	}
	res, err := v.httpClient.Do(req)
	if err != nil {
		logger.Error("Failed to fetch JWKS", zap.String("url", v.jwksURL), zap.Error(err))
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("received non-OK HTTP status from JWKS endpoint: %d", res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	var set jwks
	if err := json.Unmarshal(body, &set); err != nil {
		return err
	}
	if len(set.Keys) == 0 {
		return fmt.Errorf("no keys found in JWKS")
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		pub, err := parseRSAKey(k)
		if err != nil {
			logger.Warn("Skipping unparseable JWKS key", zap.String("kid", k.Kid), zap.Error(err))
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return fmt.Errorf("no usable keys in JWKS")
	}

	v.mu.Lock()
	v.keys = keys
	v.fetchedAt = time.Now()
	v.mu.Unlock()

	logger.Info("JWKS refreshed", zap.Int("keys", len(keys)))
	return nil
}

func parseRSAKey(k jsonWebKey) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}
	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes).Int64()
	return &rsa.PublicKey{N: n, E: int(e)}, nil
}
