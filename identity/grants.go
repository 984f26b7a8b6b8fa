// identity/grants.go
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/GPT-Gradient/xynergy-core-sub001/cache"
	gw_errors "github.com/GPT-Gradient/xynergy-core-sub001/errors"
	logger "github.com/GPT-Gradient/xynergy-core-sub001/logging"
	"github.com/GPT-Gradient/xynergy-core-sub001/model"
	"github.com/GPT-Gradient/xynergy-core-sub001/upstream"
)

// ErrGrantNotFound means the identity store holds no grant for the pair.
var ErrGrantNotFound = errors.New("tenant grant not found")

// GrantSource reads and writes tenant grants in the identity store.
type GrantSource interface {
	Grant(ctx context.Context, userID, tenantID string) (*model.TenantGrant, error)
	PutGrant(ctx context.Context, grant model.TenantGrant) error
	RevokeGrant(ctx context.Context, userID, tenantID string) error
}

// UpstreamGrantSource reaches the identity service through the service
// router, so grant traffic is breaker-protected like any other backend call.
type UpstreamGrantSource struct {
	router  *upstream.Router
	backend string
}

func NewUpstreamGrantSource(router *upstream.Router, backend string) *UpstreamGrantSource {
	return &UpstreamGrantSource{router: router, backend: backend}
}

func grantPath(userID, tenantID string) string {
	return fmt.Sprintf("/internal/grants/%s/%s", userID, tenantID)
}

func (s *UpstreamGrantSource) Grant(ctx context.Context, userID, tenantID string) (*model.TenantGrant, error) {
	resp, err := s.router.Call(ctx, s.backend, grantPath(userID, tenantID), upstream.CallOptions{
		Method: http.MethodGet,
	})
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusNotFound {
		return nil, ErrGrantNotFound
	}
	if resp.Status != http.StatusOK {
		return nil, fmt.Errorf("identity store returned status %d", resp.Status)
	}
	var grant model.TenantGrant
	if err := json.Unmarshal(resp.Body, &grant); err != nil {
		return nil, fmt.Errorf("failed to unmarshal grant: %w", err)
	}
	return &grant, nil
}

func (s *UpstreamGrantSource) PutGrant(ctx context.Context, grant model.TenantGrant) error {
	body, err := json.Marshal(grant)
	if err != nil {
		return fmt.Errorf("failed to marshal grant: %w", err)
	}
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	resp, err := s.router.Call(ctx, s.backend, grantPath(grant.UserID, grant.TenantID), upstream.CallOptions{
		Method: http.MethodPut,
		Body:   body,
		Header: header,
	})
	if err != nil {
		return err
	}
	if resp.Status != http.StatusOK && resp.Status != http.StatusCreated && resp.Status != http.StatusNoContent {
		return fmt.Errorf("identity store returned status %d", resp.Status)
	}
	return nil
}

func (s *UpstreamGrantSource) RevokeGrant(ctx context.Context, userID, tenantID string) error {
	resp, err := s.router.Call(ctx, s.backend, grantPath(userID, tenantID), upstream.CallOptions{
		Method: http.MethodDelete,
	})
	if err != nil {
		return err
	}
	if resp.Status != http.StatusOK && resp.Status != http.StatusNoContent && resp.Status != http.StatusNotFound {
		return fmt.Errorf("identity store returned status %d", resp.Status)
	}
	return nil
}

// Grants fronts a GrantSource with a short-TTL distributed cache. Staleness
// beyond the TTL window is bounded risk; every write path evicts the cached
// copy synchronously before returning.
type Grants struct {
	source GrantSource
	cache  cache.Store
	ttl    time.Duration
}

func NewGrants(source GrantSource, store cache.Store, ttl time.Duration) *Grants {
	return &Grants{source: source, cache: store, ttl: ttl}
}

func grantKey(userID, tenantID string) string {
	return fmt.Sprintf("grant:%s:%s", userID, tenantID)
}

func (g *Grants) Grant(ctx context.Context, userID, tenantID string) (*model.TenantGrant, error) {
	key := grantKey(userID, tenantID)
	if value, ok, err := g.cache.Get(ctx, key); err != nil {
		logger.Warn("Grant cache read failed, falling back to identity store", zap.Error(err))
	} else if ok {
		var grant model.TenantGrant
		if err := json.Unmarshal(value, &grant); err == nil {
			return &grant, nil
		}
	}

	grant, err := g.source.Grant(ctx, userID, tenantID)
	if err != nil {
		return nil, err
	}

	if value, err := json.Marshal(grant); err == nil {
		if err := g.cache.Set(ctx, key, value, g.ttl, "grants", "tenant-grants:"+tenantID); err != nil {
			logger.Warn("Grant cache population failed", zap.Error(err))
		}
	}
	return grant, nil
}

func (g *Grants) PutGrant(ctx context.Context, grant model.TenantGrant) error {
	if err := g.source.PutGrant(ctx, grant); err != nil {
		return err
	}
	return g.evict(ctx, grant.UserID, grant.TenantID)
}

func (g *Grants) RevokeGrant(ctx context.Context, userID, tenantID string) error {
	if err := g.source.RevokeGrant(ctx, userID, tenantID); err != nil {
		return err
	}
	return g.evict(ctx, userID, tenantID)
}

// InvalidateTenant drops every cached grant for one tenant.
func (g *Grants) InvalidateTenant(ctx context.Context, tenantID string) (int, error) {
	return g.cache.InvalidateTag(ctx, "tenant-grants:"+tenantID)
}

func (g *Grants) evict(ctx context.Context, userID, tenantID string) error {
	if err := g.cache.Delete(ctx, grantKey(userID, tenantID)); err != nil {
		// Surfaced, not swallowed: a write that cannot evict would leave the
		// old grant live for a full TTL
		return gw_errors.Internal(fmt.Errorf("grant updated but cache eviction failed: %w", err))
	}
	return nil
}
