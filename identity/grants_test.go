// identity/grants_test.go
package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gw_errors "github.com/GPT-Gradient/xynergy-core-sub001/errors"
	"github.com/GPT-Gradient/xynergy-core-sub001/identity"
	"github.com/GPT-Gradient/xynergy-core-sub001/model"
	"github.com/GPT-Gradient/xynergy-core-sub001/test/mock"
)

func editorGrant() *model.TenantGrant {
	return &model.TenantGrant{
		UserID:      "user-1",
		TenantID:    "tenant-1",
		Role:        "editor",
		Permissions: []string{"crm.*"},
		GrantedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

func TestGrantsCachesReads(t *testing.T) {
	ctx := context.Background()
	source := new(mock.MockGrantSource)
	source.On("Grant", ctx, "user-1", "tenant-1").Return(editorGrant(), nil).Once()

	grants := identity.NewGrants(source, mock.NewMemoryStore(), time.Minute)

	for i := 0; i < 3; i++ {
		grant, err := grants.Grant(ctx, "user-1", "tenant-1")
		require.NoError(t, err)
		assert.Equal(t, "editor", grant.Role)
		assert.Equal(t, []string{"crm.*"}, grant.Permissions)
	}
	source.AssertExpectations(t)
}

func TestGrantsNotFoundPassesThrough(t *testing.T) {
	ctx := context.Background()
	source := new(mock.MockGrantSource)
	source.On("Grant", ctx, "user-2", "tenant-1").Return(nil, identity.ErrGrantNotFound).Twice()

	grants := identity.NewGrants(source, mock.NewMemoryStore(), time.Minute)

	// A miss is not cached; each lookup consults the identity store
	for i := 0; i < 2; i++ {
		_, err := grants.Grant(ctx, "user-2", "tenant-1")
		assert.ErrorIs(t, err, identity.ErrGrantNotFound)
	}
	source.AssertExpectations(t)
}

func TestGrantsPutEvictsCache(t *testing.T) {
	ctx := context.Background()
	updated := editorGrant()
	updated.Role = "admin"

	source := new(mock.MockGrantSource)
	source.On("Grant", ctx, "user-1", "tenant-1").Return(editorGrant(), nil).Once()
	source.On("PutGrant", ctx, *updated).Return(nil).Once()
	source.On("Grant", ctx, "user-1", "tenant-1").Return(updated, nil).Once()

	grants := identity.NewGrants(source, mock.NewMemoryStore(), time.Minute)

	grant, err := grants.Grant(ctx, "user-1", "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "editor", grant.Role)

	require.NoError(t, grants.PutGrant(ctx, *updated))

	grant, err = grants.Grant(ctx, "user-1", "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "admin", grant.Role, "write must take effect immediately, not after TTL")
	source.AssertExpectations(t)
}

func TestGrantsRevokeEvictsCache(t *testing.T) {
	ctx := context.Background()
	source := new(mock.MockGrantSource)
	source.On("Grant", ctx, "user-1", "tenant-1").Return(editorGrant(), nil).Once()
	source.On("RevokeGrant", ctx, "user-1", "tenant-1").Return(nil).Once()
	source.On("Grant", ctx, "user-1", "tenant-1").Return(nil, identity.ErrGrantNotFound).Once()

	grants := identity.NewGrants(source, mock.NewMemoryStore(), time.Minute)

	_, err := grants.Grant(ctx, "user-1", "tenant-1")
	require.NoError(t, err)

	require.NoError(t, grants.RevokeGrant(ctx, "user-1", "tenant-1"))

	_, err = grants.Grant(ctx, "user-1", "tenant-1")
	assert.ErrorIs(t, err, identity.ErrGrantNotFound)
	source.AssertExpectations(t)
}

func TestGrantsEvictionFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	grant := editorGrant()
	source := new(mock.MockGrantSource)
	source.On("PutGrant", ctx, *grant).Return(nil).Once()

	store := mock.NewMemoryStore()
	store.Err = assert.AnError
	grants := identity.NewGrants(source, store, time.Minute)

	err := grants.PutGrant(ctx, *grant)
	require.Error(t, err)
	assert.Equal(t, gw_errors.CodeInternal, gw_errors.From(err).Code)
}

func TestGrantsStoreOutageFallsBackToSource(t *testing.T) {
	ctx := context.Background()
	source := new(mock.MockGrantSource)
	source.On("Grant", ctx, "user-1", "tenant-1").Return(editorGrant(), nil).Twice()

	store := mock.NewMemoryStore()
	store.Err = assert.AnError
	grants := identity.NewGrants(source, store, time.Minute)

	for i := 0; i < 2; i++ {
		grant, err := grants.Grant(ctx, "user-1", "tenant-1")
		require.NoError(t, err)
		assert.Equal(t, "editor", grant.Role)
	}
	source.AssertExpectations(t)
}

func TestGrantsInvalidateTenant(t *testing.T) {
	ctx := context.Background()
	other := editorGrant()
	other.UserID = "user-2"

	source := new(mock.MockGrantSource)
	source.On("Grant", ctx, "user-1", "tenant-1").Return(editorGrant(), nil).Twice()
	source.On("Grant", ctx, "user-2", "tenant-1").Return(other, nil).Once()

	grants := identity.NewGrants(source, mock.NewMemoryStore(), time.Minute)

	_, err := grants.Grant(ctx, "user-1", "tenant-1")
	require.NoError(t, err)
	_, err = grants.Grant(ctx, "user-2", "tenant-1")
	require.NoError(t, err)

	removed, err := grants.InvalidateTenant(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	// The next read goes back to the identity store
	_, err = grants.Grant(ctx, "user-1", "tenant-1")
	require.NoError(t, err)
	source.AssertExpectations(t)
}
