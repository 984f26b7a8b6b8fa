// test/mock/identity.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/GPT-Gradient/xynergy-core-sub001/identity"
	"github.com/GPT-Gradient/xynergy-core-sub001/model"
)

// StaticVerifier accepts any token and returns a fixed principal, or Err.
type StaticVerifier struct {
	Principal *identity.Principal
	Err       error
}

func (v *StaticVerifier) Verify(ctx context.Context, token string) (*identity.Principal, error) {
	if v.Err != nil {
		return nil, v.Err
	}
	return v.Principal, nil
}

// MockGrantSource is a testify mock of identity.GrantSource.
type MockGrantSource struct {
	mock.Mock
}

func (m *MockGrantSource) Grant(ctx context.Context, userID, tenantID string) (*model.TenantGrant, error) {
	args := m.Called(ctx, userID, tenantID)
	if grant := args.Get(0); grant != nil {
		return grant.(*model.TenantGrant), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGrantSource) PutGrant(ctx context.Context, grant model.TenantGrant) error {
	args := m.Called(ctx, grant)
	return args.Error(0)
}

func (m *MockGrantSource) RevokeGrant(ctx context.Context, userID, tenantID string) error {
	args := m.Called(ctx, userID, tenantID)
	return args.Error(0)
}

// StaticGrantReader serves grants from a fixed table keyed by
// userID + "/" + tenantID.
type StaticGrantReader struct {
	Grants map[string]*model.TenantGrant
	Err    error
}

func (r *StaticGrantReader) Grant(ctx context.Context, userID, tenantID string) (*model.TenantGrant, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	grant, ok := r.Grants[userID+"/"+tenantID]
	if !ok {
		return nil, identity.ErrGrantNotFound
	}
	return grant, nil
}
