package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSatisfies_AdminImpliesWriteAndRead(t *testing.T) {
	require.True(t, satisfies(ScopeAdmin, ScopeRead))
	require.True(t, satisfies(ScopeAdmin, ScopeWrite))
	require.True(t, satisfies(ScopeAdmin, ScopeAdmin))
}

func TestSatisfies_WriteImpliesReadNotAdmin(t *testing.T) {
	require.True(t, satisfies(ScopeWrite, ScopeRead))
	require.True(t, satisfies(ScopeWrite, ScopeWrite))
	require.False(t, satisfies(ScopeWrite, ScopeAdmin))
}

func TestSatisfies_ReadImpliesNothingElse(t *testing.T) {
	require.True(t, satisfies(ScopeRead, ScopeRead))
	require.False(t, satisfies(ScopeRead, ScopeWrite))
	require.False(t, satisfies(ScopeRead, ScopeAdmin))
}

// TestAPIKeyLifecycle reproduces the create -> validate -> revoke ->
// validate-fails scenario.
func TestAPIKeyLifecycle(t *testing.T) {
	m := NewManager()

	key, secret, err := m.CreateAPIKey("proj1", "ci key", []Scope{ScopeWrite}, nil, false)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(secret, keyPrefix))
	require.NotEmpty(t, key.KeyID)
	require.NotEmpty(t, key.HashedSecret)
	require.NotEqual(t, secret, key.HashedSecret)

	require.True(t, m.ValidateProjectAccess(secret, "proj1", ScopeRead))
	require.True(t, m.ValidateProjectAccess(secret, "proj1", ScopeWrite))
	require.False(t, m.ValidateProjectAccess(secret, "proj1", ScopeAdmin))

	require.NoError(t, m.RevokeAPIKey(key.KeyID))
	require.False(t, m.ValidateProjectAccess(secret, "proj1", ScopeRead))
}

func TestValidateProjectAccess_WrongProjectFails(t *testing.T) {
	m := NewManager()
	_, secret, err := m.CreateAPIKey("proj1", "k", []Scope{ScopeAdmin}, nil, false)
	require.NoError(t, err)

	require.False(t, m.ValidateProjectAccess(secret, "proj2", ScopeRead))
}

func TestValidateProjectAccess_UnknownSecretFails(t *testing.T) {
	m := NewManager()
	require.False(t, m.ValidateProjectAccess("kb_nonexistent", "proj1", ScopeRead))
}

func TestValidateProjectAccess_ExpiredKeyFails(t *testing.T) {
	m := NewManager()
	expired := -1
	_, secret, err := m.CreateAPIKey("proj1", "k", []Scope{ScopeAdmin}, &expired, false)
	require.NoError(t, err)

	require.False(t, m.ValidateProjectAccess(secret, "proj1", ScopeRead))
}

func TestListProjectKeys_NeverExposesRawSecret(t *testing.T) {
	m := NewManager()
	_, secret, err := m.CreateAPIKey("proj1", "k1", []Scope{ScopeRead}, nil, false)
	require.NoError(t, err)
	_, _, err = m.CreateAPIKey("proj2", "k2", []Scope{ScopeRead}, nil, false)
	require.NoError(t, err)

	keys := m.ListProjectKeys("proj1")
	require.Len(t, keys, 1)
	require.Equal(t, "k1", keys[0].Name)
	require.NotContains(t, keys[0].HashedSecret, secret)
}

func TestRevokeAPIKey_UnknownKeyReturnsNotFound(t *testing.T) {
	m := NewManager()
	err := m.RevokeAPIKey("does-not-exist")
	require.Error(t, err)
}

func TestCreateAPIKey_HighCostSetsBcryptHash(t *testing.T) {
	m := NewManager()
	key, secret, err := m.CreateAPIKey("proj1", "k", []Scope{ScopeRead}, nil, true)
	require.NoError(t, err)
	require.NotEmpty(t, key.BcryptHash)
	require.True(t, VerifyHighCost(key, secret))
	require.False(t, VerifyHighCost(key, "wrong-secret"))
}

func TestVerifyHighCost_FalseWhenNotRequested(t *testing.T) {
	m := NewManager()
	key, secret, err := m.CreateAPIKey("proj1", "k", []Scope{ScopeRead}, nil, false)
	require.NoError(t, err)
	require.False(t, VerifyHighCost(key, secret))
}
