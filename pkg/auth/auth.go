// Package auth implements the project auth manager: API key issuance,
// validation against a scope hierarchy, listing, and revocation.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/PerformanceSuite/knowledgebeast/pkg/errors"
)

// Scope is a permission level an API key can be granted.
type Scope string

const (
	ScopeRead  Scope = "read"
	ScopeWrite Scope = "write"
	ScopeAdmin Scope = "admin"
)

// satisfies reports whether having granted scope satisfies a check for
// required. The hierarchy is admin ⊇ write ⊇ read: write implies read,
// admin implies both, but read never implies write.
func satisfies(granted Scope, required Scope) bool {
	if granted == required {
		return true
	}
	switch granted {
	case ScopeAdmin:
		return true
	case ScopeWrite:
		return required == ScopeRead
	default:
		return false
	}
}

// hasScope reports whether any scope in granted satisfies required.
func hasScope(granted []Scope, required Scope) bool {
	for _, g := range granted {
		if satisfies(g, required) {
			return true
		}
	}
	return false
}

// APIKey is a persisted credential record. The raw secret is never
// stored — only its hash(es).
type APIKey struct {
	KeyID        string
	ProjectID    string
	Name         string
	HashedSecret string // sha256 digest, used for fast lookup
	BcryptHash   string // optional higher-cost hash, set when HighCost is requested
	Scopes       []Scope
	CreatedAt    time.Time
	ExpiresAt    *time.Time
	Revoked      bool
	LastUsedAt   *time.Time
}

// keyPrefix tags every raw secret so it's recognizable in logs and
// config without exposing the secret itself.
const keyPrefix = "kb_"

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func generateSecret() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", errors.Wrap(errors.Internal, err, "failed to generate API key secret")
	}
	return keyPrefix + base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(raw), nil
}

// Manager persists API keys scoped to projects and validates incoming
// secrets against them.
type Manager struct {
	mu   sync.RWMutex
	keys map[string]*APIKey // key_id -> record
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{keys: make(map[string]*APIKey)}
}

// CreateAPIKey generates a new key for projectID, persists its hash, and
// returns both the record and the raw secret. The raw secret is
// returned exactly once; it is never recoverable afterward. When
// highCost is true, a bcrypt hash is stored alongside the sha256 digest
// for callers that want bcrypt's tunable work factor on top of the
// default fast lookup.
func (m *Manager) CreateAPIKey(projectID, name string, scopes []Scope, expiresDays *int, highCost bool) (*APIKey, string, error) {
	secret, err := generateSecret()
	if err != nil {
		return nil, "", err
	}

	var expiresAt *time.Time
	if expiresDays != nil {
		t := time.Now().Add(time.Duration(*expiresDays) * 24 * time.Hour)
		expiresAt = &t
	}

	key := &APIKey{
		KeyID:        uuid.NewString(),
		ProjectID:    projectID,
		Name:         name,
		HashedSecret: hashSecret(secret),
		Scopes:       scopes,
		CreatedAt:    time.Now(),
		ExpiresAt:    expiresAt,
	}

	if highCost {
		bcryptHash, bcryptErr := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if bcryptErr != nil {
			return nil, "", errors.Wrap(errors.Internal, bcryptErr, "failed to generate bcrypt hash")
		}
		key.BcryptHash = string(bcryptHash)
	}

	m.mu.Lock()
	m.keys[key.KeyID] = key
	m.mu.Unlock()

	return key, secret, nil
}

// VerifyHighCost checks secret against key's bcrypt hash, for callers
// that opted into CreateAPIKey's highCost path. Returns false if no
// bcrypt hash was stored.
func VerifyHighCost(key *APIKey, secret string) bool {
	if key.BcryptHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(key.BcryptHash), []byte(secret)) == nil
}

// ValidateProjectAccess looks up secret by hash and reports whether it
// grants requiredScope within projectID: the key must exist, not be
// revoked, not be expired, match the project, and carry a scope that
// satisfies requiredScope. On success it stamps last_used_at.
func (m *Manager) ValidateProjectAccess(secret, projectID string, requiredScope Scope) bool {
	hashed := hashSecret(secret)

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range m.keys {
		if key.HashedSecret != hashed {
			continue
		}
		if key.Revoked {
			return false
		}
		if key.ExpiresAt != nil && time.Now().After(*key.ExpiresAt) {
			return false
		}
		if key.ProjectID != projectID {
			return false
		}
		if !hasScope(key.Scopes, requiredScope) {
			return false
		}
		now := time.Now()
		key.LastUsedAt = &now
		return true
	}
	return false
}

// ListProjectKeys returns metadata for every key belonging to projectID.
// The raw secret is never included since it isn't stored.
func (m *Manager) ListProjectKeys(projectID string) []APIKey {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []APIKey
	for _, key := range m.keys {
		if key.ProjectID == projectID {
			out = append(out, *key)
		}
	}
	return out
}

// RevokeAPIKey marks a key revoked. Returns NotFound if keyID is
// unknown.
func (m *Manager) RevokeAPIKey(keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.keys[keyID]
	if !ok {
		return errors.New(errors.NotFound, "api key not found: "+keyID)
	}
	key.Revoked = true
	return nil
}
