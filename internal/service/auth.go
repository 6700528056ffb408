package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/pbparthas/enki/internal/domain"
)

const apiKeyPrefix = "enk_"

type APIKeyRepository interface {
	Create(ctx context.Context, key *domain.APIKey) error
	GetByID(ctx context.Context, id string) (*domain.APIKey, error)
	GetByHash(ctx context.Context, hash string) (*domain.APIKey, error)
	List(ctx context.Context) ([]*domain.APIKey, error)
	CountByRole(ctx context.Context, role domain.APIKeyRole) (int, error)
	Revoke(ctx context.Context, id string) error
}

type AuthService struct {
	keyRepo APIKeyRepository
	uuidGen UUIDGenerator
}

func NewAuthService(keyRepo APIKeyRepository, uuidGen UUIDGenerator) *AuthService {
	return &AuthService{
		keyRepo: keyRepo,
		uuidGen: uuidGen,
	}
}

// CreateAPIKey mints a role-scoped key and returns the plaintext token
// once; only its hash is stored.
func (s *AuthService) CreateAPIKey(ctx context.Context, name string, role domain.APIKeyRole) (string, error) {
	if name == "" {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "API key name is required")
	}

	token, err := generateAPIToken()
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to generate API key", err)
	}

	key := &domain.APIKey{
		ID:        s.uuidGen.NewString(),
		Name:      name,
		KeyHash:   hashToken(token),
		Role:      role,
		CreatedAt: time.Now().UTC(),
		RevokedAt: nil,
	}

	if err := domain.ValidateAPIKey(key); err != nil {
		return "", err
	}

	if err := s.keyRepo.Create(ctx, key); err != nil {
		return "", err
	}

	return token, nil
}

// CreateAPIKeyWithToken registers a caller-supplied token, used for
// bootstrap keys fed in through configuration.
func (s *AuthService) CreateAPIKeyWithToken(ctx context.Context, name string, role domain.APIKeyRole, token string) error {
	if name == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "API key name is required")
	}
	if !IsValidAPIToken(token) {
		return domain.NewDomainError(domain.ErrCodeValidation, "invalid API key format (expected enk_<64 hex chars>)")
	}

	key := &domain.APIKey{
		ID:        s.uuidGen.NewString(),
		Name:      name,
		KeyHash:   hashToken(token),
		Role:      role,
		CreatedAt: time.Now().UTC(),
		RevokedAt: nil,
	}

	if err := domain.ValidateAPIKey(key); err != nil {
		return err
	}

	return s.keyRepo.Create(ctx, key)
}

// ValidateAPIKey resolves a bearer token to its key record.
func (s *AuthService) ValidateAPIKey(ctx context.Context, token string) (*domain.APIKey, error) {
	if !IsValidAPIToken(token) {
		return nil, domain.ErrInvalidAPIKey
	}

	key, err := s.keyRepo.GetByHash(ctx, hashToken(token))
	if err != nil {
		if err == domain.ErrAPIKeyNotFound {
			return nil, domain.ErrInvalidAPIKey
		}
		return nil, err
	}

	if key.IsRevoked() {
		return nil, domain.ErrAPIKeyRevoked
	}

	return key, nil
}

func (s *AuthService) RevokeAPIKey(ctx context.Context, keyID string) error {
	if keyID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "API key ID is required")
	}

	return s.keyRepo.Revoke(ctx, keyID)
}

func (s *AuthService) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	return s.keyRepo.List(ctx)
}

// HasActiveKeys reports whether any unrevoked key exists for the role.
// Bootstrap only seeds roles that have none.
func (s *AuthService) HasActiveKeys(ctx context.Context, role domain.APIKeyRole) (bool, error) {
	count, err := s.keyRepo.CountByRole(ctx, role)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func generateAPIToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(bytes), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func IsValidAPIToken(token string) bool {
	if !strings.HasPrefix(token, apiKeyPrefix) {
		return false
	}
	hexPart := token[len(apiKeyPrefix):]
	if len(hexPart) != 64 {
		return false
	}
	for _, c := range hexPart {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
