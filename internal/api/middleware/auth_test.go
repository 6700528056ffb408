package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/pbparthas/enki/internal/domain"
)

type MockAuthValidator struct {
	mock.Mock
}

func (m *MockAuthValidator) ValidateAPIKey(ctx context.Context, token string) (*domain.APIKey, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.APIKey), args.Error(1)
}

const testToken = "enk_0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestAPIKeyAuth_Success(t *testing.T) {
	mockValidator := new(MockAuthValidator)
	mockValidator.On("ValidateAPIKey", mock.Anything, testToken).
		Return(&domain.APIKey{ID: "key-1", Role: domain.RoleAgent}, nil)

	var capturedKey *domain.APIKey
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedKey = GetAPIKey(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	wrappedHandler := APIKeyAuth(mockValidator)(handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, capturedKey)
	assert.Equal(t, "key-1", capturedKey.ID)
	mockValidator.AssertExpectations(t)
}

func TestAPIKeyAuth_MissingHeader(t *testing.T) {
	mockValidator := new(MockAuthValidator)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	wrappedHandler := APIKeyAuth(mockValidator)(handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing authorization header")
}

func TestAPIKeyAuth_InvalidFormat(t *testing.T) {
	mockValidator := new(MockAuthValidator)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	wrappedHandler := APIKeyAuth(mockValidator)(handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc123")
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid authorization format")
}

func TestAPIKeyAuth_InvalidToken(t *testing.T) {
	mockValidator := new(MockAuthValidator)
	mockValidator.On("ValidateAPIKey", mock.Anything, "enk_bad").
		Return(nil, errors.New("invalid"))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	wrappedHandler := APIKeyAuth(mockValidator)(handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer enk_bad")
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	mockValidator.AssertExpectations(t)
}

func TestRequireReviewer_AgentForbidden(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	req := httptest.NewRequest(http.MethodPost, "/review/promote", nil)
	ctx := context.WithValue(req.Context(), APIKeyKey, &domain.APIKey{ID: "key-1", Role: domain.RoleAgent})
	w := httptest.NewRecorder()

	RequireReviewer(handler).ServeHTTP(w, req.WithContext(ctx))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "reviewer role required")
}

func TestRequireReviewer_ReviewerAllowed(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/review/promote", nil)
	ctx := context.WithValue(req.Context(), APIKeyKey, &domain.APIKey{ID: "key-2", Role: domain.RoleReviewer})
	w := httptest.NewRecorder()

	RequireReviewer(handler).ServeHTTP(w, req.WithContext(ctx))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireReviewer_NoKey(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	req := httptest.NewRequest(http.MethodPost, "/review/promote", nil)
	w := httptest.NewRecorder()

	RequireReviewer(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
