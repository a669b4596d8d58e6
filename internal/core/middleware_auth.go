package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"caseflow/internal/types"
)

// ServiceAuthHeader carries the calling service's credential.
const ServiceAuthHeader = "ServiceAuthorization"

// ServiceAuthenticator resolves a service credential to the calling
// service's name.
type ServiceAuthenticator interface {
	Authenticate(ctx context.Context, token string) (service string, err error)
}

// ServiceAuthMiddleware rejects requests without a valid ServiceAuthorization
// header and stores the calling service on the context. It passes requests
// through when no Authenticator is configured.
func (s *Server) ServiceAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Authenticator == nil {
			next.ServeHTTP(w, r)
			return
		}

		token := serviceToken(r.Header.Get(ServiceAuthHeader))
		if token == "" {
			Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, ServiceAuthHeader+" header is required", nil))
			return
		}

		service, err := s.Authenticator.Authenticate(r.Context(), token)
		if err != nil {
			s.Logger.Warn("service authentication failed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
			Error(w, r, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid service credential", nil))
			return
		}

		next.ServeHTTP(w, r.WithContext(types.WithCallingService(r.Context(), service)))
	})
}

// serviceToken strips an optional case-insensitive "Bearer " scheme.
func serviceToken(header string) string {
	const prefix = "bearer "
	header = strings.TrimSpace(header)
	if len(header) >= len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		header = header[len(prefix):]
	}
	return strings.TrimSpace(header)
}

// BcryptAuthenticator accepts tokens of the form "service:secret" where the
// service is on the allow list and the secret matches a bcrypt hash. Verified
// tokens are remembered by digest so bcrypt runs once per credential.
type BcryptAuthenticator struct {
	secretHash []byte
	allowed    map[string]bool

	mu       sync.RWMutex
	verified map[string]string
}

// NewBcryptAuthenticator builds an authenticator for the given hash and
// allowed service names.
func NewBcryptAuthenticator(secretHash types.SecretString, allowedServices []string) *BcryptAuthenticator {
	allowed := make(map[string]bool, len(allowedServices))
	for _, svc := range allowedServices {
		if svc = strings.TrimSpace(svc); svc != "" {
			allowed[svc] = true
		}
	}
	return &BcryptAuthenticator{
		secretHash: []byte(secretHash.Unmask()),
		allowed:    allowed,
		verified:   make(map[string]string),
	}
}

// Authenticate implements ServiceAuthenticator.
func (a *BcryptAuthenticator) Authenticate(_ context.Context, token string) (string, error) {
	sum := sha256.Sum256([]byte(token))
	key := hex.EncodeToString(sum[:])

	a.mu.RLock()
	service, ok := a.verified[key]
	a.mu.RUnlock()
	if ok {
		return service, nil
	}

	service, secret, found := strings.Cut(token, ":")
	if !found || service == "" || secret == "" {
		return "", types.NewAppError(types.ErrCodeAuthTokenInvalid, "malformed service credential", nil)
	}
	if !a.allowed[service] {
		return "", types.NewAppErrorWithDetails(types.ErrCodeAuthTokenInvalid, "service not allowed", nil,
			map[string]any{"service": service})
	}
	if err := bcrypt.CompareHashAndPassword(a.secretHash, []byte(secret)); err != nil {
		return "", types.NewAppError(types.ErrCodeAuthTokenInvalid, "service secret mismatch", err)
	}

	a.mu.Lock()
	a.verified[key] = service
	a.mu.Unlock()
	return service, nil
}
