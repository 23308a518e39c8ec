// Package middleware provides HTTP middleware for the NovaStack API
package middleware

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/novastack/service_layer/internal/app/storage"
	"github.com/novastack/service_layer/internal/errors"
	internalhttputil "github.com/novastack/service_layer/internal/httputil"
	"github.com/novastack/service_layer/pkg/logger"
)

// RoleAdmin is granted to subjects listed in the admin allowlist.
const RoleAdmin = "admin"

// Claims represents JWT claims
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// ActivityRecorder updates a member's last-active timestamp.
type ActivityRecorder interface {
	Touch(ctx context.Context, userID string) error
}

// AuthMiddleware provides HS256 bearer-token authentication
type AuthMiddleware struct {
	secret   []byte
	admins   map[string]struct{}
	logger   *logger.Logger
	activity ActivityRecorder
}

// NewAuthMiddleware creates a new authentication middleware. activity may be
// nil.
func NewAuthMiddleware(secret string, admins map[string]struct{}, log *logger.Logger, activity ActivityRecorder) *AuthMiddleware {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	if admins == nil {
		admins = map[string]struct{}{}
	}
	return &AuthMiddleware{
		secret:   []byte(secret),
		admins:   admins,
		logger:   log,
		activity: activity,
	}
}

// Handler rejects requests without a valid bearer token.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			m.respondError(w, r, errors.Unauthorized(""))
			return
		}

		claims, err := m.validateToken(token)
		if err != nil {
			m.logger.WithContext(r.Context()).WithError(err).Warn("Token validation failed")
			m.respondError(w, r, err)
			return
		}

		ctx := m.authenticate(r.Context(), claims)
		m.logger.WithContext(ctx).WithField("user_id", claims.UserID).Debug("Authentication successful")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional attaches the caller's identity when a valid token is present and
// otherwise lets the request through anonymously.
func (m *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := bearerToken(r); token != "" {
			if claims, err := m.validateToken(token); err == nil {
				r = r.WithContext(m.authenticate(r.Context(), claims))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole allows only callers holding one of roles. It must run after
// Handler.
func (m *AuthMiddleware) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetUserID(r.Context()) == "" {
				m.respondError(w, r, errors.Unauthorized("Access denied. Authentication required."))
				return
			}
			role := GetUserRole(r.Context())
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			m.logger.LogSecurityEvent(r.Context(), "role_denied", map[string]interface{}{
				"path": r.URL.Path,
				"role": role,
			})
			m.respondError(w, r, errors.Forbidden("Access denied. Insufficient permissions."))
		})
	}
}

func (m *AuthMiddleware) authenticate(ctx context.Context, claims *Claims) context.Context {
	// Admin comes from the allowlist only; a signed admin claim is not enough.
	role := claims.Role
	if role == RoleAdmin {
		role = ""
	}
	if _, ok := m.admins[claims.UserID]; ok {
		role = RoleAdmin
	}
	ctx = logger.WithUserID(ctx, claims.UserID)
	ctx = logger.WithRole(ctx, role)

	if m.activity != nil {
		if err := m.activity.Touch(ctx, claims.UserID); err != nil && !stderrors.Is(err, storage.ErrNotFound) {
			m.logger.WithContext(ctx).WithError(err).Warn("Failed to record activity")
		}
	}
	return ctx
}

// validateToken validates a JWT token and returns claims
func (m *AuthMiddleware) validateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.InvalidToken(nil).WithDetails("method", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, errors.InvalidToken(err)
	}
	if !token.Valid {
		return nil, errors.InvalidToken(nil)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.InvalidToken(nil).WithDetails("reason", "invalid claims type")
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, errors.InvalidToken(nil).WithDetails("reason", "missing subject")
	}
	return claims, nil
}

// respondError sends an error response
func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := errors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = errors.Internal("Authentication failed", err)
	}

	internalhttputil.WriteErrorResponse(w, r, serviceErr.HTTPStatus, string(serviceErr.Code), serviceErr.Message, serviceErr.Details)

	m.logger.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
		"status": serviceErr.HTTPStatus,
	}).Warn("Authentication failed")
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// IssueToken signs an HS256 token for userID. Used by the CLI and tests.
func IssueToken(secret, userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	return logger.GetUserID(ctx)
}

// GetUserRole extracts user role from context
func GetUserRole(ctx context.Context) string {
	return logger.GetRole(ctx)
}
