package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/errors"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/logger"
)

// AccessTokenParam carries the token for websocket clients that cannot set headers
const AccessTokenParam = "access_token"

// Claims are the identity claims read from a bearer token
type Claims struct {
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier signs and checks HS256 identity tokens. Tokens are minted by
// the identity provider in front of this service; Issue exists for operators
// and tests.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier creates a verifier for secret
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Issue signs a token for actor
func (v *TokenVerifier) Issue(actor domain.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name:  actor.Name,
		Roles: actor.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify parses tokenString and returns the actor it names
func (v *TokenVerifier) Verify(tokenString string) (domain.Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.Actor{}, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return domain.Actor{}, fmt.Errorf("invalid token claims")
	}
	if claims.Subject == "" {
		return domain.Actor{}, fmt.Errorf("token has no subject")
	}
	return domain.Actor{ID: claims.Subject, Name: claims.Name, Roles: claims.Roles}, nil
}

// TokenIdentity attaches the actor named by a bearer token to the request
// context. Requests without a token continue anonymously; a token that fails
// verification is rejected. A nil verifier disables token handling.
func TokenIdentity(verifier *TokenVerifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				next.ServeHTTP(w, r)
				return
			}

			token, appErr := extractToken(r)
			if appErr != nil {
				writeErrorResponse(w, r, appErr, log)
				return
			}
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			actor, err := verifier.Verify(token)
			if err != nil {
				log.WithError(err).Debug("Token validation failed")
				writeErrorResponse(w, r, errors.NewAuthenticationError("Invalid or expired token"), log)
				return
			}

			log.WithField("actor_id", actor.ID).Debug("Request identity resolved")
			next.ServeHTTP(w, r.WithContext(domain.WithActor(r.Context(), actor)))
		})
	}
}

// RequireRole rejects requests whose actor holds none of roles
func RequireRole(log *logger.Logger, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := domain.ActorFrom(r.Context())
			if !ok {
				writeErrorResponse(w, r, errors.NewAuthenticationError("Authentication required"), log)
				return
			}
			if !actor.HasRole(roles...) {
				log.WithFields(map[string]interface{}{
					"actor_id": actor.ID,
					"path":     r.URL.Path,
				}).Warn("Role check failed")
				writeErrorResponse(w, r, errors.NewAuthorizationError("Insufficient role"), log)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken reads the Authorization header, falling back to the
// access_token query parameter
func extractToken(r *http.Request) (string, *errors.AppError) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return "", errors.NewAuthenticationError("Invalid authorization header format")
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			return "", errors.NewAuthenticationError("Token is required")
		}
		return token, nil
	}
	return r.URL.Query().Get(AccessTokenParam), nil
}

// writeErrorResponse writes an error response to the client
func writeErrorResponse(w http.ResponseWriter, r *http.Request, appErr *errors.AppError, log *logger.Logger) {
	requestID := RequestIDFrom(r.Context())
	log.WithFields(map[string]interface{}{
		"request_id": requestID,
		"status":     appErr.StatusCode,
	}).Info(appErr.Message)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	if err := json.NewEncoder(w).Encode(errors.NewErrorResponse(appErr, requestID)); err != nil {
		log.WithError(err).Error("Failed to encode error response")
	}
}
