package middleware

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/feral-file/ff-webhook-engine/internal/api/rest/dto"
	"github.com/feral-file/ff-webhook-engine/internal/logger"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	PRINCIPAL_KEY contextKey = "principal"
)

const (
	AUTH_TYPE_JWT    = "jwt"
	AUTH_TYPE_APIKEY = "apikey"
)

// AuthConfig holds authentication configuration
type AuthConfig struct {
	// JWTPublicKey verifies RS256 bearer tokens (PEM, PKIX or PKCS1)
	JWTPublicKey string
	// APIKeys are either "<key>" for operator keys or "<organization_id>:<key>" for keys
	// limited to one organization
	APIKeys []string
}

// Claims are the bearer token claims. A token without org_id belongs to an operator.
type Claims struct {
	jwt.RegisteredClaims
	OrganizationID string `json:"org_id,omitempty"`
}

// Principal is the authenticated caller
type Principal struct {
	AuthType string
	Subject  string
	// OrganizationID limits the caller to one organization; empty for operators
	OrganizationID string
}

// Scoped reports whether the caller is limited to one organization
func (p Principal) Scoped() bool {
	return p.OrganizationID != ""
}

// CanAccess reports whether the caller may see or change data of an organization
func (p Principal) CanAccess(organizationID string) bool {
	return !p.Scoped() || p.OrganizationID == organizationID
}

// AuthResult holds the result of authentication
type AuthResult struct {
	Success   bool
	Principal Principal
	Error     error
}

type authenticator struct {
	// apiKeys maps each key to its organization, "" for operator keys
	apiKeys   map[string]string
	publicKey *rsa.PublicKey
	keyErr    error
}

func newAuthenticator(cfg AuthConfig) *authenticator {
	a := &authenticator{apiKeys: make(map[string]string)}
	for _, entry := range cfg.APIKeys {
		organizationID, key := parseAPIKey(entry)
		if key != "" {
			a.apiKeys[key] = organizationID
		}
	}
	if cfg.JWTPublicKey != "" {
		a.publicKey, a.keyErr = parseRSAPublicKey(cfg.JWTPublicKey)
	}
	return a
}

// parseAPIKey splits "<organization_id>:<key>"; an entry without a colon is an operator key
func parseAPIKey(entry string) (string, string) {
	entry = strings.TrimSpace(entry)
	i := strings.LastIndex(entry, ":")
	if i < 0 {
		return "", entry
	}
	organizationID := strings.TrimSpace(entry[:i])
	if organizationID == "" {
		return "", ""
	}
	return organizationID, strings.TrimSpace(entry[i+1:])
}

// Authenticate validates the Authorization header and returns the authentication result
func Authenticate(authHeader string, cfg AuthConfig) AuthResult {
	return newAuthenticator(cfg).authenticate(authHeader)
}

func (a *authenticator) authenticate(authHeader string) AuthResult {
	if authHeader == "" {
		return AuthResult{Error: errors.New("missing Authorization header")}
	}

	scheme, credentials, ok := strings.Cut(authHeader, " ")
	if !ok {
		return AuthResult{Error: errors.New("invalid Authorization header format")}
	}

	switch strings.ToLower(scheme) {
	case "bearer":
		claims, err := a.validateJWT(credentials)
		if err != nil {
			return AuthResult{Error: err}
		}
		return AuthResult{
			Success: true,
			Principal: Principal{
				AuthType:       AUTH_TYPE_JWT,
				Subject:        claims.Subject,
				OrganizationID: claims.OrganizationID,
			},
		}

	case "apikey":
		if len(a.apiKeys) == 0 {
			return AuthResult{Error: errors.New("no API keys configured")}
		}
		organizationID, ok := a.apiKeys[credentials]
		if !ok {
			return AuthResult{Error: errors.New("invalid API key")}
		}
		return AuthResult{
			Success: true,
			Principal: Principal{
				AuthType:       AUTH_TYPE_APIKEY,
				OrganizationID: organizationID,
			},
		}

	default:
		return AuthResult{Error: fmt.Errorf("unsupported authorization type: %s", scheme)}
	}
}

// Auth returns a gin middleware accepting "Bearer <RS256 JWT>" or "ApiKey <key>".
// The caller is stored under PRINCIPAL_KEY.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	a := newAuthenticator(cfg)
	if a.keyErr != nil {
		logger.Warn("JWT public key is unusable, bearer tokens will be rejected", zap.Error(a.keyErr))
	}

	return func(c *gin.Context) {
		result := a.authenticate(c.GetHeader("Authorization"))
		if !result.Success {
			logger.WarnCtx(c.Request.Context(), "Authentication failed",
				zap.Error(result.Error),
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponse("unauthorized", "Authentication failed", result.Error.Error()))
			return
		}

		ctx := logger.WithFields(c.Request.Context(),
			zap.String("auth_type", result.Principal.AuthType),
			zap.String("auth_organization_id", result.Principal.OrganizationID),
		)
		c.Request = c.Request.WithContext(ctx)
		c.Set(PRINCIPAL_KEY, result.Principal)

		logger.DebugCtx(ctx, "Authenticated API request", zap.String("subject", result.Principal.Subject))

		c.Next()
	}
}

// PrincipalFromContext returns the caller stored by Auth
func PrincipalFromContext(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(PRINCIPAL_KEY)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// validateJWT checks signature, algorithm, exp and nbf
func (a *authenticator) validateJWT(tokenString string) (*Claims, error) {
	if a.keyErr != nil {
		return nil, fmt.Errorf("failed to parse RSA public key: %w", a.keyErr)
	}
	if a.publicKey == nil {
		return nil, errors.New("JWT public key not configured")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.publicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// parseRSAPublicKey parses an RSA public key from PEM format
func parseRSAPublicKey(publicKeyPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, errors.New("failed to parse PEM block containing public key")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return x509.ParsePKCS1PublicKey(block.Bytes)
	}

	rsaKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not an RSA key")
	}

	return rsaKey, nil
}
