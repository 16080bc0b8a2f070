package middleware

import (
	"errors"
	"strings"

	"github.com/InboxGenie/IG-Gmail-MCP/core/domain"
	"github.com/InboxGenie/IG-Gmail-MCP/pkg/apperr"
	"github.com/InboxGenie/IG-Gmail-MCP/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	localUserKey   = "user_key"
	localEmail     = "email"
	localRequestID = "request_id"
)

// Claims are the bearer token claims the API understands. A token names its
// account either by address or by the precomputed partition key.
type Claims struct {
	Email     string `json:"email,omitempty"`
	EmailHash string `json:"email_hash,omitempty"`
	jwt.RegisteredClaims
}

// UserKey resolves the partition key the token grants access to.
func (c *Claims) UserKey() string {
	if c.EmailHash != "" {
		return strings.ToLower(c.EmailHash)
	}
	if c.Email != "" {
		return domain.UserKeyFromEmail(c.Email)
	}
	return ""
}

// JWTAuth verifies HS256 bearer tokens and stores the caller's user key.
func JWTAuth(secret string) fiber.Handler {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())

	return func(c *fiber.Ctx) error {
		raw, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return apperr.Unauthorized("missing bearer token")
		}

		var claims Claims
		_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) { return key, nil })
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return apperr.New(apperr.CodeTokenExpired, "token expired", fiber.StatusUnauthorized)
			}
			logger.WithContext(c.UserContext()).WithError(err).Debug("[Auth] token rejected")
			return apperr.InvalidToken("invalid token")
		}

		userKey := claims.UserKey()
		if userKey == "" {
			return apperr.InvalidToken("token names no account")
		}

		c.Locals(localUserKey, userKey)
		c.Locals(localEmail, claims.Email)
		c.SetUserContext(logger.ContextWithUserKey(c.UserContext(), userKey))
		return c.Next()
	}
}

// GetUserKey returns the authenticated caller's user key, or "".
func GetUserKey(c *fiber.Ctx) string {
	key, _ := c.Locals(localUserKey).(string)
	return key
}

// GetEmail returns the address from the token, if it carried one.
func GetEmail(c *fiber.Ctx) string {
	email, _ := c.Locals(localEmail).(string)
	return email
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
