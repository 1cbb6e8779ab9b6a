package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/servicehub/internal/lifecycle"
	"github.com/sudo-init-do/servicehub/internal/user"
)

// Claims carried by identity tokens.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for the given principal.
func IssueToken(secret string, u user.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: u.ID,
		Role:   string(u.Role),
		Name:   u.Name,
		Email:  u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	return signed, errors.Wrap(err, "sign token")
}

// Auth verifies bearer tokens and mirrors their principal into the user store.
type Auth struct {
	secret []byte
	users  user.Store
}

func NewAuth(secret string, users user.Store) *Auth {
	return &Auth{secret: []byte(secret), users: users}
}

func (a *Auth) parse(header string) (*Claims, error) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return nil, errors.New("invalid Authorization format")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(header[len(prefix):], claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}
	if claims.UserID == "" || !lifecycle.Role(claims.Role).Valid() {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// JWTMiddleware sets user_id, role and user on the context. The stored role
// wins over the token's once the principal is known locally.
func (a *Auth) JWTMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing Authorization header"})
		}
		claims, err := a.parse(authHeader)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
		}

		u, err := a.users.EnsureUser(c.Request().Context(), &user.User{
			ID:        claims.UserID,
			Name:      claims.Name,
			Email:     claims.Email,
			Role:      lifecycle.Role(claims.Role),
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			log.Error().Err(err).Str("user_id", claims.UserID).Msg("mirror principal")
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not load user"})
		}
		if u.IsBlocked {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "account suspended"})
		}

		c.Set("user_id", u.ID)
		c.Set("role", string(u.Role))
		c.Set("user", u)
		return next(c)
	}
}

// ActorFrom returns the authenticated principal set by JWTMiddleware.
func ActorFrom(c echo.Context) (lifecycle.Actor, bool) {
	uid, _ := c.Get("user_id").(string)
	role, _ := c.Get("role").(string)
	if uid == "" {
		return lifecycle.Actor{}, false
	}
	return lifecycle.Actor{UserID: uid, Role: lifecycle.Role(role)}, true
}
