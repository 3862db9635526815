package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/pkg/market"
)

const actorContextKey = "actor"

// Claims are the bearer token claims. The subject is the actor reference.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for actor valid for ttl from now.
func IssueToken(secret string, actor *market.Actor, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is required")
	}
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken verifies an HS256 token against secret at the instant now.
func ParseToken(secret, tokenString string, now time.Time) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// authenticate resolves the bearer token to a known actor.
func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenString == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "bearer token required")
		}

		claims, err := ParseToken(s.JWTSecret, tokenString, s.Clock.Now())
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}

		actor, err := s.Actors.Actor(c.Request().Context(), claims.Subject)
		if err != nil {
			if market.IsNotFound(err) {
				return echo.NewHTTPError(http.StatusUnauthorized, fmt.Sprintf("unknown actor %s", claims.Subject))
			}
			return err
		}

		c.Set(actorContextKey, actor)
		return next(c)
	}
}

func actorFrom(c echo.Context) *market.Actor {
	return c.Get(actorContextKey).(*market.Actor)
}
