package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// AdminSecretHeader carries the raw admin secret.
const AdminSecretHeader = "X-Admin-Secret"

func bearerToken(c echo.Context) (string, bool) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// AdminMiddleware admits requests carrying the admin secret header or a bearer
// token whose subject is AdminSubject.
func (a *Authenticator) AdminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if secret := c.Request().Header.Get(AdminSecretHeader); secret != "" {
			if err := a.CheckAdminSecret(secret); err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid admin secret")
			}
			return next(c)
		}

		tokenString, ok := bearerToken(c)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "Admin credentials required")
		}
		sub, err := a.ParseToken(tokenString)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
		}
		if sub != AdminSubject {
			return echo.NewHTTPError(http.StatusForbidden, "Admin access required")
		}
		return next(c)
	}
}

// UserMiddleware stores the user ID of a valid bearer token in the context.
// Requests without a token pass through anonymously; a malformed or invalid
// token is rejected.
func (a *Authenticator) UserMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Header.Get("Authorization") == "" {
			return next(c)
		}
		tokenString, ok := bearerToken(c)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
		}
		sub, err := a.ParseToken(tokenString)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
		}
		if userID, err := uuid.Parse(sub); err == nil {
			c.Set(string(UserIDKey), userID)
		}
		return next(c)
	}
}

// GetUserIDFromContext helper to retrieve the user ID
func GetUserIDFromContext(c echo.Context) (uuid.UUID, error) {
	val := c.Get(string(UserIDKey))
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil, errors.New("user ID not found in context")
	}
	return id, nil
}
