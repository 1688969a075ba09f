package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iarcanar99/MBB-Dalamud-sub001/internal/auth"
	"github.com/iarcanar99/MBB-Dalamud-sub001/internal/metrics"
)

const claimsKey = "auth_claims"

// Metrics records Prometheus metrics per route template
func Metrics(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		status := c.Response().Status
		if he, ok := err.(*echo.HTTPError); ok {
			status = he.Code
		}
		path := c.Path()
		if path == "" {
			path = "unmatched"
		}

		metrics.HTTPRequestsTotal.WithLabelValues(
			c.Request().Method, path, strconv.Itoa(status),
		).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(
			c.Request().Method, path,
		).Observe(time.Since(start).Seconds())

		return err
	}
}

// tokenFromRequest reads a bearer token from the Authorization header, or
// from the token query parameter for browser websockets.
func tokenFromRequest(c echo.Context) string {
	if token, ok := auth.BearerToken(c.Request().Header.Get("Authorization")); ok {
		return token
	}
	return c.QueryParam("token")
}

// RequireToken rejects requests without a valid token. A nil issuer
// disables the check.
func RequireToken(tokens *auth.TokenIssuer, control bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if tokens == nil {
				return next(c)
			}

			token := tokenFromRequest(c)
			if token == "" {
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "missing_token",
					Message: "JWT token is required",
				})
			}

			claims, err := tokens.ValidateToken(token)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "invalid_token",
					Message: "Invalid or expired JWT token",
				})
			}

			if control && !claims.CanControl() {
				return c.JSON(http.StatusForbidden, ErrorResponse{
					Error:   "invalid_role",
					Message: "A control token is required",
				})
			}

			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

// requester names the authenticated client for logs
func requester(c echo.Context) string {
	if claims, ok := c.Get(claimsKey).(*auth.JWTClaims); ok {
		return claims.ClientID
	}
	return "anonymous"
}
