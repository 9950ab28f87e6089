package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/learningreport/account-service/internal/api/middleware"
	"github.com/learningreport/account-service/internal/core/domain"
)

// ctxClaims extracts the claims injected by the Auth middleware. Missing claims
// mean the route was mounted without Auth, which is still answered with 401.
func ctxClaims(c echo.Context) (domain.Claims, error) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok || claims.Email == "" {
		return domain.Claims{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return claims, nil
}
