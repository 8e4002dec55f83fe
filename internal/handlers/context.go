package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/threadloom/backend/internal/apperr"
	"github.com/threadloom/backend/internal/models"
)

// getUserIDFromContext returns the authenticated user id, or 0 for an
// anonymous request.
func getUserIDFromContext(c echo.Context) uint {
	claims, ok := c.Get("user").(*models.JwtCustomClaims)
	if !ok {
		return 0
	}
	return claims.UserID
}

// httpError maps the error taxonomy to HTTP statuses. Internal errors
// surface an opaque message only.
func httpError(err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case apperr.KindConflict:
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case apperr.KindBadRequest:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case apperr.KindUnauthorized:
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
