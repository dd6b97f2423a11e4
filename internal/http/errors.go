package http

import (
	"errors"
	"net/http"

	"github.com/jmehdipour/clipgate/internal/service/gate"
	"github.com/jmehdipour/clipgate/internal/service/registry"
	echo "github.com/labstack/echo/v4"
)

const (
	codeValidation       = "validation"
	codeInvalidCode      = "invalid_code"
	codeNotFound         = "not_found"
	codeAlreadySubmitted = "already_submitted"
	codeStorageFailure   = "storage_failure"
	codeUnauthorized     = "unauthorized"
	codeTooLarge         = "payload_too_large"
	codeInternal         = "internal"
)

func errorJSON(c echo.Context, status int, code string) error {
	return c.JSON(status, map[string]string{"error": code})
}

// serviceError maps a domain error to its HTTP response. Unknown errors are
// logged and reported as 500.
func serviceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, registry.ErrValidation):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": codeValidation, "message": err.Error()})
	case errors.Is(err, registry.ErrInvalidCode):
		return errorJSON(c, http.StatusNotFound, codeInvalidCode)
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, gate.ErrCustomerNotFound):
		return errorJSON(c, http.StatusNotFound, codeNotFound)
	case errors.Is(err, gate.ErrAlreadySubmitted):
		return errorJSON(c, http.StatusConflict, codeAlreadySubmitted)
	case errors.Is(err, gate.ErrStorageFailure):
		c.Logger().Errorf("artifact store failed: %v", err)
		return errorJSON(c, http.StatusBadGateway, codeStorageFailure)
	case errors.Is(err, gate.ErrEmptyPayload):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": codeValidation, "message": err.Error()})
	}
	c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	return errorJSON(c, http.StatusInternalServerError, codeInternal)
}
