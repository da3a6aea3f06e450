// Package handler implements the HTTP surface of the storage service.
// Handlers bind and validate request bodies, delegate to the service
// layer and translate store sentinel errors into HTTP responses.
// Success payloads always carry an identifying field (an id or a
// hierarchical path); failures carry "error", except repeat disposals
// which carry "message".
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/openlims/sample-storage/internal/store"
)

// respondError maps a service error to its HTTP response.  Recoverable
// races (occupied slot, repeat disposal) are expected under multi-user
// load and are not logged as faults.
func respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, store.ErrAlreadyDisposed):
		// Callers treat a repeat disposal as a benign race; the message
		// field is the agreed signal.
		return c.JSON(http.StatusBadRequest, echo.Map{"message": store.ErrAlreadyDisposed.Error()})
	case errors.Is(err, store.ErrOccupied),
		errors.Is(err, store.ErrAlreadyAssigned),
		errors.Is(err, store.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, store.ErrLocationNotFound),
		errors.Is(err, store.ErrSampleItemNotFound),
		errors.Is(err, store.ErrAssignmentNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, store.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	default:
		logrus.WithError(err).Error("request failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// bindAndValidate decodes the JSON body into dst and runs the request
// validator.  A false return means the error response has been written.
func bindAndValidate(c echo.Context, dst interface{}) bool {
	if err := c.Bind(dst); err != nil {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
		return false
	}
	if err := c.Validate(dst); err != nil {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		return false
	}
	return true
}

// pathID parses the :id route parameter.
func pathID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
