package api

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ougirez/aedsync/internal/pkg/constants"
	"github.com/ougirez/aedsync/internal/pkg/logger"
)

// RequestIDMiddleware tags the request context logger with a request id,
// reusing the caller's X-Request-ID when present.
func RequestIDMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(constants.HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(constants.CtxKeyRequestID, id)
		c.Response().Header().Set(constants.HeaderRequestID, id)

		ctx := logger.WithFields(c.Request().Context(), constants.CtxKeyRequestID, id)
		c.SetRequest(c.Request().WithContext(ctx))

		return next(c)
	}
}
