package controller

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ougirez/aedsync/internal/domain/dto"
	"github.com/ougirez/aedsync/internal/pkg/constants"
)

type availabilityQuery struct {
	Text string `query:"text" validate:"required"`
	At   string `query:"at"`
}

// GetAvailability answers whether a cached availability text means "open" at
// a moment (now by default), evaluated in the server's time zone.
func (c *Controller) GetAvailability(ctx echo.Context) error {
	var q availabilityQuery
	if err := ctx.Bind(&q); err != nil {
		return err
	}
	if err := ctx.Validate(&q); err != nil {
		return err
	}

	at := c.now()
	if q.At != "" {
		parsed, err := time.Parse(time.RFC3339, q.At)
		if err != nil {
			return fmt.Errorf("%w: at: %s", constants.ErrInvalidPayload, err.Error())
		}
		at = parsed
	}
	at = at.In(c.location)

	av, ok := c.availability.Lookup(ctx.Request().Context(), q.Text)
	if !ok {
		return constants.ErrNotCached
	}

	return ctx.JSON(http.StatusOK, dto.AvailabilityResponse{
		Availability: av,
		At:           at.Format(time.RFC3339),
		Open:         av.OpenAt(at),
	})
}
