package controller

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ougirez/aedsync/internal/domain/dto"
	"github.com/ougirez/aedsync/internal/pkg/constants"
)

func (c *Controller) ListAEDs(ctx echo.Context) error {
	aeds, err := c.aeds.List(ctx.Request().Context())
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, dto.ListResponse{Success: true, Data: aeds})
}

func (c *Controller) GetAED(ctx echo.Context) error {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: id must be an integer", constants.ErrInvalidPayload)
	}

	a, err := c.aeds.Get(ctx.Request().Context(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, a)
}

// UpdateAEDs serves both /aed/update and /aed/bulk-update.
func (c *Controller) UpdateAEDs(ctx echo.Context) error {
	var req dto.Envelope
	if err := ctx.Bind(&req); err != nil {
		return err
	}
	if err := ctx.Validate(&req); err != nil {
		return err
	}

	n, err := c.aeds.Upsert(ctx.Request().Context(), req.AEDs)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, dto.UpdateResponse{
		Success:  true,
		Message:  fmt.Sprintf("AED data updated: %d records received", len(req.AEDs)),
		Upserted: n,
	})
}
