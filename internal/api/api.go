package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
	_ "time/tzdata"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ougirez/aedsync/internal/api/controller"
	"github.com/ougirez/aedsync/internal/config"
	"github.com/ougirez/aedsync/internal/pkg/constants"
	"github.com/ougirez/aedsync/internal/pkg/logger"
	"github.com/ougirez/aedsync/internal/pkg/metrics"
)

type APIService struct {
	router *echo.Echo
}

// Serve blocks until the server stops; a graceful Shutdown is not an error.
func (svc *APIService) Serve(addr string) error {
	logger.Infof(context.Background(), "listening on %s", addr)
	if err := svc.router.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("echo.Start: %w", err)
	}
	return nil
}

func (svc *APIService) Shutdown(ctx context.Context) error {
	return svc.router.Shutdown(ctx)
}

func NewAPIService(aeds controller.AEDService, lookup controller.AvailabilityLookup, cfg config.ServerConfig) (*APIService, error) {
	tz := cfg.Timezone
	if tz == "" {
		tz = constants.DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}

	svc := &APIService{router: echo.New()}

	svc.router.HideBanner = true
	svc.router.Logger.SetLevel(log.WARN)
	svc.router.JSONSerializer = NewJSONSerializer()
	svc.router.Validator = NewValidator()
	svc.router.Binder = NewBinder()
	svc.router.HTTPErrorHandler = httpErrorHandler
	svc.router.Use(middleware.Recover())
	svc.router.Use(RequestIDMiddleware)
	svc.router.Use(middleware.Logger())
	svc.router.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: []string{echo.GET, echo.POST},
		AllowHeaders: []string{echo.HeaderContentType, constants.HeaderRequestID},
	}))

	cntrl := controller.NewController(aeds, lookup, loc)

	aed := svc.router.Group("/aed")
	aed.GET("", cntrl.ListAEDs)
	aed.GET("/:id", cntrl.GetAED)
	aed.POST("/update", cntrl.UpdateAEDs)
	aed.POST("/bulk-update", cntrl.UpdateAEDs)
	aed.GET("/availability", cntrl.GetAvailability)

	svc.router.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	return svc, nil
}
