package controller

import (
	"context"
	"time"

	"github.com/ougirez/aedsync/internal/domain"
)

type AEDService interface {
	Upsert(ctx context.Context, aeds []domain.AED) (int64, error)
	List(ctx context.Context) ([]domain.AED, error)
	Get(ctx context.Context, id int64) (domain.AED, error)
}

type AvailabilityLookup interface {
	Lookup(ctx context.Context, text string) (domain.Availability, bool)
}

type Controller struct {
	aeds         AEDService
	availability AvailabilityLookup
	location     *time.Location
	now          func() time.Time
}

func NewController(aeds AEDService, availability AvailabilityLookup, location *time.Location) *Controller {
	return &Controller{
		aeds:         aeds,
		availability: availability,
		location:     location,
		now:          time.Now,
	}
}
