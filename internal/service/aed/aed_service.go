package aed

import (
	"context"
	"fmt"

	"github.com/ougirez/aedsync/internal/domain"
	"github.com/ougirez/aedsync/internal/pkg/logger"
	"github.com/ougirez/aedsync/internal/pkg/metrics"
	"github.com/ougirez/aedsync/internal/pkg/store"
)

// Service is the server side of the publish step: it persists what the
// publisher sends and serves it back.
type Service struct {
	store store.Store
}

func NewAEDService(store store.Store) *Service {
	return &Service{store: store}
}

// Upsert stores the records keyed by id. When a payload repeats an id the
// last occurrence wins, as one INSERT ... ON CONFLICT cannot touch a row twice.
func (s *Service) Upsert(ctx context.Context, aeds []domain.AED) (int64, error) {
	unique := dedupByID(aeds)
	if dropped := len(aeds) - len(unique); dropped > 0 {
		logger.Warnf(ctx, "payload repeats %d ids, keeping the last occurrence", dropped)
	}
	if len(unique) == 0 {
		return 0, nil
	}

	n, err := s.store.UpsertAEDs(ctx, unique)
	if err != nil {
		return 0, fmt.Errorf("store.UpsertAEDs: %w", err)
	}

	metrics.Ingested.Add(float64(len(unique)))
	logger.Infof(ctx, "upserted %d AEDs", len(unique))
	return n, nil
}

func (s *Service) List(ctx context.Context) ([]domain.AED, error) {
	aeds, err := s.store.ListAEDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("store.ListAEDs: %w", err)
	}
	if aeds == nil {
		aeds = []domain.AED{}
	}

	return aeds, nil
}

func (s *Service) Get(ctx context.Context, id int64) (domain.AED, error) {
	a, err := s.store.GetAED(ctx, id)
	if err != nil {
		return domain.AED{}, fmt.Errorf("store.GetAED: %w", err)
	}

	return a, nil
}

func dedupByID(aeds []domain.AED) []domain.AED {
	pos := make(map[int64]int, len(aeds))
	out := make([]domain.AED, 0, len(aeds))

	for _, a := range aeds {
		if i, ok := pos[a.ID]; ok {
			out[i] = a
			continue
		}
		pos[a.ID] = len(out)
		out = append(out, a)
	}

	return out
}
