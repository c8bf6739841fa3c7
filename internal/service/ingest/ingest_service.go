// Package ingest drives the geodata pipeline: adapters, reconciler, snapshot,
// publisher.
package ingest

import (
	"context"
	"fmt"
	"iter"

	"github.com/ougirez/aedsync/internal/domain"
	"github.com/ougirez/aedsync/internal/pkg/logger"
	"github.com/ougirez/aedsync/internal/pkg/utils"
	"github.com/ougirez/aedsync/internal/service/providers"
)

type Reconciler interface {
	Reconcile(ctx context.Context, seqs ...iter.Seq[domain.AED]) []domain.AED
}

type Publisher interface {
	Publish(ctx context.Context, aeds []domain.AED) error
}

type Service struct {
	adapters     []providers.Adapter
	reconciler   Reconciler
	publisher    Publisher
	snapshotPath string
}

// NewIngestService keeps adapters in the given order; with last-wins
// precedence the later adapter's attributes win on clashes.
func NewIngestService(reconciler Reconciler, publisher Publisher, snapshotPath string, adapters ...providers.Adapter) *Service {
	return &Service{
		adapters:     adapters,
		reconciler:   reconciler,
		publisher:    publisher,
		snapshotPath: snapshotPath,
	}
}

// Run fetches every source one after another, reconciles and publishes.
// Source outages are absorbed by the adapters; only snapshot and publish
// failures are returned.
func (s *Service) Run(ctx context.Context) ([]domain.AED, error) {
	seqs := make([]iter.Seq[domain.AED], 0, len(s.adapters))
	for _, a := range s.adapters {
		seqs = append(seqs, a.Fetch(logger.WithFields(ctx, "source", a.Name())))
	}

	aeds := s.reconciler.Reconcile(ctx, seqs...)

	if s.snapshotPath != "" {
		if err := s.writeSnapshot(aeds); err != nil {
			logger.Errorf(ctx, "writeSnapshot: %s", err.Error())
			return aeds, err
		}
		logger.Infof(ctx, "dataset snapshot written to %s", s.snapshotPath)
	}

	if err := s.publisher.Publish(ctx, aeds); err != nil {
		return aeds, fmt.Errorf("publisher.Publish: %w", err)
	}

	return aeds, nil
}

func (s *Service) writeSnapshot(aeds []domain.AED) error {
	if aeds == nil {
		aeds = []domain.AED{}
	}

	data, err := utils.MarshalPretty(aeds)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	return utils.WriteFileAtomic(s.snapshotPath, data, 0o644)
}
