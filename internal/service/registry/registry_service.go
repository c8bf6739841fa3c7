// Package registry syncs the iSaveLives registry into aed_locations and
// writes the dataset the availability batch reads its corpus from.
package registry

import (
	"context"
	"fmt"

	"github.com/ougirez/aedsync/internal/domain"
	"github.com/ougirez/aedsync/internal/pkg/constants"
	"github.com/ougirez/aedsync/internal/pkg/logger"
	"github.com/ougirez/aedsync/internal/pkg/utils"
)

type Source interface {
	Name() string
	Records(ctx context.Context) ([]domain.AED, error)
}

type AEDService interface {
	Upsert(ctx context.Context, aeds []domain.AED) (int64, error)
	List(ctx context.Context) ([]domain.AED, error)
}

// Result summarizes one sync.
type Result struct {
	Records  int
	Upserted int64
	Fallback bool
	Texts    int
}

type Service struct {
	source     Source
	aeds       AEDService
	corpusPath string
}

func NewRegistryService(source Source, aeds AEDService, corpusPath string) *Service {
	return &Service{
		source:     source,
		aeds:       aeds,
		corpusPath: corpusPath,
	}
}

// Run fetches the registry and upserts it. When the registry is down the rows
// already in the database stand in for it, and nothing is written back. Either
// way the dataset is saved to the corpus path.
func (s *Service) Run(ctx context.Context) (Result, error) {
	var res Result

	aeds, err := s.source.Records(ctx)
	if err != nil {
		logger.Errorf(ctx, "error fetching from %s: %s", s.source.Name(), err.Error())
		logger.Warnf(ctx, "%s failed, attempting to use existing database data", s.source.Name())

		aeds, err = s.aeds.List(ctx)
		if err != nil {
			return res, fmt.Errorf("aeds.List: %w", err)
		}
		if len(aeds) == 0 {
			return res, fmt.Errorf("%w: no data available in database", constants.ErrSourceUnavailable)
		}

		res.Fallback = true
		logger.Infof(ctx, "using %d AEDs from database as fallback", len(aeds))
	} else {
		logger.Infof(ctx, "syncing %d AEDs", len(aeds))

		res.Upserted, err = s.aeds.Upsert(ctx, aeds)
		if err != nil {
			return res, fmt.Errorf("aeds.Upsert: %w", err)
		}
	}
	res.Records = len(aeds)

	if err = s.writeCorpus(aeds); err != nil {
		return res, err
	}
	res.Texts = countTexts(aeds)

	logger.Infof(ctx, "registry sync complete: %d records, %d availability texts written to %s",
		res.Records, res.Texts, s.corpusPath)
	return res, nil
}

func (s *Service) writeCorpus(aeds []domain.AED) error {
	data, err := utils.MarshalPretty(aeds)
	if err != nil {
		return fmt.Errorf("marshal corpus: %w", err)
	}
	if err = utils.WriteFileAtomic(s.corpusPath, data, 0o644); err != nil {
		return fmt.Errorf("write corpus: %w", err)
	}
	return nil
}

func countTexts(aeds []domain.AED) int {
	seen := make(map[string]struct{})
	for _, a := range aeds {
		if a.Availability != "" {
			seen[a.Availability] = struct{}{}
		}
	}
	return len(seen)
}
