// Package reconcile merges adapter outputs into one record per exact
// coordinate pair and backfills missing ids.
package reconcile

import (
	"context"
	"fmt"
	"iter"

	"github.com/ougirez/aedsync/internal/domain"
	"github.com/ougirez/aedsync/internal/pkg/logger"
	"github.com/ougirez/aedsync/internal/pkg/metrics"
)

// Precedence decides which record's attributes survive a merge-key clash.
type Precedence string

const (
	LastWins  Precedence = "last_wins"
	FirstWins Precedence = "first_wins"
)

func ParsePrecedence(s string) (Precedence, error) {
	switch p := Precedence(s); p {
	case LastWins, FirstWins:
		return p, nil
	case "":
		return LastWins, nil
	default:
		return "", fmt.Errorf("unknown precedence %q", s)
	}
}

type Service struct {
	precedence Precedence
}

func NewReconcileService(precedence Precedence) *Service {
	return &Service{precedence: precedence}
}

// Reconcile consumes the sequences in order and returns one record per merge
// key, in first-seen key order, every one with a non-zero id.
//
// The winning record replaces all attributes of the losing one. A provider id
// is never lost: when the winner carries none it inherits the loser's.
func (s *Service) Reconcile(ctx context.Context, seqs ...iter.Seq[domain.AED]) []domain.AED {
	index := make(map[string]int)
	merged := make([]domain.AED, 0)
	var total, clashes int

	for _, seq := range seqs {
		for a := range seq {
			total++
			key := a.MergeKey()

			i, ok := index[key]
			if !ok {
				index[key] = len(merged)
				merged = append(merged, a)
				continue
			}

			clashes++
			merged[i] = s.merge(merged[i], a)
		}
	}

	var backfilled int
	for i := range merged {
		if merged[i].ID == 0 {
			merged[i].ID = domain.FallbackID(merged[i].MergeKey())
			backfilled++
		}
	}

	metrics.ReconciledRecords.Set(float64(len(merged)))
	metrics.FallbackIDs.Add(float64(backfilled))
	logger.Infof(ctx, "reconciled %d records into %d (%d duplicates, %d fallback ids)", total, len(merged), clashes, backfilled)

	return merged
}

func (s *Service) merge(existing, incoming domain.AED) domain.AED {
	winner, loser := incoming, existing
	if s.precedence == FirstWins {
		winner, loser = existing, incoming
	}

	if winner.ID == 0 {
		winner.ID = loser.ID
	}
	return winner
}
