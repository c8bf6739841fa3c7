package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/ougirez/aedsync/internal/domain"
	"github.com/ougirez/aedsync/internal/pkg/logger"
	"github.com/ougirez/aedsync/internal/pkg/store/xpgx"
)

var aedColumns = []string{
	"id", "latitude", "longitude", "name", "address", "emergency", "operator", "indoor",
	"access", "defibrillator_location", "level", "opening_hours", "phone", "wheelchair", "source",
	"foundation", "availability", "aed_webpage",
}

const upsertSuffix = `
on conflict (id)
do update
set
	latitude = excluded.latitude,
	longitude = excluded.longitude,
	name = excluded.name,
	address = excluded.address,
	emergency = excluded.emergency,
	operator = excluded.operator,
	indoor = excluded.indoor,
	access = excluded.access,
	defibrillator_location = excluded.defibrillator_location,
	level = excluded.level,
	opening_hours = excluded.opening_hours,
	phone = excluded.phone,
	wheelchair = excluded.wheelchair,
	source = excluded.source,
	foundation = excluded.foundation,
	availability = excluded.availability,
	aed_webpage = excluded.aed_webpage,
	updated_at = now()`

// UpsertAEDs writes all records in one transaction; either every chunk lands
// or none does.
func (s *store) UpsertAEDs(ctx context.Context, aeds []domain.AED) (int64, error) {
	var total int64

	err := s.pool.InTx(ctx, func(tx xpgx.DB) error {
		for _, query := range upsertQueries(aeds) {
			tag, err := xpgx.Execx(ctx, tx, query)
			if err != nil {
				logger.Errorf(ctx, "upsert aed chunk: %s", err.Error())
				return err
			}
			total += tag.RowsAffected()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("upsert aeds: %w", err)
	}

	return total, nil
}

func upsertQueries(aeds []domain.AED) []sq.InsertBuilder {
	queries := make([]sq.InsertBuilder, 0, len(aeds)/upsertChunkSize+1)

	for start := 0; start < len(aeds); start += upsertChunkSize {
		end := min(start+upsertChunkSize, len(aeds))

		query := builder().Insert(tableAEDLocations).Columns(aedColumns...)
		for _, a := range aeds[start:end] {
			query = query.Values(
				a.ID, a.Latitude, a.Longitude, a.Name, a.Address, a.Emergency, a.Operator, a.Indoor,
				a.Access, a.DefibrillatorLocation, a.Level, a.OpeningHours, a.Phone, a.Wheelchair, a.Source,
				a.Foundation, a.Availability, a.AEDWebpage,
			)
		}

		queries = append(queries, query.Suffix(upsertSuffix))
	}

	return queries
}

func (s *store) ListAEDs(ctx context.Context) ([]domain.AED, error) {
	query := builder().Select(aedColumns...).
		From(tableAEDLocations).
		OrderBy("id")

	selected, err := xpgx.Selectx[domain.AED](ctx, s.pool, query)
	if err != nil {
		logger.Error(ctx, err.Error())
		return nil, err
	}

	return selected, nil
}

func (s *store) GetAED(ctx context.Context, id int64) (domain.AED, error) {
	query := builder().Select(aedColumns...).
		From(tableAEDLocations).
		Where(sq.Eq{"id": id})

	selected, err := xpgx.Getx[domain.AED](ctx, s.pool, query)
	if err != nil {
		return domain.AED{}, wrapErr(err)
	}

	return selected, nil
}
