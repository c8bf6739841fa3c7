package providers

import (
	"context"
	"fmt"
	"iter"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/ougirez/aedsync/internal/config"
	"github.com/ougirez/aedsync/internal/domain"
	"github.com/ougirez/aedsync/internal/pkg/constants"
	"github.com/ougirez/aedsync/internal/pkg/logger"
	"github.com/ougirez/aedsync/internal/pkg/metrics"
)

const (
	skipInvalidID     = "invalid_id"
	skipDuplicateID   = "duplicate_id"
	skipInvalidCoords = "invalid_coords"
)

// ISaveLives reads the national AED registry. Unlike the OSM-derived sources
// it carries the registry id, the operating foundation and the free-text
// availability of every device.
type ISaveLives struct {
	cfg    config.ISaveLivesConfig
	client *http.Client
}

// NewISaveLives fails with constants.ErrMissingCredential when no API key is set.
func NewISaveLives(cfg config.ISaveLivesConfig, client *http.Client) (*ISaveLives, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: set %s", constants.ErrMissingCredential, constants.EnvISaveLivesKey)
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &ISaveLives{cfg: cfg, client: client}, nil
}

func (s *ISaveLives) Name() string {
	return constants.SourceISaveLives
}

// Records downloads and normalizes the registry. Unlike Fetch it reports the
// failure, so a caller can fall back to data it already has.
func (s *ISaveLives) Records(ctx context.Context) ([]domain.AED, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", constants.ErrSourceUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(constants.HeaderAPIKey, s.cfg.APIKey)

	// ответ обязан быть массивом, объект не декодируется в []Tags
	var items []domain.Tags
	if err = fetchJSON(s.client, req, &items); err != nil {
		return nil, err
	}

	logger.Infof(ctx, "fetched %d AEDs from %s", len(items), s.Name())
	return s.transform(ctx, items), nil
}

func (s *ISaveLives) Fetch(ctx context.Context) iter.Seq[domain.AED] {
	aeds, err := s.Records(ctx)
	if err != nil {
		return unavailable(ctx, s.Name(), err)
	}
	return counted(s.Name(), slices.Values(aeds))
}

// transform keeps the first record of every id and drops records whose id or
// coordinates do not parse.
func (s *ISaveLives) transform(ctx context.Context, items []domain.Tags) []domain.AED {
	out := make([]domain.AED, 0, len(items))
	seen := make(map[int64]struct{}, len(items))
	skipped := map[string]int{}

	skip := func(reason, format string, args ...interface{}) {
		skipped[reason]++
		metrics.SkippedRecords.WithLabelValues(s.Name(), reason).Inc()
		logger.Warnf(ctx, "skipped: "+format, args...)
	}

	for _, item := range items {
		id, ok := parseID(item["AED_ID"])
		if !ok {
			skip(skipInvalidID, "invalid AED_ID %v", item["AED_ID"])
			continue
		}
		if _, dup := seen[id]; dup {
			skip(skipDuplicateID, "duplicate AED_ID %d", id)
			continue
		}
		seen[id] = struct{}{}

		lat, latOK := parseNumber(item["latitude"])
		lon, lonOK := parseNumber(item["longitude"])
		if !latOK || !lonOK {
			skip(skipInvalidCoords, "invalid coordinates for AED %d", id)
			continue
		}

		a := domain.NewAED(id, lat, lon, item, "address", s.Name())
		a.Foundation = item.String("foundation", "")
		a.Availability = strings.TrimSpace(item.String("availability", ""))
		a.AEDWebpage = item.String("aed_webpage", "")
		out = append(out, a)
	}

	if total := skipped[skipInvalidID] + skipped[skipDuplicateID] + skipped[skipInvalidCoords]; total > 0 {
		logger.Warnf(ctx, "skipped %d records: %d invalid ids, %d invalid coords, %d duplicates",
			total, skipped[skipInvalidID], skipped[skipInvalidCoords], skipped[skipDuplicateID])
	}

	return out
}

// parseID accepts JSON numbers and numeric strings. Zero and negative ids are
// rejected: zero means "no id" for a canonical record.
func parseID(v interface{}) (int64, bool) {
	var id int64
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return 0, false
		}
		id = int64(val)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return 0, false
		}
		id = n
	default:
		return 0, false
	}
	return id, id > 0
}

func parseNumber(v interface{}) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
