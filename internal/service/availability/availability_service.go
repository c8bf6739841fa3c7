// Package availability runs the extraction batch: corpus, cache, extractor.
package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/ougirez/aedsync/internal/domain"
	"github.com/ougirez/aedsync/internal/pkg/logger"
	"github.com/ougirez/aedsync/internal/pkg/metrics"
)

type Extractor interface {
	Extract(ctx context.Context, text string) (*domain.Availability, error)
}

// Report summarizes one batch run.
type Report struct {
	Total     int
	Cached    int
	New       int
	Retry     int
	Extracted int
	Failed    int
}

type Service struct {
	cache     *Cache
	extractor Extractor
	delay     time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewAvailabilityService(cache *Cache, extractor Extractor, delay time.Duration) *Service {
	return &Service{
		cache:     cache,
		extractor: extractor,
		delay:     delay,
		sleep:     sleepCtx,
	}
}

// Run extracts every corpus text that has no valid cache entry. A failed
// text is skipped and leaves no entry; every success is persisted before the
// next text is touched. The delay separates consecutive texts, cached or not.
func (s *Service) Run(ctx context.Context, corpus []string) (Report, error) {
	entries := s.cache.Load(ctx)
	report := analyse(entries, corpus)

	logger.Info(ctx, "availability analysis",
		"total", report.Total, "cached", report.Cached, "new", report.New, "retry", report.Retry)
	if report.New+report.Retry == 0 && len(corpus) > 1 && s.delay > 0 {
		logger.Infof(ctx, "nothing to extract; the %s delay between items still applies (about %s in total)",
			s.delay, time.Duration(len(corpus)-1)*s.delay)
	}

	for i, text := range corpus {
		if i > 0 {
			if err := s.sleep(ctx, s.delay); err != nil {
				return report, err
			}
		}

		itemCtx := logger.WithFields(ctx, "item", fmt.Sprintf("%d/%d", i+1, len(corpus)))
		logger.Debugf(itemCtx, "processing %q", text)

		if cached(entries, text) {
			metrics.CacheHits.Inc()
			logger.Debugf(itemCtx, "result found in cache, skipping")
			continue
		}

		av, err := s.extractor.Extract(itemCtx, text)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Failed++
			metrics.Extractions.WithLabelValues("failed").Inc()
			logger.Errorf(itemCtx, "extraction failed for %q: %s", text, err.Error())
			continue
		}

		entries[text] = *av
		if err = s.cache.Save(entries); err != nil {
			return report, fmt.Errorf("cache.Save: %w", err)
		}

		report.Extracted++
		metrics.Extractions.WithLabelValues("ok").Inc()
		logger.Infof(itemCtx, "extracted %q: status=%s", text, av.Status)
	}

	logger.Info(ctx, "availability batch complete",
		"extracted", report.Extracted, "failed", report.Failed, "cache_size", len(entries))

	return report, nil
}

func analyse(entries map[string]domain.Availability, corpus []string) Report {
	r := Report{Total: len(corpus)}
	for _, text := range corpus {
		_, present := entries[text]
		switch {
		case cached(entries, text):
			r.Cached++
		case present:
			r.Retry++
		default:
			r.New++
		}
	}
	return r
}

// cached reports a usable entry; entries that no longer validate (e.g. legacy
// error/pending markers) are extracted again.
func cached(entries map[string]domain.Availability, text string) bool {
	av, ok := entries[text]
	if !ok {
		return false
	}
	return av.Validate() == nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
