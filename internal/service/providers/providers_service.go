package providers

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"

	"github.com/ougirez/aedsync/internal/domain"
	"github.com/ougirez/aedsync/internal/pkg/constants"
	"github.com/ougirez/aedsync/internal/pkg/logger"
	"github.com/ougirez/aedsync/internal/pkg/metrics"
	"github.com/ougirez/aedsync/internal/pkg/utils"
)

// Adapter turns one public geodata source into canonical records. A source
// outage yields an empty sequence, never an error.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context) iter.Seq[domain.AED]
}

// StatusError is a non-2xx answer from a source.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status code error: %d; %s", e.Code, e.Body)
}

// fetchJSON executes req and decodes a 2xx body into dst.
func fetchJSON(client *http.Client, req *http.Request, dst interface{}) (err error) {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", constants.ErrSourceUnavailable, err)
	}
	defer func() {
		closeErr := resp.Body.Close()
		if err == nil && closeErr != nil {
			err = fmt.Errorf("failed to close reader: %w", closeErr)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %w", constants.ErrSourceUnavailable, err)
	}

	// Проверяем статус ответа, он должен быть 2xx
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %w", constants.ErrSourceUnavailable, &StatusError{
			Code: resp.StatusCode,
			Body: snip(body),
		})
	}

	if err = utils.JSON.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: decode: %w", constants.ErrSourceUnavailable, err)
	}

	return nil
}

// unavailable logs the outage and stands in for the source's records.
func unavailable(ctx context.Context, source string, err error) iter.Seq[domain.AED] {
	logger.Errorf(ctx, "%s request failed: %s", source, err.Error())
	metrics.SourceFailures.WithLabelValues(source).Inc()

	return func(func(domain.AED) bool) {}
}

// counted wraps seq so each yielded record is counted for source.
func counted(source string, seq iter.Seq[domain.AED]) iter.Seq[domain.AED] {
	counter := metrics.SourceRecords.WithLabelValues(source)

	return func(yield func(domain.AED) bool) {
		for a := range seq {
			counter.Inc()
			if !yield(a) {
				return
			}
		}
	}
}

func snip(body []byte) string {
	if len(body) > constants.ResponseBodySnip {
		body = body[:constants.ResponseBodySnip]
	}
	return string(body)
}
