package providers

import (
	"context"
	"iter"
	"net/http"
	"strings"

	"github.com/ougirez/aedsync/internal/config"
	"github.com/ougirez/aedsync/internal/domain"
	"github.com/ougirez/aedsync/internal/pkg/constants"
	"github.com/ougirez/aedsync/internal/pkg/logger"
)

type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	Geometry struct {
		// GeoJSON order: [lon, lat]
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties domain.Tags `json:"properties"`
}

// OpenAEDMap downloads the per-country GeoJSON export. Its features carry no
// numeric id, so every record leaves here with ID 0.
type OpenAEDMap struct {
	cfg    config.OpenAEDMapConfig
	client *http.Client
}

func NewOpenAEDMap(cfg config.OpenAEDMapConfig, client *http.Client) *OpenAEDMap {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &OpenAEDMap{cfg: cfg, client: client}
}

func (o *OpenAEDMap) Name() string {
	return constants.SourceOpenAEDMap
}

func (o *OpenAEDMap) URL() string {
	return strings.ReplaceAll(o.cfg.URL, "{country}", o.cfg.Country)
}

func (o *OpenAEDMap) Fetch(ctx context.Context) iter.Seq[domain.AED] {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.URL(), nil)
	if err != nil {
		return unavailable(ctx, o.Name(), err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	var fc featureCollection
	if err = fetchJSON(o.client, req, &fc); err != nil {
		return unavailable(ctx, o.Name(), err)
	}

	logger.Infof(ctx, "fetched %d AEDs from %s", len(fc.Features), o.Name())

	return counted(o.Name(), func(yield func(domain.AED) bool) {
		for _, f := range fc.Features {
			if len(f.Geometry.Coordinates) < 2 {
				logger.Warnf(ctx, "%s: skipping feature without point coordinates", o.Name())
				continue
			}
			lon, lat := f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]
			if !yield(domain.NewAED(0, lat, lon, f.Properties, "address", o.Name())) {
				return
			}
		}
	})
}
