package providers

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ougirez/aedsync/internal/config"
	"github.com/ougirez/aedsync/internal/domain"
	"github.com/ougirez/aedsync/internal/pkg/constants"
	"github.com/ougirez/aedsync/internal/pkg/logger"
)

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	ID   int64       `json:"id"`
	Lat  float64     `json:"lat"`
	Lon  float64     `json:"lon"`
	Tags domain.Tags `json:"tags"`
}

// Overpass queries OSM nodes tagged as defibrillators inside the configured
// bounding boxes.
type Overpass struct {
	cfg    config.OverpassConfig
	client *http.Client
}

func NewOverpass(cfg config.OverpassConfig, client *http.Client) *Overpass {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Overpass{cfg: cfg, client: client}
}

func (o *Overpass) Name() string {
	return constants.SourceOverpass
}

func (o *Overpass) Fetch(ctx context.Context) iter.Seq[domain.AED] {
	form := url.Values{"data": {o.Query()}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return unavailable(ctx, o.Name(), err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp overpassResponse
	if err = fetchJSON(o.client, req, &resp); err != nil {
		return unavailable(ctx, o.Name(), err)
	}

	logger.Infof(ctx, "fetched %d AEDs from %s", len(resp.Elements), o.Name())

	return counted(o.Name(), func(yield func(domain.AED) bool) {
		for _, el := range resp.Elements {
			if !yield(domain.NewAED(el.ID, el.Lat, el.Lon, el.Tags, "addr:full", o.Name())) {
				return
			}
		}
	})
}

// Query renders the Overpass QL union: every tag filter over every bbox.
func (o *Overpass) Query() string {
	var b strings.Builder

	timeout := int(o.cfg.Timeout.Seconds())
	if timeout <= 0 {
		timeout = 60
	}
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n(\n", timeout)

	for _, box := range o.cfg.BBoxes {
		coords := make([]string, len(box))
		for i, v := range box {
			coords[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		for _, f := range o.cfg.Filters {
			fmt.Fprintf(&b, "  node[%q=%q](%s);\n", f.Key, f.Value, strings.Join(coords, ","))
		}
	}

	b.WriteString(");\nout body;\n")
	return b.String()
}
