package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds every collector of the process; batch jobs dump it to a
// textfile, the server exposes it on /metrics.
var Registry = prometheus.NewRegistry()

var (
	SourceRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aed",
		Name:      "source_records_total",
		Help:      "Records produced by each source adapter",
	}, []string{"source"})

	SourceFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aed",
		Name:      "source_failures_total",
		Help:      "Source adapter fetches that returned no data because of an error",
	}, []string{"source"})

	SkippedRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aed",
		Name:      "source_skipped_total",
		Help:      "Source records dropped during normalization, by reason",
	}, []string{"source", "reason"})

	ReconciledRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "aed",
		Name:      "reconciled_records",
		Help:      "Records left after deduplication by coordinate key",
	})

	FallbackIDs = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aed",
		Name:      "fallback_ids_total",
		Help:      "Records that received a coordinate hash id",
	})

	Published = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aed",
		Name:      "publish_total",
		Help:      "Backend publish attempts by result",
	}, []string{"result"})

	CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "availability",
		Name:      "cache_hits_total",
		Help:      "Corpus strings answered from the extraction cache",
	})

	Extractions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "availability",
		Name:      "extractions_total",
		Help:      "Extraction outcomes per corpus string",
	}, []string{"result"})

	ExtractionRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "availability",
		Name:      "extraction_retries_total",
		Help:      "Retries issued against the generative service, by reason",
	}, []string{"reason"})

	Ingested = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aed",
		Name:      "ingested_total",
		Help:      "Records upserted through the ingestion endpoint",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		SourceRecords,
		SourceFailures,
		SkippedRecords,
		ReconciledRecords,
		FallbackIDs,
		Published,
		CacheHits,
		Extractions,
		ExtractionRetries,
		Ingested,
	)
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
