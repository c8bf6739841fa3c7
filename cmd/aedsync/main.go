package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ougirez/aedsync/internal/api"
	"github.com/ougirez/aedsync/internal/config"
	"github.com/ougirez/aedsync/internal/pkg/constants"
	"github.com/ougirez/aedsync/internal/pkg/logger"
	"github.com/ougirez/aedsync/internal/pkg/metrics"
	"github.com/ougirez/aedsync/internal/pkg/store"
	"github.com/ougirez/aedsync/internal/pkg/store/xpgx"
	"github.com/ougirez/aedsync/internal/service/aed"
	"github.com/ougirez/aedsync/internal/service/availability"
	"github.com/ougirez/aedsync/internal/service/extraction"
	"github.com/ougirez/aedsync/internal/service/ingest"
	"github.com/ougirez/aedsync/internal/service/providers"
	"github.com/ougirez/aedsync/internal/service/publisher"
	"github.com/ougirez/aedsync/internal/service/reconcile"
	"github.com/ougirez/aedsync/internal/service/registry"
)

const usage = `usage: aedsync [-config file.yaml] <command>

commands:
  sync          fetch AEDs from all sources, reconcile and publish them
  registry      sync the iSaveLives registry into the database and write the
                availability corpus
  availability  extract structured availability for uncached corpus texts
  serve         run the ingestion API
`

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	if err = logger.Init(cfg.Log.Level); err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithFields(ctx, "job", command, "run_id", uuid.NewString())

	switch command {
	case "sync":
		err = runSync(ctx, cfg)
	case "registry":
		err = runRegistry(ctx, cfg)
	case "availability":
		err = runAvailability(ctx, cfg)
	case "serve":
		err = runServe(ctx, cfg)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if command != "serve" {
		if mErr := metrics.WriteTextfile(cfg.Metrics.Textfile); mErr != nil {
			logger.Errorf(ctx, "metrics: %s", mErr.Error())
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		stop()
		logger.Fatal(ctx, err)
	}
}

func runSync(ctx context.Context, cfg *config.Config) error {
	precedence, err := reconcile.ParsePrecedence(cfg.Reconcile.Precedence)
	if err != nil {
		return err
	}

	adapters := []providers.Adapter{
		providers.NewOverpass(cfg.Sources.Overpass, nil),
		providers.NewOpenAEDMap(cfg.Sources.OpenAEDMap, nil),
	}
	if registrySrc, rErr := providers.NewISaveLives(cfg.Sources.ISaveLives, nil); rErr == nil {
		adapters = append(adapters, registrySrc)
	} else {
		logger.Infof(ctx, "%s source disabled: %s", constants.SourceISaveLives, rErr.Error())
	}

	svc := ingest.NewIngestService(
		reconcile.NewReconcileService(precedence),
		publisher.NewPublisherService(cfg.Backend, nil),
		cfg.Ingest.SnapshotPath,
		adapters...,
	)

	_, err = svc.Run(ctx)
	return err
}

func runRegistry(ctx context.Context, cfg *config.Config) error {
	source, err := providers.NewISaveLives(cfg.Sources.ISaveLives, nil)
	if err != nil {
		return err
	}

	pool, err := xpgx.New(ctx, cfg.Server.DatabaseDSN, 0)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err = store.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	svc := registry.NewRegistryService(source, aed.NewAEDService(store.NewStore(pool)), cfg.Availability.CorpusPath)
	_, err = svc.Run(ctx)
	return err
}

func runAvailability(ctx context.Context, cfg *config.Config) error {
	client, err := extraction.NewClient(cfg.Extraction, nil)
	if err != nil {
		return err
	}
	if _, err = client.SelectModel(ctx); err != nil {
		return err
	}

	corpus, err := availability.LoadCorpus(cfg.Availability.CorpusPath)
	if err != nil {
		return err
	}
	logger.Infof(ctx, "found %d unique availability strings to process", len(corpus))

	svc := availability.NewAvailabilityService(
		availability.NewCache(cfg.Availability.CachePath),
		client,
		cfg.Availability.Delay,
	)

	_, err = svc.Run(ctx, corpus)
	return err
}

func runServe(ctx context.Context, cfg *config.Config) error {
	pool, err := xpgx.New(ctx, cfg.Server.DatabaseDSN, 0)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err = store.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	srv, err := api.NewAPIService(
		aed.NewAEDService(store.NewStore(pool)),
		availability.NewCache(cfg.Availability.CachePath),
		cfg.Server,
	)
	if err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(cfg.Server.Addr)
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Infof(ctx, "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
