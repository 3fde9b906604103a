package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"github.com/adlnet/edlm-portal-xia-jobs/internal/config"
	"github.com/adlnet/edlm-portal-xia-jobs/internal/ledger"
	"github.com/adlnet/edlm-portal-xia-jobs/internal/pipeline"
	"github.com/adlnet/edlm-portal-xia-jobs/pkg/xis"
	"github.com/adlnet/edlm-portal-xia-jobs/pkg/xsr"
)

// openStore creates the configured ledger backend.
func openStore(ctx context.Context) (ledger.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store: no database_url configured")
		}
		return ledger.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case "sqlite", "":
		return ledger.NewSQLite(cfg.Store.SQLitePath)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Store.Driver)
	}
}

// buildSource creates the configured extraction source.
func buildSource(src config.SourceConfig) (xsr.Source, error) {
	switch src.Kind {
	case "rest", "":
		if src.Endpoint == "" {
			return nil, eris.New("source: no endpoint configured")
		}
		return xsr.NewRESTSource(src.Endpoint, src.Token), nil
	case "csv":
		if src.File == "" {
			return nil, eris.New("source: no file configured")
		}
		return xsr.NewCSVSource(src.File), nil
	case "xlsx":
		if src.File == "" {
			return nil, eris.New("source: no file configured")
		}
		return xsr.NewXLSXSource(src.File, src.Sheet), nil
	case "ftp":
		if src.FTPAddr == "" || src.FTPPath == "" {
			return nil, eris.New("source: ftp_addr and ftp_path are required")
		}
		return xsr.NewFTPSource(src.FTPAddr, src.FTPUser, src.FTPPassword, src.FTPPath), nil
	default:
		return nil, eris.Errorf("source: unknown kind %q", src.Kind)
	}
}

// buildPipeline wires the store, source, index client and schemas into a
// ready-to-run pipeline.
func buildPipeline(ctx context.Context) (*pipeline.Pipeline, ledger.Store, error) {
	store, err := openStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	source, err := buildSource(cfg.Source)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	schemas, err := pipeline.LoadSchemas(cfg.Schemas)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	index := xis.NewClient(cfg.Index.Endpoint,
		time.Duration(cfg.Index.TimeoutSecs)*time.Second,
		cfg.Index.RequestsPerSec)

	return pipeline.New(cfg, store, source, index, schemas), store, nil
}

// runStage builds the pipeline, runs one stage and prints its summary. The
// stage error is returned after the summary is printed so a failed stage
// still reports what it got through.
func runStage(ctx context.Context, fn func(context.Context, *pipeline.Pipeline) (pipeline.StageSummary, error)) error {
	p, store, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return eris.Wrap(err, "migrate ledger")
	}

	summary, stageErr := fn(ctx, p)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return eris.Wrap(err, "encode summary")
	}

	return stageErr
}
