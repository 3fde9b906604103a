package pipeline

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/adlnet/edlm-portal-xia-jobs/internal/identity"
	"github.com/adlnet/edlm-portal-xia-jobs/internal/ledger"
	"github.com/adlnet/edlm-portal-xia-jobs/internal/resilience"
	"github.com/adlnet/edlm-portal-xia-jobs/internal/transform"
	"github.com/adlnet/edlm-portal-xia-jobs/internal/validation"
	"github.com/adlnet/edlm-portal-xia-jobs/pkg/xis"
)

// Extract pulls the full document batch from the source repository, stamps
// the publisher, derives each document's identity key and content hash, and
// upserts into the ledger. Documents missing an identifying field are skipped
// and logged; the batch continues.
func (p *Pipeline) Extract(ctx context.Context) (StageSummary, error) {
	var s StageSummary

	docs, err := p.source.Fetch(ctx)
	if err != nil {
		return s, eris.Wrap(err, "extract: fetch source")
	}
	if len(docs) == 0 {
		zap.L().Warn("extract: source metadata is empty")
		return s, nil
	}

	publisher := p.cfg.Pipeline.Publisher
	if publisher == "" {
		zap.L().Warn("extract: publisher field is empty")
	}

	for _, doc := range docs {
		if publisher != "" {
			doc["SOURCESYSTEM"] = publisher
		}

		key, err := identity.DeriveKey(doc, p.cfg.Pipeline.SourceKeyFields)
		if err != nil {
			var missing *identity.MissingIdentityFieldError
			if errors.As(err, &missing) {
				zap.L().Error("extract: field is missing for key creation, skipping document",
					zap.String("field", missing.Field))
				s.Skipped++
				continue
			}
			return s, eris.Wrap(err, "extract: derive key")
		}

		contentHash, err := identity.ContentHash(doc)
		if err != nil {
			return s, eris.Wrap(err, "extract: content hash")
		}

		outcome, err := p.store.Upsert(ctx, doc, key, contentHash)
		if err != nil {
			return s, eris.Wrap(err, "extract: ledger upsert")
		}
		if outcome == ledger.UpsertUnchanged {
			s.Skipped++
			continue
		}
		s.Processed++
	}
	return s, nil
}

// ValidateSource validates every eligible record against the source schema
// and stamps the result. Per-record work runs in a bounded worker group;
// the supersede invariant is untouched since validation only writes status
// fields.
func (p *Pipeline) ValidateSource(ctx context.Context) (StageSummary, error) {
	records, err := p.store.PendingSourceValidation(ctx)
	if err != nil {
		return StageSummary{}, eris.Wrap(err, "validate source: pending records")
	}

	return p.validateRecords(ctx, records, func(ctx context.Context, i int, rec *ledger.Record) error {
		result := validation.Validate(strconv.Itoa(i), rec.SourceDocument, p.schemas.Source)
		return p.store.RecordSourceValidation(ctx, rec.SourceKeyHash,
			ledger.ValidationStatus(result.Status), p.cfg.Pipeline.DemoteOnSourceFailure)
	})
}

// Transform maps each validated source record into the target shape, derives
// the target key/hash, and stores the target document.
func (p *Pipeline) Transform(ctx context.Context) (StageSummary, error) {
	var s StageSummary

	records, err := p.store.PendingTransformation(ctx)
	if err != nil {
		return s, eris.Wrap(err, "transform: pending records")
	}

	for _, rec := range records {
		target := transform.Transform(rec.SourceDocument, p.schemas.Mapping, p.schemas.Overwrites, p.schemas.Remaps)

		key, err := identity.DeriveKey(target, p.cfg.Pipeline.TargetKeyFields)
		if err != nil {
			var missing *identity.MissingIdentityFieldError
			if errors.As(err, &missing) {
				zap.L().Error("transform: field is missing for target key creation",
					zap.String("uuid", rec.UUID), zap.String("field", missing.Field))
				s.Failed++
				continue
			}
			return s, eris.Wrap(err, "transform: derive target key")
		}

		contentHash, err := identity.ContentHash(target)
		if err != nil {
			return s, eris.Wrap(err, "transform: target content hash")
		}

		if err := p.store.SetTransformed(ctx, rec.UUID, target, key, contentHash); err != nil {
			return s, eris.Wrap(err, "transform: store target")
		}
		s.Processed++
	}
	return s, nil
}

// ValidateTarget validates every transformed record against the target schema
// and stamps the result; passing records become Ready for transmission.
func (p *Pipeline) ValidateTarget(ctx context.Context) (StageSummary, error) {
	records, err := p.store.PendingTargetValidation(ctx)
	if err != nil {
		return StageSummary{}, eris.Wrap(err, "validate target: pending records")
	}

	return p.validateRecords(ctx, records, func(ctx context.Context, i int, rec *ledger.Record) error {
		result := validation.Validate(strconv.Itoa(i), rec.TargetDocument, p.schemas.Target)
		return p.store.RecordTargetValidation(ctx, rec.TargetKeyHash,
			ledger.ValidationStatus(result.Status), p.cfg.Pipeline.DemoteOnTargetFailure)
	})
}

// Load transmits every Ready (or retriable Failed) record to the index
// service. Application-level rejections are recorded per record and the batch
// continues; a connection-level failure that survives the retry budget aborts
// the remaining batch, since the service is unreachable and continuing would
// silently drop records.
func (p *Pipeline) Load(ctx context.Context) (StageSummary, error) {
	var s StageSummary

	records, err := p.store.PendingTransmission(ctx)
	if err != nil {
		return s, eris.Wrap(err, "load: pending records")
	}
	if len(records) == 0 {
		zap.L().Info("load: zero records available to transmit")
		return s, nil
	}

	retryCfg := resilience.DefaultRetryConfig()
	if p.cfg.Index.MaxAttempts > 0 {
		retryCfg.MaxAttempts = p.cfg.Index.MaxAttempts
	}

	for _, rec := range records {
		payload, err := xis.BuildPayload(&rec, p.cfg.Pipeline.Publisher)
		if err != nil {
			zap.L().Error("load: build payload", zap.String("uuid", rec.UUID), zap.Error(err))
			s.Failed++
			continue
		}

		if err := p.store.MarkTransmissionPending(ctx, rec.UUID); err != nil {
			return s, eris.Wrap(err, "load: mark pending")
		}

		var statusCode int
		err = resilience.Do(ctx, retryCfg, func(ctx context.Context) error {
			code, postErr := p.index.Post(ctx, payload)
			statusCode = code
			return postErr
		})
		if err != nil {
			// Connection failure after retries: record and abort the batch.
			if recordErr := p.store.RecordTransmission(ctx, rec.UUID, 0, ledger.TransmissionFailed); recordErr != nil {
				zap.L().Error("load: record transmission failure", zap.Error(recordErr))
			}
			s.Failed++
			return s, eris.Wrap(err, "load: cannot make connection with index service")
		}

		status := ledger.TransmissionFailed
		if statusCode >= 200 && statusCode < 300 {
			status = ledger.TransmissionSuccessful
			s.Processed++
		} else {
			s.Failed++
		}
		if err := p.store.RecordTransmission(ctx, rec.UUID, statusCode, status); err != nil {
			return s, eris.Wrap(err, "load: record transmission")
		}
	}
	return s, nil
}

// validateRecords runs fn over records with bounded parallelism and tallies
// the outcome.
func (p *Pipeline) validateRecords(ctx context.Context, records []ledger.Record, fn func(ctx context.Context, i int, rec *ledger.Record) error) (StageSummary, error) {
	var s StageSummary

	limit := p.cfg.Pipeline.MaxConcurrentRecords
	if limit <= 0 {
		limit = 1
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i := range records {
		g.Go(func() error {
			if err := fn(gctx, i, &records[i]); err != nil {
				return err
			}
			mu.Lock()
			s.Processed++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return s, err
	}
	return s, nil
}
