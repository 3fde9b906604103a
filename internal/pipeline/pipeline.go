// Package pipeline sequences the metadata-integration stages: extract,
// validate source, transform, validate target, load. Each stage drains its
// eligible record set from the ledger before the next stage begins.
package pipeline

import (
	"context"
	"time"

	"github.com/adlnet/edlm-portal-xia-jobs/internal/config"
	"github.com/adlnet/edlm-portal-xia-jobs/internal/identity"
	"github.com/adlnet/edlm-portal-xia-jobs/internal/ledger"
	"github.com/adlnet/edlm-portal-xia-jobs/internal/schema"
	"github.com/adlnet/edlm-portal-xia-jobs/internal/transform"
	"github.com/adlnet/edlm-portal-xia-jobs/internal/validation"
	"github.com/adlnet/edlm-portal-xia-jobs/pkg/xis"
	"github.com/adlnet/edlm-portal-xia-jobs/pkg/xsr"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Schemas bundles the declarative inputs the validation and transformation
// stages consume.
type Schemas struct {
	Source     validation.Schema
	Target     validation.Schema
	Mapping    transform.MappingSchema
	Overwrites []transform.OverwriteRule
	Remaps     []transform.RemapRule
}

// LoadSchemas reads every schema file named in the configuration. Only the
// files a run actually needs must exist; unset paths load empty.
func LoadSchemas(cfg config.SchemaConfig) (*Schemas, error) {
	var s Schemas

	if cfg.SourceValidation != "" {
		classes, err := schema.LoadClassification(cfg.SourceValidation)
		if err != nil {
			return nil, err
		}
		s.Source = validation.SchemaFromClassification(classes)
	}
	if cfg.ExpectedTypes != "" {
		types, err := schema.LoadTypes(cfg.ExpectedTypes)
		if err != nil {
			return nil, err
		}
		s.Source.Types = types
	}
	if cfg.TargetValidation != "" {
		sections, err := schema.LoadSections(cfg.TargetValidation)
		if err != nil {
			return nil, err
		}
		s.Target = validation.SchemaFromSections(sections)
	}
	if cfg.Mapping != "" {
		mapping, err := schema.LoadMapping(cfg.Mapping)
		if err != nil {
			return nil, err
		}
		s.Mapping = mapping
	}
	if cfg.Overwrites != "" {
		overwrites, err := schema.LoadOverwrites(cfg.Overwrites)
		if err != nil {
			return nil, err
		}
		s.Overwrites = overwrites
	}
	if cfg.Remaps != "" {
		remaps, err := schema.LoadRemaps(cfg.Remaps)
		if err != nil {
			return nil, err
		}
		s.Remaps = remaps
	}
	return &s, nil
}

// Pipeline holds everything a run needs. Construct once per run; the engines
// share no hidden state.
type Pipeline struct {
	cfg     *config.Config
	store   ledger.Store
	source  xsr.Source
	index   xis.Client
	schemas *Schemas
}

// New creates a Pipeline with all dependencies.
func New(cfg *config.Config, store ledger.Store, source xsr.Source, index xis.Client, schemas *Schemas) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		store:   store,
		source:  source,
		index:   index,
		schemas: schemas,
	}
}

// StageSummary reports what one stage did.
type StageSummary struct {
	Name       string `json:"name"`
	Processed  int    `json:"processed"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// RunSummary aggregates the stage summaries of one full pipeline run. RunID
// is a short correlation id stamped on every log line of the run.
type RunSummary struct {
	RunID     string         `json:"run_id"`
	Stages    []StageSummary `json:"stages"`
	StartedAt time.Time      `json:"started_at"`
}

// Run executes the full workflow in stage order. A stage error stops the
// remaining stages; ledger mutations already committed stay committed, so an
// aborted run resumes where it left off.
func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{StartedAt: time.Now().UTC()}
	summary.RunID = identity.ShortHash(summary.StartedAt.String())

	stages := []struct {
		name string
		fn   func(context.Context) (StageSummary, error)
	}{
		{"extract", p.Extract},
		{"validate_source", p.ValidateSource},
		{"transform", p.Transform},
		{"validate_target", p.ValidateTarget},
		{"load", p.Load},
	}

	for _, stage := range stages {
		start := time.Now()
		stageSummary, err := stage.fn(ctx)
		stageSummary.Name = stage.name
		stageSummary.DurationMS = time.Since(start).Milliseconds()
		if err != nil {
			stageSummary.Error = err.Error()
			summary.Stages = append(summary.Stages, stageSummary)
			zap.L().Error("pipeline: stage failed",
				zap.String("run", summary.RunID),
				zap.String("stage", stage.name), zap.Error(err))
			return summary, eris.Wrapf(err, "pipeline: stage %s", stage.name)
		}
		summary.Stages = append(summary.Stages, stageSummary)
		zap.L().Info("pipeline: stage complete",
			zap.String("run", summary.RunID),
			zap.String("stage", stage.name),
			zap.Int("processed", stageSummary.Processed),
			zap.Int("skipped", stageSummary.Skipped),
			zap.Int("failed", stageSummary.Failed),
			zap.Int64("duration_ms", stageSummary.DurationMS),
		)
	}
	return summary, nil
}
