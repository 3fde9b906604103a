// Package monitoring gathers point-in-time ledger metrics for the status
// command and the record API.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/adlnet/edlm-portal-xia-jobs/internal/ledger"
)

// Snapshot holds a point-in-time view of ledger health.
type Snapshot struct {
	Records ledger.Counts `json:"records"`

	// TransmissionFailRate is failed over failed+successful transmissions;
	// zero when nothing has been transmitted yet.
	TransmissionFailRate float64 `json:"transmission_fail_rate"`

	// Backlog counts records still short of the index service.
	Backlog int `json:"backlog"`

	CollectedAt time.Time `json:"collected_at"`
}

// Collector gathers metrics from the ledger store.
type Collector struct {
	store ledger.Store
}

// NewCollector creates a metrics collector over the given store.
func NewCollector(store ledger.Store) *Collector {
	return &Collector{store: store}
}

// Collect gathers a snapshot of ledger metrics.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	counts, err := c.store.Counts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: ledger counts")
	}

	snap := &Snapshot{
		Records:     *counts,
		Backlog:     counts.Active - counts.TransmissionSuccessful,
		CollectedAt: time.Now().UTC(),
	}
	if snap.Backlog < 0 {
		snap.Backlog = 0
	}

	transmitted := counts.TransmissionSuccessful + counts.TransmissionFailed
	if transmitted > 0 {
		snap.TransmissionFailRate = float64(counts.TransmissionFailed) / float64(transmitted)
	}
	return snap, nil
}
