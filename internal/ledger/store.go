package ledger

import (
	"context"

	"github.com/adlnet/edlm-portal-xia-jobs/internal/identity"
)

// Store defines the persistence interface for the metadata ledger. The core
// engines treat it as a keyed upsert/query surface; records are appended and
// superseded, never rewritten in a way that loses history.
type Store interface {
	// Upsert ingests a document under its derived key. Semantics per key:
	// no Active record -> insert; Active record with identical content hash
	// -> no-op; Active record with a different content hash -> demote every
	// Active record for the key hash and insert a new Active record. The
	// whole evaluation runs in one transaction, so at most one Active record
	// per key hash survives concurrent writers.
	Upsert(ctx context.Context, doc map[string]any, key identity.Key, contentHash string) (UpsertOutcome, error)

	ActiveByKeyHash(ctx context.Context, keyHash string) (*Record, error)
	GetRecord(ctx context.Context, uuid string) (*Record, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error)

	// Stage eligibility queries. Eligibility is gated on the stage-entry
	// timestamp: a record enters source validation only once its extraction
	// date is set, and target validation only once its transformation date
	// is set.
	PendingSourceValidation(ctx context.Context) ([]Record, error)
	PendingTransformation(ctx context.Context) ([]Record, error)
	PendingTargetValidation(ctx context.Context) ([]Record, error)
	PendingTransmission(ctx context.Context) ([]Record, error)

	// RecordSourceValidation and RecordTargetValidation stamp the stage's
	// validation status and date for the Active record with the given key
	// hash. With demoteOnFailure set, a failing record is also demoted to
	// Inactive. An unknown key hash is a warn-level no-op.
	RecordSourceValidation(ctx context.Context, keyHash string, status ValidationStatus, demoteOnFailure bool) error
	RecordTargetValidation(ctx context.Context, keyHash string, status ValidationStatus, demoteOnFailure bool) error

	// SetTransformed stores the target document plus its key/hash and stamps
	// the transformation date.
	SetTransformed(ctx context.Context, uuid string, target map[string]any, key identity.Key, contentHash string) error

	MarkTransmissionPending(ctx context.Context, uuid string) error
	RecordTransmission(ctx context.Context, uuid string, statusCode int, status TransmissionStatus) error

	Counts(ctx context.Context) (*Counts, error)

	Migrate(ctx context.Context) error
	Close() error
}
