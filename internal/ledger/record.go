// Package ledger is the metadata record store: one row per document
// lifecycle instance, appended on ingest and superseded (never deleted) when
// a newer version of the same identity key arrives.
package ledger

import "time"

// LifecycleStatus tracks whether a record is the current version of its
// identity key. Transitions are monotonic: Active -> Inactive, never back.
type LifecycleStatus string

const (
	LifecycleActive   LifecycleStatus = "Active"
	LifecycleInactive LifecycleStatus = "Inactive"
)

// ValidationStatus is unset until the record passes through a validation
// stage.
type ValidationStatus string

const (
	ValidationUnset ValidationStatus = ""
	ValidationPass  ValidationStatus = "Y"
	ValidationFail  ValidationStatus = "N"
)

// TransmissionStatus tracks the record's progress toward the index service.
type TransmissionStatus string

const (
	TransmissionUnset      TransmissionStatus = ""
	TransmissionPending    TransmissionStatus = "Pending"
	TransmissionReady      TransmissionStatus = "Ready"
	TransmissionSuccessful TransmissionStatus = "Successful"
	TransmissionFailed     TransmissionStatus = "Failed"
)

// UpsertOutcome describes what an ingest did to the ledger.
type UpsertOutcome string

const (
	// UpsertInserted means no Active record shared the key hash.
	UpsertInserted UpsertOutcome = "inserted"
	// UpsertUnchanged means an Active record already carries this content
	// hash; re-ingestion was a no-op.
	UpsertUnchanged UpsertOutcome = "unchanged"
	// UpsertSuperseded means prior Active records for the key were demoted
	// to Inactive and a new Active record was inserted.
	UpsertSuperseded UpsertOutcome = "superseded"
)

// Record is one document lifecycle instance in the metadata ledger.
type Record struct {
	UUID string `json:"uuid"`

	SourceDocument         map[string]any   `json:"source_document"`
	SourceKey              string           `json:"source_key"`
	SourceKeyHash          string           `json:"source_key_hash"`
	SourceContentHash      string           `json:"source_content_hash"`
	SourceValidationStatus ValidationStatus `json:"source_validation_status"`
	SourceValidationDate   *time.Time       `json:"source_validation_date,omitempty"`

	TargetDocument         map[string]any   `json:"target_document,omitempty"`
	TargetKey              string           `json:"target_key,omitempty"`
	TargetKeyHash          string           `json:"target_key_hash,omitempty"`
	TargetContentHash      string           `json:"target_content_hash,omitempty"`
	TargetValidationStatus ValidationStatus `json:"target_validation_status"`
	TargetValidationDate   *time.Time       `json:"target_validation_date,omitempty"`

	TransmissionStatus     TransmissionStatus `json:"transmission_status"`
	TransmissionStatusCode int                `json:"transmission_status_code,omitempty"`
	TransmissionDate       *time.Time         `json:"transmission_date,omitempty"`

	LifecycleStatus  LifecycleStatus `json:"lifecycle_status"`
	InactivationDate *time.Time      `json:"inactivation_date,omitempty"`

	ExtractionDate     *time.Time `json:"extraction_date,omitempty"`
	TransformationDate *time.Time `json:"transformation_date,omitempty"`
}

// RecordFilter specifies criteria for listing ledger records.
type RecordFilter struct {
	Lifecycle    LifecycleStatus    `json:"lifecycle,omitempty"`
	Transmission TransmissionStatus `json:"transmission,omitempty"`
	SourceKey    string             `json:"source_key,omitempty"`
	Limit        int                `json:"limit,omitempty"`
	Offset       int                `json:"offset,omitempty"`
}

// Counts is a point-in-time tally of ledger state, used by the status
// command and the metrics endpoint.
type Counts struct {
	Total                  int `json:"total"`
	Active                 int `json:"active"`
	Inactive               int `json:"inactive"`
	SourceValid            int `json:"source_valid"`
	SourceInvalid          int `json:"source_invalid"`
	TargetValid            int `json:"target_valid"`
	TargetInvalid          int `json:"target_invalid"`
	TransmissionReady      int `json:"transmission_ready"`
	TransmissionSuccessful int `json:"transmission_successful"`
	TransmissionFailed     int `json:"transmission_failed"`
}
