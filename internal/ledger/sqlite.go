package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/adlnet/edlm-portal-xia-jobs/internal/identity"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS metadata_records (
	uuid                     TEXT PRIMARY KEY,
	source_document          TEXT NOT NULL,
	source_key               TEXT NOT NULL,
	source_key_hash          TEXT NOT NULL,
	source_content_hash      TEXT NOT NULL,
	source_validation_status TEXT NOT NULL DEFAULT '',
	source_validation_date   DATETIME,
	target_document          TEXT,
	target_key               TEXT NOT NULL DEFAULT '',
	target_key_hash          TEXT NOT NULL DEFAULT '',
	target_content_hash      TEXT NOT NULL DEFAULT '',
	target_validation_status TEXT NOT NULL DEFAULT '',
	target_validation_date   DATETIME,
	transmission_status      TEXT NOT NULL DEFAULT '',
	transmission_status_code INTEGER NOT NULL DEFAULT 0,
	transmission_date        DATETIME,
	record_lifecycle_status  TEXT NOT NULL DEFAULT 'Active',
	inactivation_date        DATETIME,
	extraction_date          DATETIME,
	transformation_date      DATETIME
);

CREATE INDEX IF NOT EXISTS idx_records_source_key_hash ON metadata_records(source_key_hash, record_lifecycle_status);
CREATE INDEX IF NOT EXISTS idx_records_lifecycle ON metadata_records(record_lifecycle_status);
CREATE INDEX IF NOT EXISTS idx_records_transmission ON metadata_records(transmission_status);
`

const recordColumns = `uuid, source_document, source_key, source_key_hash, source_content_hash,
	source_validation_status, source_validation_date,
	target_document, target_key, target_key_hash, target_content_hash,
	target_validation_status, target_validation_date,
	transmission_status, transmission_status_code, transmission_date,
	record_lifecycle_status, inactivation_date, extraction_date, transformation_date`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Upsert(ctx context.Context, doc map[string]any, key identity.Key, contentHash string) (UpsertOutcome, error) {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal source document")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: begin upsert tx")
	}
	defer tx.Rollback()

	// Idempotent re-ingestion: an Active record already carries this content.
	var unchanged int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM metadata_records
		 WHERE source_key_hash = ? AND record_lifecycle_status = ? AND source_content_hash = ?`,
		key.Hash, string(LifecycleActive), contentHash,
	).Scan(&unchanged)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: check existing content hash")
	}
	if unchanged > 0 {
		return UpsertUnchanged, nil
	}

	now := time.Now().UTC()

	// Supersede: demote every prior Active record sharing the key hash.
	res, err := tx.ExecContext(ctx,
		`UPDATE metadata_records
		 SET record_lifecycle_status = ?, inactivation_date = ?
		 WHERE source_key_hash = ? AND record_lifecycle_status = ?`,
		string(LifecycleInactive), now, key.Hash, string(LifecycleActive),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: supersede prior records")
	}
	demoted, err := res.RowsAffected()
	if err != nil {
		return "", eris.Wrap(err, "sqlite: rows affected")
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO metadata_records
		 (uuid, source_document, source_key, source_key_hash, source_content_hash, record_lifecycle_status, extraction_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), string(docJSON), key.Value, key.Hash, contentHash, string(LifecycleActive), now,
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert record")
	}

	if err := tx.Commit(); err != nil {
		return "", eris.Wrap(err, "sqlite: commit upsert tx")
	}

	if demoted > 0 {
		return UpsertSuperseded, nil
	}
	return UpsertInserted, nil
}

func (s *SQLiteStore) ActiveByKeyHash(ctx context.Context, keyHash string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM metadata_records
		 WHERE source_key_hash = ? AND record_lifecycle_status = ?
		 ORDER BY extraction_date DESC LIMIT 1`,
		keyHash, string(LifecycleActive),
	)
	rec, err := scanRecord(row)
	if err == errRecordNotFound {
		return nil, nil
	}
	return rec, err
}

func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM metadata_records WHERE uuid = ?`, id,
	)
	rec, err := scanRecord(row)
	if err == errRecordNotFound {
		return nil, eris.Errorf("sqlite: record not found: %s", id)
	}
	return rec, err
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM metadata_records WHERE 1=1`
	var args []any

	if filter.Lifecycle != "" {
		query += ` AND record_lifecycle_status = ?`
		args = append(args, string(filter.Lifecycle))
	}
	if filter.Transmission != "" {
		query += ` AND transmission_status = ?`
		args = append(args, string(filter.Transmission))
	}
	if filter.SourceKey != "" {
		query += ` AND source_key = ?`
		args = append(args, filter.SourceKey)
	}
	query += ` ORDER BY extraction_date DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	return s.queryRecords(ctx, query, args...)
}

func (s *SQLiteStore) PendingSourceValidation(ctx context.Context) ([]Record, error) {
	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM metadata_records
		 WHERE record_lifecycle_status = ? AND source_validation_status = ''
		   AND extraction_date IS NOT NULL`,
		string(LifecycleActive),
	)
}

func (s *SQLiteStore) PendingTransformation(ctx context.Context) ([]Record, error) {
	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM metadata_records
		 WHERE record_lifecycle_status = ? AND source_validation_status = ?
		   AND transformation_date IS NULL`,
		string(LifecycleActive), string(ValidationPass),
	)
}

func (s *SQLiteStore) PendingTargetValidation(ctx context.Context) ([]Record, error) {
	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM metadata_records
		 WHERE record_lifecycle_status = ? AND target_validation_status = ''
		   AND transformation_date IS NOT NULL`,
		string(LifecycleActive),
	)
}

func (s *SQLiteStore) PendingTransmission(ctx context.Context) ([]Record, error) {
	// Failed records are retried on the next run unless the index service
	// rejected the payload outright (400).
	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM metadata_records
		 WHERE record_lifecycle_status = ?
		   AND transmission_status IN (?, ?)
		   AND transmission_status_code != 400`,
		string(LifecycleActive), string(TransmissionReady), string(TransmissionFailed),
	)
}

func (s *SQLiteStore) RecordSourceValidation(ctx context.Context, keyHash string, status ValidationStatus, demoteOnFailure bool) error {
	return s.recordValidation(ctx, "source", keyHash, status, demoteOnFailure)
}

func (s *SQLiteStore) RecordTargetValidation(ctx context.Context, keyHash string, status ValidationStatus, demoteOnFailure bool) error {
	return s.recordValidation(ctx, "target", keyHash, status, demoteOnFailure)
}

func (s *SQLiteStore) recordValidation(ctx context.Context, stage, keyHash string, status ValidationStatus, demoteOnFailure bool) error {
	now := time.Now().UTC()

	var query string
	args := []any{string(status), now}
	switch stage {
	case "source":
		query = `UPDATE metadata_records
		         SET source_validation_status = ?, source_validation_date = ?`
	case "target":
		query = `UPDATE metadata_records
		         SET target_validation_status = ?, target_validation_date = ?`
		// A validated target record becomes eligible for transmission.
		if status == ValidationPass {
			query += `, transmission_status = ?`
			args = append(args, string(TransmissionReady))
		}
	default:
		return eris.Errorf("sqlite: unknown validation stage %q", stage)
	}
	keyColumn := `source_key_hash`
	if stage == "target" {
		keyColumn = `target_key_hash`
	}
	if demoteOnFailure && status == ValidationFail {
		query += `, record_lifecycle_status = ?, inactivation_date = ?`
		args = append(args, string(LifecycleInactive), now)
	}
	query += ` WHERE ` + keyColumn + ` = ? AND record_lifecycle_status = ?`
	args = append(args, keyHash, string(LifecycleActive))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: record %s validation", stage)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		zap.L().Warn("ledger: validation update matched no active record",
			zap.String("stage", stage), zap.String("key_hash", keyHash))
	}
	return nil
}

func (s *SQLiteStore) SetTransformed(ctx context.Context, id string, target map[string]any, key identity.Key, contentHash string) error {
	targetJSON, err := json.Marshal(target)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal target document")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE metadata_records
		 SET target_document = ?, target_key = ?, target_key_hash = ?, target_content_hash = ?, transformation_date = ?
		 WHERE uuid = ?`,
		string(targetJSON), key.Value, key.Hash, contentHash, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set transformed %s", id)
	}
	return warnIfNoRows(res, id)
}

func (s *SQLiteStore) MarkTransmissionPending(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE metadata_records SET transmission_status = ? WHERE uuid = ?`,
		string(TransmissionPending), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark transmission pending %s", id)
	}
	return warnIfNoRows(res, id)
}

func (s *SQLiteStore) RecordTransmission(ctx context.Context, id string, statusCode int, status TransmissionStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE metadata_records
		 SET transmission_status = ?, transmission_status_code = ?, transmission_date = ?
		 WHERE uuid = ?`,
		string(status), statusCode, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: record transmission %s", id)
	}
	return warnIfNoRows(res, id)
}

func (s *SQLiteStore) Counts(ctx context.Context) (*Counts, error) {
	// COUNT, not SUM: SUM over zero rows is NULL and breaks the int scan on
	// an empty ledger.
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(1),
			COUNT(CASE WHEN record_lifecycle_status = 'Active' THEN 1 END),
			COUNT(CASE WHEN record_lifecycle_status = 'Inactive' THEN 1 END),
			COUNT(CASE WHEN source_validation_status = 'Y' THEN 1 END),
			COUNT(CASE WHEN source_validation_status = 'N' THEN 1 END),
			COUNT(CASE WHEN target_validation_status = 'Y' THEN 1 END),
			COUNT(CASE WHEN target_validation_status = 'N' THEN 1 END),
			COUNT(CASE WHEN transmission_status = 'Ready' THEN 1 END),
			COUNT(CASE WHEN transmission_status = 'Successful' THEN 1 END),
			COUNT(CASE WHEN transmission_status = 'Failed' THEN 1 END)
		FROM metadata_records`)

	var c Counts
	err := row.Scan(&c.Total, &c.Active, &c.Inactive,
		&c.SourceValid, &c.SourceInvalid, &c.TargetValid, &c.TargetInvalid,
		&c.TransmissionReady, &c.TransmissionSuccessful, &c.TransmissionFailed)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: counts")
	}
	return &c, nil
}

func (s *SQLiteStore) queryRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query records")
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: iterate records")
}

// helpers

var errRecordNotFound = eris.New("ledger: record not found")

func warnIfNoRows(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		zap.L().Warn("ledger: update matched no record", zap.String("uuid", id))
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*Record, error) {
	var r Record
	var sourceJSON string
	var targetJSON sql.NullString
	var srcValDate, tgtValDate, txDate, inactDate, extractDate, transformDate sql.NullTime

	err := row.Scan(
		&r.UUID, &sourceJSON, &r.SourceKey, &r.SourceKeyHash, &r.SourceContentHash,
		&r.SourceValidationStatus, &srcValDate,
		&targetJSON, &r.TargetKey, &r.TargetKeyHash, &r.TargetContentHash,
		&r.TargetValidationStatus, &tgtValDate,
		&r.TransmissionStatus, &r.TransmissionStatusCode, &txDate,
		&r.LifecycleStatus, &inactDate, &extractDate, &transformDate,
	)
	if err == sql.ErrNoRows {
		return nil, errRecordNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "ledger: scan record")
	}

	if err := json.Unmarshal([]byte(sourceJSON), &r.SourceDocument); err != nil {
		return nil, eris.Wrap(err, "ledger: unmarshal source document")
	}
	if targetJSON.Valid && targetJSON.String != "" {
		if err := json.Unmarshal([]byte(targetJSON.String), &r.TargetDocument); err != nil {
			return nil, eris.Wrap(err, "ledger: unmarshal target document")
		}
	}
	r.SourceValidationDate = nullableTime(srcValDate)
	r.TargetValidationDate = nullableTime(tgtValDate)
	r.TransmissionDate = nullableTime(txDate)
	r.InactivationDate = nullableTime(inactDate)
	r.ExtractionDate = nullableTime(extractDate)
	r.TransformationDate = nullableTime(transformDate)
	return &r, nil
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	ts := t.Time
	return &ts
}
