package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/adlnet/edlm-portal-xia-jobs/internal/identity"
)

// Pool abstracts the pgxpool methods the store needs, so tests can substitute
// pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS metadata_records (
	uuid                     TEXT PRIMARY KEY,
	source_document          JSONB NOT NULL,
	source_key               TEXT NOT NULL,
	source_key_hash          TEXT NOT NULL,
	source_content_hash      TEXT NOT NULL,
	source_validation_status TEXT NOT NULL DEFAULT '',
	source_validation_date   TIMESTAMPTZ,
	target_document          JSONB,
	target_key               TEXT NOT NULL DEFAULT '',
	target_key_hash          TEXT NOT NULL DEFAULT '',
	target_content_hash      TEXT NOT NULL DEFAULT '',
	target_validation_status TEXT NOT NULL DEFAULT '',
	target_validation_date   TIMESTAMPTZ,
	transmission_status      TEXT NOT NULL DEFAULT '',
	transmission_status_code INTEGER NOT NULL DEFAULT 0,
	transmission_date        TIMESTAMPTZ,
	record_lifecycle_status  TEXT NOT NULL DEFAULT 'Active',
	inactivation_date        TIMESTAMPTZ,
	extraction_date          TIMESTAMPTZ,
	transformation_date      TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_records_source_key_hash ON metadata_records(source_key_hash, record_lifecycle_status);
CREATE INDEX IF NOT EXISTS idx_records_lifecycle ON metadata_records(record_lifecycle_status);
CREATE INDEX IF NOT EXISTS idx_records_transmission ON metadata_records(transmission_status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, doc map[string]any, key identity.Key, contentHash string) (UpsertOutcome, error) {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal source document")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", eris.Wrap(err, "postgres: begin upsert tx")
	}
	defer tx.Rollback(ctx)

	// Lock the key's Active rows so concurrent writers cannot interleave and
	// leave two Active records for one key.
	rows, err := tx.Query(ctx,
		`SELECT source_content_hash FROM metadata_records
		 WHERE source_key_hash = $1 AND record_lifecycle_status = $2
		 FOR UPDATE`,
		key.Hash, string(LifecycleActive),
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: lock active records")
	}
	unchanged := false
	for rows.Next() {
		var existing string
		if err := rows.Scan(&existing); err != nil {
			rows.Close()
			return "", eris.Wrap(err, "postgres: scan content hash")
		}
		if existing == contentHash {
			unchanged = true
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return "", eris.Wrap(err, "postgres: iterate active records")
	}
	if unchanged {
		return UpsertUnchanged, nil
	}

	now := time.Now().UTC()

	tag, err := tx.Exec(ctx,
		`UPDATE metadata_records
		 SET record_lifecycle_status = $1, inactivation_date = $2
		 WHERE source_key_hash = $3 AND record_lifecycle_status = $4`,
		string(LifecycleInactive), now, key.Hash, string(LifecycleActive),
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: supersede prior records")
	}
	demoted := tag.RowsAffected()

	_, err = tx.Exec(ctx,
		`INSERT INTO metadata_records
		 (uuid, source_document, source_key, source_key_hash, source_content_hash, record_lifecycle_status, extraction_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New().String(), docJSON, key.Value, key.Hash, contentHash, string(LifecycleActive), now,
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert record")
	}

	if err := tx.Commit(ctx); err != nil {
		return "", eris.Wrap(err, "postgres: commit upsert tx")
	}

	if demoted > 0 {
		return UpsertSuperseded, nil
	}
	return UpsertInserted, nil
}

const pgRecordColumns = `uuid, source_document, source_key, source_key_hash, source_content_hash,
	source_validation_status, source_validation_date,
	target_document, target_key, target_key_hash, target_content_hash,
	target_validation_status, target_validation_date,
	transmission_status, transmission_status_code, transmission_date,
	record_lifecycle_status, inactivation_date, extraction_date, transformation_date`

func (s *PostgresStore) ActiveByKeyHash(ctx context.Context, keyHash string) (*Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgRecordColumns+` FROM metadata_records
		 WHERE source_key_hash = $1 AND record_lifecycle_status = $2
		 ORDER BY extraction_date DESC LIMIT 1`,
		keyHash, string(LifecycleActive),
	)
	rec, err := scanPgRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (s *PostgresStore) GetRecord(ctx context.Context, id string) (*Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgRecordColumns+` FROM metadata_records WHERE uuid = $1`, id,
	)
	rec, err := scanPgRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: record not found: %s", id)
	}
	return rec, err
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error) {
	query := `SELECT ` + pgRecordColumns + ` FROM metadata_records WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return placeholderFor(len(args))
	}

	if filter.Lifecycle != "" {
		query += ` AND record_lifecycle_status = ` + arg(string(filter.Lifecycle))
	}
	if filter.Transmission != "" {
		query += ` AND transmission_status = ` + arg(string(filter.Transmission))
	}
	if filter.SourceKey != "" {
		query += ` AND source_key = ` + arg(filter.SourceKey)
	}
	query += ` ORDER BY extraction_date DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	return s.queryRecords(ctx, query, args...)
}

func (s *PostgresStore) PendingSourceValidation(ctx context.Context) ([]Record, error) {
	return s.queryRecords(ctx,
		`SELECT `+pgRecordColumns+` FROM metadata_records
		 WHERE record_lifecycle_status = $1 AND source_validation_status = ''
		   AND extraction_date IS NOT NULL`,
		string(LifecycleActive),
	)
}

func (s *PostgresStore) PendingTransformation(ctx context.Context) ([]Record, error) {
	return s.queryRecords(ctx,
		`SELECT `+pgRecordColumns+` FROM metadata_records
		 WHERE record_lifecycle_status = $1 AND source_validation_status = $2
		   AND transformation_date IS NULL`,
		string(LifecycleActive), string(ValidationPass),
	)
}

func (s *PostgresStore) PendingTargetValidation(ctx context.Context) ([]Record, error) {
	return s.queryRecords(ctx,
		`SELECT `+pgRecordColumns+` FROM metadata_records
		 WHERE record_lifecycle_status = $1 AND target_validation_status = ''
		   AND transformation_date IS NOT NULL`,
		string(LifecycleActive),
	)
}

func (s *PostgresStore) PendingTransmission(ctx context.Context) ([]Record, error) {
	return s.queryRecords(ctx,
		`SELECT `+pgRecordColumns+` FROM metadata_records
		 WHERE record_lifecycle_status = $1
		   AND transmission_status IN ($2, $3)
		   AND transmission_status_code != 400`,
		string(LifecycleActive), string(TransmissionReady), string(TransmissionFailed),
	)
}

func (s *PostgresStore) RecordSourceValidation(ctx context.Context, keyHash string, status ValidationStatus, demoteOnFailure bool) error {
	return s.recordValidation(ctx, "source", keyHash, status, demoteOnFailure)
}

func (s *PostgresStore) RecordTargetValidation(ctx context.Context, keyHash string, status ValidationStatus, demoteOnFailure bool) error {
	return s.recordValidation(ctx, "target", keyHash, status, demoteOnFailure)
}

func (s *PostgresStore) recordValidation(ctx context.Context, stage, keyHash string, status ValidationStatus, demoteOnFailure bool) error {
	now := time.Now().UTC()

	set := ""
	args := []any{string(status), now}
	keyColumn := "source_key_hash"
	switch stage {
	case "source":
		set = `source_validation_status = $1, source_validation_date = $2`
	case "target":
		set = `target_validation_status = $1, target_validation_date = $2`
		keyColumn = "target_key_hash"
		if status == ValidationPass {
			args = append(args, string(TransmissionReady))
			set += `, transmission_status = ` + placeholderFor(len(args))
		}
	default:
		return eris.Errorf("postgres: unknown validation stage %q", stage)
	}
	if demoteOnFailure && status == ValidationFail {
		args = append(args, string(LifecycleInactive))
		set += `, record_lifecycle_status = ` + placeholderFor(len(args))
		args = append(args, now)
		set += `, inactivation_date = ` + placeholderFor(len(args))
	}
	args = append(args, keyHash)
	where := ` WHERE ` + keyColumn + ` = ` + placeholderFor(len(args))
	args = append(args, string(LifecycleActive))
	where += ` AND record_lifecycle_status = ` + placeholderFor(len(args))

	tag, err := s.pool.Exec(ctx, `UPDATE metadata_records SET `+set+where, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: record %s validation", stage)
	}
	if tag.RowsAffected() == 0 {
		zap.L().Warn("ledger: validation update matched no active record",
			zap.String("stage", stage), zap.String("key_hash", keyHash))
	}
	return nil
}

func (s *PostgresStore) SetTransformed(ctx context.Context, id string, target map[string]any, key identity.Key, contentHash string) error {
	targetJSON, err := json.Marshal(target)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal target document")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE metadata_records
		 SET target_document = $1, target_key = $2, target_key_hash = $3, target_content_hash = $4, transformation_date = $5
		 WHERE uuid = $6`,
		targetJSON, key.Value, key.Hash, contentHash, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set transformed %s", id)
	}
	warnIfNoPgRows(tag, id)
	return nil
}

func (s *PostgresStore) MarkTransmissionPending(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE metadata_records SET transmission_status = $1 WHERE uuid = $2`,
		string(TransmissionPending), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark transmission pending %s", id)
	}
	warnIfNoPgRows(tag, id)
	return nil
}

func (s *PostgresStore) RecordTransmission(ctx context.Context, id string, statusCode int, status TransmissionStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE metadata_records
		 SET transmission_status = $1, transmission_status_code = $2, transmission_date = $3
		 WHERE uuid = $4`,
		string(status), statusCode, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: record transmission %s", id)
	}
	warnIfNoPgRows(tag, id)
	return nil
}

func (s *PostgresStore) Counts(ctx context.Context) (*Counts, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(1),
			COUNT(1) FILTER (WHERE record_lifecycle_status = 'Active'),
			COUNT(1) FILTER (WHERE record_lifecycle_status = 'Inactive'),
			COUNT(1) FILTER (WHERE source_validation_status = 'Y'),
			COUNT(1) FILTER (WHERE source_validation_status = 'N'),
			COUNT(1) FILTER (WHERE target_validation_status = 'Y'),
			COUNT(1) FILTER (WHERE target_validation_status = 'N'),
			COUNT(1) FILTER (WHERE transmission_status = 'Ready'),
			COUNT(1) FILTER (WHERE transmission_status = 'Successful'),
			COUNT(1) FILTER (WHERE transmission_status = 'Failed')
		FROM metadata_records`)

	var c Counts
	err := row.Scan(&c.Total, &c.Active, &c.Inactive,
		&c.SourceValid, &c.SourceInvalid, &c.TargetValid, &c.TargetInvalid,
		&c.TransmissionReady, &c.TransmissionSuccessful, &c.TransmissionFailed)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: counts")
	}
	return &c, nil
}

func (s *PostgresStore) queryRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query records")
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanPgRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: iterate records")
}

func warnIfNoPgRows(tag pgconn.CommandTag, id string) {
	if tag.RowsAffected() == 0 {
		zap.L().Warn("ledger: update matched no record", zap.String("uuid", id))
	}
}

func placeholderFor(n int) string {
	return "$" + strconv.Itoa(n)
}

func scanPgRecord(row pgx.Row) (*Record, error) {
	var r Record
	var sourceJSON []byte
	var targetJSON []byte

	err := row.Scan(
		&r.UUID, &sourceJSON, &r.SourceKey, &r.SourceKeyHash, &r.SourceContentHash,
		&r.SourceValidationStatus, &r.SourceValidationDate,
		&targetJSON, &r.TargetKey, &r.TargetKeyHash, &r.TargetContentHash,
		&r.TargetValidationStatus, &r.TargetValidationDate,
		&r.TransmissionStatus, &r.TransmissionStatusCode, &r.TransmissionDate,
		&r.LifecycleStatus, &r.InactivationDate, &r.ExtractionDate, &r.TransformationDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "ledger: scan record")
	}

	if err := json.Unmarshal(sourceJSON, &r.SourceDocument); err != nil {
		return nil, eris.Wrap(err, "ledger: unmarshal source document")
	}
	if len(targetJSON) > 0 {
		if err := json.Unmarshal(targetJSON, &r.TargetDocument); err != nil {
			return nil, eris.Wrap(err, "ledger: unmarshal target document")
		}
	}
	return &r, nil
}
