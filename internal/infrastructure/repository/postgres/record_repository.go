package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/image-insight/internal/core/domain"
)

// RecordRepository persists analysis records. Revision ordering is enforced
// by the store itself via a conditional insert, not by application locking.
type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *RecordRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS analysis_records (
	image_id TEXT NOT NULL,
	processed_timestamp BIGINT NOT NULL,
	bucket TEXT NOT NULL,
	object_key TEXT NOT NULL,
	size_bytes BIGINT NOT NULL DEFAULT 0,
	format TEXT NOT NULL DEFAULT 'unknown',
	user_id TEXT NOT NULL DEFAULT 'unknown',
	upload_time TIMESTAMPTZ NOT NULL,
	confidence NUMERIC NOT NULL DEFAULT 0,
	summary TEXT NOT NULL DEFAULT '',
	has_faces BOOLEAN NOT NULL DEFAULT FALSE,
	has_text BOOLEAN NOT NULL DEFAULT FALSE,
	is_safe BOOLEAN NOT NULL DEFAULT TRUE,
	labels_count INTEGER NOT NULL DEFAULT 0,
	faces_count INTEGER NOT NULL DEFAULT 0,
	text_count INTEGER NOT NULL DEFAULT 0,
	top_label TEXT NOT NULL DEFAULT 'none',
	content_type TEXT NOT NULL DEFAULT 'UNKNOWN',
	analysis JSONB NOT NULL,
	analysis_timestamp TIMESTAMPTZ NOT NULL,
	expiration_time BIGINT NOT NULL,
	schema_version TEXT NOT NULL,
	PRIMARY KEY (image_id, processed_timestamp)
);

CREATE INDEX IF NOT EXISTS idx_analysis_records_user ON analysis_records(user_id, processed_timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_analysis_records_expiration ON analysis_records(expiration_time);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Save stores the record unless a revision with an equal-or-greater
// processed timestamp already exists for the image id. The guard and the
// insert are a single statement, so concurrent writers cannot interleave an
// older revision over a newer one.
func (r *RecordRepository) Save(ctx context.Context, record *domain.AnalysisRecord) (domain.SaveOutcome, error) {
	analysisJSON, err := encodeAnalysisJSON(record.Analysis)
	if err != nil {
		return domain.SaveSkippedStale, fmt.Errorf("encode analysis detail: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
INSERT INTO analysis_records (
	image_id, processed_timestamp, bucket, object_key, size_bytes, format, user_id, upload_time,
	confidence, summary, has_faces, has_text, is_safe,
	labels_count, faces_count, text_count, top_label, content_type,
	analysis, analysis_timestamp, expiration_time, schema_version
)
SELECT $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22
WHERE NOT EXISTS (
	SELECT 1 FROM analysis_records
	WHERE image_id = $1 AND processed_timestamp >= $2
)
ON CONFLICT (image_id, processed_timestamp) DO NOTHING
`,
		record.ImageID, record.ProcessedTimestamp, record.Bucket, record.Key, record.Size,
		record.Format, record.UserID, record.UploadTime,
		encodeDecimal(record.Confidence), record.Summary, record.HasFaces, record.HasText, record.IsSafe,
		record.LabelsCount, record.FacesCount, record.TextCount, record.TopLabel, string(record.ContentType),
		analysisJSON, record.AnalyzedAt, record.ExpirationTime, record.SchemaVersion,
	)
	if err != nil {
		return domain.SaveSkippedStale, fmt.Errorf("insert analysis record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return domain.SaveSkippedStale, fmt.Errorf("insert analysis record rows affected: %w", err)
	}
	if affected == 0 {
		return domain.SaveSkippedStale, nil
	}
	return domain.SaveStored, nil
}

const recordColumns = `
image_id, processed_timestamp, bucket, object_key, size_bytes, format, user_id, upload_time,
confidence::text, summary, has_faces, has_text, is_safe,
labels_count, faces_count, text_count, top_label, content_type,
analysis, analysis_timestamp, expiration_time, schema_version
`

// GetByID returns the current revision for an image id.
func (r *RecordRepository) GetByID(ctx context.Context, imageID string) (*domain.AnalysisRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+recordColumns+`
FROM analysis_records
WHERE image_id = $1
ORDER BY processed_timestamp DESC
LIMIT 1
`, imageID)

	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRecordNotFound, "get analysis record", fmt.Errorf("image %s", imageID))
		}
		return nil, fmt.Errorf("scan analysis record: %w", err)
	}
	return record, nil
}

// List returns one page of record summaries. A user id uses the secondary
// index ordered by revision descending; without one the listing is a
// best-effort scan. One extra row is fetched to detect whether more exist.
func (r *RecordRepository) List(ctx context.Context, filter domain.ListFilter) (*domain.RecordPage, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 1
	}

	var (
		rows *sql.Rows
		err  error
	)
	if filter.UserID != "" {
		rows, err = r.db.QueryContext(ctx, `
SELECT `+recordColumns+`
FROM analysis_records
WHERE user_id = $1
ORDER BY processed_timestamp DESC
LIMIT $2
`, filter.UserID, limit+1)
	} else {
		rows, err = r.db.QueryContext(ctx, `
SELECT `+recordColumns+`
FROM analysis_records
LIMIT $1
`, limit+1)
	}
	if err != nil {
		return nil, fmt.Errorf("list analysis records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.RecordSummary, 0, limit)
	hasMore := false
	for rows.Next() {
		if len(records) == limit {
			hasMore = true
			break
		}
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis record: %w", err)
		}
		records = append(records, record.Summarize())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analysis records: %w", err)
	}

	return &domain.RecordPage{
		Count:   len(records),
		Results: records,
		HasMore: hasMore,
	}, nil
}

// DeleteExpired is the store-side TTL reclamation sweep. The write path never
// evicts.
func (r *RecordRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
DELETE FROM analysis_records WHERE expiration_time <= $1
`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired records: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired rows affected: %w", err)
	}
	return affected, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.AnalysisRecord, error) {
	var (
		record        domain.AnalysisRecord
		confidenceRaw string
		contentType   string
		analysisRaw   []byte
	)

	err := row.Scan(
		&record.ImageID, &record.ProcessedTimestamp, &record.Bucket, &record.Key, &record.Size,
		&record.Format, &record.UserID, &record.UploadTime,
		&confidenceRaw, &record.Summary, &record.HasFaces, &record.HasText, &record.IsSafe,
		&record.LabelsCount, &record.FacesCount, &record.TextCount, &record.TopLabel, &contentType,
		&analysisRaw, &record.AnalyzedAt, &record.ExpirationTime, &record.SchemaVersion,
	)
	if err != nil {
		return nil, err
	}

	confidence, err := decodeDecimal(confidenceRaw)
	if err != nil {
		return nil, fmt.Errorf("decode confidence: %w", err)
	}
	record.Confidence = confidence
	record.ContentType = domain.ContentType(contentType)

	analysis, err := decodeAnalysisJSON[domain.AnalysisResult](analysisRaw)
	if err != nil {
		return nil, fmt.Errorf("decode analysis detail: %w", err)
	}
	record.Analysis = analysis

	return &record, nil
}
