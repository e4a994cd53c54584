package filerecords

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/ingestor/internal/common"
	"github.com/dmitrijs2005/ingestor/internal/dbx"
	"github.com/dmitrijs2005/ingestor/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateRaw upserts by pk. The WHERE guard on the conflict branch keeps a
// PROCESSED row immutable, so a re-delivered notification can never move a
// record backwards.
func (r *PostgresRepository) CreateRaw(ctx context.Context, rec *models.FileRecord) error {
	query := `
		INSERT INTO file_records (pk, bucket, key, size, etag, status, checksum)
		VALUES ($1, $2, $3, $4, $5, 'RAW', $6)
		ON CONFLICT (pk)
		DO UPDATE SET
			bucket = EXCLUDED.bucket,
			key = EXCLUDED.key,
			size = EXCLUDED.size,
			etag = EXCLUDED.etag,
			checksum = EXCLUDED.checksum
			WHERE file_records.status <> 'PROCESSED';
	`
	res, err := r.db.ExecContext(ctx, query,
		rec.PK, rec.Bucket, rec.Key, rec.Size, rec.ETag, rec.Checksum)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrAlreadyProcessed
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// MarkProcessed finalizes the record. COALESCE keeps the first processed_at
// so a duplicate delivery after completion does not move the timestamp.
func (r *PostgresRepository) MarkProcessed(ctx context.Context, pk, bucket, key string, at time.Time) error {
	query := `
		UPDATE file_records
		SET status = 'PROCESSED',
			processed_at = COALESCE(file_records.processed_at, $2),
			bucket = $3,
			key = $4
		WHERE pk = $1;
	`
	res, err := r.db.ExecContext(ctx, query, pk, at, bucket, key)
	if err != nil {
		return fmt.Errorf("failed to mark processed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// GetByPK returns a single record by primary key.
func (r *PostgresRepository) GetByPK(ctx context.Context, pk string) (*models.FileRecord, error) {
	query := `
		SELECT pk, bucket, key, size, etag, status, checksum, processed_at
		FROM file_records
		WHERE pk = $1;
	`
	rec := &models.FileRecord{}
	var processedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, pk).Scan(
		&rec.PK, &rec.Bucket, &rec.Key, &rec.Size, &rec.ETag, &rec.Status, &rec.Checksum, &processedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select record: %w", err)
	}
	if processedAt.Valid {
		t := processedAt.Time
		rec.ProcessedAt = &t
	}
	return rec, nil
}

// List returns the filtered records ordered by pk for stable pagination.
func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]*models.FileRecord, error) {
	where, args := buildWhere(f)

	query := `
		SELECT pk, bucket, key, size, etag, status, checksum, processed_at
		FROM file_records
	` + where + fmt.Sprintf(" ORDER BY pk LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []*models.FileRecord
	for rows.Next() {
		rec := &models.FileRecord{}
		var processedAt sql.NullTime
		if err := rows.Scan(&rec.PK, &rec.Bucket, &rec.Key, &rec.Size, &rec.ETag, &rec.Status, &rec.Checksum, &processedAt); err != nil {
			return nil, err
		}
		if processedAt.Valid {
			t := processedAt.Time
			rec.ProcessedAt = &t
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Count returns the post-filter total used by the query surface.
func (r *PostgresRepository) Count(ctx context.Context, f Filter) (int64, error) {
	where, args := buildWhere(f)

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM file_records`+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return total, nil
}

// buildWhere assembles the WHERE clause shared by List and Count. A date
// bound implies processed_at IS NOT NULL: records that were never processed
// fall outside any range filter.
func buildWhere(f Filter) (string, []any) {
	var conds []string
	var args []any

	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.From != nil || f.To != nil {
		conds = append(conds, "processed_at IS NOT NULL")
	}
	if f.From != nil {
		args = append(args, *f.From)
		conds = append(conds, fmt.Sprintf("processed_at >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		conds = append(conds, fmt.Sprintf("processed_at <= $%d", len(args)))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
