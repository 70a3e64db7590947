package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"helix/internal/core"
)

var (
	ErrFileNotFound        = errors.New("file record not found")
	ErrDuplicateStoredName = errors.New("stored filename already exists")
	ErrInvalidTransition   = errors.New("invalid status transition")
)

const recordColumns = `id, original_filename, stored_filename, file_size, file_type,
	   compressed, checksum, status, error_message, warnings,
	   uploaded_at, updated_at, is_deleted`

// Repository provides CRUD and status-transition operations for file records.
type Repository struct {
	db *DB
}

// NewRepository creates a new Repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new file record. Returns ErrDuplicateStoredName if
// the stored filename is already taken; the storage writer guarantees
// uniqueness, so this is a defensive check.
func (r *Repository) Create(ctx context.Context, rec *FileRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO genomic_files (
			id, original_filename, stored_filename, file_size, file_type,
			compressed, checksum, status, error_message, warnings,
			uploaded_at, updated_at, is_deleted
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		rec.ID,
		rec.OriginalFilename,
		rec.StoredFilename,
		rec.FileSize,
		string(rec.FileType),
		rec.Compressed,
		rec.Checksum,
		string(rec.Status),
		rec.ErrorMessage,
		rec.Warnings,
		rec.UploadedAt,
		rec.UpdatedAt,
		rec.IsDeleted,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateStoredName
		}
		return fmt.Errorf("failed to create file record: %w", err)
	}
	return nil
}

// GetByID retrieves a file record by its ID. Soft-deleted records are
// treated as not found.
func (r *Repository) GetByID(ctx context.Context, id string) (*FileRecord, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM genomic_files WHERE id = $1 AND is_deleted = FALSE
	`, id)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to get file record: %w", err)
	}
	return rec, nil
}

// GetByChecksum finds a live record with a matching content checksum
// (for duplicate-upload logging). Returns nil, nil when there is none.
func (r *Repository) GetByChecksum(ctx context.Context, checksum string) (*FileRecord, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM genomic_files WHERE checksum = $1 AND is_deleted = FALSE
		LIMIT 1
	`, checksum)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query by checksum: %w", err)
	}
	return rec, nil
}

// List returns records matching the filter in descending upload-time
// order, plus the total count ignoring pagination.
func (r *Repository) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*FileRecord, int64, error) {
	where := "WHERE is_deleted = FALSE"
	args := []any{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.FileType != "" {
		args = append(args, filter.FileType)
		where += fmt.Sprintf(" AND file_type = $%d", len(args))
	}

	var total int64
	if err := r.db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM genomic_files "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count file records: %w", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT `+recordColumns+`
		FROM genomic_files %s
		ORDER BY uploaded_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list file records: %w", err)
	}
	defer rows.Close()

	var records []*FileRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan file record: %w", err)
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

// UpdateStatus moves a record to newStatus with a single conditional
// update: the row changes only if its current status is a legal source
// for the transition, so concurrent transitions on one record are
// serialized by the database and a re-claim of an already-processing
// record succeeds idempotently. errMsg is recorded when moving to the
// error state.
func (r *Repository) UpdateStatus(ctx context.Context, id string, newStatus core.Status, errMsg *string) (*FileRecord, error) {
	sources := core.TransitionSources(newStatus)
	if len(sources) == 0 {
		return nil, ErrInvalidTransition
	}
	from := make([]string, len(sources))
	for i, s := range sources {
		from[i] = string(s)
	}

	row := r.db.Pool.QueryRow(ctx, `
		UPDATE genomic_files
		SET status = $2, error_message = COALESCE($3, error_message), updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE AND status = ANY($4)
		RETURNING `+recordColumns+`
	`, id, string(newStatus), errMsg, from)

	rec, err := scanRecord(row)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}

	// The guard failed: distinguish a missing record from an illegal
	// transition.
	var current string
	err = r.db.Pool.QueryRow(ctx,
		"SELECT status FROM genomic_files WHERE id = $1 AND is_deleted = FALSE", id,
	).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to inspect current status: %w", err)
	}
	return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, newStatus)
}

// SoftDelete marks a record deleted without removing its row or blob;
// the cleanup loop purges both after the retention window.
func (r *Repository) SoftDelete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE genomic_files SET is_deleted = TRUE, updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE
	`, id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete file record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFileNotFound
	}
	return nil
}

// PurgeCandidates returns soft-deleted records whose deletion is older
// than the retention cutoff.
func (r *Repository) PurgeCandidates(ctx context.Context, cutoff time.Time) ([]*FileRecord, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM genomic_files WHERE is_deleted = TRUE AND updated_at < $1
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query purge candidates: %w", err)
	}
	defer rows.Close()

	var records []*FileRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purge candidate: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// HardDelete removes a record row permanently.
func (r *Repository) HardDelete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, "DELETE FROM genomic_files WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFileNotFound
	}
	return nil
}

// GetStats returns aggregate ingestion statistics for live records.
func (r *Repository) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'uploaded'),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'processed'),
			COUNT(*) FILTER (WHERE status = 'error'),
			COALESCE(SUM(file_size), 0)
		FROM genomic_files
		WHERE is_deleted = FALSE
	`).Scan(
		&stats.TotalFiles,
		&stats.UploadedFiles,
		&stats.ProcessingFiles,
		&stats.ProcessedFiles,
		&stats.ErrorFiles,
		&stats.StorageUsed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return stats, nil
}

func scanRecord(row pgx.Row) (*FileRecord, error) {
	rec := &FileRecord{}
	var fileType, status string
	err := row.Scan(
		&rec.ID,
		&rec.OriginalFilename,
		&rec.StoredFilename,
		&rec.FileSize,
		&fileType,
		&rec.Compressed,
		&rec.Checksum,
		&status,
		&rec.ErrorMessage,
		&rec.Warnings,
		&rec.UploadedAt,
		&rec.UpdatedAt,
		&rec.IsDeleted,
	)
	if err != nil {
		return nil, err
	}
	rec.FileType = core.FileType(fileType)
	rec.Status = core.Status(status)
	return rec, nil
}
