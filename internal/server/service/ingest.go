package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"helix/internal/core"
	"helix/internal/server/config"
	"helix/internal/server/database"
	"helix/internal/server/storage"
)

// Sentinel errors for the service layer.
var (
	ErrNotFound          = errors.New("file not found")
	ErrFileTooLarge      = errors.New("file exceeds maximum allowed size")
	ErrStorageCollision  = errors.New("could not allocate a unique stored filename")
	ErrInvalidStatus     = errors.New("unknown status value")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidFilter     = errors.New("invalid list filter")
)

// maxNameAttempts bounds stored-filename regeneration on collision.
// Names embed a UUID, so a second attempt is already vanishingly rare.
const maxNameAttempts = 3

// ValidationFailedError is returned when an upload is rejected by the
// validator; it carries the full report for the response body.
// Oversize marks rejections caused by the size cap, which map to a
// different HTTP status than structural failures.
type ValidationFailedError struct {
	Report   *core.Report
	Oversize bool
}

func (e *ValidationFailedError) Error() string {
	if len(e.Report.Errors) > 0 {
		return "validation failed: " + e.Report.Errors[0]
	}
	return "validation failed"
}

// UploadResult is the response body for a successful upload.
type UploadResult struct {
	Message          string        `json:"message"`
	FileID           string        `json:"file_id"`
	Filename         string        `json:"filename"`
	OriginalFilename string        `json:"original_filename"`
	FileSize         int64         `json:"file_size"`
	FileType         core.FileType `json:"file_type"`
	Status           core.Status   `json:"status"`
	Validation       *core.Report  `json:"validation"`
}

// FileInfo is the list/detail representation of a file record.
type FileInfo struct {
	ID               string        `json:"id"`
	Filename         string        `json:"filename"`
	OriginalFilename string        `json:"original_filename"`
	FileSize         int64         `json:"file_size"`
	FileType         core.FileType `json:"file_type"`
	Compressed       bool          `json:"compressed"`
	Status           core.Status   `json:"status"`
	ErrorMessage     *string       `json:"error_message,omitempty"`
	Warnings         []string      `json:"warnings,omitempty"`
	Checksum         string        `json:"checksum,omitempty"`
	UploadedAt       time.Time     `json:"uploaded_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// FileList is the paginated response for file listings.
type FileList struct {
	Files  []*FileInfo `json:"files"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// PrecheckResult is the response for the filename-only validation endpoint.
type PrecheckResult struct {
	Filename string        `json:"filename"`
	IsValid  bool          `json:"is_valid"`
	FileType core.FileType `json:"file_type"`
	Errors   []string      `json:"errors"`
	Warnings []string      `json:"warnings"`
}

// IngestService contains the business logic of the ingestion pipeline:
// detect, validate, persist bytes, create the record, and drive status
// transitions reported by the downstream analysis consumer.
type IngestService struct {
	repo  *database.Repository
	store storage.Store
	cfg   *config.Config
}

// NewIngestService creates a new ingestion service.
func NewIngestService(repo *database.Repository, store storage.Store, cfg *config.Config) *IngestService {
	return &IngestService{repo: repo, store: store, cfg: cfg}
}

// ProcessUpload runs the full ingestion pipeline for one upload.
//
// Ordering is load-bearing: validation strictly precedes the blob
// write, which strictly precedes record creation. A rejected upload
// leaves no blob and no record; incoming bytes only ever touch a spool
// temp file that is discarded on any failure.
func (s *IngestService) ProcessUpload(ctx context.Context, originalFilename string, data io.Reader, declaredSize int64) (*UploadResult, error) {
	format := core.DetectFormat(originalFilename)
	if format.Type == core.TypeUnknown {
		return nil, &ValidationFailedError{Report: core.NewUnsupportedReport(originalFilename)}
	}

	// Enforce the size cap before any storage I/O. The declared size
	// comes from the client and is re-checked while spooling.
	if declaredSize > s.cfg.MaxFileSize {
		return nil, &ValidationFailedError{
			Report:   core.NewOversizeReport(format, declaredSize, s.cfg.MaxFileSize),
			Oversize: true,
		}
	}

	spooled, err := s.spool(data)
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			return nil, &ValidationFailedError{
				Report:   core.NewOversizeReport(format, s.cfg.MaxFileSize+1, s.cfg.MaxFileSize),
				Oversize: true,
			}
		}
		return nil, err
	}
	defer spooled.discard()

	report := s.validateSpooled(spooled.path, format)
	if !report.IsValid {
		return nil, &ValidationFailedError{Report: report}
	}

	storedName, err := s.allocateStoredName(ctx, format)
	if err != nil {
		return nil, err
	}

	// Duplicate content is logged, not blocked: re-uploading the same
	// cohort file is routine.
	if existing, _ := s.repo.GetByChecksum(ctx, spooled.checksum); existing != nil {
		slog.Info("duplicate file content detected",
			"existing_id", existing.ID,
			"checksum", spooled.checksum,
			"original_filename", originalFilename,
		)
	}

	blob, err := os.Open(spooled.path)
	if err != nil {
		return nil, fmt.Errorf("failed to reopen spool file: %w", err)
	}
	written, err := s.store.Save(ctx, storedName, blob, spooled.size)
	blob.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	now := time.Now().UTC()
	rec := &database.FileRecord{
		ID:               uuid.NewString(),
		OriginalFilename: originalFilename,
		StoredFilename:   storedName,
		FileSize:         written,
		FileType:         format.Type,
		Compressed:       format.Compressed,
		Checksum:         spooled.checksum,
		Status:           core.StatusUploaded,
		Warnings:         report.Warnings,
		UploadedAt:       now,
		UpdatedAt:        now,
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		// No orphaned blobs: the record is the source of truth.
		if delErr := s.store.Delete(ctx, storedName); delErr != nil {
			slog.Error("failed to remove blob after record failure", "stored_filename", storedName, "error", delErr)
		}
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}

	slog.Info("upload ingested",
		"file_id", rec.ID,
		"original_filename", originalFilename,
		"stored_filename", storedName,
		"file_type", format.Type,
		"compressed", format.Compressed,
		"size", written,
		"checksum", spooled.checksum,
		"warnings", len(report.Warnings),
	)

	return &UploadResult{
		Message:          "File uploaded successfully",
		FileID:           rec.ID,
		Filename:         rec.StoredFilename,
		OriginalFilename: rec.OriginalFilename,
		FileSize:         rec.FileSize,
		FileType:         rec.FileType,
		Status:           rec.Status,
		Validation:       report,
	}, nil
}

// PrecheckFilename classifies a filename without content. Used by the
// frontend before committing to a large upload; no bytes are sent, so
// only the extension-based signal applies.
func (s *IngestService) PrecheckFilename(filename string) *PrecheckResult {
	format := core.DetectFormat(filename)
	res := &PrecheckResult{
		Filename: filename,
		FileType: format.Type,
		Errors:   []string{},
		Warnings: []string{},
	}
	if format.Type == core.TypeUnknown {
		res.Errors = append(res.Errors, fmt.Sprintf("unsupported file type: %s", filename))
		return res
	}
	res.IsValid = true
	return res
}

// GetFile returns detail for one record.
func (s *IngestService) GetFile(ctx context.Context, id string) (*FileInfo, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrFileNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return fileInfoDetail(rec), nil
}

// ListFiles returns a filtered, paginated listing in descending
// upload-time order plus the total count ignoring pagination.
func (s *IngestService) ListFiles(ctx context.Context, statusFilter, typeFilter string, limit, offset int) (*FileList, error) {
	if statusFilter != "" && !core.IsValidStatus(statusFilter) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, statusFilter)
	}
	if typeFilter != "" && !core.IsValidType(typeFilter) {
		return nil, fmt.Errorf("%w: unknown file type %q", ErrInvalidFilter, typeFilter)
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}

	records, total, err := s.repo.List(ctx, database.ListFilter{Status: statusFilter, FileType: typeFilter}, limit, offset)
	if err != nil {
		return nil, err
	}

	infos := make([]*FileInfo, 0, len(records))
	for _, rec := range records {
		infos = append(infos, fileInfoSummary(rec))
	}
	return &FileList{Files: infos, Total: total, Limit: limit, Offset: offset}, nil
}

// TransitionStatus records a lifecycle transition reported by the
// downstream analysis consumer. Re-claiming an already-processing file
// succeeds idempotently; transitions out of a terminal state fail with
// ErrInvalidTransition.
func (s *IngestService) TransitionStatus(ctx context.Context, id, newStatus string, errMsg *string) (*FileInfo, error) {
	if !core.IsValidStatus(newStatus) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}

	rec, err := s.repo.UpdateStatus(ctx, id, core.Status(newStatus), errMsg)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrFileNotFound):
			return nil, ErrNotFound
		case errors.Is(err, database.ErrInvalidTransition):
			return nil, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}
		return nil, err
	}

	slog.Info("status transition recorded", "file_id", id, "status", newStatus)
	return fileInfoDetail(rec), nil
}

// DeleteFile soft-deletes a record; the blob is purged later by the
// cleanup loop once the retention window passes.
func (s *IngestService) DeleteFile(ctx context.Context, id string) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, database.ErrFileNotFound) {
			return ErrNotFound
		}
		return err
	}
	slog.Info("file soft-deleted", "file_id", id)
	return nil
}

// GetStats returns aggregate ingestion statistics.
func (s *IngestService) GetStats(ctx context.Context) (*database.Stats, error) {
	return s.repo.GetStats(ctx)
}

// MaxFileSize exposes the configured upload cap.
func (s *IngestService) MaxFileSize() int64 {
	return s.cfg.MaxFileSize
}

// --- Spooling ---

type spooledUpload struct {
	path     string
	size     int64
	checksum string
}

func (sp *spooledUpload) discard() {
	os.Remove(sp.path)
}

// spool copies the request body to a scratch temp file, hashing as it
// goes and enforcing the size cap byte-for-byte in case the declared
// size was wrong. A client disconnect surfaces as a read error and the
// temp file is removed; nothing ever becomes visible in the blob store.
func (s *IngestService) spool(data io.Reader) (*spooledUpload, error) {
	tmp, err := os.CreateTemp(s.cfg.SpoolPath, "spool-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create spool file: %w", err)
	}
	path := tmp.Name()

	hasher := sha256.New()
	n, err := io.Copy(tmp, io.TeeReader(io.LimitReader(data, s.cfg.MaxFileSize+1), hasher))
	closeErr := tmp.Close()
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to read upload data: %w", err)
	}
	if closeErr != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to finish spool file: %w", closeErr)
	}
	if n > s.cfg.MaxFileSize {
		os.Remove(path)
		return nil, fmt.Errorf("%w: upload exceeded %d bytes", ErrFileTooLarge, s.cfg.MaxFileSize)
	}

	return &spooledUpload{
		path:     path,
		size:     n,
		checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

func (s *IngestService) validateSpooled(path string, format core.Format) *core.Report {
	f, err := os.Open(path)
	if err != nil {
		rep := &core.Report{FileType: format.Type, Errors: []string{"failed to read spooled upload"}, Warnings: []string{}}
		return rep
	}
	defer f.Close()
	return core.Validate(f, format)
}

// allocateStoredName generates a storage key decoupled from the
// user-supplied name: UTC timestamp for operator legibility plus a
// UUID for uniqueness, with the canonical extension for the format.
func (s *IngestService) allocateStoredName(ctx context.Context, format core.Format) (string, error) {
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := fmt.Sprintf("%s_%s%s",
			time.Now().UTC().Format("20060102T150405"),
			uuid.NewString(),
			format.Extension(),
		)
		exists, err := s.store.Exists(ctx, name)
		if err != nil {
			return "", fmt.Errorf("failed to check stored name: %w", err)
		}
		if !exists {
			return name, nil
		}
		slog.Warn("stored filename collision, regenerating", "name", name, "attempt", attempt+1)
	}
	return "", ErrStorageCollision
}

func fileInfoSummary(rec *database.FileRecord) *FileInfo {
	return &FileInfo{
		ID:               rec.ID,
		Filename:         rec.StoredFilename,
		OriginalFilename: rec.OriginalFilename,
		FileSize:         rec.FileSize,
		FileType:         rec.FileType,
		Compressed:       rec.Compressed,
		Status:           rec.Status,
		UploadedAt:       rec.UploadedAt,
		UpdatedAt:        rec.UpdatedAt,
	}
}

func fileInfoDetail(rec *database.FileRecord) *FileInfo {
	info := fileInfoSummary(rec)
	info.ErrorMessage = rec.ErrorMessage
	info.Warnings = rec.Warnings
	info.Checksum = rec.Checksum
	return info
}
