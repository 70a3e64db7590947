package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"helix/internal/server/database"
)

// staleSpoolAge is how old an abandoned spool temp file must be before
// the cleanup loop removes it. Uploads spool for minutes at most; a
// day-old temp file belongs to a crashed request.
const staleSpoolAge = 24 * time.Hour

// CleanupService periodically purges soft-deleted file records (blob
// and row) once their retention window has passed, and sweeps
// abandoned spool temp files left behind by interrupted uploads.
type CleanupService struct {
	repo      *database.Repository
	store     Store
	spoolPath string
	interval  time.Duration
	retention time.Duration
	done      chan struct{}
}

// NewCleanupService creates a new cleanup service.
func NewCleanupService(repo *database.Repository, store Store, spoolPath string, interval, retention time.Duration) *CleanupService {
	return &CleanupService{
		repo:      repo,
		store:     store,
		spoolPath: spoolPath,
		interval:  interval,
		retention: retention,
		done:      make(chan struct{}),
	}
}

// Start begins the cleanup loop in a background goroutine.
func (cs *CleanupService) Start(ctx context.Context) {
	slog.Info("cleanup service started", "interval", cs.interval, "retention", cs.retention)

	go func() {
		ticker := time.NewTicker(cs.interval)
		defer ticker.Stop()

		// Run once immediately on start
		cs.runCleanup(ctx)

		for {
			select {
			case <-ticker.C:
				cs.runCleanup(ctx)
			case <-ctx.Done():
				slog.Info("cleanup service stopping")
				close(cs.done)
				return
			}
		}
	}()
}

// Wait blocks until the cleanup service has fully stopped.
func (cs *CleanupService) Wait() {
	<-cs.done
}

func (cs *CleanupService) runCleanup(ctx context.Context) {
	cs.purgeDeleted(ctx)
	cs.sweepSpool()
}

func (cs *CleanupService) purgeDeleted(ctx context.Context) {
	cutoff := time.Now().Add(-cs.retention)
	candidates, err := cs.repo.PurgeCandidates(ctx, cutoff)
	if err != nil {
		slog.Error("failed to get purge candidates", "error", err)
		return
	}
	if len(candidates) == 0 {
		return
	}

	var purged, failed int
	for _, rec := range candidates {
		if err := cs.store.Delete(ctx, rec.StoredFilename); err != nil {
			slog.Error("failed to delete blob",
				"file_id", rec.ID,
				"stored_filename", rec.StoredFilename,
				"error", err,
			)
			failed++
			continue
		}

		if err := cs.repo.HardDelete(ctx, rec.ID); err != nil {
			slog.Error("failed to delete db record",
				"file_id", rec.ID,
				"error", err,
			)
			failed++
			continue
		}

		purged++
		slog.Info("purged deleted file",
			"file_id", rec.ID,
			"original_filename", rec.OriginalFilename,
		)
	}

	slog.Info("purge cycle complete",
		"purged", purged,
		"failed", failed,
		"total_candidates", len(candidates),
	)
}

// sweepSpool removes stale temp files from the upload spool directory.
func (cs *CleanupService) sweepSpool() {
	entries, err := os.ReadDir(cs.spoolPath)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("failed to read spool directory", "error", err)
		}
		return
	}

	cutoff := time.Now().Add(-staleSpoolAge)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "spool-") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(cs.spoolPath, entry.Name())
		if err := os.Remove(path); err != nil {
			slog.Error("failed to remove stale spool file", "path", path, "error", err)
			continue
		}
		slog.Info("removed stale spool file", "path", path)
	}
}
