package database

import (
	"time"

	"helix/internal/core"
)

// FileRecord is one ingested genomic file tracked in the database.
type FileRecord struct {
	ID               string
	OriginalFilename string // user-supplied, stored verbatim for display only
	StoredFilename   string // system-generated storage key, globally unique
	FileSize         int64
	FileType         core.FileType
	Compressed       bool
	Checksum         string // sha256 of the stored bytes
	Status           core.Status
	ErrorMessage     *string // set when status is error
	Warnings         []string
	UploadedAt       time.Time
	UpdatedAt        time.Time
	IsDeleted        bool
}

// ListFilter narrows List results. Empty fields match everything.
type ListFilter struct {
	Status   string
	FileType string
}

// Stats holds aggregate ingestion statistics.
type Stats struct {
	TotalFiles      int64
	UploadedFiles   int64
	ProcessingFiles int64
	ProcessedFiles  int64
	ErrorFiles      int64
	StorageUsed     int64
}
