package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"helix/internal/server/database"
	"helix/internal/server/service"

	"github.com/labstack/echo/v4"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "1.0.0"

// Handler contains the HTTP handlers for the ingestion API.
type Handler struct {
	svc *service.IngestService
	db  *database.DB
}

// NewHandler creates a new handler with the given service dependency.
func NewHandler(svc *service.IngestService, db *database.DB) *Handler {
	return &Handler{svc: svc, db: db}
}

// HandleUpload handles POST /upload.
// Accepts a multipart form with a "file" field, runs the ingestion
// pipeline, and returns the created record with its validation report.
func (h *Handler) HandleUpload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "file is required (use form field 'file')",
		})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "failed to read uploaded file",
		})
	}
	defer src.Close()

	result, err := h.svc.ProcessUpload(
		c.Request().Context(),
		fileHeader.Filename,
		src,
		fileHeader.Size,
	)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, result)
}

// HandleValidateFilename handles GET /validate/:filename.
// A pure filename-based pre-check: no bytes are sent, so only the
// extension signal applies. Always 200; validity is in the body.
func (h *Handler) HandleValidateFilename(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.PrecheckFilename(c.Param("filename")))
}

// HandleListFiles handles GET /files.
// Supports status and file_type filters plus limit/offset pagination.
func (h *Handler) HandleListFiles(c echo.Context) error {
	limit := intQueryParam(c, "limit", 50)
	offset := intQueryParam(c, "offset", 0)

	list, err := h.svc.ListFiles(
		c.Request().Context(),
		c.QueryParam("status"),
		c.QueryParam("file_type"),
		limit,
		offset,
	)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, list)
}

// HandleGetFile handles GET /files/:id.
func (h *Handler) HandleGetFile(c echo.Context) error {
	info, err := h.svc.GetFile(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

// statusUpdateRequest is the body of POST /files/:id/status.
type statusUpdateRequest struct {
	Status       string  `json:"status"`
	ErrorMessage *string `json:"error_message"`
}

// HandleUpdateStatus handles POST /files/:id/status.
// Called by the downstream analysis consumer to claim a file
// (processing) or report a terminal outcome (processed/error).
func (h *Handler) HandleUpdateStatus(c echo.Context) error {
	var req statusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	info, err := h.svc.TransitionStatus(c.Request().Context(), c.Param("id"), req.Status, req.ErrorMessage)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, info)
}

// HandleDeleteFile handles DELETE /files/:id.
// Soft delete; the blob is purged by the cleanup loop after retention.
func (h *Handler) HandleDeleteFile(c echo.Context) error {
	if err := h.svc.DeleteFile(c.Request().Context(), c.Param("id")); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "file deleted successfully"})
}

// HandleStats handles GET /api/stats.
func (h *Handler) HandleStats(c echo.Context) error {
	stats, err := h.svc.GetStats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "failed to retrieve stats",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total_files":        stats.TotalFiles,
		"uploaded":           stats.UploadedFiles,
		"processing":         stats.ProcessingFiles,
		"processed":          stats.ProcessedFiles,
		"error":              stats.ErrorFiles,
		"storage_used_bytes": stats.StorageUsed,
		"storage_used_human": humanizeBytes(stats.StorageUsed),
	})
}

// HandleHealth handles GET /health.
// Returns the health status of the service, including database connectivity.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := "healthy"
	dbStatus := "connected"

	if err := h.db.HealthCheck(c.Request().Context()); err != nil {
		status = "degraded"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":    status,
		"service":   "file-processing",
		"version":   ServiceVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"database":  echo.Map{"status": dbStatus},
	})
}

// mapServiceError translates service-layer errors into HTTP responses.
func mapServiceError(c echo.Context, err error) error {
	var vErr *service.ValidationFailedError
	switch {
	case errors.As(err, &vErr):
		status := http.StatusBadRequest
		if vErr.Oversize {
			status = http.StatusRequestEntityTooLarge
		}
		return c.JSON(status, echo.Map{
			"error":      vErr.Error(),
			"validation": vErr.Report,
		})
	case errors.Is(err, service.ErrFileTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{
			"error": "file exceeds maximum allowed size",
		})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "file not found"})
	case errors.Is(err, service.ErrInvalidStatus), errors.Is(err, service.ErrInvalidFilter):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, database.ErrDuplicateStoredName):
		return c.JSON(http.StatusConflict, echo.Map{"error": "stored filename already exists"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}

func intQueryParam(c echo.Context, name string, fallback int) int {
	if raw := c.QueryParam(name); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return fallback
}

// humanizeBytes formats a byte count into a human-readable string.
func humanizeBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
