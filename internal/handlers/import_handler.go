package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"storefront-service/internal/events"
	"storefront-service/internal/importer"
	"storefront-service/internal/middleware"
	"storefront-service/internal/models"
	"storefront-service/internal/session"
)

// ImportOptions tunes the staging step
type ImportOptions struct {
	PreviewRows  int           // rows echoed back in the stage response
	SessionTTL   time.Duration // how long an uncommitted session survives
	CleanupGrace time.Duration // delay before a committed session is deleted
	MaxFileBytes int64         // upload cap for the tabular file
	MaxZipBytes  int64         // upload cap for the image archive
	ZipLimits    importer.ZipLimits
}

// ExistingSKUSource answers which SKUs are already in the catalog
type ExistingSKUSource interface {
	ExistingSKUs(merchantID string, skus []string) (map[string]bool, error)
}

// CategorySource loads the category map and default once per commit
type CategorySource interface {
	CategoryNames(merchantID string) (map[string]string, error)
	DefaultCategoryID(merchantID string) (string, error)
}

// ImportHandler wires the bulk-import pipeline to HTTP
type ImportHandler struct {
	repo       ExistingSKUSource
	sessions   session.Store
	engine     *importer.Engine
	categories CategorySource
	events     *events.Publisher // nil when NATS is not configured
	opts       ImportOptions
	logger     *logrus.Entry
}

// NewImportHandler creates the import handler
func NewImportHandler(repo ExistingSKUSource, sessions session.Store, engine *importer.Engine, categories CategorySource, publisher *events.Publisher, opts ImportOptions, logger *logrus.Logger) *ImportHandler {
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = 20
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.CleanupGrace <= 0 {
		opts.CleanupGrace = 5 * time.Minute
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = 20 << 20
	}
	if opts.MaxZipBytes <= 0 {
		opts.MaxZipBytes = 200 << 20
	}
	if opts.ZipLimits == (importer.ZipLimits{}) {
		opts.ZipLimits = importer.DefaultZipLimits()
	}
	return &ImportHandler{
		repo:       repo,
		sessions:   sessions,
		engine:     engine,
		categories: categories,
		events:     publisher,
		opts:       opts,
		logger:     logger.WithField("component", "import-handler"),
	}
}

// StageImportResponse is the parse endpoint's payload
type StageImportResponse struct {
	SessionID     string                `json:"sessionId"`
	Preview       []models.ValidatedRow `json:"preview"`
	TotalRows     int                   `json:"totalRows"`
	ValidRows     int                   `json:"validRows"`
	InvalidRows   int                   `json:"invalidRows"`
	Mode          models.ImportMode     `json:"mode"`
	Errors        []string              `json:"errors,omitempty"`
	Warnings      []string              `json:"warnings,omitempty"`
	DuplicateSkus []string              `json:"duplicateSkus,omitempty"`
	ExpiresAt     time.Time             `json:"expiresAt"`
}

// StageImport parses an uploaded CSV/XLSX (plus optional image ZIP),
// validates it, and stages the result behind a short-lived session so the
// commit step never re-parses.
// POST /api/v1/products/import
func (h *ImportHandler) StageImport(c *gin.Context) {
	merchantID := middleware.GetMerchantID(c)
	userID := middleware.GetUserID(c)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "FILE_REQUIRED", "Please upload a CSV or XLSX file")
		return
	}
	defer file.Close()

	updateExisting := c.DefaultPostForm("updateExisting", "false") == "true"

	parsed, err := h.parseUpload(file, header)
	if err != nil {
		respondError(c, http.StatusBadRequest, "PARSE_ERROR", err.Error())
		return
	}
	if len(parsed.Rows) == 0 {
		respondError(c, http.StatusBadRequest, "EMPTY_FILE", "The file contains no data rows")
		return
	}

	zipData, catalog, warnings, err := h.readImageArchive(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ARCHIVE", err.Error())
		return
	}

	existing, err := h.lookupExistingSKUs(merchantID, parsed.Rows)
	if err != nil {
		h.logger.WithError(err).Warn("existing-SKU lookup failed, skipping update warnings")
	}

	result := importer.ValidateRows(parsed.Rows, importer.ValidateOptions{
		Assets:       catalog,
		ExistingSKUs: existing,
	})
	result.Errors = append(result.Errors, parsed.Errors...)
	result.Warnings = append(result.Warnings, warnings...)
	if result.Mode == models.ImportModeURL && catalog != nil {
		result.Warnings = append(result.Warnings, "an image archive was uploaded but the file is in URL mode; the archive will be ignored")
	}
	if result.Mode != models.ImportModeZIP {
		zipData = nil
	}

	sess := session.New(merchantID, userID, result, zipData, h.opts.SessionTTL)
	sess.UpdateExisting = updateExisting
	if err := h.sessions.Create(c.Request.Context(), sess); err != nil {
		h.logger.WithError(err).Error("failed to stage import session")
		respondError(c, http.StatusInternalServerError, "SESSION_STORE_ERROR", "Failed to stage the import")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"merchant_id": merchantID,
		"session_id":  sess.ID,
		"total_rows":  result.TotalRows,
		"valid_rows":  result.ValidRows,
		"mode":        result.Mode,
	}).Info("import staged")

	c.JSON(http.StatusOK, StageImportResponse{
		SessionID:     sess.ID,
		Preview:       previewRows(result.Rows, h.opts.PreviewRows),
		TotalRows:     result.TotalRows,
		ValidRows:     result.ValidRows,
		InvalidRows:   result.InvalidRows,
		Mode:          result.Mode,
		Errors:        result.Errors,
		Warnings:      result.Warnings,
		DuplicateSkus: result.DuplicateSkus,
		ExpiresAt:     sess.ExpiresAt,
	})
}

// GetImportSession returns a staged session's status and preview
// GET /api/v1/products/import/:sessionId
func (h *ImportHandler) GetImportSession(c *gin.Context) {
	sess, ok := h.loadAccessibleSession(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId":     sess.ID,
		"status":        sess.Status,
		"preview":       previewRows(sess.Validation.Rows, h.opts.PreviewRows),
		"totalRows":     sess.Validation.TotalRows,
		"validRows":     sess.Validation.ValidRows,
		"invalidRows":   sess.Validation.InvalidRows,
		"mode":          sess.Validation.Mode,
		"duplicateSkus": sess.Validation.DuplicateSkus,
		"expiresAt":     sess.ExpiresAt,
	})
}

// CommitImport converts a staged session's valid rows into catalog records.
// The staged -> committed transition is an atomic compare-and-set, so of two
// concurrent commits exactly one proceeds and the other gets a conflict.
// POST /api/v1/products/import/:sessionId/commit
func (h *ImportHandler) CommitImport(c *gin.Context) {
	merchantID := middleware.GetMerchantID(c)
	userID := middleware.GetUserID(c)

	sess, ok := h.loadAccessibleSession(c)
	if !ok {
		return
	}

	// Collaborator data is loaded before the status flips so a category
	// outage leaves the session committable.
	categoryMap, err := h.categories.CategoryNames(merchantID)
	if err != nil {
		h.logger.WithError(err).Error("failed to load category map")
		respondError(c, http.StatusBadGateway, "CATEGORY_SERVICE_ERROR", "Could not load categories for commit")
		return
	}
	defaultCategoryID, err := h.categories.DefaultCategoryID(merchantID)
	if err != nil {
		h.logger.WithError(err).Error("failed to load default category")
		respondError(c, http.StatusBadGateway, "CATEGORY_SERVICE_ERROR", "Could not load categories for commit")
		return
	}

	err = h.sessions.TransitionStatus(c.Request.Context(), sess.ID, session.StatusStaged, session.StatusCommitted)
	if err != nil {
		h.respondSessionError(c, err)
		return
	}

	result := h.engine.Commit(c.Request.Context(), importer.CommitInput{
		MerchantID:        merchantID,
		ActorID:           userID,
		Rows:              sess.Validation.Rows,
		Mode:              sess.Validation.Mode,
		ZipData:           sess.ZipData,
		CategoryMap:       categoryMap,
		DefaultCategoryID: defaultCategoryID,
		UpdateExisting:    sess.UpdateExisting,
	})

	if h.events != nil {
		h.events.PublishImportCommitted(sess.ID, merchantID, userID, result)
	}

	// Best-effort cleanup; must not block the response
	sessionID := sess.ID
	time.AfterFunc(h.opts.CleanupGrace, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.sessions.Delete(ctx, sessionID); err != nil {
			h.logger.WithError(err).WithField("session_id", sessionID).Warn("post-commit session cleanup failed")
		}
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

// FailureReportRequest is the report endpoint's body
type FailureReportRequest struct {
	Failures []models.RowFailure `json:"failures" binding:"required"`
	Format   string              `json:"format"`
}

// FailuresReport renders commit failures as a downloadable CSV or JSON
// attachment. Pure transform over the submitted failures.
// POST /api/v1/products/import/failures/report
func (h *ImportHandler) FailuresReport(c *gin.Context) {
	var req FailureReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}

	switch strings.ToLower(req.Format) {
	case "", "csv":
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", "attachment; filename=import_failures.csv")
		c.String(http.StatusOK, importer.FailureReportCSV(req.Failures))
	case "json":
		payload, err := importer.FailureReportJSON(req.Failures)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "REPORT_ERROR", err.Error())
			return
		}
		c.Header("Content-Disposition", "attachment; filename=import_failures.json")
		c.Data(http.StatusOK, "application/json", payload)
	default:
		respondError(c, http.StatusBadRequest, "INVALID_FORMAT", "format must be csv or json")
	}
}

// loadAccessibleSession fetches the session from the path parameter and
// enforces ownership. Writes the error response itself when it returns false.
func (h *ImportHandler) loadAccessibleSession(c *gin.Context) (*session.Session, bool) {
	sess, err := h.sessions.Get(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		h.respondSessionError(c, err)
		return nil, false
	}
	if err := session.CheckAccess(sess, middleware.GetUserID(c), middleware.GetMerchantID(c), middleware.GetUserRole(c)); err != nil {
		h.respondSessionError(c, err)
		return nil, false
	}
	return sess, true
}

func (h *ImportHandler) respondSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		respondError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Import session not found")
	case errors.Is(err, session.ErrExpired):
		respondError(c, http.StatusNotFound, "SESSION_EXPIRED", "Import session expired; upload the file again")
	case errors.Is(err, session.ErrConflict):
		respondError(c, http.StatusConflict, "SESSION_COMMITTED", "Import session was already committed")
	case errors.Is(err, session.ErrForbidden):
		respondError(c, http.StatusForbidden, "FORBIDDEN", "You do not have access to this import session")
	default:
		h.logger.WithError(err).Error("session store failure")
		respondError(c, http.StatusInternalServerError, "SESSION_STORE_ERROR", "Session store is unavailable")
	}
}

func (h *ImportHandler) parseUpload(file multipart.File, header *multipart.FileHeader) (*importer.ParseResult, error) {
	if header.Size > h.opts.MaxFileBytes {
		return nil, fmt.Errorf("file exceeds %d bytes", h.opts.MaxFileBytes)
	}

	filename := strings.ToLower(header.Filename)
	switch {
	case strings.HasSuffix(filename, ".csv"):
		return importer.ParseCSV(file)
	case strings.HasSuffix(filename, ".xlsx"):
		return importer.ParseXLSX(file)
	default:
		return nil, fmt.Errorf("only CSV and XLSX files are supported")
	}
}

// readImageArchive reads the optional "images" multipart part and indexes
// its central directory without extracting anything.
func (h *ImportHandler) readImageArchive(c *gin.Context) (zipData []byte, catalog *importer.AssetCatalog, warnings []string, err error) {
	file, header, ferr := c.Request.FormFile("images")
	if ferr != nil {
		return nil, nil, nil, nil // no archive uploaded
	}
	defer file.Close()

	if header.Size > h.opts.MaxZipBytes {
		return nil, nil, nil, fmt.Errorf("image archive exceeds %d bytes", h.opts.MaxZipBytes)
	}

	zipData, err = io.ReadAll(io.LimitReader(file, h.opts.MaxZipBytes+1))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read image archive: %w", err)
	}
	if int64(len(zipData)) > h.opts.MaxZipBytes {
		return nil, nil, nil, fmt.Errorf("image archive exceeds %d bytes", h.opts.MaxZipBytes)
	}

	catalog, err = importer.IndexZip(zipData, h.opts.ZipLimits)
	if err != nil {
		return nil, nil, nil, err
	}
	if catalog.Len() == 0 {
		warnings = append(warnings, "the uploaded image archive contains no files")
	}
	return zipData, catalog, warnings, nil
}

func (h *ImportHandler) lookupExistingSKUs(merchantID string, rows []models.RawRow) (map[string]bool, error) {
	skus := make([]string, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		sku := strings.TrimSpace(row["sku"])
		if sku != "" && !seen[sku] {
			seen[sku] = true
			skus = append(skus, sku)
		}
	}
	return h.repo.ExistingSKUs(merchantID, skus)
}

func previewRows(rows []models.ValidatedRow, n int) []models.ValidatedRow {
	if len(rows) <= n {
		return rows
	}
	return rows[:n]
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    code,
			Message: message,
		},
	})
}
