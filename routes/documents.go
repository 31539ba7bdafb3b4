package routes

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"docqa-platform/internal/config"
	"docqa-platform/internal/logger"
	"docqa-platform/internal/queue"
	"docqa-platform/models"
	"docqa-platform/services"
	"docqa-platform/utils"
)

// SetupDocumentRoutes registers the document lifecycle endpoints: upload,
// listing, status, reprocess, delete, and inventory export.
func SetupDocumentRoutes(
	router *gin.Engine,
	cfg *config.Config,
	registry services.DocumentRegistry,
	ingest *services.IngestService,
	files *services.FileStore,
	export *services.ExportService,
	queueClient *asynq.Client,
) {
	docs := router.Group("/api/documents")
	{
		docs.POST("", HandleUpload(cfg, registry, ingest, files, queueClient))
		docs.GET("", HandleListDocuments(registry))
		docs.GET("/export", HandleExportInventory(export))
		docs.GET("/:id", HandleGetDocument(registry))
		docs.POST("/:id/reprocess", HandleReprocess(registry, ingest, queueClient))
		docs.DELETE("/:id", HandleDeleteDocument(ingest))
	}
}

// HandleUpload accepts a PDF, stores it, and runs the ingestion pipeline.
// Small files are processed synchronously and return the final result; files
// above the sync limit are queued and return 202 with a pending record.
// Re-uploading with an explicit doc_id replaces that document's content once
// the new run commits.
func HandleUpload(cfg *config.Config, registry services.DocumentRegistry, ingest *services.IngestService, files *services.FileStore, queueClient *asynq.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseMultipartForm(cfg.MaxFileSize); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "file_too_large", "File size exceeds maximum limit", nil)
			return
		}

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			file, header, err = c.Request.FormFile("pdf")
		}
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "no_file", "No PDF file provided", nil)
			return
		}
		defer file.Close()

		if header.Size > cfg.MaxFileSize {
			utils.RespondWithError(c, http.StatusBadRequest, "file_too_large", "File size exceeds maximum limit", nil)
			return
		}
		ct := header.Header.Get("Content-Type")
		if !strings.Contains(ct, "pdf") && !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_file_type", "Only PDF files are allowed", nil)
			return
		}

		raw, err := io.ReadAll(file)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to read upload", nil)
			return
		}
		if !services.IsPDF(raw) {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_pdf", "File does not appear to be a valid PDF", nil)
			return
		}

		docID := strings.TrimSpace(c.PostForm("doc_id"))
		if docID == "" {
			docID = uuid.NewString()
		}

		prior, err := registry.Get(c.Request.Context(), docID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to check document record", nil)
			return
		}
		if prior != nil && models.InFlight(prior.Status) {
			utils.RespondWithError(c, http.StatusConflict, "ingestion_in_progress",
				"Document is currently being processed", nil)
			return
		}

		path, err := files.Save(docID, raw)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to store upload", nil)
			return
		}

		now := time.Now()
		doc := &models.Document{
			ID:         docID,
			Filename:   header.Filename,
			FilePath:   path,
			Size:       header.Size,
			Status:     models.StatusPending,
			UploadedAt: now,
		}
		if prior != nil {
			// Keep the original upload time and current semantic fields until
			// the new run commits; queries stay on the old state meanwhile.
			doc.UploadedAt = prior.UploadedAt
			doc.IsCV = prior.IsCV
			doc.Summary = prior.Summary
			doc.ChunkCount = prior.ChunkCount
			doc.ProcessedAt = prior.ProcessedAt
		}
		if err := registry.Upsert(c.Request.Context(), doc); err != nil {
			utils.RespondWithInternalError(c, "Failed to create document record", nil)
			return
		}

		if queueClient != nil && header.Size > cfg.SyncProcessingLimit {
			task, err := queue.NewIngestTask(docID, path)
			if err != nil {
				utils.RespondWithInternalError(c, "Failed to create processing task", nil)
				return
			}
			if _, err := queueClient.Enqueue(task); err != nil {
				logger.Error("failed to enqueue ingestion", "doc_id", docID, "error", err)
				utils.RespondWithInternalError(c, "Failed to queue document for processing", nil)
				return
			}
			c.JSON(http.StatusAccepted, gin.H{
				"id":      docID,
				"status":  models.StatusPending,
				"message": fmt.Sprintf("Document queued for processing (%d bytes)", header.Size),
			})
			return
		}

		result, err := ingest.Ingest(c.Request.Context(), docID, raw)
		if err != nil {
			utils.RespondWithPipelineError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func HandleListDocuments(registry services.DocumentRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		docs, err := registry.List(c.Request.Context())
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list documents", nil)
			return
		}
		if docs == nil {
			docs = []models.Document{}
		}
		c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
	}
}

func HandleGetDocument(registry services.DocumentRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := registry.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to fetch document", nil)
			return
		}
		if doc == nil {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

// HandleReprocess re-runs the pipeline from the stored original file.
func HandleReprocess(registry services.DocumentRegistry, ingest *services.IngestService, queueClient *asynq.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		docID := c.Param("id")

		if queueClient != nil {
			doc, err := registry.Get(c.Request.Context(), docID)
			if err != nil {
				utils.RespondWithInternalError(c, "Failed to fetch document", nil)
				return
			}
			if doc == nil {
				utils.RespondWithNotFound(c, "Document not found")
				return
			}
			task, err := queue.NewIngestTask(docID, doc.FilePath)
			if err != nil {
				utils.RespondWithInternalError(c, "Failed to create processing task", nil)
				return
			}
			if _, err := queueClient.Enqueue(task); err != nil {
				logger.Error("failed to enqueue reprocess", "doc_id", docID, "error", err)
				utils.RespondWithInternalError(c, "Failed to queue document for processing", nil)
				return
			}
			c.JSON(http.StatusAccepted, gin.H{"id": docID, "status": models.StatusPending})
			return
		}

		result, err := ingest.Reprocess(c.Request.Context(), docID)
		if err != nil {
			utils.RespondWithPipelineError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func HandleDeleteDocument(ingest *services.IngestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := ingest.Delete(c.Request.Context(), c.Param("id")); err != nil {
			utils.RespondWithPipelineError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// HandleExportInventory streams the document inventory as an XLSX download.
func HandleExportInventory(export *services.ExportService) gin.HandlerFunc {
	return func(c *gin.Context) {
		buf, rows, err := export.ExportInventoryXLSX(c.Request.Context())
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to export inventory", nil)
			return
		}

		filename := fmt.Sprintf("documents_%s.xlsx", time.Now().Format("20060102_150405"))
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		c.Header("X-Export-Rows", fmt.Sprintf("%d", rows))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	}
}
