package main

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/reconcile_backend/config"
	"bitbucket.org/mmdatafocus/reconcile_backend/models"
	"bitbucket.org/mmdatafocus/reconcile_backend/utils"
	"bitbucket.org/mmdatafocus/reconcile_backend/workflow"
	"github.com/gin-gonic/gin"
)

const maxUploadSizeBytes int64 = 10 * 1024 * 1024

// .xls is accepted here but the legacy binary format is not parseable; those
// uploads fail at parse time with the same unreadable-file error.
var spreadsheetExtensions = map[string]bool{
	".xlsx": true,
	".xlsm": true,
	".xls":  true,
	".csv":  true,
}

// readSpreadsheetUpload pulls the "file" part out of a multipart request and
// parses it. The whole file is read into memory; uploads are capped well
// below what that could hurt.
func readSpreadsheetUpload(c *gin.Context) (*models.Workbook, string, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return nil, "", models.ErrUnreadableFile
	}
	if fileHeader.Size > maxUploadSizeBytes {
		return nil, "", models.ErrUnreadableFile
	}
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !spreadsheetExtensions[ext] {
		return nil, "", models.ErrUnreadableFile
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, "", models.ErrUnreadableFile
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSizeBytes+1))
	if err != nil {
		return nil, "", models.ErrUnreadableFile
	}
	if int64(len(data)) > maxUploadSizeBytes {
		return nil, "", models.ErrUnreadableFile
	}

	wb, err := models.ParseWorkbook(data, fileHeader.Filename)
	if err != nil {
		return nil, "", err
	}
	return wb, fileHeader.Filename, nil
}

// pickSheet defaults to the first sheet when the client doesn't name one.
func pickSheet(c *gin.Context, wb *models.Workbook) string {
	sheet := strings.TrimSpace(c.PostForm("sheet"))
	if sheet != "" {
		return sheet
	}
	infos := wb.AnalyzeSheets()
	if len(infos) > 0 {
		return infos[0].Name
	}
	return ""
}

func analyzeUploadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		wb, fileName, err := readSpreadsheetUpload(c)
		if err != nil {
			config.LogError(logger, "uploads.go", "analyzeUploadHandler", "Parsing upload", nil, err)
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"file_name": fileName,
			"sheets":    wb.AnalyzeSheets(),
		})
	}
}

func previewUploadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		wb, _, err := readSpreadsheetUpload(c)
		if err != nil {
			config.LogError(logger, "uploads.go", "previewUploadHandler", "Parsing upload", nil, err)
			abortWithError(c, err)
			return
		}
		limit := models.PreviewRowLimit
		if v := strings.TrimSpace(c.PostForm("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		preview, err := wb.PreviewSheet(pickSheet(c, wb), limit)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, preview)
	}
}

func stageImportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		wb, _, err := readSpreadsheetUpload(c)
		if err != nil {
			config.LogError(logger, "uploads.go", "stageImportHandler", "Parsing upload", nil, err)
			abortWithError(c, err)
			return
		}

		scope, err := models.ParseImportScope(c.PostForm("scope"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		shopId, _ := strconv.Atoi(c.PostForm("shop_id"))
		programId, _ := strconv.Atoi(c.PostForm("program_id"))
		if programId == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "program_id is required"})
			return
		}

		var meta models.StagedImportMetadata
		if v := strings.TrimSpace(c.PostForm("import_date")); v != "" {
			parsed, err := time.Parse("2006-01-02", v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "import_date must be YYYY-MM-DD"})
				return
			}
			meta.ImportDate = &parsed
		}
		if v := strings.TrimSpace(c.PostForm("ledger_date")); v != "" {
			parsed, err := time.Parse("2006-01-02", v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "ledger_date must be YYYY-MM-DD"})
				return
			}
			meta.LedgerDate = &parsed
		}

		job, err := models.StageImport(c.Request.Context(), wb, pickSheet(c, wb), scope, shopId, programId, meta)
		if err != nil {
			config.LogError(logger, "uploads.go", "stageImportHandler", "Staging import", nil, err)
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, job.Summary())
	}
}

func mappingFieldsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, err := models.ParseImportScope(c.Query("scope"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"scope": scope, "fields": models.GetMappingFields(scope)})
	}
}

func executeImportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		var input workflow.ImportInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}

		async := strings.EqualFold(c.Query("async"), "true") || config.ImportAsyncEnabled()
		if async {
			if err := workflow.RunImportAsync(c.Request.Context(), logger, input); err != nil {
				config.LogError(logger, "uploads.go", "executeImportHandler", "Starting async import", input, err)
				abortWithError(c, err)
				return
			}
			c.JSON(http.StatusAccepted, gin.H{
				"job_id":     input.JobId,
				"status_url": "/api/import/jobs/" + input.JobId + "/status",
			})
			return
		}

		result, err := workflow.RunImport(c.Request.Context(), logger, input)
		if err != nil {
			config.LogError(logger, "uploads.go", "executeImportHandler", "Running import", input, err)
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func stagedJobHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := models.GetStagedJob(c.Param("jobId"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, job.Summary())
	}
}

func discardJobHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		if _, err := models.GetStagedJob(c.Param("jobId")); err != nil {
			abortWithError(c, err)
			return
		}
		if err := models.DiscardStagedJob(c.Param("jobId")); err != nil {
			config.LogError(logger, "uploads.go", "discardJobHandler", "Discarding staged job", c.Param("jobId"), err)
			abortWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func importStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := models.GetImportJobStatus(c.Param("jobId"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}
