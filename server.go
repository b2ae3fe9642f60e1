package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/reconcile_backend/config"
	"bitbucket.org/mmdatafocus/reconcile_backend/models"
	"bitbucket.org/mmdatafocus/reconcile_backend/utils"
	"bitbucket.org/mmdatafocus/reconcile_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("reconcile-backend")

// Define a struct to represent the rate limiter.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func getRedisClient(redisAddress string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
	return client
}

// statusFromError maps domain sentinels onto HTTP statuses; anything
// unrecognized is a 500.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound),
		errors.Is(err, models.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAlreadyConfirmed):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidConfidence),
		errors.Is(err, models.ErrScopeMismatch),
		errors.Is(err, models.ErrUnknownColumn),
		errors.Is(err, models.ErrIncompleteMapping),
		errors.Is(err, models.ErrInvalidSheet),
		errors.Is(err, models.ErrEmptyData),
		errors.Is(err, models.ErrUnreadableFile):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusFromError(err), gin.H{"error": err.Error()})
}

func autoMatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		ctx, span := tracer.Start(c.Request.Context(), "autoMatch")
		defer span.End()

		var input workflow.AutoMatchInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		result, err := workflow.RunAutoMatch(ctx, logger, input)
		if err != nil {
			config.LogError(logger, "server.go", "autoMatchHandler", "Running auto match", input, err)
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func manualMatchHandler() gin.HandlerFunc {
	type manualMatchInput struct {
		ShopAccountId   int  `json:"shop_account_id" binding:"required"`
		MasterAccountId int  `json:"master_account_id" binding:"required"`
		Confirmed       bool `json:"confirmed"`
	}
	return func(c *gin.Context) {
		logger := config.GetLogger()

		var input manualMatchInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		matching, err := models.CreateManualMatch(c.Request.Context(), input.ShopAccountId, input.MasterAccountId, input.Confirmed)
		if err != nil {
			config.LogError(logger, "server.go", "manualMatchHandler", "Creating manual match", input, err)
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, matching)
	}
}

func decideMatchesHandler() gin.HandlerFunc {
	type decideInput struct {
		MatchingIds []int  `json:"matching_ids" binding:"required"`
		Action      string `json:"action" binding:"required"`
	}
	return func(c *gin.Context) {
		logger := config.GetLogger()

		var input decideInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		action, err := models.ParseMatchingAction(input.Action)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		applied, err := models.DecideMatches(c.Request.Context(), input.MatchingIds, action)
		if err != nil {
			config.LogError(logger, "server.go", "decideMatchesHandler", "Deciding matches", input, err)
			// report how far the batch got before the failure
			c.AbortWithStatusJSON(statusFromError(err), gin.H{
				"error":                err.Error(),
				"applied_matching_ids": applied,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"matching_ids": applied, "action": action})
	}
}

func resetMatchesHandler() gin.HandlerFunc {
	type resetInput struct {
		MatchingIds       []int `json:"matching_ids"`
		ChartOfAccountIds []int `json:"chart_of_account_ids"`
	}
	return func(c *gin.Context) {
		logger := config.GetLogger()

		var input resetInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		if err := models.ResetToPending(c.Request.Context(), input.MatchingIds, input.ChartOfAccountIds); err != nil {
			config.LogError(logger, "server.go", "resetMatchesHandler", "Resetting matches", input, err)
			abortWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func pendingMatchesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		shopId, _ := strconv.Atoi(c.Query("shop_id"))
		programId, _ := strconv.Atoi(c.Query("program_id"))

		matches, err := models.GetPendingMatches(c.Request.Context(), shopId, programId)
		if err != nil {
			config.LogError(logger, "server.go", "pendingMatchesHandler", "Querying pending matches", nil, err)
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"matches": matches, "count": len(matches)})
	}
}

func matchingStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		shopId, _ := strconv.Atoi(c.Query("shop_id"))
		programId, _ := strconv.Atoi(c.Query("program_id"))

		stats, err := models.GetReconciliationStats(c.Request.Context(), shopId, programId)
		if err != nil {
			config.LogError(logger, "server.go", "matchingStatsHandler", "Aggregating stats", nil, err)
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func matchingStatsExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		shopId, _ := strconv.Atoi(c.Query("shop_id"))
		programId, _ := strconv.Atoi(c.Query("program_id"))

		stats, err := models.GetReconciliationStats(c.Request.Context(), shopId, programId)
		if err != nil {
			config.LogError(logger, "server.go", "matchingStatsExportHandler", "Aggregating stats", nil, err)
			abortWithError(c, err)
			return
		}
		file, err := stats.ExportWorkbook()
		if err != nil {
			config.LogError(logger, "server.go", "matchingStatsExportHandler", "Building workbook", nil, err)
			abortWithError(c, err)
			return
		}
		fileName := fmt.Sprintf("reconciliation-stats-%s.xlsx", time.Now().UTC().Format("20060102"))
		c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := file.Write(c.Writer); err != nil {
			config.LogError(logger, "server.go", "matchingStatsExportHandler", "Writing workbook", nil, err)
		}
	}
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Shutdown coordination.
	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, we return 503 for app endpoints.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow Cloud Run startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate critical endpoints on dependency readiness.
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production-safe CORS:
	// - In production, require explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	// - In non-production, allow all (developer convenience).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))

	// Optional rate limiting (recommended for production).
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/api/import/analyze", analyzeUploadHandler())
	r.POST("/api/import/preview", previewUploadHandler())
	r.POST("/api/import/stage", stageImportHandler())
	r.GET("/api/import/fields", mappingFieldsHandler())
	r.POST("/api/import/execute", executeImportHandler())
	r.GET("/api/import/jobs/:jobId", stagedJobHandler())
	r.DELETE("/api/import/jobs/:jobId", discardJobHandler())
	r.GET("/api/import/jobs/:jobId/status", importStatusHandler())

	r.POST("/api/matching/auto", autoMatchHandler())
	r.POST("/api/matching/manual", manualMatchHandler())
	r.POST("/api/matching/decide", decideMatchesHandler())
	r.POST("/api/matching/reset", resetMatchesHandler())
	r.GET("/api/matching/pending", pendingMatchesHandler())
	r.GET("/api/matching/stats", matchingStatsHandler())
	r.GET("/api/matching/stats/export", matchingStatsExportHandler())

	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	// Now DB is ready; run migrations.
	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// IMPORTANT: AutoMigrate can run DDL that blocks tables and causes 504/502 timeouts.
	// Allow disabling migrations on startup (run them as a separate job instead).
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// Initialize a new RateLimiter instance.
func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Middleware function to check rate limits.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	// Get the IP address or user identifier from the request.
	key := c.ClientIP() // Assuming IP-based rate limiting

	// Check if the key exists in Redis.
	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the key doesn't exist, create it and set expiry.
	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	// If the key exists, get the current count.
	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the count exceeds the limit, return an error response.
	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
