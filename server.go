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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/assets_backend/config"
	"github.com/mmdatafocus/assets_backend/middlewares"
	"github.com/mmdatafocus/assets_backend/models"
	"github.com/mmdatafocus/assets_backend/models/reports"
	"github.com/mmdatafocus/assets_backend/utils"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("assets-backend")

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

// statusForError maps the model error taxonomy onto HTTP. Anything unmapped
// is a 500 and gets logged with full context.
func statusForError(err error) int {
	switch {
	case utils.IsValidation(err):
		return http.StatusBadRequest
	case utils.IsNotFound(err):
		return http.StatusNotFound
	case utils.IsStateConflict(err):
		return http.StatusConflict
	case utils.IsDuplicateCheck(err):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func renderError(c *gin.Context, funcName string, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		logger := config.GetLogger()
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		config.LogError(logger, "server.go", funcName, "correlation_id="+cid, nil, err)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}

	body := gin.H{"error": err.Error()}
	var sc *utils.StateConflictError
	if errors.As(err, &sc) {
		body["current_status"] = sc.CurrentStatus
	}
	c.JSON(status, body)
}

func queryInt(c *gin.Context, name string) *int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return &n
	}
	return nil
}

func queryString(c *gin.Context, name string) *string {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil
	}
	return &raw
}

func queryLimit(c *gin.Context) int {
	limit := 20
	if n := queryInt(c, "limit"); n != nil && *n > 0 && *n <= 100 {
		limit = *n
	}
	return limit
}

func pathId(c *gin.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, utils.NewValidationError("invalid id")
	}
	return id, nil
}

func bindError(c *gin.Context, err error) {
	if fields := utils.ParseValidationErrors(err); len(fields) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func createInventoryTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewInventoryTask
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		task, err := models.CreateInventoryTask(c.Request.Context(), &input)
		if err != nil {
			renderError(c, "createInventoryTaskHandler", err)
			return
		}
		c.JSON(http.StatusCreated, task)
	}
}

func paginateInventoryTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var status *models.InventoryTaskStatus
		if raw := queryString(c, "status"); raw != nil {
			s := models.InventoryTaskStatus(*raw)
			status = &s
		}
		var taskType *models.InventoryTaskType
		if raw := queryString(c, "task_type"); raw != nil {
			t := models.InventoryTaskType(*raw)
			taskType = &t
		}

		edges, pageInfo, err := models.PaginateInventoryTask(c.Request.Context(),
			queryLimit(c), queryString(c, "after"), status, taskType, queryString(c, "keyword"))
		if err != nil {
			renderError(c, "paginateInventoryTaskHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"edges": edges, "pageInfo": pageInfo})
	}
}

func getInventoryTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c)
		if err != nil {
			renderError(c, "getInventoryTaskHandler", err)
			return
		}
		task, err := models.GetInventoryTask(c.Request.Context(), id)
		if err != nil {
			renderError(c, "getInventoryTaskHandler", err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

func updateInventoryTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c)
		if err != nil {
			renderError(c, "updateInventoryTaskHandler", err)
			return
		}
		var input models.UpdateInventoryTaskInput
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		task, err := models.UpdateInventoryTask(c.Request.Context(), id, &input)
		if err != nil {
			renderError(c, "updateInventoryTaskHandler", err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

func deleteInventoryTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c)
		if err != nil {
			renderError(c, "deleteInventoryTaskHandler", err)
			return
		}
		if err := models.DeleteInventoryTask(c.Request.Context(), id); err != nil {
			renderError(c, "deleteInventoryTaskHandler", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func startInventoryTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c)
		if err != nil {
			renderError(c, "startInventoryTaskHandler", err)
			return
		}
		task, err := models.StartInventoryTask(c.Request.Context(), id)
		if err != nil {
			renderError(c, "startInventoryTaskHandler", err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

func completeInventoryTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c)
		if err != nil {
			renderError(c, "completeInventoryTaskHandler", err)
			return
		}
		task, err := models.CompleteInventoryTask(c.Request.Context(), id)
		if err != nil {
			renderError(c, "completeInventoryTaskHandler", err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

func inventoryTaskChecklistHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c)
		if err != nil {
			renderError(c, "inventoryTaskChecklistHandler", err)
			return
		}
		items, err := models.ResolveChecklist(c.Request.Context(), id)
		if err != nil {
			renderError(c, "inventoryTaskChecklistHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
	}
}

func inventoryTaskReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c)
		if err != nil {
			renderError(c, "inventoryTaskReportHandler", err)
			return
		}
		ctx, span := tracer.Start(c.Request.Context(), "inventoryTaskReport")
		defer span.End()
		report, err := reports.GetInventoryTaskReport(ctx, id)
		if err != nil {
			renderError(c, "inventoryTaskReportHandler", err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func createInventoryRecordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewInventoryRecord
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		record, err := models.CreateInventoryRecord(c.Request.Context(), &input)
		if err != nil {
			renderError(c, "createInventoryRecordHandler", err)
			return
		}
		c.JSON(http.StatusCreated, record)
	}
}

type batchInventoryRecordRequest struct {
	TaskId  int                          `json:"task_id" binding:"required"`
	Records []*models.NewInventoryRecord `json:"records" binding:"required"`
}

func batchInventoryRecordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req batchInventoryRecordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
		result, err := models.CreateInventoryRecords(c.Request.Context(), req.TaskId, req.Records)
		if err != nil {
			renderError(c, "batchInventoryRecordHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success_count": result.SuccessCount,
			"failed_count":  result.FailedCount,
			"records":       result.Results,
			"errors":        result.Errors,
		})
	}
}

func paginateInventoryRecordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var result *models.InventoryCheckResult
		if raw := queryString(c, "result"); raw != nil {
			r := models.InventoryCheckResult(*raw)
			result = &r
		}

		edges, pageInfo, err := models.PaginateInventoryRecord(c.Request.Context(),
			queryLimit(c), queryString(c, "after"),
			queryInt(c, "task_id"), result, queryString(c, "keyword"))
		if err != nil {
			renderError(c, "paginateInventoryRecordHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"edges": edges, "pageInfo": pageInfo})
	}
}

func getInventoryRecordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c)
		if err != nil {
			renderError(c, "getInventoryRecordHandler", err)
			return
		}
		record, err := models.GetInventoryRecord(c.Request.Context(), id)
		if err != nil {
			renderError(c, "getInventoryRecordHandler", err)
			return
		}
		c.JSON(http.StatusOK, record)
	}
}

func listAssetsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var status *models.AssetStatus
		if raw := queryString(c, "status"); raw != nil {
			s := models.AssetStatus(*raw)
			status = &s
		}
		assets, err := models.ListAssets(c.Request.Context(),
			queryInt(c, "category_id"), queryInt(c, "department_id"),
			status, queryString(c, "keyword"))
		if err != nil {
			renderError(c, "listAssetsHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"assets": assets, "count": len(assets)})
	}
}

func getAssetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c)
		if err != nil {
			renderError(c, "getAssetHandler", err)
			return
		}
		asset, err := models.GetAsset(c.Request.Context(), id)
		if err != nil {
			renderError(c, "getAssetHandler", err)
			return
		}
		c.JSON(http.StatusOK, asset)
	}
}

func listAssetCategoriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		categories, err := models.ListAllAssetCategories(c.Request.Context())
		if err != nil {
			renderError(c, "listAssetCategoriesHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"categories": categories})
	}
}

func listDepartmentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		departments, err := models.ListAllDepartments(c.Request.Context())
		if err != nil {
			renderError(c, "listDepartmentsHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"departments": departments})
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
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
		if config.GetDB() == nil {
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
	corsConfig.AddExposeHeaders("Content-Length")
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

	r.Use(middlewares.SessionMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	api := r.Group("/api")
	{
		api.POST("/inventory-tasks", createInventoryTaskHandler())
		api.GET("/inventory-tasks", paginateInventoryTaskHandler())
		api.GET("/inventory-tasks/:id", getInventoryTaskHandler())
		api.PUT("/inventory-tasks/:id", updateInventoryTaskHandler())
		api.DELETE("/inventory-tasks/:id", deleteInventoryTaskHandler())
		api.POST("/inventory-tasks/:id/start", startInventoryTaskHandler())
		api.POST("/inventory-tasks/:id/complete", completeInventoryTaskHandler())
		api.GET("/inventory-tasks/:id/checklist", inventoryTaskChecklistHandler())
		api.GET("/inventory-tasks/:id/report", inventoryTaskReportHandler())

		api.POST("/inventory-records", createInventoryRecordHandler())
		api.POST("/inventory-records/batch", batchInventoryRecordHandler())
		api.GET("/inventory-records", paginateInventoryRecordHandler())
		api.GET("/inventory-records/:id", getInventoryRecordHandler())

		api.GET("/assets", listAssetsHandler())
		api.GET("/assets/:id", getAssetHandler())
		api.GET("/asset-categories", listAssetCategoriesHandler())
		api.GET("/departments", listDepartmentsHandler())
	}

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
		if err := models.MigrateTable(); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Error("migration failed: " + err.Error())
		}
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
	}).Info("listening on http://localhost:", port, "/api")
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
