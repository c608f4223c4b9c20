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
	"github.com/mmdatafocus/distribution_backend/config"
	"github.com/mmdatafocus/distribution_backend/middlewares"
	"github.com/mmdatafocus/distribution_backend/models"
	"github.com/mmdatafocus/distribution_backend/utils"
	"github.com/mmdatafocus/distribution_backend/workflow"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

const auditDrainTimeout = 10 * time.Second

// RateLimiter counts requests per client IP in fixed redis windows.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()
	if err := utils.CheckJwtSecret(); err != nil {
		logger.WithFields(logrus.Fields{"field": "auth"}).Fatal(err)
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// The port opens before DB and Redis are connected; the readiness gate answers 503 until then.
	r := newRouter(logger)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can hold DDL locks; run it as a separate job in busy environments.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	auditSink := workflow.BuildAuditSink(config.AuditSinks())
	models.SetAuditSink(auditSink)
	logger.WithFields(logrus.Fields{"field": "audit"}).Info("audit sinks: " + auditSink.Name())

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

	log.Printf("Server started on :%s", port)

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Audit goroutines started by the last requests finish before their sinks close.
	if !models.WaitForAudit(auditDrainTimeout) {
		logger.WithFields(logrus.Fields{"field": "audit"}).Warn("audit events still in flight at shutdown")
	}
	if err := auditSink.Close(); err != nil {
		logger.WithFields(logrus.Fields{"field": "audit"}).Error("closing audit sinks: " + err.Error())
	}
	config.ClosePubSub()

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

func newRouter(logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(correlationMiddleware())
	r.Use(readinessGate())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(config.GetMetrics().Handler()))

	r.Use(cors.New(corsConfig()))

	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
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
		rateLimiter := NewRateLimiter(limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(metricsMiddleware())
	r.Use(middlewares.AuthMiddleware())
	r.Use(middlewares.LoaderMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	registerRoutes(r.Group("/", middlewares.RequireActor()))
	r.NoRoute(customNotFoundHandler)
	return r
}

func registerRoutes(api *gin.RouterGroup) {
	api.POST("/units", createUnitHandler())
	api.GET("/units", listUnitsHandler())
	api.GET("/units/:id", getUnitHandler())
	api.POST("/units/:id/deactivate", deactivateUnitHandler())

	api.POST("/products", createProductHandler())
	api.GET("/products", listProductsHandler())
	api.GET("/products/:id", getProductHandler())
	api.POST("/products/:id/deactivate", deactivateProductHandler())

	api.POST("/orders", createOrderHandler())
	api.GET("/orders", listOrdersHandler())
	api.GET("/orders/:id", getOrderHandler())
	api.POST("/orders/:id/authorize", orderActionHandler(models.AuthorizeOrder))
	api.POST("/orders/:id/confirm", orderActionHandler(models.ConfirmOrder))
	api.POST("/orders/:id/cancel", orderActionHandler(models.CancelOrder))
	api.POST("/orders/:id/fulfill", orderActionHandler(models.FulfillOrder))
	api.DELETE("/orders/:id", orderActionHandler(models.DeleteOrder))
	api.GET("/orders/:id/settlements", listSettlementsHandler())
	api.POST("/orders/:id/settlements", submitSettlementHandler())
	api.GET("/orders/:id/balance", balanceHandler())

	api.GET("/settlements", settlementQueueHandler())
	api.POST("/settlements/:id/approve", approveSettlementHandler())
	api.POST("/settlements/:id/reject", rejectSettlementHandler())

	api.POST("/stock/entries", stockEntryHandler())
	api.POST("/stock/exits", stockExitHandler())
	api.POST("/stock/adjustments", stockAdjustmentHandler())
	api.POST("/stock/movements/:id/reverse", reverseMovementHandler())
	api.GET("/stock/levels", stockLevelsHandler())
	api.GET("/stock/pool/:productId", stockPoolHandler())
	api.GET("/stock/movements", listMovementsHandler())

	api.GET("/audit-logs", listAuditLogsHandler())

	api.POST("/uploads/receipts", uploadReceiptHandler())
}

// correlationMiddleware reuses x-correlation-id or mints one, and echoes it back.
func correlationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Header("x-correlation-id", cid)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	}
}

func readinessGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.URL.Path {
		case "/healthz", "/metrics":
			c.Next()
			return
		}
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	}
}

func corsConfig() cors.Config {
	corsConfig := cors.DefaultConfig()
	// Production requires an explicit allowlist; everything else allows all origins.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if config.IsProduction() {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "x-correlation-id")
	corsConfig.AddExposeHeaders("Content-Length", "x-correlation-id")
	corsConfig.AllowCredentials = true
	return corsConfig
}

// metricsMiddleware records per-route counts and latency. Unmatched paths share one label.
func metricsMiddleware() gin.HandlerFunc {
	m := config.GetMetrics()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
			logger.WithFields(logrus.Fields{
				"path":           c.FullPath(),
				"status":         c.Writer.Status(),
				"correlation_id": cid,
			}).Error(c.Errors.String())
		}
	}
}

// NewRateLimiter uses the shared redis client, so it only counts once Redis is connected.
func NewRateLimiter(limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:  limit,
		window: window,
	}
}

func (rl *RateLimiter) redisClient() *redis.Client {
	if rl.client != nil {
		return rl.client
	}
	return config.GetRedisDB()
}

func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	client := rl.redisClient()
	if client == nil {
		c.Next()
		return
	}
	ctx := c.Request.Context()
	key := "ratelimit:" + c.ClientIP()

	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	if count == 1 {
		if err := client.Expire(ctx, key, rl.window).Err(); err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
	}

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
