package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/D24IT181/attendify-charusat/internal/attendance"
	"github.com/D24IT181/attendify-charusat/internal/auth"
	"github.com/D24IT181/attendify-charusat/internal/cloudinary"
	"github.com/D24IT181/attendify-charusat/internal/config"
	"github.com/D24IT181/attendify-charusat/internal/handler"
	"github.com/D24IT181/attendify-charusat/internal/httpmiddleware"
	"github.com/D24IT181/attendify-charusat/internal/roster"
	"github.com/D24IT181/attendify-charusat/internal/session"
	"github.com/D24IT181/attendify-charusat/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

// selfieUploader adapts the Cloudinary client to the submission engine,
// which only wants the hosted URL back.
type selfieUploader struct {
	client *cloudinary.Client
}

func (u selfieUploader) UploadSelfie(data string) (string, error) {
	res, err := u.client.UploadSelfie(data)
	if err != nil {
		return "", err
	}
	return res.SecureURL, nil
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := store.Migrate(ctx, db.Client); err != nil {
		cancel()
		return err
	}
	cancel()

	redisClient := store.NewRedis(cfg.RedisAddr)

	sessions := session.NewRegistry(session.NewRedisStore(redisClient.Client), cfg.PublicBaseURL, cfg.SessionGrace)
	rosterSvc := roster.NewService(roster.NewRepository(db.Client))

	// Selfie offload is optional; without credentials the base64 blob
	// stays inline in the record.
	var selfies attendance.SelfieStore
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		selfies = selfieUploader{client: cloudinary.New(
			cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)}
		log.Println("Cloudinary configured:", cfg.CloudinaryCloudName)
	} else {
		log.Println("Cloudinary not configured, selfies stored inline")
	}

	attendanceSvc := attendance.NewService(attendance.NewRepository(db.Client), sessions, rosterSvc, selfies)

	h := handler.New(sessions, rosterSvc, attendanceSvc, handler.AuthConfig{
		Issuer:     cfg.JWTIssuer,
		SigningKey: cfg.JWTSigningKey,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.RequestID())
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		dbHealthy := db.Healthy(c.Request.Context())
		redisHealthy := redisClient.Healthy(c.Request.Context())
		status := http.StatusOK
		if !dbHealthy || !redisHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "db": dbHealthy, "redis": redisHealthy})
	})

	r.POST("/v1/teachers/login", h.TeacherLogin)

	// Student-facing: submission and session lookup need no token, only
	// the opaque link.
	r.POST("/v1/attendance", h.SubmitAttendance)
	r.GET("/v1/sessions/:id", h.GetSession)

	// Teacher-facing routes sit behind JWT auth.
	teacherGroup := r.Group("/v1", auth.TeacherAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	teacherGroup.POST("/sessions", h.CreateSession)
	teacherGroup.POST("/sessions/:id/close", h.CloseSession)

	teacherGroup.GET("/attendance/live", h.LiveAttendance)
	teacherGroup.GET("/attendance/records", h.ClassRecords)
	teacherGroup.DELETE("/attendance/records/:id", h.DeleteRecord)
	teacherGroup.POST("/attendance/bulk-delete", h.BulkDeleteRecords)

	teacherGroup.POST("/students", h.AddStudent)
	teacherGroup.DELETE("/students/:studentId", h.RemoveStudent)
	teacherGroup.GET("/students", h.ListStudents)
	teacherGroup.GET("/students/count", h.CountStudents)

	teacherGroup.POST("/teachers", h.AddTeacher)
	teacherGroup.DELETE("/teachers", h.RemoveTeacher)
	teacherGroup.GET("/teachers/count", h.CountTeachers)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// CORS middleware for browser requests. The attendance form is served
// from a separate origin.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
