package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/lsampedro/factumattic-console/internal/api"
	"github.com/lsampedro/factumattic-console/internal/config"
	"github.com/lsampedro/factumattic-console/internal/database"
	"github.com/lsampedro/factumattic-console/internal/services"
)

func main() {
	// Cargar configuración
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	// Configurar logging
	logger := setupLogger(cfg)
	logger.Info("Starting Factumattic console service...")

	// Configurar modo de Gin
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Conectar al almacén de documentos
	ctx := context.Background()
	firestoreClient, err := database.NewFirestoreClient(ctx, &cfg.Firestore)
	if err != nil {
		logger.Fatalf("Error connecting to Firestore: %v", err)
	}
	defer firestoreClient.Close()

	// Conectar a Redis
	redis, err := database.ConnectRedis(cfg)
	if err != nil {
		logger.Warnf("Error connecting to Redis: %v", err)
		redis = nil
	} else {
		defer redis.Close()
	}

	// Inicializar el cliente de almacenamiento de documentos fuente
	var fileStorage *database.FileStorage
	if cfg.Storage.AccessKeyID != "" && cfg.Storage.SecretAccessKey != "" {
		fileStorage, err = database.NewFileStorage(&cfg.Storage, logger)
		if err != nil {
			logger.Warnf("Error initializing file storage client: %v", err)
			fileStorage = nil
		} else if err := fileStorage.HealthCheck(); err != nil {
			logger.Warnf("File storage health check failed: %v", err)
		} else {
			logger.Info("File storage connection healthy")
		}
	} else {
		logger.Warn("Storage credentials not provided, documents will be served from the public bucket origin")
	}

	// Inicializar repositorios
	invoiceRepo := database.NewInvoiceRepository(firestoreClient, cfg.Firestore.Collection, logger)
	prefRepo := database.NewPreferenceRepository(redis, logger)
	sessionRepo := database.NewSessionRepository(redis, logger)

	// Inicializar servicios
	var signer services.DocumentSigner
	if fileStorage != nil {
		signer = fileStorage
	}
	invoiceService := services.NewInvoiceService(invoiceRepo, signer, cfg.Storage.BucketOrigin, logger)

	// Inicializar API
	apiHandler := api.NewAPI(invoiceService, prefRepo, sessionRepo, cfg.JWT.Secret, logger)

	// Configurar router
	router := setupRouter(apiHandler, redis, cfg)

	// Crear servidor HTTP
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Canal para señales de terminación
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Iniciar servidor en goroutine
	go func() {
		logger.Infof("Server starting on %s:%s", cfg.Server.Host, cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	// Esperar señal de terminación
	<-quit
	logger.Info("Shutting down server...")

	// Contexto con timeout para shutdown graceful
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown graceful del servidor
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// setupLogger configura el logger según la configuración
func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	// Configurar nivel de log
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// Configurar formato
	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

// setupRouter configura el router principal
func setupRouter(apiHandler *api.API, redis *database.Redis, cfg *config.Config) *gin.Engine {
	router := gin.New()

	// Middleware global
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(apiHandler.RequestIDMiddleware())

	// Middleware de CORS para desarrollo
	if cfg.IsDevelopment() {
		router.Use(func(c *gin.Context) {
			c.Header("Access-Control-Allow-Origin", "*")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Request-ID")

			if c.Request.Method == "OPTIONS" {
				c.AbortWithStatus(204)
				return
			}

			c.Next()
		})
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		status := "ok"
		if redis != nil {
			if err := redis.HealthCheck(); err != nil {
				status = "degraded"
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    status,
			"timestamp": time.Now().UTC(),
			"service":   "factumattic-console",
			"version":   "1.0.0",
		})
	})

	// API v1 (toda la consola requiere sesión)
	v1 := router.Group("/api/v1")
	v1.Use(apiHandler.AuthMiddleware())
	{
		v1.GET("/invoices", apiHandler.ListInvoices)
		v1.GET("/invoices/:id", apiHandler.GetInvoice)
		v1.PUT("/invoices/:id", apiHandler.UpdateInvoice)
		v1.DELETE("/invoices/:id", apiHandler.DeleteInvoice)
		v1.GET("/invoices/:id/document", apiHandler.GetInvoiceDocument)
		v1.POST("/invoices/export", apiHandler.ExportInvoices)

		v1.GET("/preferences/export-fields", apiHandler.GetExportFields)
		v1.PUT("/preferences/export-fields", apiHandler.UpdateExportFields)

		v1.POST("/auth/logout", apiHandler.Logout)
	}

	return router
}
