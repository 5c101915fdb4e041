package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/database"
	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/handler"
	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/middleware"
	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/repository"
	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/service"
	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           NPT Workflow API
// @version         1.0
// @description     Approval workflow and period lifecycle engine for drilling NPT reports.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")
	dbSslMode := os.Getenv("DB_SSLMODE")

	if dbHost == "" {
		dbHost = "localhost"
	}
	if dbPort == "" {
		dbPort = "5432"
	}
	if dbUser == "" {
		dbUser = "postgres"
	}
	if dbPassword == "" {
		dbPassword = "postgres"
	}
	if dbName == "" {
		dbName = "postgres"
	}
	if dbSslMode == "" {
		dbSslMode = "disable"
	}

	dsn := "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode

	db, err := database.NewConnection(dsn)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	reportRepo := repository.NewReportRepository(db)
	recordRepo := repository.NewApprovalRecordRepository(db)
	rosterRepo := repository.NewRosterRepository(db)
	periodRepo := repository.NewPeriodRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	userService := service.NewUserService(userRepo)
	rosterService := service.NewRosterService(rosterRepo, txManager)
	workflowService := service.NewWorkflowService(reportRepo, recordRepo, notificationRepo, rosterService, txManager, wsHub)
	periodService := service.NewPeriodService(periodRepo, notificationRepo, rosterService, txManager, wsHub)
	monitorService := service.NewMonitorService(periodRepo, notificationRepo, rosterService, monitorConfig())

	// Initialize Handlers
	userHandler := handler.NewUserHandler(userService)
	reportHandler := handler.NewReportHandler(workflowService)
	periodHandler := handler.NewPeriodHandler(periodService)
	rosterHandler := handler.NewRosterHandler(rosterService)
	notificationHandler := handler.NewNotificationHandler(notificationRepo)
	monitorHandler := handler.NewMonitorHandler(monitorService)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"} // Frontend URL
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	// Register API Routes
	userHandler.RegisterRoutes(router.Group(""))
	reportHandler.RegisterRoutes(router.Group(""))
	periodHandler.RegisterRoutes(router.Group(""))
	rosterHandler.RegisterRoutes(router.Group(""))
	notificationHandler.RegisterRoutes(router.Group(""))
	monitorHandler.RegisterRoutes(router.Group(""))

	// The sweeps only read periods and enqueue deduplicated notifications,
	// so overlapping or repeated runs are harmless.
	scheduler := cron.New()
	schedule := os.Getenv("SWEEP_SCHEDULE")
	if schedule == "" {
		schedule = "@hourly"
	}
	if _, err := scheduler.AddFunc(schedule, runSweeps(monitorService)); err != nil {
		log.Fatalf("Invalid SWEEP_SCHEDULE %q: %v", schedule, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func runSweeps(monitor service.MonitorService) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if emitted, err := monitor.RunSlaCheck(ctx); err != nil {
			log.Printf("SLA sweep failed: %v", err)
		} else if emitted > 0 {
			log.Printf("SLA sweep emitted %d notifications", emitted)
		}
		if emitted, err := monitor.RunStallCheck(ctx); err != nil {
			log.Printf("Stall sweep failed: %v", err)
		} else if emitted > 0 {
			log.Printf("Stall sweep emitted %d notifications", emitted)
		}
	}
}

func monitorConfig() service.MonitorConfig {
	config := service.DefaultMonitorConfig()
	if hours := os.Getenv("STALL_THRESHOLD_HOURS"); hours != "" {
		if parsed, err := strconv.Atoi(hours); err == nil && parsed > 0 {
			config.StallThreshold = time.Duration(parsed) * time.Hour
		}
	}
	return config
}
