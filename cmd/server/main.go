package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/workbridge/api/internal/config"
	"github.com/workbridge/api/internal/handler"
	"github.com/workbridge/api/internal/middleware"
	"github.com/workbridge/api/internal/service"
	"github.com/workbridge/api/internal/store"
	ws "github.com/workbridge/api/internal/websocket"
	"github.com/workbridge/api/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Open database
	db, err := store.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.EnsureSchema(); err != nil {
		log.Fatalf("Failed to prepare schema: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize stores
	userStore := store.NewUserStore(db)
	jobStore := store.NewJobStore(db)
	bidStore := store.NewBidStore(db)
	messageStore := store.NewMessageStore(db)

	// Initialize services
	jobService := service.NewJobService(jobStore, bidStore, messageStore, asynqClient)
	bidService := service.NewBidService(bidStore, jobStore, asynqClient)
	messageService := service.NewMessageService(messageStore, jobStore, userStore, asynqClient)

	// Initialize handlers
	jobHandler := handler.NewJobHandler(jobService, validate)
	bidHandler := handler.NewBidHandler(bidService, validate)
	messageHandler := handler.NewMessageHandler(messageService, validate)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// API routes
	api := app.Group("/api", authMiddleware.Authenticate())

	// Job routes
	jobs := api.Group("/jobs")
	jobs.Get("/", jobHandler.Search)
	jobs.Post("/", rateLimiter.JobLimit(cfg.RateLimit.JobsPerHour), jobHandler.Create)
	jobs.Get("/mine", jobHandler.Mine)
	jobs.Get("/dashboard", jobHandler.Dashboard)
	jobs.Get("/:id", jobHandler.Get)
	jobs.Put("/:id", jobHandler.Update)
	jobs.Delete("/:id", jobHandler.Delete)
	jobs.Post("/:id/ready", jobHandler.MarkReady)
	jobs.Get("/:id/bids", bidHandler.ListForJob)
	jobs.Post("/:id/bids", rateLimiter.BidLimit(cfg.RateLimit.BidsPerHour), bidHandler.Submit)

	// Bid routes
	bids := api.Group("/bids")
	bids.Get("/mine", bidHandler.Mine)
	bids.Get("/:id", bidHandler.Get)
	bids.Post("/:id/accept", bidHandler.Accept)
	bids.Post("/:id/reject", bidHandler.Reject)
	bids.Post("/:id/withdraw", bidHandler.Withdraw)

	// Message routes
	messages := api.Group("/messages")
	messages.Post("/", rateLimiter.MessageLimit(cfg.RateLimit.MessagesPerMin), messageHandler.Send)
	messages.Get("/inbox", messageHandler.Inbox)
	messages.Get("/unread", messageHandler.UnreadCount)
	messages.Get("/:jobId", messageHandler.Conversation)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		// Note: In production, validate the token from query param
		// token := c.Query("token")
		hub.HandleConnection(c, jobID)
	}))

	// Start Asynq worker server and reconcile scheduler
	go startWorkerServer(cfg, jobService, hub)
	go startScheduler(cfg)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, jobService *service.JobService, hub *ws.Hub) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"notify":  6,
				"default": 4,
			},
		},
	)

	// Create workers
	notifyWorker := worker.NewNotifyWorker(hub)
	reconcileWorker := worker.NewReconcileWorker(jobService)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeNotify, notifyWorker.ProcessTask)
	mux.HandleFunc(service.TaskTypeReconcile, reconcileWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func startScheduler(cfg *config.Config) {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		nil,
	)

	if _, err := scheduler.Register("*/15 * * * *", service.NewReconcileTask()); err != nil {
		log.Printf("Failed to register reconcile schedule: %v", err)
		return
	}

	if err := scheduler.Run(); err != nil {
		log.Printf("Asynq scheduler error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
