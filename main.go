package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"poker-league-system/handlers"
	"poker-league-system/middleware"
	"poker-league-system/models"
	"poker-league-system/services"
	"poker-league-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading environment variables directly")
	}

	app := fiber.New()

	// Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(splitAndTrim(allowedOrigins), ","),
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID, X-User-Roles, X-Request-ID",
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Season{},
		&models.SeasonPenaltyTier{},
		&models.Tournament{},
		&models.BlindLevel{},
		&models.TournamentDirector{},
		&models.TournamentPlayer{},
		&models.Elimination{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	var events services.Broadcaster
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		events, err = services.NewNATSBroadcaster(natsURL)
		if err != nil {
			log.Fatal("failed to connect to NATS:", err)
		}
		log.Printf("Event broadcasting via NATS at %s", natsURL)
	} else {
		events = services.NewLogBroadcaster()
		log.Println("NATS_URL not set, domain events are logged only")
	}

	tournamentService := services.NewTournamentService(db, events)
	timerService := services.NewTimerService(db, events)
	playService := services.NewPlayService(db, events)

	recomputeWorker := workers.NewRecomputeWorker(db)
	seasonService := services.NewSeasonService(db, recomputeWorker)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go recomputeWorker.Start(ctx)

	tournamentService.StartLevelSyncScheduler()

	handlers.SetupTournamentRoutes(app, tournamentService, playService, timerService)
	handlers.SetupSeasonRoutes(app, seasonService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}
	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()
	log.Printf("Server running on http://localhost:%s", port)

	<-ctx.Done()
	log.Println("Shutting down server...")
	_ = app.Shutdown()
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
