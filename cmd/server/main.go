package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/api"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/config"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/database"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/parser"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/pdfform"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/repository"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/service"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Open database connection
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	log.Printf("Connected to database: %s", cfg.Database.Path)

	// Apply pending schema migrations
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Connect object storage
	store, err := storage.NewMinioStore(context.Background(), cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to connect object storage: %v", err)
	}

	// Create repositories
	ruleRepo := repository.NewTreatyRuleRepository(db)
	statementRepo := repository.NewStatementRepository(db)
	dividendRepo := repository.NewDividendRepository(db)
	formRepo := repository.NewFormRepository(db)
	userRepo, err := repository.NewUserRepository(db, cfg.Security.FernetKey)
	if err != nil {
		log.Fatalf("Failed to create user repository: %v", err)
	}

	// Create services
	systemService := service.NewSystemService(db)
	ruleService := service.NewTreatyRuleService(
		ruleRepo,
		cfg.Cache.RuleCacheSize,
		cfg.Cache.RuleCacheTTL,
	)
	statementService := service.NewStatementService(
		statementRepo,
		parser.NewCSV(),
	)
	dividendService := service.NewDividendService(
		dividendRepo,
	)
	reclaimService := service.NewReclaimService(
		ruleService,
		dividendRepo,
	)
	profileService := service.NewProfileService(
		userRepo,
		cfg.Forms.DefaultResidenceCountry,
	)
	formService := service.NewFormService(
		formRepo,
		dividendRepo,
		userRepo,
		reclaimService,
		pdfform.NewRenderer(cfg.Forms.TemplateDir),
		store,
		cfg.Forms,
		cfg.Storage.PresignExpiry,
	)

	// Nightly cleanup of forms past their retention window
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("0 3 * * *", func() {
		removed, err := formService.CleanupExpired(context.Background())
		if err != nil {
			log.Printf("Expired-form cleanup failed: %v", err)
			return
		}
		if removed > 0 {
			log.Printf("Removed %d expired form(s)", removed)
		}
	}); err != nil {
		log.Fatalf("Failed to schedule cleanup job: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	router := api.NewRouter(api.Services{
		System:     systemService,
		TreatyRule: ruleService,
		Statement:  statementService,
		Dividend:   dividendService,
		Reclaim:    reclaimService,
		Form:       formService,
		Profile:    profileService,
	}, cfg)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
