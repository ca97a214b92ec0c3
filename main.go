package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/quizbot/internal/api"
	"github.com/example/quizbot/internal/auth"
	"github.com/example/quizbot/internal/bot"
	"github.com/example/quizbot/internal/config"
	"github.com/example/quizbot/internal/database"
	"github.com/example/quizbot/internal/excel"
	"github.com/example/quizbot/internal/quiz"
	"github.com/example/quizbot/internal/scheduler"
	"github.com/jmoiron/sqlx"
)

func main() {
	cfg := config.Load()

	db, err := database.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// quizbot import <file> loads content and exits
	if len(os.Args) > 2 && os.Args[1] == "import" {
		if err := runImport(db, os.Args[2]); err != nil {
			log.Fatalf("Import failed: %v", err)
		}
		return
	}

	// quizbot admin <username> [revoke] changes admin rights and exits
	if len(os.Args) > 2 && os.Args[1] == "admin" {
		revoke := len(os.Args) > 3 && os.Args[3] == "revoke"
		if err := runAdmin(db, os.Args[2], !revoke); err != nil {
			log.Fatalf("Admin update failed: %v", err)
		}
		return
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	attempts := database.NewAttemptRepository(db)
	engine := quiz.NewEngine(database.NewContentStore(db), attempts)
	badPasswords := database.NewBadPasswordRepository(db)
	authService := auth.NewService(database.NewUserRepository(db), badPasswords, cfg.JWTSecret, cfg.TokenTTL)
	importer := excel.NewImporter(db, excel.DefaultImportConfig())

	router := api.NewRouter(authService, api.Handlers{
		Auth:     api.NewAuthHandler(authService),
		Content:  api.NewContentHandler(database.NewSubjectRepository(db), database.NewTopicRepository(db), database.NewQuestionRepository(db)),
		Attempts: api.NewAttemptHandler(engine),
		Admin:    api.NewAdminHandler(badPasswords, importer),
	}, cfg.CORSOrigins)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
			stop()
		}
	}()

	if cfg.TelegramToken != "" {
		botConfig := bot.DefaultConfig()
		botConfig.Token = cfg.TelegramToken
		botConfig.Debug = cfg.TelegramDebug

		b, err := bot.New(botConfig, db, engine)
		if err != nil {
			log.Fatalf("Failed to create bot: %v", err)
		}

		if cfg.SchedulerEnabled {
			s := scheduler.New(attempts, b, scheduler.Config{
				Interval:    cfg.ReminderInterval,
				RemindAfter: cfg.ReminderAfter,
				StartHour:   cfg.NotificationStartHour,
				EndHour:     cfg.NotificationEndHour,
			})
			if err := s.Start(); err != nil {
				log.Fatalf("Failed to start scheduler: %v", err)
			}
			defer s.Stop()
		}

		go func() {
			log.Println("Bot started")
			if err := b.Start(ctx); err != nil {
				log.Printf("Bot error: %v", err)
			}
		}()
	} else {
		log.Println("TELEGRAM_BOT_TOKEN is not set, running without the bot")
	}

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	log.Println("Stopped successfully")
}

func runImport(db *sqlx.DB, path string) error {
	importer := excel.NewImporter(db, excel.DefaultImportConfig())
	result, err := importer.ImportFile(context.Background(), path)
	if err != nil {
		return err
	}

	log.Printf("Processed %d rows: %d questions created, %d skipped, %d subjects and %d topics created",
		result.TotalProcessed, result.Created, result.Skipped, result.SubjectsCreated, result.TopicsCreated)
	for _, e := range result.Errors {
		log.Printf("  %s", e)
	}
	return nil
}

func runAdmin(db *sqlx.DB, username string, isAdmin bool) error {
	// Tokens are not issued here, so no signing secret is needed
	service := auth.NewService(database.NewUserRepository(db), database.NewBadPasswordRepository(db), "", 0)
	user, err := service.SetAdmin(context.Background(), username, isAdmin)
	if err != nil {
		return err
	}
	log.Printf("User %s (id %d) admin=%v; existing tokens keep their old rights until they expire", user.Username, user.ID, user.IsAdmin)
	return nil
}
