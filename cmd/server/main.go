package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/loopdrill/loopdrill/internal/bytestore"
	"github.com/loopdrill/loopdrill/internal/cleanup"
	"github.com/loopdrill/loopdrill/internal/config"
	"github.com/loopdrill/loopdrill/internal/handlers"
	"github.com/loopdrill/loopdrill/internal/logging"
	"github.com/loopdrill/loopdrill/internal/queue"
	"github.com/loopdrill/loopdrill/internal/session"
	"github.com/loopdrill/loopdrill/internal/storage"
	"github.com/loopdrill/loopdrill/internal/transcription"
)

func main() {
	configPath := "config/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	ring := logging.NewRing()
	log := logging.New(cfg.Log.Level, ring)

	if err := cleanup.EnsureTempDirExists(cfg.Storage.TempDir); err != nil {
		log.Fatal().Err(err).Msg("failed to create temp directory")
	}

	db, err := storage.Open(cfg.Storage.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	store, err := bytestore.NewDiskStore(log, cfg.Storage.MediaDir, cfg.Storage.MaxMediaMB*1024*1024)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open media store")
	}

	// Google Drive mirroring is optional; exports stay inline without it.
	var mirror *bytestore.DriveMirror
	if _, err := os.Stat(cfg.GoogleDrive.CredentialsFile); err == nil {
		mirror, err = bytestore.NewDriveMirror(
			cfg.GoogleDrive.CredentialsFile,
			cfg.GoogleDrive.TokenFile,
			cfg.GoogleDrive.FolderName,
		)
		if err != nil {
			log.Warn().Err(err).Msg("google drive not available; exports stay local")
			mirror = nil
		} else {
			log.Info().Msg("google drive export mirroring enabled")
		}
	}

	transcriber := transcription.NewWhisperTranscriber(log, cfg.Whisper.ModelPath, cfg.Storage.TempDir)

	hub := session.NewHub()
	pool := queue.NewWorkerPool(log, cfg.Workers.Count, store, transcriber, hub, cfg.Storage.TempDir)
	pool.Start()

	scheduler := cleanup.NewScheduler(log, cfg.Storage.TempDir, cfg.Cleanup.IntervalMinutes, cfg.Cleanup.MaxAgeHours)
	scheduler.Start()
	defer scheduler.Stop()

	app := fiber.New(fiber.Config{
		BodyLimit: cfg.Limits.MaxFileSizeMB * 1024 * 1024,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	uploadHandler := handlers.NewUploadHandler(log, store, cfg.Limits.MaxFileSizeMB)
	mediaHandler := handlers.NewMediaHandler(log, store, pool)
	bookmarkHandler := handlers.NewBookmarkHandler(log, db)
	exportHandler := handlers.NewExportHandler(log, mirror)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	app.Post("/media", uploadHandler.Handle)
	app.Get("/media/usage", mediaHandler.Usage)
	app.Put("/media/limit", mediaHandler.SetLimit)
	app.Delete("/media/:id", mediaHandler.Delete)
	app.Post("/media/:key/transcribe", mediaHandler.Transcribe)

	app.Get("/media/:key/bookmarks", bookmarkHandler.List)
	app.Post("/media/:key/bookmarks", bookmarkHandler.Create)
	app.Post("/media/:key/bookmarks/import", bookmarkHandler.Import)
	app.Put("/bookmarks/:id", bookmarkHandler.Update)
	app.Delete("/bookmarks/:id", bookmarkHandler.Delete)

	app.Get("/preferences", bookmarkHandler.GetPreferences)
	app.Put("/preferences", bookmarkHandler.PutPreferences)

	app.Post("/export", exportHandler.Handle)

	app.Get("/ws/session", websocket.New(func(c *websocket.Conn) {
		s := session.New(log, hub, db, pool, nil, nil)
		s.Run(c)
	}))

	app.Get("/logs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"logs": ring.Tail()})
	})

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint
		log.Info().Msg("shutting down")
		app.Shutdown()
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info().Str("addr", addr).Msg("server starting")
	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}
