package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	designassistant "github.com/MegaGrindStone/design-assistant"
	"github.com/MegaGrindStone/design-assistant/internal/handlers"
	"github.com/MegaGrindStone/design-assistant/internal/services"
)

func main() {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatal(fmt.Errorf("error getting user config dir: %w", err))
	}
	cfgPath := filepath.Join(cfgDir, "designassistant")

	cfgFilePath := flag.String("config", filepath.Join(cfgPath, "config.yaml"), "path to the config file")
	flag.Parse()

	if err := os.MkdirAll(cfgPath, 0755); err != nil {
		log.Fatal(fmt.Errorf("error creating config directory: %w", err))
	}

	cfg := config{}
	cfgFile, err := os.Open(*cfgFilePath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Printf("Config file %s not found, using defaults", *cfgFilePath)
	case err != nil:
		log.Fatal(fmt.Errorf("error opening config file: %w", err))
	default:
		cfg, err = loadConfig(cfgFile)
		cfgFile.Close()
		if err != nil {
			log.Fatal(err)
		}
	}
	cfg.applyDefaults(cfgPath)
	if err := cfg.validate(); err != nil {
		log.Fatal(fmt.Errorf("invalid config: %w", err))
	}

	logger := cfg.logger(os.Stderr)

	dbPath := filepath.Join(cfgPath, "journal.db")
	boltDB, err := services.NewBoltDB(dbPath)
	if err != nil {
		panic(err)
	}
	defer boltDB.Close()

	saver, err := services.NewFileSaver(cfg.Downloads.Dir)
	if err != nil {
		panic(err)
	}

	creds := services.NewCredentials(cfg.Backend.Token)
	backend := services.NewBackend(cfg.Backend.URL, cfg.Backend.Timeout, creds, logger)

	m, err := handlers.NewMain(
		backend,
		saver,
		boltDB,
		creds,
		services.NewMarkdown("github"),
		handlers.Options{
			Streaming: cfg.Chat.Streaming,
			Sources:   cfg.Sync.Sources,
		},
		logger,
	)
	if err != nil {
		panic(err)
	}

	// Serve static files
	staticFS, err := fs.Sub(designassistant.StaticFS, "static")
	if err != nil {
		panic(err)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	// Create custom mux
	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	mux.Handle("GET /downloads/", http.StripPrefix("/downloads/", http.FileServer(http.Dir(saver.Dir()))))
	mux.HandleFunc("/", m.HandleHome)
	mux.HandleFunc("/messages", m.HandleMessages)
	mux.HandleFunc("POST /messages/{index}/download", m.HandleDownload)
	mux.HandleFunc("POST /export", m.HandleExport)
	mux.HandleFunc("/sse", m.HandleSSE)
	mux.HandleFunc("GET /admin", m.HandleAdmin)
	mux.HandleFunc("POST /admin/sync", m.HandleSyncAll)
	mux.HandleFunc("POST /admin/sync/{source}", m.HandleSync)
	mux.HandleFunc("GET /admin/sync/{source}/history", m.HandleHistory)
	mux.HandleFunc("GET /admin/stats", m.HandleStats)
	mux.HandleFunc("GET /admin/downloads", m.HandleDownloads)
	mux.HandleFunc("GET /analyze", m.HandleAnalyzePage)
	mux.HandleFunc("POST /analyze", m.HandleAnalyze)
	mux.HandleFunc("DELETE /analyze", m.HandleAnalyzeReset)
	mux.HandleFunc("/session", m.HandleSession)
	mux.HandleFunc("GET /health", m.HandleHealth)

	// Create custom server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.Shutdown(ctx); err != nil {
			logger.Error("Failed to shutdown sse server", slog.String("err", err.Error()))
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("Server starting",
			slog.String("addr", srv.Addr),
			slog.String("backend", cfg.Backend.URL),
			slog.Bool("streaming", cfg.Chat.Streaming))
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt/terminate signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Blocking select waiting for either interrupt or server error
	select {
	case err := <-serverErrors:
		logger.Error("Server error", slog.String("err", err.Error()))

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))

		// Create context with timeout for shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Gracefully shutdown the server
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String("err", err.Error()))
			if err := srv.Close(); err != nil {
				logger.Error("Forcing server close", slog.String("err", err.Error()))
			}
		}
	}
}
