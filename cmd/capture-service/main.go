package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rahulrshetty45/CluelyClone/internal/capture"
	"github.com/rahulrshetty45/CluelyClone/internal/config"
	"github.com/rahulrshetty45/CluelyClone/internal/emit"
	"github.com/rahulrshetty45/CluelyClone/internal/metrics"
	"github.com/rahulrshetty45/CluelyClone/internal/server"
	"github.com/rahulrshetty45/CluelyClone/internal/session"
	"github.com/rahulrshetty45/CluelyClone/internal/transcription"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "capture-service"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	listDevices := flag.Bool("list-devices", false, "List audio input devices and exit")
	autoStart := flag.Bool("auto-start", false, "Start capturing immediately instead of waiting for /control/start")
	flag.Parse()

	if *listDevices {
		if err := printInputDevices(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list input devices: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Load .env if present; the API key usually lives there in development
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("sample_rate", cfg.Capture.SampleRate),
		slog.Int("frame_size", cfg.Capture.FrameSize),
		slog.Float64("speech_threshold", cfg.Detector.SpeechThreshold),
		slog.Float64("silence_threshold", cfg.Detector.SilenceThreshold),
		slog.Float64("min_speech_duration", cfg.Detector.MinSpeechDuration),
		slog.String("transcription_provider", cfg.Transcription.Provider),
		slog.String("transcription_model", cfg.Transcription.Model),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Build the transcription provider
	provider, err := buildProvider(cfg.Transcription)
	if err != nil {
		logger.Error("Failed to create transcription provider", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// WebSocket hub for display clients
	hub := emit.NewHub(logger)

	// Session manager capturing from the default microphone
	sourceFactory := func() (capture.Source, error) {
		return capture.NewMicrophone(cfg.Capture.SampleRate, cfg.Capture.FrameSize, logger)
	}
	manager, err := session.NewManager(cfg, provider, hub, appMetrics, logger, sourceFactory)
	if err != nil {
		logger.Error("Failed to create session manager", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// HTTP control API (if enabled)
	var httpServer *server.Server
	if cfg.HTTP.Enabled {
		httpServer = server.New(cfg.HTTP.Address, cfg.HTTP.Port, manager, hub, logger)
		httpServer.Start()
		logger.Info("HTTP control server started",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	// Watch the config file and apply tunables to the live session
	watcher, err := config.NewWatcher(*configPath, logger, manager.ApplyTunables)
	if err != nil {
		logger.Warn("Config hot reload unavailable", slog.String("error", err.Error()))
	} else {
		logger.Info("Config hot reload enabled", slog.String("path", *configPath))
	}

	if *autoStart {
		if id, err := manager.StartCapture(ctx); err != nil {
			logger.Error("Failed to start capture", slog.String("error", err.Error()))
			os.Exit(1)
		} else {
			logger.Info("Capture started", slog.String("session_id", id))
		}
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...")

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	if watcher != nil {
		watcher.Stop()
	}

	// Stop any active session; this drains pending transcriptions
	manager.Shutdown()

	// Disconnect display clients
	hub.Close()

	logger.Info("Service stopped")
}

// buildProvider selects the transcription backend from configuration. The
// OPENAI_API_KEY environment variable overrides the configured key so the
// secret can stay out of the YAML file.
func buildProvider(cfg config.TranscriptionConfig) (transcription.Provider, error) {
	apiKey := cfg.APIKey
	if env := os.Getenv("OPENAI_API_KEY"); env != "" {
		apiKey = env
	}

	switch cfg.Provider {
	case "openai":
		return transcription.NewOpenAIProvider(apiKey, cfg.Model,
			transcription.WithTimeout(cfg.GetTimeoutDuration()),
		)
	case "http":
		return transcription.NewClient(transcription.ClientConfig{
			Endpoint: cfg.Endpoint,
			APIKey:   apiKey,
			Timeout:  cfg.GetTimeoutDuration(),
		})
	default:
		return nil, fmt.Errorf("unknown transcription provider '%s'", cfg.Provider)
	}
}

// printInputDevices enumerates audio input devices for troubleshooting.
func printInputDevices() error {
	devices, err := capture.ListInputDevices()
	if err != nil {
		return err
	}

	if len(devices) == 0 {
		fmt.Println("No audio input devices found")
		return nil
	}

	for i, d := range devices {
		fmt.Printf("%d: %s (channels=%d, default_rate=%.0f)\n",
			i, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
	}
	return nil
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
