package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	webview "github.com/webview/webview_go"
	"go.uber.org/zap"

	"github.com/kartoza/stunting-risk/internal/api"
	"github.com/kartoza/stunting-risk/internal/config"
	"github.com/kartoza/stunting-risk/internal/logging"
	"github.com/kartoza/stunting-risk/internal/server"
)

var version = "dev"

func main() {
	// Parse command-line flags
	port := flag.Int("port", 8080, "HTTP server port")
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	modelDir := flag.String("model-dir", "", "Directory containing the model pack (manifest, encoder, scaler, classifier)")
	resourcesDir := flag.String("resources-dir", "", "Directory containing bundled resources (default model pack under model/)")
	dataDir := flag.String("data-dir", "", "Directory for the screening history database")
	headless := flag.Bool("headless", false, "Run in headless mode (no GUI window)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Stunting Risk v%s\n", version)
		os.Exit(0)
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Failed to load .env: %v", err)
	}

	// Configuration precedence: flags, then environment, then the YAML file,
	// then defaults
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		log.Fatalf("Invalid environment: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "model-dir":
			cfg.ModelDir = *modelDir
		case "resources-dir":
			cfg.ResourcesDir = *resourcesDir
		case "data-dir":
			cfg.DataDir = *dataDir
		case "headless":
			cfg.Headless = *headless
		}
	})
	cfg.Version = version
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// Resolve the model pack directory:
	// 1. Explicit flag, environment or config value
	// 2. Otherwise, the last installed pack from saved settings
	// 3. Fall back to <resources>/model
	if cfg.ResourcesDir == "" {
		cfg.ResourcesDir = "./resources"
	}
	if cfg.ModelDir == "" {
		settings, err := config.LoadSettings()
		if err != nil {
			logger.Warn("could not load settings", zap.Error(err))
		} else if settings.ModelPackPath != "" {
			if _, err := os.Stat(settings.ModelPackPath); err == nil {
				cfg.ModelDir = settings.ModelPackPath
				logger.Info("using installed model pack", zap.String("path", settings.ModelPackPath))
			} else {
				logger.Warn("saved model pack path no longer exists", zap.String("path", settings.ModelPackPath))
			}
		}
	}
	if cfg.ModelDir == "" {
		cfg.ModelDir = filepath.Join(cfg.ResourcesDir, "model")
	}

	// Load the artifacts once; every request shares the resulting pipeline
	m, err := api.LoadModel(cfg.ModelDir, cfg.Decision.Options())
	if err != nil {
		if cfg.Model.Required {
			logger.Fatal("failed to load model pack", zap.String("dir", cfg.ModelDir), zap.Error(err))
		}
		logger.Warn("model pack not loaded, starting in setup mode", zap.String("dir", cfg.ModelDir), zap.Error(err))
	} else {
		logger.Info("model pack loaded",
			zap.String("dir", cfg.ModelDir),
			zap.String("version", m.Pipeline.Version()),
			zap.Float64("threshold", m.Pipeline.Threshold()))
	}

	// Find an available port (try up to 10 ports starting from the requested one)
	requestedPort := cfg.Port
	cfg.Port, err = findAvailablePort(requestedPort, 10)
	if err != nil {
		logger.Fatal("failed to find available port", zap.Error(err))
	}
	if cfg.Port != requestedPort {
		logger.Info("port in use, using another", zap.Int("requested", requestedPort), zap.Int("port", cfg.Port))
	}

	logger.Info("Stunting Risk starting", zap.String("version", version), zap.Int("port", cfg.Port))

	// Create and start the server
	srv, err := server.New(cfg, m, logger)
	if err != nil {
		logger.Fatal("failed to create server", zap.Error(err))
	}

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for server to be ready
	serverURL := fmt.Sprintf("http://localhost:%d", cfg.Port)
	waitForServer(logger, serverURL, 10*time.Second)

	if cfg.Headless {
		// Headless mode: wait for signal or error
		select {
		case err := <-errCh:
			if err != nil {
				logger.Fatal("server error", zap.Error(err))
			}
		case sig := <-stop:
			logger.Info("shutting down", zap.String("signal", sig.String()))
			if err := srv.Stop(); err != nil {
				logger.Error("error during shutdown", zap.Error(err))
			}
		}
		return
	}

	// GUI mode: open embedded WebView window
	logger.Info("opening application window")
	w := webview.New(false)
	defer w.Destroy()

	w.SetTitle("Klasifikasi Risiko Stunting")
	w.SetSize(1280, 800, webview.HintNone)
	w.Navigate(serverURL)

	// When the webview window closes, shut down the server
	go func() {
		select {
		case err := <-errCh:
			if err != nil {
				logger.Error("server error", zap.Error(err))
			}
		case sig := <-stop:
			logger.Info("shutting down", zap.String("signal", sig.String()))
			w.Terminate()
		}
	}()

	// Run blocks until the window is closed
	w.Run()

	logger.Info("window closed, shutting down server")
	if err := srv.Stop(); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
}

// waitForServer polls until the server is accepting connections
func waitForServer(logger *zap.Logger, url string, timeout time.Duration) {
	addr := url[len("http://"):]
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	logger.Warn("server may not be ready", zap.String("url", url))
}

// findAvailablePort finds an available port, starting from the given port.
// If the port is in use, it tries subsequent ports up to maxAttempts times.
func findAvailablePort(startPort int, maxAttempts int) (int, error) {
	for i := 0; i < maxAttempts; i++ {
		port := startPort + i
		addr := fmt.Sprintf(":%d", port)
		listener, err := net.Listen("tcp", addr)
		if err == nil {
			listener.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port found after %d attempts starting from %d", maxAttempts, startPort)
}
