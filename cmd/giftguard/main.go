package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zombor/giftguard/internal/gifticon"
	"github.com/zombor/giftguard/internal/reminder"
	"github.com/zombor/giftguard/internal/scanning"
	"github.com/zombor/giftguard/internal/watcher"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()

	fs := ff.NewFlagSet("giftguard")
	var (
		port             = fs.IntLong("port", 8080, "HTTP server port")
		dbPath           = fs.StringLong("db", "giftguard.db", "Database file path")
		storagePath      = fs.StringLong("storage", "./gifticons", "Directory for uploaded images")
		scannerType      = fs.StringLong("scanner", "gemini", "Scanner type: 'gemini' or 'ollama'")
		geminiKey        = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel      = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL        = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel      = fs.StringLong("ollama-model", "qwen2.5vl", "Ollama vision model name")
		scanRate         = fs.IntLong("scan-rate", 10, "Maximum recognition requests per minute (0 for no limit)")
		authUser         = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass         = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		watchDir         = fs.StringListLong("watch-dir", "Directory to watch for new gifticon images (repeatable)")
		watchDebounce    = fs.DurationLong("watch-debounce", time.Second, "Quiet period before a new image is processed")
		watchScan        = fs.BoolLong("watch-initial-scan", "Process images already present in watched directories")
		reminderSchedule = fs.StringLong("reminder-schedule", reminder.DefaultSchedule, "Cron schedule of the expiry reminder (empty disables it)")
		reminderDays     = fs.IntLong("reminder-days", 3, "Remind about gifticons expiring within this many days")
		extractText      = fs.StringLong("extract-text", "", "Extract fields from a recognized text file ('-' for stdin), print JSON and exit")
		showVersion      = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("GIFTGUARD"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if *extractText != "" {
		os.Exit(runExtractText(*extractText, os.Stdin, os.Stdout, os.Stderr, time.Now()))
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := gifticon.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize scanner based on type
	var scanner scanning.Scanner
	switch *scannerType {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini scanner...", "model", *geminiModel)
		scanner, err = scanning.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *ollamaURL, "model", *ollamaModel)
		scanner, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid scanner type", "type", *scannerType, "valid", "gemini or ollama")
		os.Exit(1)
	}
	scanner = scanning.NewLimited(scanner, *scanRate)
	defer scanner.Close()

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := gifticon.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	service := gifticon.NewService(db, scanner, store)
	service.SetMetrics(gifticon.NewMetrics(registry))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(*watchDir) > 0 {
		paths, _, err := watcher.Start(ctx, watcher.Config{
			Roots:       *watchDir,
			InitialScan: *watchScan,
			Debounce:    *watchDebounce,
		})
		if err != nil {
			slog.Error("Failed to start watcher", "error", err)
			os.Exit(1)
		}
		go processWatched(service, paths)
	}

	if *reminderSchedule != "" {
		logger := slog.Default()
		scheduler := reminder.NewScheduler(*reminderSchedule, *reminderDays, service, reminder.LogNotifier{Logger: logger}, logger)
		if err := scheduler.Start(); err != nil {
			slog.Error("Failed to start reminder", "error", err)
			os.Exit(1)
		}
		defer scheduler.Stop()
	}

	basicAuth := gifticon.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := gifticon.NewServer(service, basicAuth)
	server.HandleMetrics(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	<-ctx.Done()
	slog.Info("Shutting down...")
}

// processWatched recognizes every image the watcher reports, one at a time.
func processWatched(service *gifticon.Service, paths <-chan string) {
	for path := range paths {
		g, err := service.ProcessFile(path)
		if err != nil {
			slog.Warn("Watched image not saved", "path", path, "result", gifticon.FailureMessage(err), "error", err)
			continue
		}
		slog.Info("Watched image saved", "path", path, "id", g.ID, "result", gifticon.FailureMessage(nil))
	}
}
