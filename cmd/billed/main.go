package main

import (
	"context"
	"crypto/rand"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/billed/internal/bill"
	"github.com/zombor/billed/internal/scanning"
	"github.com/zombor/billed/internal/session"
	"github.com/zombor/billed/internal/store"
	"github.com/zombor/billed/internal/web"
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

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	fs := ff.NewFlagSet("billed")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		dbPath        = fs.StringLong("db", "billed.db", "Database file path")
		storagePath   = fs.StringLong("storage", "./attachments", "Attachment storage directory path")
		storeURL      = fs.StringLong("store-url", "", "Base URL of a remote bill API, path prefix allowed (in-process store when empty)")
		storeUser     = fs.StringLong("store-user", "", "Basic auth username for the remote bill API")
		storePass     = fs.StringLong("store-pass", "", "Basic auth password for the remote bill API")
		authUser      = fs.StringLong("auth-user", "", "Basic auth username protecting the bill API (optional)")
		authPass      = fs.StringLong("auth-pass", "", "Basic auth password protecting the bill API (optional)")
		apiPort       = fs.IntLong("api-port", 0, "Serve the bill API on its own port (disabled when 0)")
		sessionSecret = fs.StringLong("session-secret", "", "Secret signing session cookies (random when empty)")
		sessionHours  = fs.IntLong("session-hours", 12, "Session lifetime in hours")
		secureCookies = fs.BoolLong("secure-cookies", "Mark session cookies Secure (HTTPS deployments)")
		scannerType   = fs.StringLong("scanner", "none", "Receipt scanner: 'none', 'gemini' or 'ollama'")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, qwen2-vl)")
		_             = fs.StringLong("config", "", "Config file path (optional)")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("BILLED"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithConfigAllowMissingFile(),
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize sessions
	secret := *sessionSecret
	if secret == "" {
		secret = randomSecret()
		slog.Warn("No session secret configured, sessions will not survive a restart")
	}
	tokens, err := session.NewTokens(secret, time.Duration(*sessionHours)*time.Hour)
	if err != nil {
		slog.Error("Failed to initialize sessions", "error", err)
		os.Exit(1)
	}
	tokens.SecureCookies(*secureCookies)

	var (
		st   store.Store
		opts []web.Option
	)

	if *storeURL != "" {
		slog.Info("Using remote bill API", "url", *storeURL)
		client, err := store.NewClient(*storeURL, store.WithBasicAuth(*storeUser, *storePass))
		if err != nil {
			slog.Error("Failed to initialize store client", "error", err)
			os.Exit(1)
		}
		st = client
		opts = append(opts, web.WithAttachments(client))
	} else {
		// Initialize database
		slog.Info("Initializing database...")
		db, err := bill.NewBoltDB(*dbPath)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		// Initialize storage
		slog.Info("Initializing storage...")
		storage, err := bill.NewLocalStorage(*storagePath)
		if err != nil {
			slog.Error("Failed to initialize storage", "error", err)
			os.Exit(1)
		}

		scanner, err := newScanner(*scannerType, *geminiKey, *geminiModel, *ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize scanner", "type", *scannerType, "error", err)
			os.Exit(1)
		}
		if scanner != nil {
			defer scanner.Close()
		}

		service := bill.NewService(db, storage, scanner)
		local := store.NewLocal(service)
		st = local
		opts = append(opts, web.WithAttachments(local))

		if *apiPort != 0 {
			api := bill.NewServer(service, bill.BasicAuth{Username: *authUser, Password: *authPass})
			addr := fmt.Sprintf(":%d", *apiPort)
			go func() {
				if err := api.Start(addr); err != nil {
					slog.Error("Bill API error", "error", err)
					os.Exit(1)
				}
			}()
			if *authUser != "" || *authPass != "" {
				slog.Info("Basic auth enabled", "user", *authUser)
			}
		}
	}

	server := web.NewServer(st, tokens, opts...)
	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)

	if err := server.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutting down...")
}

// newScanner returns the configured receipt scanner, or nil for "none"
func newScanner(kind, geminiKey, geminiModel, ollamaURL, ollamaModel string) (scanning.Scanner, error) {
	switch kind {
	case "none", "":
		return nil, nil
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("gemini API key is required, set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini scanner...", "model", geminiModel)
		gemini, err := scanning.NewGemini(apiKey, geminiModel)
		if err != nil {
			return nil, err
		}
		return gemini, nil
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", ollamaURL, "model", ollamaModel)
		ollama, err := scanning.NewOllama(ollamaURL, ollamaModel)
		if err != nil {
			return nil, err
		}
		return ollama, nil
	default:
		return nil, fmt.Errorf("invalid scanner type %q, valid: none, gemini or ollama", kind)
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
