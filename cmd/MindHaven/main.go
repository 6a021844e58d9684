package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/BTreeMap/MindHaven/internal/api"
	"github.com/BTreeMap/MindHaven/internal/chat"
	"github.com/BTreeMap/MindHaven/internal/genai"
	"github.com/BTreeMap/MindHaven/internal/lexicon"
	"github.com/BTreeMap/MindHaven/internal/lockfile"
	"github.com/BTreeMap/MindHaven/internal/messaging"
	"github.com/BTreeMap/MindHaven/internal/metrics"
	"github.com/BTreeMap/MindHaven/internal/nlp"
	"github.com/BTreeMap/MindHaven/internal/rasa"
	"github.com/BTreeMap/MindHaven/internal/respond"
	"github.com/BTreeMap/MindHaven/internal/store"
	"github.com/BTreeMap/MindHaven/internal/twiliowhatsapp"
	"github.com/BTreeMap/MindHaven/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for MindHaven state data
	DefaultStateDir = "/var/lib/mindhaven"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "mindhaven.db"
	// MemoryDSN selects the in-memory store.
	MemoryDSN = "memory"
)

// Responder engine names.
const (
	ResponderLocal  = "local"
	ResponderRasa   = "rasa"
	ResponderOpenAI = "openai"
)

var ErrUnknownResponder = errors.New("unknown responder")

func main() {
	config := loadEnvironmentConfig()
	initializeLogger(config.LogLevel)

	flags, err := parseCommandLineFlags(flag.CommandLine, os.Args[1:], config)
	if err != nil {
		slog.Error("Failed to parse flags", "error", err)
		os.Exit(2)
	}

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping MindHaven", "responder", flags.Responder, "api_addr", flags.APIAddr, "dsn_set", flags.DatabaseURL != "")
	if err := run(ctx, flags); err != nil {
		slog.Error("MindHaven failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("MindHaven exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir         string
	DatabaseURL      string
	APIAddr          string
	Responder        string
	ResponderTimeout time.Duration
	RasaURL          string
	OpenAIKey        string
	OpenAIModel      string
	GenAIDebug       bool
	LexiconFile      string
	ResponsesFile    string
	TwilioSID        string
	TwilioToken      string
	TwilioFrom       string
	TwilioWebhookURL string
	TwilioValidate   bool
	LogLevel         string
}

// initializeLogger installs a text slog handler at the given level (debug when unset or invalid).
func initializeLogger(level string) {
	lvl := slog.LevelDebug
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			lvl = slog.LevelDebug
		}
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:         util.EnvOrDefault("MINDHAVEN_STATE_DIR", DefaultStateDir),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		APIAddr:          util.EnvOrDefault("API_ADDR", api.DefaultAddr),
		Responder:        util.EnvOrDefault("RESPONDER", ResponderLocal),
		ResponderTimeout: util.ParseDurationEnv("RESPONDER_TIMEOUT", respond.DefaultRemoteTimeout),
		RasaURL:          util.EnvOrDefault("RASA_SERVER_URL", rasa.DefaultServerURL),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      util.EnvOrDefault("OPENAI_MODEL", genai.DefaultModel),
		GenAIDebug:       util.ParseBoolEnv("GENAI_DEBUG", false),
		LexiconFile:      os.Getenv("LEXICON_FILE"),
		ResponsesFile:    os.Getenv("RESPONSES_FILE"),
		TwilioSID:        os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:      os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       os.Getenv("TWILIO_FROM_NUMBER"),
		TwilioWebhookURL: os.Getenv("TWILIO_WEBHOOK_URL"),
		TwilioValidate:   util.ParseBoolEnv("TWILIO_VALIDATE_SIGNATURE", true),
		LogLevel:         os.Getenv("LOG_LEVEL"),
	}

	slog.Debug("environment variables loaded",
		"MINDHAVEN_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"API_ADDR", config.APIAddr,
		"RESPONDER", config.Responder,
		"RESPONDER_TIMEOUT", config.ResponderTimeout,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"TWILIO_CONFIGURED", config.TwilioSID != "" && config.TwilioToken != "")

	return config
}

// parseCommandLineFlags parses args with environment defaults.
// Without an explicit database DSN the SQLite file lives in the state directory.
func parseCommandLineFlags(fs *flag.FlagSet, args []string, config Config) (Config, error) {
	flags := config
	fs.StringVar(&flags.StateDir, "state-dir", config.StateDir, "state directory for MindHaven data (overrides $MINDHAVEN_STATE_DIR)")
	fs.StringVar(&flags.DatabaseURL, "db-dsn", config.DatabaseURL, "postgres DSN, sqlite path, or \"memory\" (overrides $DATABASE_URL)")
	fs.StringVar(&flags.APIAddr, "api-addr", config.APIAddr, "API server address (overrides $API_ADDR)")
	fs.StringVar(&flags.Responder, "responder", config.Responder, "reply engine: local, rasa or openai (overrides $RESPONDER)")
	fs.DurationVar(&flags.ResponderTimeout, "responder-timeout", config.ResponderTimeout, "remote engine timeout (overrides $RESPONDER_TIMEOUT)")
	fs.StringVar(&flags.RasaURL, "rasa-url", config.RasaURL, "Rasa server base URL (overrides $RASA_SERVER_URL)")
	fs.StringVar(&flags.OpenAIKey, "openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)")
	fs.StringVar(&flags.OpenAIModel, "openai-model", config.OpenAIModel, "OpenAI chat model (overrides $OPENAI_MODEL)")
	fs.StringVar(&flags.LexiconFile, "lexicon-file", config.LexiconFile, "lexicon YAML override (overrides $LEXICON_FILE)")
	fs.StringVar(&flags.ResponsesFile, "responses-file", config.ResponsesFile, "response templates YAML override (overrides $RESPONSES_FILE)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if flags.DatabaseURL == "" {
		flags.DatabaseURL = filepath.Join(flags.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", flags.DatabaseURL)
	}
	flags.Responder = strings.ToLower(strings.TrimSpace(flags.Responder))

	slog.Debug("flags parsed",
		"stateDir", flags.StateDir,
		"dbDSN_set", flags.DatabaseURL != "",
		"apiAddr", flags.APIAddr,
		"responder", flags.Responder,
		"openaiKeySet", flags.OpenAIKey != "")
	return flags, nil
}

// usesLocalDatabase reports whether the store is a SQLite file.
func usesLocalDatabase(flags Config) bool {
	return flags.DatabaseURL != "" && flags.DatabaseURL != MemoryDSN && store.DetectDSNType(flags.DatabaseURL) == "sqlite3"
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Config) error {
	if !usesLocalDatabase(flags) {
		return nil
	}
	dir := filepath.Dir(flags.DatabaseURL)
	slog.Debug("Creating state directory for file-based database", "state_dir", dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Config) []store.Option {
	if flags.DatabaseURL == "" || flags.DatabaseURL == MemoryDSN {
		slog.Debug("Using in-memory store")
		return nil
	}
	if store.DetectDSNType(flags.DatabaseURL) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
		return []store.Option{store.WithPostgresDSN(flags.DatabaseURL)}
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", flags.DatabaseURL)
	return []store.Option{store.WithSQLiteDSN(flags.DatabaseURL)}
}

// buildResponder selects the reply engine for non-crisis messages.
func buildResponder(flags Config, classifier *nlp.Classifier, local *respond.LocalResponder, m *metrics.Collector) (respond.Responder, error) {
	switch flags.Responder {
	case "", ResponderLocal:
		return local, nil
	case ResponderRasa:
		return respond.NewRemoteResponder(rasa.NewClient(flags.RasaURL), classifier,
			respond.WithTimeout(flags.ResponderTimeout),
			respond.WithEngineName(ResponderRasa),
			respond.WithObserver(m)), nil
	case ResponderOpenAI:
		client, err := genai.NewClient(
			genai.WithAPIKey(flags.OpenAIKey),
			genai.WithModel(flags.OpenAIModel),
			genai.WithDebugMode(flags.GenAIDebug),
			genai.WithStateDir(flags.StateDir))
		if err != nil {
			return nil, fmt.Errorf("openai responder: %w", err)
		}
		return respond.NewRemoteResponder(client, classifier,
			respond.WithTimeout(flags.ResponderTimeout),
			respond.WithEngineName(ResponderOpenAI),
			respond.WithObserver(m)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownResponder, flags.Responder)
	}
}

func twilioConfigured(flags Config) bool {
	return flags.TwilioSID != "" && flags.TwilioToken != "" && flags.TwilioFrom != ""
}

// run wires every component and serves until ctx is cancelled.
func run(ctx context.Context, flags Config) error {
	lex, err := lexicon.LoadLexicon(flags.LexiconFile)
	if err != nil {
		return fmt.Errorf("load lexicon: %w", err)
	}
	pool, err := lexicon.LoadResponses(flags.ResponsesFile)
	if err != nil {
		return fmt.Errorf("load responses: %w", err)
	}

	collector := metrics.NewCollector()
	classifier := nlp.NewClassifier(lex)
	local := respond.NewLocalResponder(classifier, respond.NewComposer(classifier, pool), collector)
	responder, err := buildResponder(flags, classifier, local, collector)
	if err != nil {
		return err
	}

	if usesLocalDatabase(flags) {
		lock, err := lockfile.AcquireLock(filepath.Dir(flags.DatabaseURL))
		if err != nil {
			return err
		}
		defer lock.Release()
	}

	st, err := store.New(buildStoreOptions(flags)...)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			slog.Error("Failed to close store", "error", cerr)
		}
	}()

	chatService := chat.NewService(st, classifier, local,
		chat.WithResponder(responder),
		chat.WithMetrics(collector))

	apiOpts := []api.Option{api.WithAddr(flags.APIAddr), api.WithMetrics(collector)}

	var twilioService *messaging.TwilioService
	outboxDone := make(chan struct{})
	if twilioConfigured(flags) {
		sender, err := twiliowhatsapp.NewClient(
			twiliowhatsapp.WithAccountSID(flags.TwilioSID),
			twiliowhatsapp.WithAuthToken(flags.TwilioToken),
			twiliowhatsapp.WithFromWhats(flags.TwilioFrom))
		if err != nil {
			return fmt.Errorf("twilio client: %w", err)
		}

		twOpts := []messaging.TwilioOption{messaging.WithProcessTimeout(flags.ResponderTimeout + 5*time.Second)}
		if flags.TwilioValidate {
			twOpts = append(twOpts, messaging.WithSignatureValidator(twiliowhatsapp.NewSignatureValidator(flags.TwilioToken)))
		}
		if flags.TwilioWebhookURL != "" {
			twOpts = append(twOpts, messaging.WithWebhookURL(flags.TwilioWebhookURL))
		}
		twilioService = messaging.NewTwilioService(chatService, st, st, twOpts...)
		apiOpts = append(apiOpts, api.WithTwilioWebhook(twilioService.TwilioWebhookHandler))

		outbox := store.NewOutboxSender(st, messaging.NewOutboxSendFunc(sender), store.DefaultOutboxPollInterval)
		if err := outbox.RecoverStaleMessages(); err != nil {
			slog.Warn("Outbox stale message recovery failed", "error", err)
		}
		go func() {
			defer close(outboxDone)
			outbox.Run(ctx)
		}()
		slog.Info("Twilio WhatsApp channel enabled", "validateSignature", flags.TwilioValidate)
	} else {
		slog.Info("Twilio not configured, WhatsApp channel disabled")
		close(outboxDone)
	}

	server := api.NewServer(chatService, classifier, apiOpts...)
	err = server.Run(ctx)
	if twilioService != nil {
		twilioService.Stop()
	}
	<-outboxDone
	return err
}
