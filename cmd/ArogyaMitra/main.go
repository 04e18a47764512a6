package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BTreeMap/ArogyaMitra/internal/api"
	"github.com/BTreeMap/ArogyaMitra/internal/flow"
	"github.com/BTreeMap/ArogyaMitra/internal/genai"
	"github.com/BTreeMap/ArogyaMitra/internal/knowledge"
	"github.com/BTreeMap/ArogyaMitra/internal/lockfile"
	"github.com/BTreeMap/ArogyaMitra/internal/messaging"
	"github.com/BTreeMap/ArogyaMitra/internal/store"
	"github.com/BTreeMap/ArogyaMitra/internal/twiliosms"
	"github.com/BTreeMap/ArogyaMitra/internal/whatsapp"
)

// shutdownTimeout bounds how long in-flight replies may take after a stop signal.
const shutdownTimeout = 30 * time.Second

func main() {
	initializeLogger(slog.LevelInfo)

	config, err := loadEnvironmentConfig(nil)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	flags, err := parseCommandLineFlags(&config, os.Args[1:])
	if err != nil {
		slog.Error("Failed to parse command line flags", "error", err)
		os.Exit(2)
	}
	initializeLogger(flags.logLevel)

	if err := ensureDirectoriesExist(config); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping ArogyaMitra")
	if err := run(ctx, config, flags); err != nil {
		slog.Error("ArogyaMitra failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("ArogyaMitra exited successfully")
}

// initializeLogger sets up structured logging at the given level
func initializeLogger(level slog.Level) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// run wires every module together and serves until ctx is cancelled.
func run(ctx context.Context, config Config, flags Flags) error {
	lock, err := lockfile.Acquire(config.StateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := store.New(buildStoreOptions(config)...)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("Failed to close store", "error", err)
		}
	}()

	kb := loadKnowledge(ctx, config)

	// A nil client answers every message with the unavailable notice.
	ai, err := genai.NewClient(buildGenAIOptions(config)...)
	if err != nil {
		slog.Error("GenAI client unavailable, replies will use the fallback notice", "error", err)
	}

	sms, err := twiliosms.NewClient(buildTwilioOptions(config)...)
	if err != nil {
		return fmt.Errorf("failed to create Twilio client: %w", err)
	}

	var wa *whatsapp.Client
	var direct messaging.Sender
	if config.WhatsAppDirect {
		wa, err = whatsapp.NewClient(ctx, buildWhatsAppOptions(config, flags)...)
		if err != nil {
			return fmt.Errorf("failed to start WhatsApp client: %w", err)
		}
		defer wa.Disconnect()
		direct = wa
	}

	notifier := messaging.NewNotifier(messaging.NewRouter(sms, direct))
	tasks := flow.NewTaskGroup()
	pipeline := flow.NewPipeline(st, ai, notifier,
		flow.WithHistoryLimit(config.HistoryLimit),
		flow.WithKnowledge(kb))
	dispatcher := flow.NewDispatcher(pipeline, notifier, tasks)

	if wa != nil {
		wa.OnMessage(ctx, dispatcher.HandleInbound)
	}

	server := api.NewServer(dispatcher, buildAPIOptions(config, sms, kb)...)
	serveErr := server.ListenAndServe(ctx)

	slog.Info("Waiting for in-flight replies", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := tasks.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Some replies did not finish before shutdown", "error", err)
	}
	if err := notifier.Stop(); err != nil {
		slog.Warn("Failed to stop notifier cleanly", "error", err)
	}
	return serveErr
}

// loadKnowledge reads the knowledge sheet once. Any failure yields an empty base.
func loadKnowledge(ctx context.Context, config Config) *knowledge.Base {
	var loader knowledge.Loader
	sheetsLoader, err := knowledge.NewSheetsLoader(buildKnowledgeOptions(config)...)
	if err != nil {
		slog.Error("Knowledge sheet loader not configured", "error", err)
	} else {
		loader = sheetsLoader
	}
	return knowledge.Load(ctx, loader)
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(config Config) []store.Option {
	switch store.DetectDSNType(config.DatabaseDSN) {
	case "postgres":
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql", "dsn_set", true)
		return []store.Option{store.WithPostgresDSN(config.DatabaseDSN)}
	case "memory":
		return []store.Option{store.WithInMemory()}
	default:
		slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", config.DatabaseDSN)
		return []store.Option{store.WithSQLiteDSN(config.DatabaseDSN)}
	}
}

// buildKnowledgeOptions constructs knowledge sheet options
func buildKnowledgeOptions(config Config) []knowledge.SheetsOption {
	opts := []knowledge.SheetsOption{
		knowledge.WithCredentialsJSON(config.GoogleCredentialsJSON),
		knowledge.WithSheetName(config.KnowledgeSheetName),
	}
	if config.KnowledgeSheetID != "" {
		opts = append(opts, knowledge.WithSpreadsheetID(config.KnowledgeSheetID))
	}
	return opts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(config Config) []genai.Option {
	opts := []genai.Option{genai.WithAPIKey(config.GeminiAPIKey)}
	if config.GeminiModel != "" {
		opts = append(opts, genai.WithModel(config.GeminiModel))
	}
	if config.GeminiBaseURL != "" {
		opts = append(opts, genai.WithBaseURL(config.GeminiBaseURL))
	}
	return opts
}

// buildTwilioOptions constructs Twilio configuration options
func buildTwilioOptions(config Config) []twiliosms.Option {
	opts := []twiliosms.Option{
		twiliosms.WithAccountSID(config.TwilioAccountSID),
		twiliosms.WithAuthToken(config.TwilioAuthToken),
		twiliosms.WithFromNumber(config.TwilioPhoneNumber),
		twiliosms.WithSendRate(config.TwilioSendRate),
	}
	if config.TwilioWhatsAppNumber != "" {
		opts = append(opts, twiliosms.WithWhatsAppNumber(config.TwilioWhatsAppNumber))
	}
	return opts
}

// buildWhatsAppOptions constructs WhatsApp configuration options
func buildWhatsAppOptions(config Config, flags Flags) []whatsapp.Option {
	waOpts := []whatsapp.Option{whatsapp.WithDBDSN(config.WhatsAppDSN)}
	if flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(flags.qrOutput))
	}
	if flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	return waOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(config Config, validator api.SignatureValidator, kb api.KnowledgeStats) []api.Option {
	apiOpts := []api.Option{api.WithKnowledgeStats(kb)}
	if config.APIAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(config.APIAddr))
	}
	if config.ValidateSignature {
		apiOpts = append(apiOpts, api.WithSignatureValidation(validator, config.PublicBaseURL))
	}
	return apiOpts
}
