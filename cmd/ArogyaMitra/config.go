package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BTreeMap/ArogyaMitra/internal/store"
	"github.com/BTreeMap/ArogyaMitra/internal/whatsapp"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for ArogyaMitra state data
	DefaultStateDir = "/var/lib/arogyamitra"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "arogyamitra.db"
)

// Config holds environment configuration.
type Config struct {
	TwilioAccountSID     string  `env:"TWILIO_ACCOUNT_SID,required"`
	TwilioAuthToken      string  `env:"TWILIO_AUTH_TOKEN,required"`
	TwilioPhoneNumber    string  `env:"TWILIO_PHONE_NUMBER,required"`
	TwilioWhatsAppNumber string  `env:"TWILIO_WHATSAPP_NUMBER"`
	TwilioSendRate       float64 `env:"TWILIO_SEND_RATE" envDefault:"0"`
	ValidateSignature    bool    `env:"TWILIO_VALIDATE_SIGNATURE" envDefault:"false"`
	PublicBaseURL        string  `env:"PUBLIC_BASE_URL"`

	GeminiAPIKey  string `env:"GEMINI_API_KEY,required"`
	GeminiModel   string `env:"GEMINI_MODEL"`
	GeminiBaseURL string `env:"GEMINI_BASE_URL"`

	GoogleCredentialsJSON string `env:"GOOGLE_APPLICATION_CREDENTIALS_JSON,required"`
	KnowledgeSheetID      string `env:"KNOWLEDGE_SHEET_ID"`
	KnowledgeSheetName    string `env:"KNOWLEDGE_SHEET_NAME" envDefault:"HealthDB"`

	DatabaseDSN  string `env:"DATABASE_DSN"`
	DatabaseURL  string `env:"DATABASE_URL"`
	StateDir     string `env:"AROGYAMITRA_STATE_DIR" envDefault:"/var/lib/arogyamitra"`
	APIAddr      string `env:"API_ADDR" envDefault:":8080"`
	HistoryLimit int    `env:"HISTORY_LIMIT" envDefault:"5"`

	WhatsAppDirect bool   `env:"WHATSAPP_DIRECT" envDefault:"false"`
	WhatsAppDSN    string `env:"WHATSAPP_DB_DSN"`
}

// Flags holds command line values that are not part of Config.
type Flags struct {
	logLevel slog.Level
	qrOutput string
	numeric  bool
}

// loadEnvironmentConfig loads the .env file, if any, and parses the environment into a
// Config. A non-nil environment replaces the process environment.
func loadEnvironmentConfig(environment map[string]string) (Config, error) {
	var cfg Config
	if environment == nil {
		if err := godotenv.Load(); err != nil {
			slog.Debug("failed to load .env file", "error", err)
		} else {
			slog.Debug("successfully loaded .env file")
		}
		if err := env.Parse(&cfg); err != nil {
			return Config{}, fmt.Errorf("invalid environment configuration: %w", err)
		}
	} else if err := env.Parse(&cfg, env.Options{Environment: environment}); err != nil {
		return Config{}, fmt.Errorf("invalid environment configuration: %w", err)
	}

	if cfg.DatabaseDSN == "" && cfg.DatabaseURL != "" {
		cfg.DatabaseDSN = cfg.DatabaseURL
		slog.Debug("Using DATABASE_URL as DATABASE_DSN", "dsn_set", true)
	}

	slog.Debug("environment variables loaded",
		"TWILIO_WHATSAPP_NUMBER_SET", cfg.TwilioWhatsAppNumber != "",
		"TWILIO_SEND_RATE", cfg.TwilioSendRate,
		"TWILIO_VALIDATE_SIGNATURE", cfg.ValidateSignature,
		"GEMINI_MODEL", cfg.GeminiModel,
		"KNOWLEDGE_SHEET_ID_SET", cfg.KnowledgeSheetID != "",
		"KNOWLEDGE_SHEET_NAME", cfg.KnowledgeSheetName,
		"DATABASE_DSN_SET", cfg.DatabaseDSN != "",
		"AROGYAMITRA_STATE_DIR", cfg.StateDir,
		"API_ADDR", cfg.APIAddr,
		"HISTORY_LIMIT", cfg.HistoryLimit,
		"WHATSAPP_DIRECT", cfg.WhatsAppDirect)
	return cfg, nil
}

// parseCommandLineFlags applies command line overrides to cfg and fills in the
// state-directory based defaults for anything still unset.
func parseCommandLineFlags(cfg *Config, args []string) (Flags, error) {
	fs := flag.NewFlagSet("arogyamitra", flag.ContinueOnError)
	var flags Flags
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn or error")
	fs.StringVar(&flags.qrOutput, "qr-output", "", "path to write the WhatsApp login QR code")
	fs.BoolVar(&flags.numeric, "numeric-code", false, "print the WhatsApp pairing code instead of a QR code")
	fs.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "state directory for ArogyaMitra data (overrides $AROGYAMITRA_STATE_DIR)")
	fs.StringVar(&cfg.DatabaseDSN, "db-dsn", cfg.DatabaseDSN, "store DSN: SQLite path, PostgreSQL URL or \"memory\" (overrides $DATABASE_DSN)")
	fs.StringVar(&cfg.APIAddr, "api-addr", cfg.APIAddr, "API server address (overrides $API_ADDR)")
	fs.IntVar(&cfg.HistoryLimit, "history-limit", cfg.HistoryLimit, "number of past turns included in each prompt (overrides $HISTORY_LIMIT)")
	fs.StringVar(&cfg.GeminiModel, "model", cfg.GeminiModel, "completion model name (overrides $GEMINI_MODEL)")
	fs.StringVar(&cfg.KnowledgeSheetName, "sheet-name", cfg.KnowledgeSheetName, "knowledge spreadsheet name (overrides $KNOWLEDGE_SHEET_NAME)")
	fs.BoolVar(&cfg.WhatsAppDirect, "whatsapp-direct", cfg.WhatsAppDirect, "also serve WhatsApp through a linked device (overrides $WHATSAPP_DIRECT)")
	fs.StringVar(&cfg.WhatsAppDSN, "whatsapp-db-dsn", cfg.WhatsAppDSN, "WhatsApp device store DSN (overrides $WHATSAPP_DB_DSN)")

	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	if err := flags.logLevel.UnmarshalText([]byte(*logLevel)); err != nil {
		return Flags{}, fmt.Errorf("invalid -log-level %q: %w", *logLevel, err)
	}

	if cfg.StateDir == "" {
		cfg.StateDir = DefaultStateDir
	}
	if cfg.DatabaseDSN == "" {
		cfg.DatabaseDSN = filepath.Join(cfg.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", cfg.DatabaseDSN)
	}
	if cfg.WhatsAppDirect && cfg.WhatsAppDSN == "" {
		cfg.WhatsAppDSN = "file:" + filepath.Join(cfg.StateDir, whatsapp.DefaultDBFileName) + "?_foreign_keys=on"
	}

	slog.Debug("flags parsed",
		"logLevel", flags.logLevel.String(),
		"qrOutput", flags.qrOutput,
		"numeric", flags.numeric,
		"stateDir", cfg.StateDir,
		"dbDSN_type", store.DetectDSNType(cfg.DatabaseDSN),
		"apiAddr", cfg.APIAddr,
		"historyLimit", cfg.HistoryLimit,
		"whatsappDirect", cfg.WhatsAppDirect)
	return flags, nil
}

// ensureDirectoriesExist creates the state directory used by the lock file and file-based databases.
func ensureDirectoriesExist(cfg Config) error {
	dirs := []string{cfg.StateDir}
	if store.DetectDSNType(cfg.DatabaseDSN) == "sqlite3" {
		dirs = append(dirs, filepath.Dir(cfg.DatabaseDSN))
	}
	for _, dir := range dirs {
		slog.Debug("Creating state directory", "state_dir", dir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", dir)
			return err
		}
	}
	return nil
}
