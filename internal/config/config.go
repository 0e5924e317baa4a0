package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath     string
	RawMailDir string
	OutputDir  string
	LogLevel   string

	OpenAIBaseURL      string
	OpenAIAPIKey       string
	OpenAIModel        string
	OpenAIRateLimitRPS int
	OpenAITimeoutMs    int

	NumberColumns      []string
	TitleColumns       []string
	DescriptionColumns []string
	ValueColumns       []string
	CategoryColumns    []string
	NotesColumns       []string
	ExpirationColumns  []string

	SkipExtraction bool

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailListenerMailbox      string
	MailListenerIntervalSec  int
	MailListenerFetchMax     int
	MailListenerProcessBatch int
	MailListenerAutoRender   bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		RawMailDir: getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		OpenAIBaseURL:      getEnv("OPENAI_API_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:        getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIRateLimitRPS: getEnvInt("OPENAI_RATE_LIMIT_RPS", 2),
		OpenAITimeoutMs:    getEnvInt("OPENAI_TIMEOUT_MS", 60000),

		NumberColumns:      getEnvList("SHEET_NUMBER_COLUMNS", "item number,number,item #,bid number"),
		TitleColumns:       getEnvList("SHEET_TITLE_COLUMNS", "title,item name,name"),
		DescriptionColumns: getEnvList("SHEET_DESCRIPTION_COLUMNS", "description,item description"),
		ValueColumns:       getEnvList("SHEET_VALUE_COLUMNS", "value,fair market value,donation value,retail value"),
		CategoryColumns:    getEnvList("SHEET_CATEGORY_COLUMNS", "categories,category,tags"),
		NotesColumns:       getEnvList("SHEET_NOTES_COLUMNS", "notes,restrictions,special instructions"),
		ExpirationColumns:  getEnvList("SHEET_EXPIRATION_COLUMNS", "expiration,expires,valid until"),

		SkipExtraction: getEnvBool("IMPORT_SKIP_EXTRACTION", false),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailListenerMailbox:      getEnv("MAIL_LISTENER_MAILBOX", "INBOX"),
		MailListenerIntervalSec:  getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 30),
		MailListenerFetchMax:     getEnvInt("MAIL_LISTENER_FETCH_MAX", 20),
		MailListenerProcessBatch: getEnvInt("MAIL_LISTENER_PROCESS_BATCH", 20),
		MailListenerAutoRender:   getEnvBool("MAIL_LISTENER_AUTO_RENDER", true),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
