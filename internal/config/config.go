// Package config reads the process environment into a validated Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	TaxonomySheets = "sheets"
	TaxonomyXLSX   = "xlsx"
	TaxonomyYAML   = "yaml"
)

type Config struct {
	Environment string
	LogLevel    string `validate:"omitempty,oneof=debug info warn warning error"`
	LogDir      string
	LogToFile   bool
	Port        string `validate:"required,numeric"`

	TBankBaseURL    string `validate:"required,url"`
	TBankLogin      string
	TBankPassword   string
	AgentGroupName  string
	MinCallDuration float64 `validate:"min=0"`

	TaxonomySource        string `validate:"required,oneof=sheets xlsx yaml"`
	GoogleCredentialsFile string `validate:"required_if=TaxonomySource sheets"`
	RequirementsSheetID   string `validate:"required_if=TaxonomySource sheets"`
	ChecklistSheet        string `validate:"required"`
	PromptSheet           string `validate:"required"`
	TaxonomyPath          string `validate:"required_unless=TaxonomySource sheets"`

	LLMBaseURL string        `validate:"required,url"`
	LLMToken   string        `validate:"required"`
	LLMModel   string        `validate:"required"`
	LLMTimeout time.Duration `validate:"gt=0"`
	LLMRPS     float64       `validate:"min=0"`

	MaxConcurrent       int           `validate:"min=1,max=64"`
	RetryDelay          time.Duration `validate:"min=0"`
	ParseRetryDelay     time.Duration `validate:"min=0"`
	SimilarityThreshold float64       `validate:"gt=0,lte=1"`
	SimilarityAlgorithm string        `validate:"oneof=ratio levenshtein"`
	CheckDayAgo         int           `validate:"min=0"`
	DepartmentID        int           `validate:"min=1"`
	PromptFile          string        `validate:"required,file"`

	DatabaseURL    string
	DBMaxConns     int    `validate:"min=0"`
	PushgatewayURL string `validate:"omitempty,url"`
}

// Load reads the environment. A .env file, if any, must already be applied.
func Load() (*Config, error) {
	r := reader{getenv: os.Getenv}
	cfg := &Config{
		Environment: r.str("ENVIRONMENT", "local"),
		LogLevel:    strings.ToLower(r.str("LOG_LEVEL", "info")),
		LogDir:      r.str("LOG_DIR", "logs"),
		LogToFile:   r.boolean("LOG_TO_FILE", false),
		Port:        r.str("PORT", "8080"),

		TBankBaseURL:    r.str("TBANK_BASE_URL", "https://sales.tbank.ru/"),
		TBankLogin:      r.str("TBANK_LOGIN", ""),
		TBankPassword:   r.str("TBANK_PASSWORD", ""),
		AgentGroupName:  r.str("AGENT_GROUP_NAME", ""),
		MinCallDuration: r.float("MIN_CALL_DURATION", 30),

		TaxonomySource:        strings.ToLower(r.str("TAXONOMY_SOURCE", TaxonomySheets)),
		GoogleCredentialsFile: r.str("GOOGLE_CREDENTIALS_FILE", ""),
		RequirementsSheetID:   r.str("REQUIREMENTS_SHEET_ID", ""),
		ChecklistSheet:        r.str("CHECKLIST_SHEET", "Чек-лист"),
		PromptSheet:           r.str("PROMPT_SHEET", "Промпт"),
		TaxonomyPath:          r.str("TAXONOMY_PATH", ""),

		LLMBaseURL: r.str("LLM_BASE_URL", ""),
		LLMToken:   r.str("LLM_TOKEN", ""),
		LLMModel:   r.str("LLM_MODEL", ""),
		LLMTimeout: r.duration("LLM_TIMEOUT", 300*time.Second),
		LLMRPS:     r.float("LLM_RPS", 0),

		MaxConcurrent:       r.integer("MAX_CONCURRENT", 3),
		RetryDelay:          r.duration("RETRY_DELAY", 60*time.Second),
		ParseRetryDelay:     r.duration("PARSE_RETRY_DELAY", time.Second),
		SimilarityThreshold: r.float("SIMILARITY_THRESHOLD", 0.85),
		SimilarityAlgorithm: strings.ToLower(r.str("SIMILARITY_ALGORITHM", "ratio")),
		CheckDayAgo:         r.integer("CHECK_DAY_AGO", 2),
		DepartmentID:        r.integer("DEPARTMENT_ID", 1),
		PromptFile:          r.str("PROMPT_FILE", ""),

		DatabaseURL:    r.str("DATABASE_URL", ""),
		DBMaxConns:     r.integer("DB_MAX_CONNS", 0),
		PushgatewayURL: r.str("PUSHGATEWAY_URL", ""),
	}
	if err := errors.Join(r.errs...); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Day is the calendar day a batch run analyzes.
func (c *Config) Day(now time.Time) time.Time {
	y, m, d := now.AddDate(0, 0, -c.CheckDayAgo).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

type reader struct {
	getenv func(string) string
	errs   []error
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) integer(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (r *reader) float(key string, def float64) float64 {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (r *reader) boolean(key string, def bool) bool {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

// duration accepts Go syntax ("90s") or a bare number of seconds.
func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
