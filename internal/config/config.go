package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by the configuration.
const EnvPrefix = "INBOXFORWARD"

// Defaults.
const (
	DefaultProcessedLabel  = "telegram-forwarded"
	DefaultTelegramTimeout = 30 * time.Second
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultMetricsAddr     = ":9090"
	DefaultServiceName     = "inboxforward"
)

// TelegramConfig identifies the bot and the chat to forward to.
type TelegramConfig struct {
	BotToken      string        `mapstructure:"bot_token"`
	ChatID        string        `mapstructure:"chat_id"`
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	CaptionImages bool          `mapstructure:"caption_images"`
}

// GoogleConfig locates the OAuth client secret and the cached token.
type GoogleConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	TokenFile       string `mapstructure:"token_file"`
}

// ScannerConfig controls the poll cycle.
type ScannerConfig struct {
	SkipSenders    []string      `mapstructure:"skip_senders"`
	ProcessedLabel string        `mapstructure:"processed_label"`
	MarkOnFailure  bool          `mapstructure:"mark_on_failure"`
	Interval       time.Duration `mapstructure:"interval"`
	DryRun         bool          `mapstructure:"dry_run"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	IncludePII bool   `mapstructure:"include_pii"`
}

// MetricsConfig controls the metrics and health endpoint.
type MetricsConfig struct {
	// Addr is the listen address; empty disables the server.
	Addr string `mapstructure:"addr"`
}

// TelemetryConfig selects the OpenTelemetry exporters.
type TelemetryConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	ServiceName       string  `mapstructure:"service_name"`
	InstanceID        string  `mapstructure:"instance_id"`
	MetricsExporter   string  `mapstructure:"metrics_exporter"`
	TracingExporter   string  `mapstructure:"tracing_exporter"`
	OTLPEndpoint      string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure      bool    `mapstructure:"otlp_insecure"`
	TraceSamplingRate float64 `mapstructure:"trace_sampling_rate"`
	DetailedLabels    bool    `mapstructure:"detailed_labels"`
	Audit             bool    `mapstructure:"audit"`
}

// Config is the complete runtime configuration.
type Config struct {
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Google    GoogleConfig    `mapstructure:"google"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// telemetryEnv lists the conventional variable names each telemetry key
// also answers to.
var telemetryEnv = map[string]string{
	"telemetry.enabled":             "INSTRUMENTATION_ENABLED",
	"telemetry.service_name":        "OTEL_SERVICE_NAME",
	"telemetry.instance_id":         "OTEL_SERVICE_INSTANCE_ID",
	"telemetry.metrics_exporter":    "METRICS_EXPORTER",
	"telemetry.tracing_exporter":    "TRACING_EXPORTER",
	"telemetry.otlp_endpoint":       "OTEL_EXPORTER_OTLP_ENDPOINT",
	"telemetry.otlp_insecure":       "OTEL_EXPORTER_OTLP_INSECURE",
	"telemetry.trace_sampling_rate": "OTEL_TRACES_SAMPLER_ARG",
	"telemetry.detailed_labels":     "METRICS_DETAILED_LABELS",
	"telemetry.audit":               "AUDIT_LOGGING_ENABLED",
	"log.include_pii":               "AUDIT_LOGGING_INCLUDE_PII",
}

// New returns a viper instance with defaults and environment bindings.
// Flags are bound by the caller.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("telegram.timeout", DefaultTelegramTimeout)
	v.SetDefault("telegram.caption_images", false)
	v.SetDefault("google.credentials_file", "credentials.json")
	v.SetDefault("scanner.processed_label", DefaultProcessedLabel)
	v.SetDefault("scanner.mark_on_failure", true)
	v.SetDefault("scanner.interval", time.Duration(0))
	v.SetDefault("scanner.skip_senders", []string{})
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("metrics.addr", DefaultMetricsAddr)
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.service_name", DefaultServiceName)
	v.SetDefault("telemetry.metrics_exporter", "prometheus")
	v.SetDefault("telemetry.tracing_exporter", "none")
	// A poll loop emits few traces; sample them all unless told otherwise.
	v.SetDefault("telemetry.trace_sampling_rate", 1.0)
	v.SetDefault("telemetry.audit", true)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The bot credentials keep their conventional unprefixed names.
	_ = v.BindEnv("telegram.bot_token", EnvPrefix+"_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("telegram.chat_id", EnvPrefix+"_TELEGRAM_CHAT_ID", "TELEGRAM_CHAT_ID")
	for key, name := range telemetryEnv {
		_ = v.BindEnv(key, envName(key), name)
	}

	return v
}

// Load reads the optional config file and decodes v into a Config.
// A file ending in .env is read as dotenv; anything else by extension.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if isDotEnv(file) {
			v.SetConfigType("env")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", file, err)
		}
		if isDotEnv(file) {
			promoteDotEnv(v)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Scanner.SkipSenders = skipSenders(v.Get("scanner.skip_senders"))
	return &cfg, nil
}

// envName is the prefixed variable AutomaticEnv would read for key.
func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func isDotEnv(file string) bool {
	base := filepath.Base(file)
	return base == ".env" || filepath.Ext(base) == ".env"
}

// promoteDotEnv maps the flat keys of a dotenv file onto their nested
// configuration keys. They are installed as defaults so flags and the
// environment still take precedence.
func promoteDotEnv(v *viper.Viper) {
	prefix := strings.ToLower(EnvPrefix) + "_"
	for _, raw := range v.AllKeys() {
		if strings.Contains(raw, ".") {
			continue
		}
		if key, ok := dotEnvKey(strings.TrimPrefix(raw, prefix)); ok {
			v.SetDefault(key, v.Get(raw))
		}
	}
}

// dotEnvKey resolves a flat name to a section.key configuration key, e.g.
// telegram_bot_token to telegram.bot_token.
func dotEnvKey(name string) (string, bool) {
	for _, section := range []string{"telegram", "google", "scanner", "log", "metrics", "telemetry"} {
		if rest, ok := strings.CutPrefix(name, section+"_"); ok && rest != "" {
			return section + "." + rest, true
		}
	}
	return "", false
}

// skipSenders reads the skip list. Elements of a list from a config file or
// a repeated flag are kept verbatim, so a display name may contain a comma.
// A single string, as read from the environment, is split on commas.
func skipSenders(raw any) []string {
	var in []string
	if s, ok := raw.(string); ok {
		in = strings.Split(s, ",")
	} else {
		in = cast.ToStringSlice(raw)
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks the values required to run a poll cycle.
func (c *Config) Validate() error {
	var errs []error
	if !c.Scanner.DryRun {
		if c.Telegram.BotToken == "" {
			errs = append(errs, errors.New("telegram bot token is required (TELEGRAM_BOT_TOKEN)"))
		}
		if c.Telegram.ChatID == "" {
			errs = append(errs, errors.New("telegram chat ID is required (TELEGRAM_CHAT_ID)"))
		}
	}
	if strings.TrimSpace(c.Scanner.ProcessedLabel) == "" {
		errs = append(errs, errors.New("scanner.processed_label must not be empty"))
	}
	if c.Scanner.Interval < 0 {
		errs = append(errs, fmt.Errorf("scanner.interval must not be negative, got %s", c.Scanner.Interval))
	}
	if c.Telegram.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("telegram.timeout must be positive, got %s", c.Telegram.Timeout))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
