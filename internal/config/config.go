package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Twilio    TwilioConfig    `yaml:"twilio" mapstructure:"twilio"`
	Dispatch  DispatchConfig  `yaml:"dispatch" mapstructure:"dispatch"`
	Recording RecordingConfig `yaml:"recording" mapstructure:"recording"`
	IVR       IVRConfig       `yaml:"ivr" mapstructure:"ivr"`
	Whisper   WhisperConfig   `yaml:"whisper" mapstructure:"whisper"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Ledger    LedgerConfig    `yaml:"ledger" mapstructure:"ledger"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// TwilioConfig holds telephony provider credentials and numbers.
type TwilioConfig struct {
	AccountSID      string `yaml:"account_sid" mapstructure:"account_sid"`
	AuthToken       string `yaml:"auth_token" mapstructure:"auth_token"`
	PhoneNumber     string `yaml:"phone_number" mapstructure:"phone_number"`
	TestNumber      string `yaml:"test_number" mapstructure:"test_number"`
	AgentNumber     string `yaml:"agent_number" mapstructure:"agent_number"`
	CallbackBaseURL string `yaml:"callback_base_url" mapstructure:"callback_base_url"`
}

// DispatchConfig configures the outbound call dispatcher.
type DispatchConfig struct {
	DelaySecs      int `yaml:"delay_secs" mapstructure:"delay_secs"`
	MaxRetries     int `yaml:"max_retries" mapstructure:"max_retries"`
	RetryDelaySecs int `yaml:"retry_delay_secs" mapstructure:"retry_delay_secs"`
}

// Delay returns the minimum spacing between successive lead launches.
func (c DispatchConfig) Delay() time.Duration {
	return time.Duration(c.DelaySecs) * time.Second
}

// RetryDelay returns the fixed inter-attempt delay for one lead.
func (c DispatchConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySecs) * time.Second
}

// RecordingConfig configures recording retrieval.
type RecordingConfig struct {
	PollRetries   int    `yaml:"poll_retries" mapstructure:"poll_retries"`
	PollDelaySecs int    `yaml:"poll_delay_secs" mapstructure:"poll_delay_secs"`
	MinBytes      int64  `yaml:"min_bytes" mapstructure:"min_bytes"`
	DownloadDir   string `yaml:"download_dir" mapstructure:"download_dir"`
}

// PollDelay returns the delay between recording polls.
func (c RecordingConfig) PollDelay() time.Duration {
	return time.Duration(c.PollDelaySecs) * time.Second
}

// IVRConfig holds the scripted question list, asked in order.
type IVRConfig struct {
	Questions []string `yaml:"questions" mapstructure:"questions"`
}

// WhisperConfig holds speech-to-text API settings.
type WhisperConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings for summarization.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// LedgerConfig holds the append-only ledger file paths.
type LedgerConfig struct {
	ResponsesPath string `yaml:"responses_path" mapstructure:"responses_path"`
	SummariesPath string `yaml:"summaries_path" mapstructure:"summaries_path"`
}

// StoreConfig configures the call-run database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// IngestConfig configures lead-file ingestion.
type IngestConfig struct {
	WatchDir string `yaml:"watch_dir" mapstructure:"watch_dir"`
}

// ServerConfig configures the IVR webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultQuestions is the scripted question set used when none are
// configured.
var DefaultQuestions = []string{
	"Have you visited a dentist in the last 6 months?",
	"Do you currently have dental insurance?",
	"Would you like to be connected with a dental care specialist now?",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DIALER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("dispatch.delay_secs", 2)
	v.SetDefault("dispatch.max_retries", 3)
	v.SetDefault("dispatch.retry_delay_secs", 5)
	v.SetDefault("recording.poll_retries", 5)
	v.SetDefault("recording.poll_delay_secs", 5)
	v.SetDefault("recording.min_bytes", 2000)
	v.SetDefault("recording.download_dir", "downloads")
	v.SetDefault("ivr.questions", DefaultQuestions)
	v.SetDefault("whisper.base_url", "https://api.openai.com")
	v.SetDefault("whisper.model", "whisper-1")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("ledger.responses_path", "logs/responses.csv")
	v.SetDefault("ledger.summaries_path", "logs/summaries.csv")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "dialer.db")
	v.SetDefault("ingest.watch_dir", "leads")
	v.SetDefault("server.port", 5001)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
