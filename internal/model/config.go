package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// MailboxConfig holds the IMAP/SMTP settings for the monitored mailbox.
type MailboxConfig struct {
	IMAPHost string `mapstructure:"imap_host" yaml:"imap_host"`
	IMAPPort string `mapstructure:"imap_port" yaml:"imap_port"`
	SMTPHost string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort string `mapstructure:"smtp_port" yaml:"smtp_port"`

	// Username doubles as the From address for outgoing replies.
	Username string `mapstructure:"username" yaml:"username"`

	// Password is normally left empty and supplied through EMAIL_PASS or
	// the system keyring.
	Password string `mapstructure:"password" yaml:"password"`

	// TLS selects implicit TLS; when false STARTTLS is used.
	TLS bool `mapstructure:"tls" yaml:"tls"`

	InboxFolder string `mapstructure:"inbox_folder" yaml:"inbox_folder"`

	// SentFolder is discovered from the \Sent special-use attribute when
	// empty.
	SentFolder string `mapstructure:"sent_folder" yaml:"sent_folder"`

	// Transport is "smtp" or "ses".
	Transport string `mapstructure:"transport" yaml:"transport"`
}

// SESConfig holds the AWS SES settings used when mailbox.transport is "ses".
type SESConfig struct {
	Region          string `mapstructure:"region" yaml:"region"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	Sender          string `mapstructure:"sender" yaml:"sender"`
}

// WindowConfig controls how far back the mailbox is searched.
type WindowConfig struct {
	InboundHours int `mapstructure:"inbound_hours" yaml:"inbound_hours"`
	SentDays     int `mapstructure:"sent_days" yaml:"sent_days"`
}

// AIConfig holds settings for the classification and drafting service.
type AIConfig struct {
	// Provider is "openai" or "anthropic".
	Provider   string `mapstructure:"provider" yaml:"provider"`
	Model      string `mapstructure:"model" yaml:"model"`
	MaxTokens  int    `mapstructure:"max_tokens" yaml:"max_tokens"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// Workers bounds concurrent classification calls. 1 is sequential.
	Workers int `mapstructure:"workers" yaml:"workers"`

	APIKey string `mapstructure:"api_key" yaml:"api_key"`
}

// Timeout returns the per-call timeout as a time.Duration.
func (c AIConfig) Timeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}

// ReplyConfig holds drafting preferences.
type ReplyConfig struct {
	Signature string `mapstructure:"signature" yaml:"signature"`
}

// FilesConfig names the flat files the tool reads and writes.
type FilesConfig struct {
	Dir          string `mapstructure:"dir" yaml:"dir"`
	RecentEmails string `mapstructure:"recent_emails" yaml:"recent_emails"`
	Records      string `mapstructure:"records" yaml:"records"`
	Report       string `mapstructure:"report" yaml:"report"`
	History      string `mapstructure:"history" yaml:"history"`
}

// Path joins name onto the configured directory.
func (f FilesConfig) Path(name string) string {
	return filepath.Join(f.Dir, name)
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Mailbox  MailboxConfig `mapstructure:"mailbox" yaml:"mailbox"`
	SES      SESConfig     `mapstructure:"ses" yaml:"ses"`
	Window   WindowConfig  `mapstructure:"window" yaml:"window"`
	AI       AIConfig      `mapstructure:"ai" yaml:"ai"`
	Reply    ReplyConfig   `mapstructure:"reply" yaml:"reply"`
	Files    FilesConfig   `mapstructure:"files" yaml:"files"`
	LogLevel string        `mapstructure:"log_level" yaml:"log_level"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailtriage/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailtriage", "config.yaml")
}

var defaults = map[string]any{
	"mailbox.imap_host":    "imap.gmail.com",
	"mailbox.imap_port":    "993",
	"mailbox.smtp_host":    "smtp.gmail.com",
	"mailbox.smtp_port":    "587",
	"mailbox.tls":          true,
	"mailbox.inbox_folder": "INBOX",
	"mailbox.transport":    "smtp",
	"ses.region":           "us-east-1",
	"window.inbound_hours": 24,
	"window.sent_days":     7,
	"ai.provider":          "openai",
	"ai.model":             "",
	"ai.max_tokens":        1024,
	"ai.timeout_sec":       60,
	"ai.workers":           1,
	"reply.signature":      "Kris",
	"files.dir":            ".",
	"files.recent_emails":  "recent_emails.txt",
	"files.records":        "needs_response_emails.json",
	"files.report":         "needs_response_report.txt",
	"files.history":        "response_history.json",
	"log_level":            "info",
}

// envBindings maps config keys to the environment variables that
// override them.
var envBindings = map[string][]string{
	"mailbox.username": {"EMAIL_USER"},
	"mailbox.password": {"EMAIL_PASS"},
	"ai.api_key":       {"MAILTRIAGE_API_KEY"},
	"log_level":        {"MAILTRIAGE_LOG_LEVEL"},
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, defaults plus environment overrides are
// returned.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if _, ok := err.(*os.PathError); !ok && !notFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks enumerated settings and numeric bounds.
func (c *AppConfig) Validate() error {
	switch c.AI.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("ai.provider must be openai or anthropic, got %q", c.AI.Provider)
	}
	switch c.Mailbox.Transport {
	case "smtp", "ses":
	default:
		return fmt.Errorf("mailbox.transport must be smtp or ses, got %q", c.Mailbox.Transport)
	}
	if c.AI.Workers < 1 {
		return fmt.Errorf("ai.workers must be at least 1")
	}
	if c.Window.InboundHours < 1 || c.Window.SentDays < 1 {
		return fmt.Errorf("window.inbound_hours and window.sent_days must be positive")
	}
	return nil
}
