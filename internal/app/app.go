// Package app wires configuration, credentials and the mail, AI and
// storage components into the operations behind each command.
package app

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/yaontheroad/email-agents/internal/ai"
	"github.com/yaontheroad/email-agents/internal/credential"
	"github.com/yaontheroad/email-agents/internal/model"
	"github.com/yaontheroad/email-agents/internal/source"
)

// Options are the process-level settings taken from the command line.
type Options struct {
	ConfigPath string
	EnvFile    string

	// LogLevel overrides the configured level when set.
	LogLevel string

	Out    io.Writer
	ErrOut io.Writer
}

// Deps lets callers supply collaborators instead of having them built
// from configuration. Nil fields are built on first use.
type Deps struct {
	Mailbox     source.Mailbox
	Sender      source.Sender
	Completer   ai.Completer
	Credentials *credential.Store
}

// App holds the loaded configuration and the collaborators built from it.
type App struct {
	cfg    *model.AppConfig
	logger *slog.Logger
	out    io.Writer
	deps   Deps
	now    func() time.Time
}

// New loads the .env file and configuration named in opts and builds a
// logger for them.
func New(opts Options) (*App, error) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.ErrOut == nil {
		opts.ErrOut = os.Stderr
	}

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", opts.EnvFile, err)
		}
	}

	path := opts.ConfigPath
	if path == "" {
		path = model.DefaultConfigPath()
	}
	cfg, err := model.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	logger, err := NewLogger(opts.ErrOut, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger.Debug("configuration loaded", "path", path, "provider", cfg.AI.Provider, "transport", cfg.Mailbox.Transport)

	return NewWith(cfg, logger, opts.Out, Deps{}), nil
}

// NewWith builds an App from an already loaded configuration.
func NewWith(cfg *model.AppConfig, logger *slog.Logger, out io.Writer, deps Deps) *App {
	if deps.Credentials == nil {
		deps.Credentials = credential.NewStore()
	}
	return &App{
		cfg:    cfg,
		logger: logger,
		out:    out,
		deps:   deps,
		now:    time.Now,
	}
}

// Config returns the loaded configuration.
func (a *App) Config() *model.AppConfig {
	return a.cfg
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Credentials returns the credential store.
func (a *App) Credentials() *credential.Store {
	return a.deps.Credentials
}

// NewLogger returns a slog logger that writes leveled, human-readable
// lines to w.
func NewLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	handler := log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          "mailtriage",
	})
	return slog.New(handler), nil
}

func (a *App) path(name string) string {
	return a.cfg.Files.Path(name)
}
