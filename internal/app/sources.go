package app

import (
	"context"
	"fmt"

	"github.com/yaontheroad/email-agents/internal/ai"
	"github.com/yaontheroad/email-agents/internal/credential"
	"github.com/yaontheroad/email-agents/internal/source"
	"github.com/yaontheroad/email-agents/internal/source/email"
	"github.com/yaontheroad/email-agents/internal/source/ses"
)

// providerEnv names the conventional API key variable of each provider.
var providerEnv = map[string]struct{ env, name string }{
	"openai":    {"OPENAI_API_KEY", credential.OpenAIKey},
	"anthropic": {"ANTHROPIC_API_KEY", credential.AnthropicKey},
}

// mailboxAdapter builds the IMAP/SMTP adapter, loading the password from
// EMAIL_PASS or the keyring when the configuration has none.
func (a *App) mailboxAdapter() (*email.Adapter, error) {
	cfg := a.cfg.Mailbox
	if cfg.Username == "" {
		return nil, fmt.Errorf("mailbox.username (or EMAIL_USER) is not set")
	}
	if cfg.Password == "" {
		pass, err := a.deps.Credentials.Resolve("EMAIL_PASS", credential.MailboxPassword)
		if err != nil {
			return nil, err
		}
		if pass == "" {
			return nil, fmt.Errorf("no mailbox password: set EMAIL_PASS or run 'mailtriage credential set %s'",
				credential.MailboxPassword)
		}
		cfg.Password = pass
	}
	return email.NewAdapter(cfg, a.logger), nil
}

func (a *App) mailbox() (source.Mailbox, error) {
	if a.deps.Mailbox != nil {
		return a.deps.Mailbox, nil
	}
	adapter, err := a.mailboxAdapter()
	if err != nil {
		return nil, err
	}
	a.deps.Mailbox = adapter
	return adapter, nil
}

// sender returns the reply transport named by mailbox.transport.
func (a *App) sender(ctx context.Context) (source.Sender, error) {
	if a.deps.Sender != nil {
		return a.deps.Sender, nil
	}

	var (
		s   source.Sender
		err error
	)
	switch a.cfg.Mailbox.Transport {
	case "ses":
		s, err = ses.New(ctx, a.cfg.SES, a.logger)
	default:
		s, err = a.mailboxAdapter()
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s sender: %w", a.cfg.Mailbox.Transport, err)
	}
	a.deps.Sender = s
	return s, nil
}

// completer builds the language service. The key comes from the
// configuration (MAILTRIAGE_API_KEY), the provider's own environment
// variable, or the keyring, in that order.
func (a *App) completer() (ai.Completer, error) {
	if a.deps.Completer != nil {
		return a.deps.Completer, nil
	}

	cfg := a.cfg.AI
	if cfg.APIKey == "" {
		if p, ok := providerEnv[cfg.Provider]; ok {
			key, err := a.deps.Credentials.Resolve(p.env, p.name)
			if err != nil {
				return nil, err
			}
			cfg.APIKey = key
		}
	}

	svc, err := ai.NewCompleter(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating AI client: %w", err)
	}
	a.deps.Completer = svc
	return svc, nil
}
