package config

import (
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/ksdme/vortex/internal/address"
	"github.com/pkg/errors"
)

// Settings holds everything the client reads from the environment. Unlike
// older versions of this package there is no global copy, the value is
// passed around explicitly as part of core.Services.
type Settings struct {
	Debug   bool   `env:"DEBUG"`
	LogFile string `env:"LOG_FILE"`

	// Backend.
	APIEndpoint    string        `env:"API_ENDPOINT,required"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"5s"`

	// Addresses are always issued on one of these domains.
	EmailDomains []string `env:"EMAIL_DOMAINS,required" envSeparator:","`

	// Bot verification, leaving the site key empty disables it.
	TurnstileSiteKey string `env:"TURNSTILE_SITEKEY"`

	// Recognised so that shared .env files keep working, but unused.
	AnalyticsScriptURL string `env:"ANALYTICS_SCRIPT_URL"`

	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"7s"`
	PollJitter   time.Duration `env:"POLL_JITTER" envDefault:"0s"`

	ImageProxy string `env:"IMAGE_PROXY" envDefault:"https://wsrv.nl/?url="`

	// Local state of the standalone client.
	StatePath string `env:"STATE_PATH,expand" envDefault:"${HOME}/.vortex.db"`

	// Hosting the client over ssh.
	SSHBindAddr    string `env:"SSH_BIND_ADDR" envDefault:"127.0.0.1:2222"`
	SSHHostKeyPath string `env:"SSH_HOST_KEY_PATH,expand" envDefault:"${HOME}/.ssh/id_ed25519"`
	DBURI          string `env:"DB_URI" envDefault:"file:vortex.sqlite3"`
	DBMigrate      bool   `env:"DB_MIGRATE"`
}

// Load reads a .env file from the working directory if there is one and then
// parses the environment. Values already present in the environment win.
func Load() (Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, errors.Wrap(err, "could not read .env file")
	}

	var settings Settings
	if err := env.Parse(&settings); err != nil {
		return Settings{}, errors.Wrap(err, "could not parse configuration")
	}

	settings.EmailDomains = normalizeDomains(settings.EmailDomains)
	settings.APIEndpoint = strings.TrimRight(settings.APIEndpoint, "/")

	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// Validate reports configuration errors. These are fatal, callers should not
// try to recover from them.
func (s Settings) Validate() error {
	if len(s.EmailDomains) == 0 {
		return address.ErrNoDomains
	}
	if s.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	if s.PollJitter < 0 {
		return errors.New("poll jitter cannot be negative")
	}
	return nil
}

// VerificationEnabled is true when a bot verification site key is set.
func (s Settings) VerificationEnabled() bool {
	return s.TurnstileSiteKey != ""
}

func normalizeDomains(domains []string) []string {
	var result []string
	seen := map[string]bool{}
	for _, domain := range domains {
		domain = strings.ToLower(strings.TrimSpace(domain))
		domain = strings.TrimPrefix(domain, "@")
		if domain == "" || seen[domain] {
			continue
		}
		seen[domain] = true
		result = append(result, domain)
	}
	return result
}
