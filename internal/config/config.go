package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

const defaultTransportPriority = "sendmail,smtp,api,file"

var knownTransports = map[string]struct{}{
	"sendmail": {},
	"smtp":     {},
	"api":      {},
	"ses":      {},
	"file":     {},
}

type Config struct {
	DatabaseDSN    string `env:"DATABASE_DSN,required=true"`
	DBMaxOpenConns int    `env:"DB_MAX_OPEN_CONNS,default=25"`
	DBMaxIdleConns int    `env:"DB_MAX_IDLE_CONNS,default=5"`
	RedisURL       string `env:"REDIS_URL"`
	APIPort        int    `env:"API_PORT,default=8080"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`

	// Comma-separated transport names tried in order for every send.
	TransportPriority string `env:"TRANSPORT_PRIORITY"`

	SMTPHost     string `env:"SMTP_HOST,default=localhost"`
	SMTPPort     int    `env:"SMTP_PORT,default=25"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`

	SendmailPath string `env:"SENDMAIL_PATH"`

	MailerAPIURL string `env:"MAILER_API_URL"`

	SESAccessKey string `env:"SES_ACCESS_KEY"`
	SESSecretKey string `env:"SES_SECRET_KEY"`
	SESRegion    string `env:"SES_REGION,default=us-east-1"`

	SinkDir string `env:"SINK_DIR,default=sent_emails"`

	SendDelayMillis   int `env:"SEND_DELAY_MS,default=200"`
	SendTimeoutMillis int `env:"SEND_TIMEOUT_MS,default=30000"`
	RateLimitPerSec   int `env:"RATE_LIMIT_PER_SEC,default=100"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if strings.TrimSpace(cfg.TransportPriority) == "" {
		cfg.TransportPriority = defaultTransportPriority
	}
	if _, err := cfg.Transports(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Transports returns the normalized transport priority order.
func (c *Config) Transports() ([]string, error) {
	parts := strings.Split(c.TransportPriority, ",")
	transports := make([]string, 0, len(parts))
	for _, part := range parts {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		if _, ok := knownTransports[name]; !ok {
			return nil, fmt.Errorf("unknown transport %q in TRANSPORT_PRIORITY", name)
		}
		transports = append(transports, name)
	}
	if len(transports) == 0 {
		return nil, fmt.Errorf("TRANSPORT_PRIORITY must name at least one transport")
	}
	return transports, nil
}

func (c *Config) SendDelay() time.Duration {
	return time.Duration(c.SendDelayMillis) * time.Millisecond
}

func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutMillis) * time.Millisecond
}
