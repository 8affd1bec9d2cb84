package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/nomadcore/triphail/internal/domain/types"
	"github.com/nomadcore/triphail/pkg/configparser"
)

// Flags
var (
	modeFlag = flag.String("mode", "", "application mode")
)

// Errors
var (
	ErrModeNotProvided = errors.New("mode flag not provided")
)

// Config contains all configuration variables of the application
type (
	Config struct {
		Mode types.ServiceMode

		Database  DatabaseConfig
		RabbitMQ  RabbitMQConfig
		WebSocket WebSocketConfig
		Dispatch  DispatchConfig
		SMS       SMSConfig
		Mail      MailConfig
		Auth      Auth
	}

	DatabaseConfig struct {
		Host     string `env:"DATABASE_HOST" default:"localhost"`
		Port     string `env:"DATABASE_PORT" default:"5432"`
		User     string `env:"DATABASE_USER" default:"triphail_user"`
		Password string `env:"DATABASE_PASSWORD" default:"triphail_pass"`
		Database string `env:"DATABASE_DATABASE" default:"triphail_db"`

		// URL overrides the discrete fields above when set, matching the
		// single DATABASE_URL connection string recognized form.
		URL string `env:"DATABASE_URL" default:""`

		MaxOpenConns int32  `env:"DATABASE_MAXOPENCONN" default:"25"`
		MaxIdleTime  string `env:"DATABASE_MAXIDLETIME" default:"15m"`

		MaxConns        int32         `env:"DATABASE_MAXCONNS" default:"20"`
		MinConns        int32         `env:"DATABASE_MINCONNS" default:"2"`
		MaxConnLifetime time.Duration `env:"DATABASE_MAXCONNLIFETIME" default:"30m"`
		MaxConnIdleTime time.Duration `env:"DATABASE_MAXCONNIDLETIME" default:"5m"`
	}

	RabbitMQConfig struct {
		Host     string `env:"RABBITMQ_HOST" default:"localhost"`
		Port     string `env:"RABBITMQ_PORT" default:"5672"`
		User     string `env:"RABBITMQ_USER" default:"guest"`
		Password string `env:"RABBITMQ_PASSWORD" default:"guest"`
	}

	WebSocketConfig struct {
		Port string `env:"WEBSOCKET_PORT" default:"8080"`
	}

	// DispatchConfig holds offer/radius/widening/freshness settings. They are
	// loaded and printed at startup, but the dispatch and spatial packages do
	// not read them: they use their own constants (PerOfferTimeout,
	// OfferRadiusKm, FreshnessWindow), whose values differ from these defaults.
	DispatchConfig struct {
		OfferTimeout    time.Duration `env:"DISPATCH_OFFER_TIMEOUT" default:"15s"`
		InitialRadiusKm float64       `env:"DISPATCH_INITIAL_RADIUS_KM" default:"3"`
		WidenedRadiusKm float64       `env:"DISPATCH_WIDENED_RADIUS_KM" default:"8"`
		MaxRadiusKm     float64       `env:"DISPATCH_MAX_RADIUS_KM" default:"15"`
		WideningBackoff time.Duration `env:"DISPATCH_WIDENING_BACKOFF" default:"30s"`
		FreshnessWindow time.Duration `env:"DISPATCH_FRESHNESS_WINDOW" default:"5m"`
	}

	// SMSConfig carries the recognized Afro SMS gateway env keys. The
	// gateway call itself is an out-of-scope external collaborator (spec
	// §1); this service only needs to recognize the keys so local config
	// loading doesn't choke on an otherwise-complete deployment manifest.
	SMSConfig struct {
		Key       string `env:"AFRO_SMS_KEY" default:""`
		From      string `env:"AFRO_FROM" default:""`
		Sender    string `env:"AFRO_SENDER" default:""`
		PR        string `env:"AFRO_PR" default:""`
		PS        string `env:"AFRO_PS" default:""`
		BypassOTP bool   `env:"BYPASS_SMS_OTP" default:"false"`
	}

	// MailConfig mirrors the recognized mail keys; like SMSConfig this
	// service only reads them, it does not send mail itself.
	MailConfig struct {
		Enabled bool   `env:"MAIL_ENABLED" default:"false"`
		From    string `env:"MAIL_FROM" default:""`
	}

	Auth struct {
		AccessTokenTTL  time.Duration `env:"ACCESS_EXPIRES_IN" default:"15m"`
		RefreshTokenTTL time.Duration `env:"REFRESH_EXPIRES_IN" default:"168h"`
		AccessSecret    string        `env:"JWT_ACCESS_SECRET" default:"supersecretkey"`
		RefreshSecret   string        `env:"JWT_REFRESH_SECRET" default:"supersecretrefreshkey"`
	}
)

func (c DatabaseConfig) GetDSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

func (c RabbitMQConfig) GetDSN() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/",
		c.User,
		c.Password,
		c.Host,
		c.Port,
	)
}

func NewConfig(filepath string) (*Config, error) {
	cfg := &Config{}

	// Loading enviromental variables and parsing to config struct.
	if err := configparser.LoadAndParseYaml(filepath, cfg); err != nil {
		return nil, fmt.Errorf("failed to load and parse config: %w", err)
	}

	// Parsing flags
	if err := parseFlags(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	return cfg, nil
}

func parseFlags(cfg *Config) error {
	if modeFlag == nil || *modeFlag == "" {
		return ErrModeNotProvided
	}

	cfg.Mode = types.ServiceMode(*modeFlag)

	return nil
}
