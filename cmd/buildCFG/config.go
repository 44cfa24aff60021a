package buildCFG

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"

	"festreg/internal/mailer"
	"festreg/internal/service"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type ServerConfig struct {
	Port    string
	GinMode string
}

type RabbitConfig struct {
	Url      string
	Exchange string
	Queue    string
	Prefetch int
}

type NotifyConfig struct {
	Workers   int
	QueueSize int
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type SheetsConfig struct {
	CredentialsFile string
	SpreadsheetID   string
}

func (s SheetsConfig) Enabled() bool {
	return s.CredentialsFile != "" && s.SpreadsheetID != ""
}

func BuildServerConfig(cfg *config.Config, log *zerolog.Logger) ServerConfig {
	port := cfg.GetString("server.port")
	if port == "" {
		log.Warn().Msg("server.port is not set, using 8080")
		port = "8080"
	}
	mode := cfg.GetString("server.gin_mode")
	if mode == "" {
		mode = "release"
	}
	return ServerConfig{Port: port, GinMode: mode}
}

func BuildStorageDriver(cfg *config.Config) (string, error) {
	driver := cfg.GetString("storage.driver")
	switch driver {
	case "", DriverPostgres:
		return DriverPostgres, nil
	case DriverMemory:
		return DriverMemory, nil
	default:
		return "", fmt.Errorf("unknown storage.driver %q", driver)
	}
}

func BuildDBConfig(cfg *config.Config, log *zerolog.Logger) (string, []string, *dbpg.Options, error) {
	masterDSN := cfg.GetString("postgres.master_dsn")
	if masterDSN == "" {
		return "", nil, nil, fmt.Errorf("postgres.master_dsn is required")
	}
	slaveDSNs := cfg.GetStringSlice("postgres.slave_dsns")

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.GetInt("postgres.max_open_conns"),
		MaxIdleConns:    cfg.GetInt("postgres.max_idle_conns"),
		ConnMaxLifetime: cfg.GetDuration("postgres.conn_max_lifetime"),
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 10
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 5
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = 30 * time.Minute
	}

	log.Debug().Int("slaves", len(slaveDSNs)).Int("max_open_conns", opts.MaxOpenConns).Msg("db config built")
	return masterDSN, slaveDSNs, opts, nil
}

// BuildRabbitConfig returns nil when rabbitmq.url is empty; notifications then
// go straight to the mailer.
func BuildRabbitConfig(cfg *config.Config, log *zerolog.Logger) (*RabbitConfig, error) {
	url := cfg.GetString("rabbitmq.url")
	if url == "" {
		log.Info().Msg("rabbitmq.url is not set, notifications are sent directly")
		return nil, nil
	}
	rc := &RabbitConfig{
		Url:      url,
		Exchange: cfg.GetString("rabbitmq.exchange"),
		Queue:    cfg.GetString("rabbitmq.queue"),
		Prefetch: cfg.GetInt("rabbitmq.prefetch"),
	}
	if rc.Exchange == "" {
		rc.Exchange = "festreg.notifications"
	}
	if rc.Queue == "" {
		return nil, fmt.Errorf("rabbitmq.queue is required when rabbitmq.url is set")
	}
	return rc, nil
}

func BuildNotifyConfig(cfg *config.Config) NotifyConfig {
	return NotifyConfig{
		Workers:   cfg.GetInt("notify.workers"),
		QueueSize: cfg.GetInt("notify.queue_size"),
	}
}

// BuildSMTPConfig returns nil when smtp.host is empty; notifications are then only logged.
func BuildSMTPConfig(cfg *config.Config) *mailer.Config {
	host := cfg.GetString("smtp.host")
	if host == "" {
		return nil
	}
	return &mailer.Config{
		Host:     host,
		Port:     cfg.GetInt("smtp.port"),
		Username: cfg.GetString("smtp.username"),
		Password: cfg.GetString("smtp.password"),
		From:     cfg.GetString("smtp.from"),
	}
}

func BuildAuthConfig(cfg *config.Config) (AuthConfig, error) {
	secret := cfg.GetString("auth.jwt_secret")
	if secret == "" {
		return AuthConfig{}, fmt.Errorf("auth.jwt_secret is required")
	}
	return AuthConfig{JWTSecret: secret, TokenTTL: cfg.GetDuration("auth.token_ttl")}, nil
}

func BuildServiceOptions(cfg *config.Config) service.Options {
	return service.Options{
		RegistrationPrefix: cfg.GetString("registration.number_prefix"),
		Codes: service.CodeConfig{
			Prefix:       cfg.GetString("codes.prefix"),
			SuffixLength: cfg.GetInt("codes.suffix_length"),
			MaxAttempts:  cfg.GetInt("codes.max_attempts"),
		},
		PasswordCost: cfg.GetInt("auth.bcrypt_cost"),
	}
}

func BuildUploadsDir(cfg *config.Config) string {
	dir := cfg.GetString("uploads.dir")
	if dir == "" {
		dir = "uploads"
	}
	return dir
}

func BuildSheetsConfig(cfg *config.Config) SheetsConfig {
	return SheetsConfig{
		CredentialsFile: cfg.GetString("sheets.credentials_file"),
		SpreadsheetID:   cfg.GetString("sheets.spreadsheet_id"),
	}
}
