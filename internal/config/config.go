package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string
	HTTPAddr string

	DatabaseDriver string
	DatabaseURL    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	JWTIssuer            string
	JWTAudience          string
	JWTParticipantSecret string
	JWTAdminSecret       string
	ParticipantTokenTTL  time.Duration
	AdminTokenTTL        time.Duration

	AccessCodeTTL          time.Duration
	StatsThrottleWindow    time.Duration
	SettingsReloadInterval time.Duration
	DefaultRateLimitRPM    int
	RateLimitFailMode      string
	CORSOrigins            []string

	ReconnectTTL   time.Duration
	WSPingInterval time.Duration
	WSPongWait     time.Duration
	WSSendBuffer   int

	BootstrapAdminUsername string
	BootstrapAdminPassword string

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELMetricsExportInterval time.Duration

	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration
}

// Load reads configuration from the environment. Values from envFile are
// applied first without overriding variables that are already set.
func Load(envFile string) (*Config, error) {
	cfg, err := load(envFile)
	recordConfigLoad(context.Background(), cfg, err)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		AppEnv:                   getEnv("APP_ENV", "development"),
		HTTPAddr:                 getEnv("HTTP_ADDR", ":8080"),
		DatabaseDriver:           strings.ToLower(getEnv("DATABASE_DRIVER", "postgres")),
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		RedisAddr:                os.Getenv("REDIS_ADDR"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisPrefix:              getEnv("REDIS_PREFIX", "live-voting"),
		JWTIssuer:                getEnv("JWT_ISSUER", "live-voting-service"),
		JWTAudience:              getEnv("JWT_AUDIENCE", "live-voting-clients"),
		JWTParticipantSecret:     os.Getenv("JWT_PARTICIPANT_SECRET"),
		JWTAdminSecret:           os.Getenv("JWT_ADMIN_SECRET"),
		RateLimitFailMode:        getEnv("RATE_LIMIT_FAIL_MODE", "fail_open"),
		CORSOrigins:              splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		BootstrapAdminUsername:   os.Getenv("BOOTSTRAP_ADMIN_USERNAME"),
		BootstrapAdminPassword:   os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "live-voting-service"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", getEnv("APP_ENV", "development")),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.DefaultRateLimitRPM, err = getInt("DEFAULT_RATE_LIMIT_RPM", 10000); err != nil {
		return nil, err
	}
	if cfg.WSSendBuffer, err = getInt("WS_SEND_BUFFER", 64); err != nil {
		return nil, err
	}
	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"PARTICIPANT_TOKEN_TTL", 24 * time.Hour, &cfg.ParticipantTokenTTL},
		{"ADMIN_TOKEN_TTL", 12 * time.Hour, &cfg.AdminTokenTTL},
		{"ACCESS_CODE_TTL", 24 * time.Hour, &cfg.AccessCodeTTL},
		{"STATS_THROTTLE_WINDOW", 500 * time.Millisecond, &cfg.StatsThrottleWindow},
		{"SETTINGS_RELOAD_INTERVAL", 30 * time.Second, &cfg.SettingsReloadInterval},
		{"RECONNECT_TTL", 10 * time.Minute, &cfg.ReconnectTTL},
		{"WS_PING_INTERVAL", 25 * time.Second, &cfg.WSPingInterval},
		{"WS_PONG_WAIT", 60 * time.Second, &cfg.WSPongWait},
		{"OTEL_METRICS_EXPORT_INTERVAL", 15 * time.Second, &cfg.OTELMetricsExportInterval},
		{"SHUTDOWN_TIMEOUT", 20 * time.Second, &cfg.ShutdownTimeout},
		{"SHUTDOWN_HTTP_DRAIN_TIMEOUT", 10 * time.Second, &cfg.ShutdownHTTPDrainTimeout},
		{"SHUTDOWN_OBSERVABILITY_TIMEOUT", 5 * time.Second, &cfg.ShutdownObservabilityTimeout},
	}
	for _, d := range durations {
		if *d.dest, err = getDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}
	bools := []struct {
		key  string
		def  bool
		dest *bool
	}{
		{"OTEL_EXPORTER_OTLP_INSECURE", true, &cfg.OTELExporterOTLPInsecure},
		{"OTEL_METRICS_ENABLED", false, &cfg.OTELMetricsEnabled},
		{"OTEL_TRACING_ENABLED", false, &cfg.OTELTracingEnabled},
		{"OTEL_LOGS_ENABLED", false, &cfg.OTELLogsEnabled},
	}
	for _, b := range bools {
		if *b.dest, err = getBool(b.key, b.def); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var problems []string
	if c.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is required")
	}
	if c.DatabaseDriver != "postgres" && c.DatabaseDriver != "sqlite" {
		problems = append(problems, "DATABASE_DRIVER must be postgres or sqlite")
	}
	if len(c.JWTParticipantSecret) < 32 {
		problems = append(problems, "JWT_PARTICIPANT_SECRET must be at least 32 bytes")
	}
	if len(c.JWTAdminSecret) < 32 {
		problems = append(problems, "JWT_ADMIN_SECRET must be at least 32 bytes")
	}
	if c.JWTParticipantSecret != "" && c.JWTParticipantSecret == c.JWTAdminSecret {
		problems = append(problems, "JWT_PARTICIPANT_SECRET and JWT_ADMIN_SECRET must differ")
	}
	if c.StatsThrottleWindow <= 0 {
		problems = append(problems, "STATS_THROTTLE_WINDOW must be positive")
	}
	if c.SettingsReloadInterval < time.Second {
		problems = append(problems, "SETTINGS_RELOAD_INTERVAL must be at least 1s")
	}
	if c.DefaultRateLimitRPM <= 0 {
		problems = append(problems, "DEFAULT_RATE_LIMIT_RPM must be positive")
	}
	if c.RateLimitFailMode != "fail_open" && c.RateLimitFailMode != "fail_closed" {
		problems = append(problems, "RATE_LIMIT_FAIL_MODE must be fail_open or fail_closed")
	}
	if c.WSPingInterval <= 0 || c.WSPongWait <= c.WSPingInterval {
		problems = append(problems, "WS_PONG_WAIT must exceed WS_PING_INTERVAL")
	}
	if c.WSSendBuffer <= 0 {
		problems = append(problems, "WS_SEND_BUFFER must be positive")
	}
	if (c.BootstrapAdminUsername == "") != (c.BootstrapAdminPassword == "") {
		problems = append(problems, "BOOTSTRAP_ADMIN_USERNAME and BOOTSTRAP_ADMIN_PASSWORD must be set together")
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func (c *Config) RedisEnabled() bool { return c.RedisAddr != "" }

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func getInt(key string, def int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ParseError{Key: key, Err: err}
	}
	return v, nil
}

func getBool(key string, def bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &ParseError{Key: key, Err: err}
	}
	return v, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, &ParseError{Key: key, Err: err}
	}
	return v, nil
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
