package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	SinkFile     = "file"
	SinkRedis    = "redis"
	SinkPostgres = "postgres"
)

type AppConfig struct {
	ListenAddr  string
	RedirectURL string

	RedisURL    string
	DatabaseURL string

	TelemetryDir   string
	TelemetrySinks []string

	AvatarRosterDir string
	MaxLobbies      int
	// AllowedOrigins are websocket origin patterns; "*" admits any host.
	AllowedOrigins []string
}

// ClientConfig drives the headless client.
type ClientConfig struct {
	ServerURL  string
	Avatar     string
	Controller string
	Opponent   string

	// TelemetryDir receives move latency logs for automated seats this client hosts.
	TelemetryDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:     ":8080",
		TelemetryDir:   "telemetry",
		TelemetrySinks: []string{SinkFile},
		MaxLobbies:     64,
		AllowedOrigins: []string{"*"},
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.RedirectURL = strings.TrimSpace(os.Getenv("REDIRECT_URL"))

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	if v := strings.TrimSpace(os.Getenv("TELEMETRY_DIR")); v != "" {
		cfg.TelemetryDir = v
	}
	if v := strings.TrimSpace(os.Getenv("TELEMETRY_SINKS")); v != "" {
		cfg.TelemetrySinks = splitList(v)
	}
	for _, s := range cfg.TelemetrySinks {
		switch s {
		case SinkFile, SinkRedis, SinkPostgres:
		default:
			return nil, fmt.Errorf("unknown telemetry sink %q", s)
		}
	}

	cfg.AvatarRosterDir = strings.TrimSpace(os.Getenv("AVATAR_ROSTER_DIR"))
	if v := strings.TrimSpace(os.Getenv("MAX_LOBBIES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxLobbies = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}

	if cfg.RedirectURL == "" {
		return nil, errors.New("REDIRECT_URL is required")
	}
	if cfg.HasSink(SinkRedis) && cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required for the redis telemetry sink")
	}
	if cfg.HasSink(SinkPostgres) && cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required for the postgres telemetry sink")
	}

	return cfg, nil
}

func (c *AppConfig) HasSink(name string) bool {
	for _, s := range c.TelemetrySinks {
		if s == name {
			return true
		}
	}
	return false
}

func LoadClient() (*ClientConfig, error) {
	cfg := &ClientConfig{
		ServerURL:  "ws://localhost:8080/ws",
		Avatar:     "player",
		Controller: "keyboard",
		Opponent:   "human",

		TelemetryDir: "telemetry",
	}
	if v := strings.TrimSpace(os.Getenv("CLIENT_SERVER_URL")); v != "" {
		cfg.ServerURL = v
	}
	if v := strings.TrimSpace(os.Getenv("CLIENT_AVATAR")); v != "" {
		cfg.Avatar = v
	}
	if v := strings.TrimSpace(os.Getenv("CLIENT_CONTROLLER")); v != "" {
		cfg.Controller = v
	}
	if v := strings.TrimSpace(os.Getenv("CLIENT_OPPONENT")); v != "" {
		cfg.Opponent = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("TELEMETRY_DIR")); v != "" {
		cfg.TelemetryDir = v
	}
	u, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("CLIENT_SERVER_URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("CLIENT_SERVER_URL: unsupported scheme %s", u.Scheme)
	}
	return cfg, nil
}

// ParseRedisURL converts redis:// and rediss:// URLs into client options.
func ParseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redis db %q", p)
		}
		db = n
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Username: u.User.Username(), Password: pass, DB: db}, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.ToLower(strings.TrimSpace(p)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
