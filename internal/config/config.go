// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"roulette/internal/game/chamber"
)

// Server is the configuration of cmd/server.
type Server struct {
	TCPAddr       string `env:"ROULETTE_TCP_ADDR" envDefault:":9999"`
	WebSocketAddr string `env:"ROULETTE_WS_ADDR"`
	HealthAddr    string `env:"ROULETTE_HEALTH_ADDR" envDefault:":9998"`

	ChamberCapacity int `env:"ROULETTE_CHAMBER_CAPACITY" envDefault:"6"`
	LiveRounds      int `env:"ROULETTE_LIVE_ROUNDS" envDefault:"1"`
	MaxLife         int `env:"ROULETTE_MAX_LIFE" envDefault:"3"`

	// TurnTimeout of zero waits for the current player forever.
	TurnTimeout         time.Duration `env:"ROULETTE_TURN_TIMEOUT" envDefault:"0s"`
	HandshakeTimeout    time.Duration `env:"ROULETTE_HANDSHAKE_TIMEOUT" envDefault:"2m"`
	ReloadOnEmpty       bool          `env:"ROULETTE_RELOAD_ON_EMPTY" envDefault:"true"`
	ForfeitOnDisconnect bool          `env:"ROULETTE_FORFEIT_ON_DISCONNECT" envDefault:"true"`
	MaxLineLength       int           `env:"ROULETTE_MAX_LINE_LENGTH" envDefault:"1024"`

	NatsURL     string `env:"ROULETTE_NATS_URL"`
	ConsulAddr  string `env:"CONSUL_HTTP_ADDR"`
	ServiceName string `env:"ROULETTE_SERVICE_NAME" envDefault:"roulette"`
	LogLevel    string `env:"ROULETTE_LOG_LEVEL" envDefault:"info"`
}

// Client is the configuration of cmd/client and the bots.
type Client struct {
	ServerAddr    string        `env:"ROULETTE_SERVER_ADDR" envDefault:"127.0.0.1:9999"`
	Transport     string        `env:"ROULETTE_TRANSPORT" envDefault:"tcp"`
	PlayerName    string        `env:"ROULETTE_PLAYER_NAME"`
	RetryInterval time.Duration `env:"ROULETTE_RETRY_INTERVAL" envDefault:"5s"`
	MaxRetries    uint          `env:"ROULETTE_MAX_RETRIES" envDefault:"0"`
	ConsulAddr    string        `env:"CONSUL_HTTP_ADDR"`
	ServiceName   string        `env:"ROULETTE_SERVICE_NAME" envDefault:"roulette"`
	LogLevel      string        `env:"ROULETTE_LOG_LEVEL" envDefault:"warn"`
}

// LoadServer parses and validates the server configuration.
func LoadServer() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (c Server) Validate() error {
	if err := chamber.Validate(c.ChamberCapacity, c.LiveRounds); err != nil {
		return err
	}
	if c.MaxLife <= 0 {
		return fmt.Errorf("config: ROULETTE_MAX_LIFE must be positive, got %d", c.MaxLife)
	}
	if c.TurnTimeout < 0 || c.HandshakeTimeout < 0 {
		return fmt.Errorf("config: timeouts must not be negative")
	}
	if c.MaxLineLength <= 0 {
		return fmt.Errorf("config: ROULETTE_MAX_LINE_LENGTH must be positive, got %d", c.MaxLineLength)
	}
	return nil
}

// Bot is the configuration of the load-testing bots.
type Bot struct {
	Client
	// Games of zero plays until interrupted.
	Games     int           `env:"ROULETTE_BOT_GAMES" envDefault:"1"`
	ThinkTime time.Duration `env:"ROULETTE_BOT_THINK_TIME" envDefault:"500ms"`
}

// LoadClient parses and validates the client configuration.
func LoadClient() (Client, error) {
	var cfg Client
	if err := env.Parse(&cfg); err != nil {
		return Client{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Client{}, err
	}
	return cfg, nil
}

func (c Client) Validate() error {
	switch c.Transport {
	case "tcp", "ws":
		return nil
	default:
		return fmt.Errorf("config: ROULETTE_TRANSPORT must be tcp or ws, got %q", c.Transport)
	}
}

func LoadBot() (Bot, error) {
	var cfg Bot
	if err := env.Parse(&cfg); err != nil {
		return Bot{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Bot{}, err
	}
	if cfg.Games < 0 {
		return Bot{}, fmt.Errorf("config: ROULETTE_BOT_GAMES must not be negative, got %d", cfg.Games)
	}
	return cfg, nil
}
