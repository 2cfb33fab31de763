package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Storage struct {
		Type string `yaml:"type"` // clickhouse or memory
	} `yaml:"storage"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		EventsTopic  string   `yaml:"events_topic"` // inbound news/social events
		AlertsTopic  string   `yaml:"alerts_topic"` // outbound fused events
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Cache struct {
		WatchlistTTL time.Duration `yaml:"watchlist_ttl"`
	} `yaml:"cache"`
	Quotes struct {
		Provider     string        `yaml:"provider"` // synthetic or websocket
		WebSocketURL string        `yaml:"websocket_url"`
		APIKey       string        `yaml:"api_key"`
		Symbols      []string      `yaml:"symbols"` // subscription set for the websocket provider
		PingInterval time.Duration `yaml:"ping_interval"`
		MaxRPS       float64       `yaml:"max_rps"`
		Concurrency  int           `yaml:"concurrency"`
	} `yaml:"quotes"`
	Detector struct {
		PriceSpike5mPct       float64       `yaml:"price_spike_5m_pct"`
		VolumeSpikeMultiplier float64       `yaml:"volume_spike_multiplier"`
		VolatilityRangePct    float64       `yaml:"volatility_range_pct"`
		MinHistory            int           `yaml:"min_history"`
		HistoryWindow         time.Duration `yaml:"history_window"`
	} `yaml:"detector"`
	Fusion struct {
		Window time.Duration `yaml:"window"`
	} `yaml:"fusion"`
	Scheduler struct {
		Enabled       bool   `yaml:"enabled"`
		StreamerEvery string `yaml:"streamer_every"`
		FusionEvery   string `yaml:"fusion_every"`
	} `yaml:"scheduler"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_EVENTS_TOPIC"); v != "" {
		c.Kafka.EventsTopic = v
	}
	if v := os.Getenv("KAFKA_ALERTS_TOPIC"); v != "" {
		c.Kafka.AlertsTopic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("QUOTES_PROVIDER"); v != "" {
		c.Quotes.Provider = v
	}
	if v := os.Getenv("QUOTES_API_KEY"); v != "" {
		c.Quotes.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Quotes.Symbols = strings.Split(v, ",")
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Storage.Type == "" {
		c.Storage.Type = "clickhouse"
	}
	if c.Quotes.Provider == "" {
		c.Quotes.Provider = "synthetic"
	}
	if c.Quotes.Concurrency <= 0 {
		c.Quotes.Concurrency = 8
	}
	if c.Quotes.MaxRPS <= 0 {
		c.Quotes.MaxRPS = 20
	}
	if c.Detector.PriceSpike5mPct <= 0 {
		c.Detector.PriceSpike5mPct = 3.0
	}
	if c.Detector.VolumeSpikeMultiplier <= 0 {
		c.Detector.VolumeSpikeMultiplier = 2.0
	}
	if c.Detector.VolatilityRangePct <= 0 {
		c.Detector.VolatilityRangePct = 2.0
	}
	if c.Detector.MinHistory <= 0 {
		c.Detector.MinHistory = 5
	}
	if c.Detector.HistoryWindow <= 0 {
		c.Detector.HistoryWindow = 60 * time.Minute
	}
	if c.Fusion.Window <= 0 {
		c.Fusion.Window = 10 * time.Minute
	}
	if c.Cache.WatchlistTTL <= 0 {
		c.Cache.WatchlistTTL = time.Minute
	}
	if c.Scheduler.StreamerEvery == "" {
		c.Scheduler.StreamerEvery = "@every 1m"
	}
	if c.Scheduler.FusionEvery == "" {
		c.Scheduler.FusionEvery = "@every 5m"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Storage.Type != "clickhouse" && c.Storage.Type != "memory" {
		return fmt.Errorf("storage.type must be 'clickhouse' or 'memory', got '%s'", c.Storage.Type)
	}
	if c.Storage.Type == "clickhouse" && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if c.Quotes.Provider != "synthetic" && c.Quotes.Provider != "websocket" {
		return fmt.Errorf("quotes.provider must be 'synthetic' or 'websocket', got '%s'", c.Quotes.Provider)
	}
	if c.Quotes.Provider == "websocket" && c.Quotes.WebSocketURL == "" {
		return fmt.Errorf("quotes.websocket_url is required for the websocket provider")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
