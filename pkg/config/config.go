package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Log         struct {
		Level      string `yaml:"level" default:"info"`
		Format     string `yaml:"format" default:"json"`
		Output     string `yaml:"output" default:"stdout"`
		MaxSizeMB  int    `yaml:"max_size_mb" default:"100"`
		MaxBackups int    `yaml:"max_backups" default:"3"`
		MaxAgeDays int    `yaml:"max_age_days" default:"14"`
		Collector  struct {
			Enabled        bool          `yaml:"enabled"`
			Topic          string        `yaml:"topic" default:"finvalue.logs"`
			Interval       time.Duration `yaml:"interval" default:"30s"`
			CountThreshold int           `yaml:"count_threshold" default:"100"`
		} `yaml:"collector"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Finnhub struct {
		APIKey           string        `yaml:"api_key"`
		BaseURL          string        `yaml:"base_url" default:"https://finnhub.io/api/v1"`
		WebSocketURL     string        `yaml:"websocket_url" default:"wss://ws.finnhub.io"`
		Timeout          time.Duration `yaml:"timeout" default:"10s"`
		LivePrice        bool          `yaml:"live_price"`
		LivePriceTimeout time.Duration `yaml:"live_price_timeout" default:"5s"`
		RateLimit        struct {
			Backend   string        `yaml:"backend" default:"memory"` // memory or redis
			PerSecond int           `yaml:"per_second" default:"25"`
			Burst     int           `yaml:"burst" default:"30"`
			MaxWait   time.Duration `yaml:"max_wait" default:"5s"`
		} `yaml:"rate_limit"`
	} `yaml:"finnhub"`
	Jobs struct {
		Backend    string        `yaml:"backend" default:"memory"`  // memory, redis or layered
		Transport  string        `yaml:"transport" default:"kafka"` // kafka or redis
		StatusTTL  time.Duration `yaml:"status_ttl" default:"24h"`
		LockTTL    time.Duration `yaml:"lock_ttl" default:"10m"`
		MaxEntries int           `yaml:"max_entries" default:"10000"`
		Queue      struct {
			Workers    int           `yaml:"workers" default:"2"`
			RetryLimit int           `yaml:"retry_limit" default:"3"`
			RetryDelay time.Duration `yaml:"retry_delay" default:"10s"`
			KeyPrefix  string        `yaml:"key_prefix" default:"finvalue:queue"`
		} `yaml:"queue"`
	} `yaml:"jobs"`
	Valuation struct {
		DCF struct {
			Horizon        int     `yaml:"horizon" default:"5"`
			WACC           float64 `yaml:"wacc" default:"0.10"`
			TerminalGrowth float64 `yaml:"terminal_growth" default:"0.025"`
			Growth         struct {
				Default float64 `yaml:"default" default:"0.05"`
				Floor   float64 `yaml:"floor" default:"-0.10"`
				Cap     float64 `yaml:"cap" default:"0.25"`
			} `yaml:"growth"`
		} `yaml:"dcf"`
		Comps struct {
			Stat           string   `yaml:"stat" default:"median"`
			Multiples      []string `yaml:"multiples"`
			MaxConcurrency int      `yaml:"max_concurrency" default:"4"`
		} `yaml:"comps"`
	} `yaml:"valuation"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequestTopic string   `yaml:"request_topic" default:"finvalue.requests"`
		ResultTopic  string   `yaml:"result_topic" default:"finvalue.results"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"finvalue-workers"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"64"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"finvalue.requests.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"finvalue"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
}

// Default returns a configuration populated only from struct defaults.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	return &c
}

// Load reads and parses a YAML configuration file. Missing keys take their defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes on top of the defaults.
func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML (or defaults when path is empty),
// overrides with environment variables and validates the result.
func LoadWithEnv(path string) (*Config, error) {
	c := Default()
	if path != "" {
		var err error
		if c, err = Load(path); err != nil {
			return nil, err
		}
	}

	c.ApplyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from environment variables looked up with getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
	}
	if v := getenv("FINNHUB_BASE_URL"); v != "" {
		c.Finnhub.BaseURL = v
	}
	if v := getenv("RATE_LIMIT_BACKEND"); v != "" {
		c.Finnhub.RateLimit.Backend = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := getenv("JOBS_BACKEND"); v != "" {
		c.Jobs.Backend = v
	}
	if v := getenv("JOBS_TRANSPORT"); v != "" {
		c.Jobs.Transport = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv("SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment == "" {
		errs = append(errs, errors.New("environment is required"))
	}
	if c.Finnhub.APIKey == "" {
		errs = append(errs, errors.New("finnhub.api_key is required"))
	}
	switch c.Finnhub.RateLimit.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("finnhub.rate_limit.backend must be 'memory' or 'redis', got '%s'", c.Finnhub.RateLimit.Backend))
	}

	switch c.Jobs.Backend {
	case "memory", "redis", "layered":
	default:
		errs = append(errs, fmt.Errorf("jobs.backend must be memory, redis or layered, got '%s'", c.Jobs.Backend))
	}
	switch c.Jobs.Transport {
	case "kafka", "redis":
	default:
		errs = append(errs, fmt.Errorf("jobs.transport must be kafka or redis, got '%s'", c.Jobs.Transport))
	}
	if c.Jobs.Transport == "redis" && c.Jobs.Queue.Workers < 1 {
		errs = append(errs, fmt.Errorf("jobs.queue.workers must be >= 1, got %d", c.Jobs.Queue.Workers))
	}

	dcf := c.Valuation.DCF
	if dcf.Horizon < 1 {
		errs = append(errs, fmt.Errorf("valuation.dcf.horizon must be >= 1, got %d", dcf.Horizon))
	}
	if dcf.WACC <= dcf.TerminalGrowth {
		errs = append(errs, fmt.Errorf("valuation.dcf.wacc (%.4f) must exceed terminal_growth (%.4f)", dcf.WACC, dcf.TerminalGrowth))
	}
	g := dcf.Growth
	if g.Floor > g.Cap {
		errs = append(errs, fmt.Errorf("valuation.dcf.growth.floor (%.4f) must not exceed cap (%.4f)", g.Floor, g.Cap))
	} else if g.Default < g.Floor || g.Default > g.Cap {
		errs = append(errs, fmt.Errorf("valuation.dcf.growth.default (%.4f) must lie within [%.4f, %.4f]", g.Default, g.Floor, g.Cap))
	}

	switch c.Valuation.Comps.Stat {
	case "mean", "median", "min", "max":
	default:
		errs = append(errs, fmt.Errorf("valuation.comps.stat must be mean, median, min or max, got '%s'", c.Valuation.Comps.Stat))
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers cannot be empty when kafka is enabled"))
	}
	return errors.Join(errs...)
}
