package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	store "github.com/likearthian/tablestore"
	"github.com/likearthian/tablestore/internal/logger"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TABLESTORE_"

// envAliases maps environment variables outside the prefix onto config paths.
var envAliases = map[string]string{
	"DATABASE_URL_TEST": "database_url",
	"MONGO_TEST_URL":    "mongo.uri",
}

type Config struct {
	Backend     string         `koanf:"backend"`
	DatabaseURL string         `koanf:"database_url"`
	Postgres    store.PGConfig `koanf:"postgres"`
	Mongo       MongoConfig    `koanf:"mongo"`
	Namespace   string         `koanf:"namespace"`
	Timeout     time.Duration  `koanf:"timeout"`
	Log         LogConfig      `koanf:"log"`
	Retry       RetryConfig    `koanf:"retry"`
}

const (
	BackendSQL   = "sql"
	BackendMongo = "mongo"
)

type MongoConfig struct {
	URI      string `koanf:"uri"`
	Database string `koanf:"database"`
}

type LogConfig struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

// RetryConfig bounds the connect retry of the CLI. Operations are never retried.
type RetryConfig struct {
	MaxAttempts uint64        `koanf:"max_attempts"`
	Backoff     time.Duration `koanf:"backoff"`
}

func Default() *Config {
	return &Config{
		Backend:   BackendSQL,
		Namespace: store.DefaultNamespace,
		Timeout:   store.DefaultTimeout,
		Mongo:     MongoConfig{Database: "tablestore"},
		Log:       LogConfig{Level: string(logger.InfoLevel)},
		Retry:     RetryConfig{MaxAttempts: 3, Backoff: 500 * time.Millisecond},
	}
}

// Load reads the defaults, then the environment. TABLESTORE_LOG_LEVEL sets
// log.level, TABLESTORE_RETRY_MAX_ATTEMPTS sets retry.max_attempts.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: "",
		TransformFunc: func(key, value string) (string, any) {
			if path, ok := envAliases[key]; ok {
				return path, value
			}
			if !strings.HasPrefix(key, EnvPrefix) {
				return "", nil
			}
			return transformEnvKey(strings.TrimPrefix(key, EnvPrefix)), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// transformEnvKey converts LOG_LEVEL to log.level and DATABASE_URL to database_url.
// The first segment is a section only when it names one.
func transformEnvKey(s string) string {
	parts := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == '_'
	})

	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}

	switch parts[0] {
	case "postgres", "mongo", "log", "retry":
		return parts[0] + "." + strings.Join(parts[1:], "_")
	default:
		return strings.Join(parts, "_")
	}
}

func (c *Config) Validate() error {
	if c.Backend != BackendSQL && c.Backend != BackendMongo {
		return fmt.Errorf("unknown backend %q, want %q or %q", c.Backend, BackendSQL, BackendMongo)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}

	if !logger.LogLevel(c.Log.Level).Valid() {
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}

	if c.Retry.MaxAttempts == 0 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}

	if c.Retry.Backoff <= 0 {
		return fmt.Errorf("retry.backoff must be positive, got %s", c.Retry.Backoff)
	}

	return nil
}

// DSN returns the connection string of the SQL backend: DatabaseURL when set,
// otherwise one built from the postgres section, otherwise "".
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	if c.Postgres.Host != "" {
		return c.Postgres.DSN()
	}
	return ""
}
