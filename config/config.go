package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"

	MQBackendNone     = "none"
	MQBackendRabbitMQ = "rabbitmq"
	MQBackendPubSub   = "pubsub"
)

type Config struct {
	Env          string        `envconfig:"ENV" default:"production"`
	ServerPort   int           `envconfig:"SERVER_PORT" default:"8080"`
	JWTSecret    string        `envconfig:"JWT_SECRET"`
	TokenTTL     time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
	BcryptCost   int           `envconfig:"BCRYPT_COST" default:"10"`
	StoreBackend string        `envconfig:"STORE_BACKEND" default:"postgres"`
	// AuthRateLimit is the number of /auth requests allowed per IP per minute.
	AuthRateLimit int `envconfig:"AUTH_RATE_LIMIT" default:"20"`

	Log      LogConfig      `envconfig:"LOG"`
	Database DatabaseConfig `envconfig:"DB"`
	MQ       MQConfig       `envconfig:"MQ"`
	RabbitMQ RabbitMQConfig `envconfig:"RABBITMQ"`
	PubSub   PubSubConfig   `envconfig:"PUBSUB"`
}

// Nested keys are PREFIX_FIELD_NAME (DB_HOST, RABBITMQ_URL). Do not give
// these fields an envconfig tag: envconfig falls back to the bare tag (USER,
// PORT) when the prefixed key is unset.
type LogConfig struct {
	Level string `split_words:"true" default:"info"`
	Dev   bool   `split_words:"true" default:"false"`
}

type DatabaseConfig struct {
	Host     string `split_words:"true" default:"localhost"`
	Port     int    `split_words:"true" default:"5432"`
	User     string `split_words:"true" default:"profiles"`
	Password string `split_words:"true" default:"password"`
	Name     string `split_words:"true" default:"profiles_db"`
	UseSSL   bool   `split_words:"true" default:"false"`
}

type MQConfig struct {
	Backend string `split_words:"true" default:"none"`
}

type RabbitMQConfig struct {
	URL             string `split_words:"true"`
	QueueDurable    bool   `split_words:"true" default:"true"`
	QueueAutoDelete bool   `split_words:"true" default:"false"`
	PrefetchCount   int    `split_words:"true" default:"0"`
}

type PubSubConfig struct {
	ProjectID          string `split_words:"true"`
	CredentialsFile    string `split_words:"true"`
	SubscriptionSuffix string `split_words:"true" default:"-sub"`
}

func LoadConfig() (Config, error) {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsDev reports whether the process runs with ENV=dev.
func (c Config) IsDev() bool {
	return c.Env == "dev"
}
