package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig       `mapstructure:"server"`
	DB            DBConfig           `mapstructure:"db"`
	Redis         RedisConfig        `mapstructure:"redis"`
	Kafka         KafkaConfig        `mapstructure:"kafka"`
	Auth          AuthConfig         `mapstructure:"auth"`
	Payment       PaymentConfig      `mapstructure:"payment"`
	SMTP          SMTPConfig         `mapstructure:"smtp"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Tracing       TracingConfig      `mapstructure:"tracing"`
	Log           LogConfig          `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	PublicURL       string        `mapstructure:"public_url"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DBConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	ProductTTL time.Duration `mapstructure:"product_ttl"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type PaymentConfig struct {
	Mode            string        `mapstructure:"mode"`
	KeyID           string        `mapstructure:"key_id"`
	KeySecret       string        `mapstructure:"key_secret"`
	Currency        string        `mapstructure:"currency"`
	MockDelay       time.Duration `mapstructure:"mock_delay"`
	MockSuccessRate float64       `mapstructure:"mock_success_rate"`
	// Demo allows the simulator outside development mode.
	Demo            bool          `mapstructure:"demo"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type NotificationConfig struct {
	Mode    string        `mapstructure:"mode"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

const (
	PaymentModeRazorpay = "razorpay"
	PaymentModeMock     = "mock"

	NotifyDirect = "direct"
	NotifyKafka  = "kafka"
	NotifyOff    = "off"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.public_url", "http://localhost:3000")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "candleshop")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("db.conn_max_idle_time", time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.product_ttl", 5*time.Minute)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "order_events")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 30*24*time.Hour)

	v.SetDefault("payment.mode", PaymentModeMock)
	v.SetDefault("payment.key_id", "")
	v.SetDefault("payment.key_secret", "")
	v.SetDefault("payment.currency", "INR")
	v.SetDefault("payment.mock_delay", time.Second)
	v.SetDefault("payment.mock_success_rate", 0.9)
	v.SetDefault("payment.demo", false)

	v.SetDefault("smtp.host", "localhost")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "Candle Shop <orders@candleshop.local>")

	v.SetDefault("notifications.mode", NotifyDirect)
	v.SetDefault("notifications.timeout", 30*time.Second)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "http://localhost:14268/api/traces")

	v.SetDefault("log.development", false)
}

// Load reads config.yaml (if any), then .env, then CANDLESHOP_* environment
// variables. Later sources win.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./")
	v.AddConfigPath("./deploy/")
	v.AddConfigPath("/etc/candleshop/")

	v.SetEnvPrefix("CANDLESHOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		if !c.Log.Development {
			return errors.New("auth.jwt_secret is required")
		}
		c.Auth.JWTSecret = "development-secret"
	}

	switch c.Payment.Mode {
	case PaymentModeRazorpay:
		if c.Payment.KeyID == "" || c.Payment.KeySecret == "" {
			return errors.New("payment.key_id and payment.key_secret are required in razorpay mode")
		}
	case PaymentModeMock:
		if !c.Log.Development && !c.Payment.Demo {
			return errors.New("payment.mode=mock settles orders without a real payment; set log.development or payment.demo to allow it")
		}
		if c.Payment.MockSuccessRate < 0 || c.Payment.MockSuccessRate > 1 {
			return fmt.Errorf("payment.mock_success_rate must be within [0,1], got %v", c.Payment.MockSuccessRate)
		}
	default:
		return fmt.Errorf("unknown payment.mode %q", c.Payment.Mode)
	}

	switch c.Notifications.Mode {
	case NotifyDirect, NotifyKafka, NotifyOff:
	default:
		return fmt.Errorf("unknown notifications.mode %q", c.Notifications.Mode)
	}

	return nil
}
