package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Leader   LeaderConfig   `mapstructure:"leader"`
	Instance InstanceConfig `mapstructure:"instance"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type PaymentConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type EngineConfig struct {
	// Storage selects the auction store backing: "mysql" for multi-instance
	// deployments, "memory" for single-process runs.
	Storage  string        `mapstructure:"storage"`
	LockWait time.Duration `mapstructure:"lock_wait"`
	PageSize int           `mapstructure:"page_size"`
}

type SweepConfig struct {
	FinalizeEvery time.Duration `mapstructure:"finalize_every"`
	PaymentEvery  time.Duration `mapstructure:"payment_every"`
	PaymentGrace  time.Duration `mapstructure:"payment_grace"`
}

type LeaderConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

func Load() (*Config, error) {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("mysql.dsn", "auction_user:auction_pass@tcp(localhost:3306)/marketplace?parseTime=true")
	viper.SetDefault("mysql.max_open_conns", 25)
	viper.SetDefault("mysql.max_idle_conns", 10)
	viper.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("payment.base_url", "http://localhost:8081")
	viper.SetDefault("payment.timeout", 10*time.Second)
	viper.SetDefault("engine.storage", "mysql")
	viper.SetDefault("engine.lock_wait", 5*time.Second)
	viper.SetDefault("engine.page_size", 20)
	viper.SetDefault("sweep.finalize_every", time.Minute)
	viper.SetDefault("sweep.payment_every", 5*time.Minute)
	viper.SetDefault("sweep.payment_grace", 7*24*time.Hour)
	viper.SetDefault("leader.ttl", 30*time.Second)
	viper.SetDefault("instance.id", "auction-engine-1")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/marketplace-auction/")

	viper.AutomaticEnv()

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("mysql.dsn", "MYSQL_DSN")
	viper.BindEnv("mysql.max_open_conns", "MYSQL_MAX_OPEN_CONNS")
	viper.BindEnv("mysql.max_idle_conns", "MYSQL_MAX_IDLE_CONNS")
	viper.BindEnv("mysql.conn_max_lifetime", "MYSQL_CONN_MAX_LIFETIME")
	viper.BindEnv("redis.address", "REDIS_ADDRESS")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")
	viper.BindEnv("payment.base_url", "PAYMENT_BASE_URL")
	viper.BindEnv("payment.timeout", "PAYMENT_TIMEOUT")
	viper.BindEnv("engine.storage", "ENGINE_STORAGE")
	viper.BindEnv("engine.lock_wait", "ENGINE_LOCK_WAIT")
	viper.BindEnv("engine.page_size", "ENGINE_PAGE_SIZE")
	viper.BindEnv("sweep.finalize_every", "SWEEP_FINALIZE_EVERY")
	viper.BindEnv("sweep.payment_every", "SWEEP_PAYMENT_EVERY")
	viper.BindEnv("sweep.payment_grace", "SWEEP_PAYMENT_GRACE")
	viper.BindEnv("leader.ttl", "LEADER_TTL")
	viper.BindEnv("instance.id", "INSTANCE_ID")

	// Config file is optional; defaults and environment variables cover
	// everything.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
