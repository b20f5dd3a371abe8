package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Room     RoomConfig     `mapstructure:"room"`
	Poker    PokerConfig    `mapstructure:"poker"`
	Blot     BlotConfig     `mapstructure:"blot"`
}

type ServerConfig struct {
	HTTPAddress      string `mapstructure:"http_address"`
	RPCAddress       string `mapstructure:"rpc_address"`
	UpgradeRateRPM   int    `mapstructure:"upgrade_rate_rpm"`
	MetricsNamespace string `mapstructure:"metrics_namespace"`
}

// DatabaseConfig selects the storage backend. Driver "memory" keeps wallets
// and snapshots in process, for local play and tests.
type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// DSN renders the lib/pq connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.DBName)
}

// RedisConfig configures the snapshot cache. An empty Addr uses an in-process
// cache instead.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// NATSConfig enables room event fan-out when URL is set.
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Token   string `mapstructure:"token"`
	Subject string `mapstructure:"subject"`
}

// RoomConfig drives the per-room actor.
type RoomConfig struct {
	TickInterval   time.Duration `mapstructure:"tick_interval"`
	AutoStartTicks int           `mapstructure:"auto_start_ticks"`
	NextHandDelay  time.Duration `mapstructure:"next_hand_delay"`
	ActionTimeout  time.Duration `mapstructure:"action_timeout"`
	MailboxSize    int           `mapstructure:"mailbox_size"`
}

type PokerConfig struct {
	BigBlind   string `mapstructure:"big_blind"`
	MinBuyInBB int64  `mapstructure:"min_buy_in_bb"`
	MaxBuyInBB int64  `mapstructure:"max_buy_in_bb"`
	MaxSeats   int    `mapstructure:"max_seats"`
}

type BlotConfig struct {
	Players     int `mapstructure:"players"`
	MatchTarget int `mapstructure:"match_target"`
}

// BigBlindAmount parses the configured big blind. Amounts are kept as strings
// in config so they never pass through a float.
func (c PokerConfig) BigBlindAmount() (decimal.Decimal, error) {
	return decimal.NewFromString(c.BigBlind)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":8081")
	v.SetDefault("server.upgrade_rate_rpm", 120)
	v.SetDefault("server.metrics_namespace", "cardroom")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.dbname", "cardroom")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.ttl", time.Hour)
	v.SetDefault("nats.subject", "cardroom.rooms")
	v.SetDefault("room.tick_interval", 100*time.Millisecond)
	v.SetDefault("room.auto_start_ticks", 100)
	v.SetDefault("room.next_hand_delay", 3*time.Second)
	v.SetDefault("room.action_timeout", 5*time.Second)
	v.SetDefault("room.mailbox_size", 64)
	v.SetDefault("poker.big_blind", "2")
	v.SetDefault("poker.min_buy_in_bb", 20)
	v.SetDefault("poker.max_buy_in_bb", 200)
	v.SetDefault("poker.max_seats", 9)
	v.SetDefault("blot.players", 2)
	v.SetDefault("blot.match_target", 301)
}

// LoadConfig reads config.yaml from path, overlaid by CARDROOM_* environment
// variables (an optional .env file is loaded first). A missing config file is
// not an error; defaults apply.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("cardroom")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if _, err := cfg.Poker.BigBlindAmount(); err != nil {
		return nil, errors.New("config: poker.big_blind is not a decimal")
	}
	return &cfg, nil
}
