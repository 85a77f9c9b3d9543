package config

import (
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	mu sync.RWMutex `yaml:"-"`

	GraphFile string          `yaml:"graph_file"`
	LogFile   string          `yaml:"log_file"`
	Sim       SimConfig       `yaml:"sim"`
	EventLog  EventLogConfig  `yaml:"event_log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Messaging MessagingConfig `yaml:"messaging"`
	Web       WebConfig       `yaml:"web"`
}

type SimConfig struct {
	TickInterval      time.Duration `yaml:"tick_interval"`
	RobotSpeed        float64       `yaml:"robot_speed"`
	InitialBattery    float64       `yaml:"initial_battery"`
	LaneLease         time.Duration `yaml:"lane_lease"`
	IntersectionLease time.Duration `yaml:"intersection_lease"`
	ReserveOnMove     bool          `yaml:"reserve_on_move"`
}

type EventLogConfig struct {
	QueueSize     int           `yaml:"queue_size"`
	FlushSize     int           `yaml:"flush_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Address          string        `yaml:"address"`
	Password         string        `yaml:"password"`
	DB               int           `yaml:"db"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
}

type MessagingConfig struct {
	Backend             string        `yaml:"backend"` // "kafka", "mqtt" or "" to disable
	Kafka               KafkaConfig   `yaml:"kafka"`
	MQTT                MQTTConfig    `yaml:"mqtt"`
	CommandTopic        string        `yaml:"command_topic"`
	EventTopic          string        `yaml:"event_topic"`
	OutboxDrainInterval time.Duration `yaml:"outbox_drain_interval"`
	StationID           string        `yaml:"station_id"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
}

type WebConfig struct {
	Host          string  `yaml:"host"`
	Port          int     `yaml:"port"`
	SessionSecret string  `yaml:"session_secret"`
	RateLimit     float64 `yaml:"rate_limit"` // command requests per second
	RateBurst     int     `yaml:"rate_burst"`
}

func Defaults() *Config {
	return &Config{
		GraphFile: "data/nav_graph.json",
		LogFile:   "logs/fleet_logs.txt",
		Sim: SimConfig{
			TickInterval:      33 * time.Millisecond,
			RobotSpeed:        1.0,
			InitialBattery:    100,
			LaneLease:         5 * time.Second,
			IntersectionLease: 2 * time.Second,
			ReserveOnMove:     true,
		},
		EventLog: EventLogConfig{
			QueueSize:     1024,
			FlushSize:     50,
			FlushInterval: time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "fleetnav.db"},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "fleetnav",
				User:     "fleetnav",
				SSLMode:  "disable",
			},
		},
		Redis: RedisConfig{
			Address:          "localhost:6379",
			SnapshotInterval: 500 * time.Millisecond,
		},
		Messaging: MessagingConfig{
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
				GroupID: "fleetnav",
			},
			MQTT: MQTTConfig{
				Broker:   "localhost",
				Port:     1883,
				ClientID: "fleetnav",
			},
			CommandTopic:        "fleetnav.commands",
			EventTopic:          "fleetnav.events",
			OutboxDrainInterval: 2 * time.Second,
			StationID:           "fleetnav",
		},
		Web: WebConfig{
			Host:          "0.0.0.0",
			Port:          8090,
			SessionSecret: "change-me-in-production",
			RateLimit:     5,
			RateBurst:     10,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Lock()   { c.mu.Lock() }
func (c *Config) Unlock() { c.mu.Unlock() }
