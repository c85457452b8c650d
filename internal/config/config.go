package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Rajdeep-017/suraksha-net/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Position source kinds.
const (
	SourcePush   = "push"
	SourceReplay = "replay"
	SourceKafka  = "kafka"
)

// Alert sink kinds.
const (
	SinkNone  = "none"
	SinkKafka = "kafka"
	SinkRedis = "redis"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Proximity and route selection.
	AlertRadiusKm   float64
	DismissalPolicy domain.DismissalPolicy
	RankStrategy    domain.RankStrategy

	// Position stream.
	PositionSource       string
	PositionMaxAge       time.Duration
	PositionTimeout      time.Duration
	PositionHighAccuracy bool
	PositionQueueSize    int
	AutoStartTracking    bool
	ReplayFile           string
	ReplayInterval       time.Duration

	// Kafka position source and alert sink.
	KafkaBrokers       []string
	KafkaPositionTopic string
	KafkaAlertTopic    string
	KafkaGroupID       string
	KafkaDriverKey     string

	AlertSink     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Route analysis service.
	RouteAPIURL     string
	RouteAPITimeout time.Duration
	RouteCacheSize  int

	// Optional hazard catalogue.
	DatabaseURL string
	HazardLimit int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	radius, err := parsePositiveFloat("ALERT_RADIUS_KM", "0.5")
	if err != nil {
		return nil, err
	}
	maxAge, err := parseDuration("POSITION_MAX_AGE", "5s", true)
	if err != nil {
		return nil, err
	}
	timeout, err := parseDuration("POSITION_TIMEOUT", "10s", true)
	if err != nil {
		return nil, err
	}
	replayInterval, err := parseDuration("REPLAY_INTERVAL", "1s", true)
	if err != nil {
		return nil, err
	}
	routeTimeout, err := parseDuration("ROUTE_API_TIMEOUT", "15s", false)
	if err != nil {
		return nil, err
	}
	queueSize, err := parsePositiveInt("POSITION_QUEUE_SIZE", 16)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("ROUTE_CACHE_SIZE", 128)
	if err != nil {
		return nil, err
	}
	hazardLimit, err := parsePositiveInt("HAZARD_LIMIT", 10)
	if err != nil {
		return nil, err
	}
	dismissal, err := domain.ParseDismissalPolicy(sharedcfg.EnvOrDefault("DISMISSAL_POLICY", string(domain.DismissSticky)))
	if err != nil {
		return nil, fmt.Errorf("invalid DISMISSAL_POLICY: %w", err)
	}
	rank, err := domain.ParseRankStrategy(sharedcfg.EnvOrDefault("RANK_STRATEGY", string(domain.RankUpstream)))
	if err != nil {
		return nil, fmt.Errorf("invalid RANK_STRATEGY: %w", err)
	}
	highAccuracy, err := parseBool("POSITION_HIGH_ACCURACY", true)
	if err != nil {
		return nil, err
	}
	autoStart, err := parseBool("AUTO_START_TRACKING", false)
	if err != nil {
		return nil, err
	}
	redisDB, err := strconv.Atoi(sharedcfg.EnvOrDefault("REDIS_DB", "0"))
	if err != nil || redisDB < 0 {
		return nil, errors.New("invalid REDIS_DB")
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		AlertRadiusKm:   radius,
		DismissalPolicy: dismissal,
		RankStrategy:    rank,

		PositionSource:       sharedcfg.EnvOrDefault("POSITION_SOURCE", SourcePush),
		PositionMaxAge:       maxAge,
		PositionTimeout:      timeout,
		PositionHighAccuracy: highAccuracy,
		PositionQueueSize:    queueSize,
		AutoStartTracking:    autoStart,
		ReplayFile:           os.Getenv("REPLAY_FILE"),
		ReplayInterval:       replayInterval,

		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaPositionTopic: sharedcfg.EnvOrDefault("KAFKA_POSITION_TOPIC", "driver-positions"),
		KafkaAlertTopic:    sharedcfg.EnvOrDefault("KAFKA_ALERT_TOPIC", "proximity-alerts"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "suraksha-net"),
		KafkaDriverKey:     os.Getenv("KAFKA_DRIVER_KEY"),

		AlertSink:     sharedcfg.EnvOrDefault("ALERT_SINK", SinkNone),
		RedisAddr:     sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		RouteAPIURL:     strings.TrimRight(os.Getenv("ROUTE_API_URL"), "/"),
		RouteAPITimeout: routeTimeout,
		RouteCacheSize:  cacheSize,

		DatabaseURL: os.Getenv("DATABASE_URL"),
		HazardLimit: hazardLimit,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.PositionSource {
	case SourcePush:
	case SourceReplay:
		if c.ReplayFile == "" {
			return errors.New("POSITION_SOURCE is replay but REPLAY_FILE is not set")
		}
	case SourceKafka:
		if c.KafkaPositionTopic == "" {
			return errors.New("KAFKA_POSITION_TOPIC is required")
		}
	default:
		return fmt.Errorf("invalid POSITION_SOURCE %q", c.PositionSource)
	}
	switch c.AlertSink {
	case SinkNone, SinkRedis:
	case SinkKafka:
		if c.KafkaAlertTopic == "" {
			return errors.New("KAFKA_ALERT_TOPIC is required")
		}
	default:
		return fmt.Errorf("invalid ALERT_SINK %q", c.AlertSink)
	}
	if (c.PositionSource == SourceKafka || c.AlertSink == SinkKafka) && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	return nil
}

func parseDuration(key, def string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 || (!allowZero && d == 0) {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveFloat(key, def string) (float64, error) {
	v, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(key, def), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}
