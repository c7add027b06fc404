package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Retention groups the tier thresholds and prefixes used to place rendered
// PDFs under a lifecycle-managed key space.
type Retention struct {
	BaseYears         int
	BaseThreshold     int
	ExtendedThreshold int
	BasePrefix        string
	ExtendedPrefix    string
	MaximumPrefix     string
}

// Queue holds the SQS consumption parameters.
type Queue struct {
	URL               string
	BatchSize         int32
	WaitSeconds       int32
	VisibilitySeconds int32
	HandlerTimeout    time.Duration
}

// Config is the full externally supplied configuration surface. Every value
// comes from the environment; defaults are set in Load and nowhere else.
type Config struct {
	TmpFolder         string
	TokenSecret       string
	TokenTTL          time.Duration
	TokenSource       string
	Bucket            string
	AllowedHosts      []string
	Retention         Retention
	Queue             Queue
	StoredTopicARN    string
	AWSRegion         string
	AWSEndpointURL    string
	Port              int
}

// Load reads configuration from the environment and validates the required
// keys. Validation errors name the offending key.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("TMP_FOLDER", "/tmp/agreement-pdf")
	v.SetDefault("RENDER_TOKEN_TTL", "5m")
	v.SetDefault("RENDER_TOKEN_SOURCE", "agreement-pdf-service")
	v.SetDefault("RETENTION_BASE_YEARS", 7)
	v.SetDefault("RETENTION_BASE_THRESHOLD", 10)
	v.SetDefault("RETENTION_EXTENDED_THRESHOLD", 15)
	v.SetDefault("RETENTION_BASE_PREFIX", "standard")
	v.SetDefault("RETENTION_EXTENDED_PREFIX", "extended")
	v.SetDefault("RETENTION_MAXIMUM_PREFIX", "permanent")
	v.SetDefault("QUEUE_BATCH_SIZE", 5)
	v.SetDefault("QUEUE_WAIT_SECONDS", 20)
	v.SetDefault("QUEUE_VISIBILITY_SECONDS", 300)
	v.SetDefault("HANDLER_TIMEOUT", "2m")
	v.SetDefault("AWS_REGION", "eu-west-2")
	v.SetDefault("PORT", 8080)

	cfg := Config{
		TmpFolder:      v.GetString("TMP_FOLDER"),
		TokenSecret:    v.GetString("RENDER_TOKEN_SECRET"),
		TokenTTL:       v.GetDuration("RENDER_TOKEN_TTL"),
		TokenSource:    v.GetString("RENDER_TOKEN_SOURCE"),
		Bucket:         v.GetString("PDF_BUCKET"),
		AllowedHosts:   splitHosts(v.GetString("ALLOWED_RENDER_HOSTS")),
		StoredTopicARN: v.GetString("STORED_TOPIC_ARN"),
		AWSRegion:      v.GetString("AWS_REGION"),
		AWSEndpointURL: v.GetString("AWS_ENDPOINT_URL"),
		Port:           v.GetInt("PORT"),
		Retention: Retention{
			BaseYears:         v.GetInt("RETENTION_BASE_YEARS"),
			BaseThreshold:     v.GetInt("RETENTION_BASE_THRESHOLD"),
			ExtendedThreshold: v.GetInt("RETENTION_EXTENDED_THRESHOLD"),
			BasePrefix:        v.GetString("RETENTION_BASE_PREFIX"),
			ExtendedPrefix:    v.GetString("RETENTION_EXTENDED_PREFIX"),
			MaximumPrefix:     v.GetString("RETENTION_MAXIMUM_PREFIX"),
		},
		Queue: Queue{
			URL:               v.GetString("QUEUE_URL"),
			BatchSize:         v.GetInt32("QUEUE_BATCH_SIZE"),
			WaitSeconds:       v.GetInt32("QUEUE_WAIT_SECONDS"),
			VisibilitySeconds: v.GetInt32("QUEUE_VISIBILITY_SECONDS"),
			HandlerTimeout:    v.GetDuration("HANDLER_TIMEOUT"),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.TokenSecret == "" {
		return fmt.Errorf("config: RENDER_TOKEN_SECRET is required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("config: PDF_BUCKET is required")
	}
	if c.Queue.URL == "" {
		return fmt.Errorf("config: QUEUE_URL is required")
	}
	if len(c.AllowedHosts) == 0 {
		return fmt.Errorf("config: ALLOWED_RENDER_HOSTS is required")
	}
	if c.Queue.BatchSize < 1 || c.Queue.BatchSize > 10 {
		return fmt.Errorf("config: QUEUE_BATCH_SIZE must be between 1 and 10, got %d", c.Queue.BatchSize)
	}
	if c.Queue.HandlerTimeout <= 0 {
		return fmt.Errorf("config: HANDLER_TIMEOUT must be positive")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("config: RENDER_TOKEN_TTL must be positive")
	}
	return nil
}

func splitHosts(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	hosts := make([]string, 0, len(parts))
	for _, p := range parts {
		if h := strings.ToLower(strings.TrimSpace(p)); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}
