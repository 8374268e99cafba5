// Package config loads JellyStream settings from the environment, with an
// optional YAML file merged underneath (environment always wins).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every externally-tunable JellyStream setting (spec.md §6).
type Config struct {
	Host string
	Port int

	// PublicURL is the base URL advertised in M3U/XMLTV links; must be
	// reachable from the media server, never localhost.
	PublicURL string

	MediaServerURL    string
	MediaServerAPIKey string
	MediaServerUserID string // empty = auto-discover from first user

	PreferredAudioLanguage string
	MediaPathMap           string // "jfPrefix:localPrefix"

	SchedulerLowWaterHours int
	SchedulerExtendDays    int

	DatabaseURL string

	// FFmpegPath overrides the $PATH lookup of ffmpeg; empty means exec.LookPath.
	// FFprobePath is loaded but not used: ffprobe is always found via $PATH.
	FFmpegPath  string
	FFprobePath string

	// GapPollInterval is how often the stream proxy re-checks for a newly
	// scheduled entry while sitting in a schedule gap (spec.md §4.4).
	GapPollInterval time.Duration
}

// fileConfig mirrors the subset of Config that may be set from a YAML file.
type fileConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	PublicURL              string `yaml:"publicUrl"`
	MediaServerURL         string `yaml:"mediaServerUrl"`
	MediaServerAPIKey      string `yaml:"mediaServerApiKey"`
	MediaServerUserID      string `yaml:"mediaServerUserId"`
	PreferredAudioLanguage string `yaml:"preferredAudioLanguage"`
	MediaPathMap           string `yaml:"mediaPathMap"`
	SchedulerLowWaterHours int    `yaml:"schedulerLowWaterHours"`
	SchedulerExtendDays    int    `yaml:"schedulerExtendDays"`
	DatabaseURL            string `yaml:"databaseUrl"`
	FFmpegPath             string `yaml:"ffmpegPath"`
	FFprobePath            string `yaml:"ffprobePath"`
}

// Load builds a Config from JELLYSTREAM_CONFIG_FILE (if set) overlaid with
// environment variables, then applies defaults for anything still unset.
func Load() (*Config, error) {
	c := &Config{}
	if path := strings.TrimSpace(os.Getenv("JELLYSTREAM_CONFIG_FILE")); path != "" {
		fc, err := loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
		applyFile(c, fc)
	}
	applyEnv(c)
	applyDefaults(c)
	if c.PublicURL != "" && strings.Contains(c.PublicURL, "localhost") {
		return nil, fmt.Errorf("config: PUBLIC_URL must not be localhost (clients connect from the media server, not this process)")
	}
	return c, nil
}

func loadFile(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fc, nil
		}
		return fc, err
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

func applyFile(c *Config, fc fileConfig) {
	c.Host = fc.Host
	c.Port = fc.Port
	c.PublicURL = fc.PublicURL
	c.MediaServerURL = fc.MediaServerURL
	c.MediaServerAPIKey = fc.MediaServerAPIKey
	c.MediaServerUserID = fc.MediaServerUserID
	c.PreferredAudioLanguage = fc.PreferredAudioLanguage
	c.MediaPathMap = fc.MediaPathMap
	c.SchedulerLowWaterHours = fc.SchedulerLowWaterHours
	c.SchedulerExtendDays = fc.SchedulerExtendDays
	c.DatabaseURL = fc.DatabaseURL
	c.FFmpegPath = fc.FFmpegPath
	c.FFprobePath = fc.FFprobePath
}

func applyEnv(c *Config) {
	c.Host = getEnv("HOST", c.Host)
	c.Port = getEnvInt("PORT", c.Port)
	c.PublicURL = getEnv("PUBLIC_URL", c.PublicURL)
	c.MediaServerURL = getEnv("MEDIA_SERVER_URL", c.MediaServerURL)
	c.MediaServerAPIKey = getEnv("MEDIA_SERVER_API_KEY", c.MediaServerAPIKey)
	c.MediaServerUserID = getEnv("MEDIA_SERVER_USER_ID", c.MediaServerUserID)
	c.PreferredAudioLanguage = getEnv("PREFERRED_AUDIO_LANGUAGE", c.PreferredAudioLanguage)
	c.MediaPathMap = getEnv("MEDIA_PATH_MAP", c.MediaPathMap)
	c.SchedulerLowWaterHours = getEnvInt("SCHEDULER_LOW_WATER_HOURS", c.SchedulerLowWaterHours)
	c.SchedulerExtendDays = getEnvInt("SCHEDULER_EXTEND_DAYS", c.SchedulerExtendDays)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.FFmpegPath = getEnv("JELLYSTREAM_FFMPEG_PATH", c.FFmpegPath)
	c.FFprobePath = getEnv("JELLYSTREAM_FFPROBE_PATH", c.FFprobePath)
	c.GapPollInterval = getEnvDuration("JELLYSTREAM_GAP_POLL_INTERVAL", c.GapPollInterval)
}

func applyDefaults(c *Config) {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8097
	}
	if c.PreferredAudioLanguage == "" {
		c.PreferredAudioLanguage = "eng"
	}
	if c.SchedulerLowWaterHours == 0 {
		c.SchedulerLowWaterHours = 48
	}
	if c.SchedulerExtendDays == 0 {
		c.SchedulerExtendDays = 7
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = "./jellystream.db"
	}
	if c.GapPollInterval == 0 {
		c.GapPollInterval = 5 * time.Second
	}
}

// Addr returns "host:port" for http.Server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// PathMapRule splits MediaPathMap on the first ':' into (jfPrefix, localPrefix).
// Per spec.md §4.1 / §9 Open Question: a single separator, so prefixes
// containing ':' are not supported.
func (c *Config) PathMapRule() (jfPrefix, localPrefix string, ok bool) {
	s := strings.TrimSpace(c.MediaPathMap)
	if s == "" {
		return "", "", false
	}
	idx := strings.Index(s, ":")
	if idx <= 0 || idx == len(s)-1 {
		return "", "", false
	}
	return s[:idx], s[idx+1:], true
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
