package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds runtime settings read from the environment.
type Config struct {
	Port         string `env:"PORT" envDefault:"8080" validate:"required,numeric"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"data/devotional.db" validate:"required"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	BasePath     string `env:"BASE_PATH"`

	Devotional DevotionalConfig
	Verse      VerseConfig
	Gemini     GeminiConfig
	Weather    WeatherConfig
	YouTube    YouTubeConfig
	HTTP       HTTPConfig
}

// DevotionalConfig controls the daily rollover cache.
type DevotionalConfig struct {
	Timezone      string        `env:"DEVOTIONAL_TIMEZONE" envDefault:"America/New_York"`
	RolloverHour  int           `env:"DEVOTIONAL_ROLLOVER_HOUR" envDefault:"7" validate:"min=0,max=23"`
	StoragePrefix string        `env:"DEVOTIONAL_STORAGE_PREFIX" envDefault:"votd_"`
	RetryAfter    time.Duration `env:"DEVOTIONAL_RETRY_AFTER" envDefault:"1m" validate:"gt=0"`
	ContextWait   time.Duration `env:"DEVOTIONAL_CONTEXT_WAIT" envDefault:"20s" validate:"gt=0"`
}

// VerseConfig points at the verse and chapter lookup API.
type VerseConfig struct {
	APIURL string `env:"VERSE_API_URL" envDefault:"https://bible-api.com" validate:"url"`
}

// GeminiConfig configures the context generation service.
type GeminiConfig struct {
	APIKey  string        `env:"GEMINI_API_KEY"`
	Model   string        `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	APIURL  string        `env:"GEMINI_API_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta" validate:"url"`
	Timeout time.Duration `env:"ENRICHMENT_TIMEOUT" envDefault:"60s" validate:"gt=0"`
}

// WeatherConfig configures the forecast and geocoding services.
type WeatherConfig struct {
	APIURL     string        `env:"WEATHER_API_URL" envDefault:"https://api.open-meteo.com/v1/forecast" validate:"url"`
	GeocodeURL string        `env:"GEOCODE_API_URL" envDefault:"https://nominatim.openstreetmap.org/search" validate:"url"`
	CacheTTL   time.Duration `env:"WEATHER_CACHE_TTL" envDefault:"1h" validate:"gt=0"`
}

// YouTubeConfig configures the sermon listing. Both fields are optional.
type YouTubeConfig struct {
	APIKey    string `env:"YOUTUBE_API_KEY"`
	ChannelID string `env:"YOUTUBE_CHANNEL_ID"`
	APIURL    string `env:"YOUTUBE_API_URL" envDefault:"https://www.googleapis.com/youtube/v3/search" validate:"url"`
}

// HTTPConfig applies to every outbound client.
type HTTPConfig struct {
	UserAgent string        `env:"HTTP_USER_AGENT" envDefault:"my-daily-devotional/1.0"`
	Timeout   time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s" validate:"gt=0"`
}

// Load reads an optional .env file and parses the environment into a Config.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.BasePath = normalizeBasePath(cfg.BasePath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that env parsing cannot.
func (c *Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return err
		}
		parts := make([]string, 0, len(ve))
		for _, fe := range ve {
			if fe.Param() != "" {
				parts = append(parts, fmt.Sprintf("%s failed on %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
			} else {
				parts = append(parts, fmt.Sprintf("%s failed on %s (got %v)", fe.Field(), fe.Tag(), fe.Value()))
			}
		}
		return fmt.Errorf("invalid config: %s", strings.Join(parts, "; "))
	}
	if strings.TrimSpace(c.Devotional.StoragePrefix) == "" {
		return errors.New("DEVOTIONAL_STORAGE_PREFIX must not be empty")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location returns the reference time zone for the day rollover.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Devotional.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid DEVOTIONAL_TIMEZONE %q: %w", c.Devotional.Timezone, err)
	}
	return loc, nil
}

// HasYouTube reports whether the live sermon listing is configured.
func (c *Config) HasYouTube() bool {
	return c.YouTube.APIKey != "" && c.YouTube.ChannelID != ""
}

var (
	once     sync.Once
	validate *validator.Validate
)

// getValidator reports fields by their env key.
func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			if name := fld.Tag.Get("env"); name != "" {
				return name
			}
			return fld.Name
		})
	})
	return validate
}

func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimRight(p, "/")
}
