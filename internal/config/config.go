package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

const defaultPort = "8123"
const defaultFreshnessTTL = 5 * time.Minute

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

type Config struct {
	platformAPIURL string
	sentryDSN      string
	port           string
	freshnessTTL   time.Duration
	allowedOrigins []string
	env            environment
}

func (c *Config) PlatformAPIURL() string {
	return c.platformAPIURL
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) Port() string {
	return c.port
}

// FreshnessTTL is how long a loaded slot is served before hooks refetch it
func (c *Config) FreshnessTTL() time.Duration {
	return c.freshnessTTL
}

// AllowedOrigins are the domain suffixes accepted by the CORS middleware
func (c *Config) AllowedOrigins() []string {
	return append([]string(nil), c.allowedOrigins...)
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf(
		"Config{env: %s, platformAPIURL: %s, port: %s, freshnessTTL: %s, ...}",
		string(c.env), c.platformAPIURL, c.port, c.freshnessTTL,
	)
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("COURSESYNC_ENVIRONMENT")
	if !ok {
		return missingKey("COURSESYNC_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return Config{}, fmt.Errorf("%w: COURSESYNC_ENVIRONMENT (%s)", ErrInvalidValue, rawEnv)
	}

	platformAPIURL := strings.TrimSuffix(os.Getenv("PLATFORM_API_URL"), "/")
	sentryDSN := os.Getenv("SENTRY_DSN")

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	freshnessTTL := defaultFreshnessTTL
	if rawTTL := os.Getenv("FRESHNESS_TTL"); rawTTL != "" {
		parsed, err := time.ParseDuration(rawTTL)
		if err != nil || parsed <= 0 {
			return Config{}, fmt.Errorf("%w: FRESHNESS_TTL (%s)", ErrInvalidValue, rawTTL)
		}
		freshnessTTL = parsed
	}

	allowedOrigins := []string{"localhost"}
	if rawOrigins := os.Getenv("ALLOWED_ORIGINS"); rawOrigins != "" {
		allowedOrigins = nil
		for _, origin := range strings.Split(rawOrigins, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins = append(allowedOrigins, origin)
			}
		}
	}

	if env == production || env == staging {
		if platformAPIURL == "" {
			return missingKey("PLATFORM_API_URL")
		}
		if sentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
	}

	return Config{
		platformAPIURL: platformAPIURL,
		sentryDSN:      sentryDSN,
		port:           port,
		freshnessTTL:   freshnessTTL,
		allowedOrigins: allowedOrigins,
		env:            env,
	}, nil
}

// NewDevelopment returns a development config with defaults. Used by tools and tests.
func NewDevelopment(platformAPIURL string) Config {
	return Config{
		platformAPIURL: strings.TrimSuffix(platformAPIURL, "/"),
		port:           defaultPort,
		freshnessTTL:   defaultFreshnessTTL,
		allowedOrigins: []string{"localhost"},
		env:            development,
	}
}
