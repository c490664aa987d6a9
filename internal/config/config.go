package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"leadchat/internal/models"
)

type Config struct {
	DBFile     string
	APIURL     string
	WSURL      string
	Token      string
	UserID     string
	Name       string
	Role       models.Role
	Categories []string

	ViewportWidth  int
	ViewportHeight int

	DedupTTL  time.Duration
	LookupTTL time.Duration

	// Web push is optional; all three must be set to enable it.
	PushSubscription string
	VAPIDPublicKey   string
	VAPIDPrivateKey  string
	PushSubscriber   string
}

func Load() (*Config, error) {
	dedupTTL, err := time.ParseDuration(getEnv("DEDUP_TTL", "10m"))
	if err != nil {
		return nil, err
	}
	lookupTTL, err := time.ParseDuration(getEnv("LOOKUP_TTL", "5m"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DBFile:     getEnv("LEADCHAT_DB", "leadchat.db"),
		APIURL:     getEnv("API_URL", "http://localhost:8080"),
		WSURL:      getEnv("WS_URL", "ws://localhost:8080"),
		Token:      os.Getenv("API_TOKEN"),
		UserID:     os.Getenv("USER_ID"),
		Name:       getEnv("USER_NAME", ""),
		Role:       models.Role(getEnv("USER_ROLE", string(models.RoleCustomerExecutive))),
		Categories: splitList(os.Getenv("USER_CATEGORIES")),

		ViewportWidth:  getEnvInt("VIEWPORT_WIDTH", 1920),
		ViewportHeight: getEnvInt("VIEWPORT_HEIGHT", 1080),

		DedupTTL:  dedupTTL,
		LookupTTL: lookupTTL,

		PushSubscription: os.Getenv("PUSH_SUBSCRIPTION"),
		VAPIDPublicKey:   os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey:  os.Getenv("VAPID_PRIVATE_KEY"),
		PushSubscriber:   getEnv("PUSH_SUBSCRIBER", "mailto:ops@localhost"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("API_TOKEN is required")
	}

	if c.UserID == "" {
		return fmt.Errorf("USER_ID is required")
	}

	switch c.Role {
	case models.RoleAdmin, models.RoleManager, models.RoleCustomerExecutive:
	default:
		return fmt.Errorf("USER_ROLE %q is not a known role", c.Role)
	}

	if c.DedupTTL <= 0 {
		return fmt.Errorf("DEDUP_TTL must be greater than 0")
	}

	return nil
}

// PushEnabled reports whether web push is fully configured.
func (c *Config) PushEnabled() bool {
	return c.PushSubscription != "" && c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

// User assembles the identity the role filter runs against.
func (c *Config) User() models.User {
	return models.User{
		ID:         c.UserID,
		Name:       c.Name,
		Role:       c.Role,
		Categories: c.Categories,
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
