package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AppEnv        string `envconfig:"APP_ENV" default:"development"`
	Port          string `envconfig:"PORT" default:"8080"`
	AllowedOrigin string `envconfig:"ALLOWED_ORIGIN" default:"http://127.0.0.1:3000"`

	APIBaseURL       string        `envconfig:"API_BASE_URL" default:"http://127.0.0.1:8000"`
	APICSRFToken     string        `envconfig:"API_CSRF_TOKEN"`
	APISessionCookie string        `envconfig:"API_SESSION_COOKIE"`
	APITimeout       time.Duration `envconfig:"API_TIMEOUT" default:"15s"`
	SaveTimeout      time.Duration `envconfig:"SAVE_TIMEOUT" default:"30s"`

	DatabaseURL     string        `envconfig:"DATABASE_URL"`
	RedisAddr       string        `envconfig:"REDIS_ADDR"`
	RedisPassword   string        `envconfig:"REDIS_PASSWORD"`
	RedisDB         int           `envconfig:"REDIS_DB" default:"0"`
	CatalogCacheTTL time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"24h"`

	AuthSecret            string `envconfig:"AUTH_SECRET"`
	AccessTokenTTLMinutes int    `envconfig:"ACCESS_TOKEN_TTL_MINUTES" default:"480"`
	ManagerPIN            string `envconfig:"MANAGER_PIN"`
	// Operators maps username to bcrypt hash: "till1:$2a$...,till2:$2a$...".
	Operators map[string]string `envconfig:"TERMINAL_OPERATORS"`
	Admins    []string          `envconfig:"TERMINAL_ADMINS"`

	PrinterType    string `envconfig:"PRINTER_TYPE" default:"none"`
	PrinterUSBPath string `envconfig:"PRINTER_USB_PATH" default:"/dev/usb/lp0"`
	PrinterAddress string `envconfig:"PRINTER_ADDRESS"`
	PrintQueue     string `envconfig:"PRINT_QUEUE" default:"direct"`
	PaperWidth     int    `envconfig:"PAPER_WIDTH" default:"32"`

	BusinessName    string `envconfig:"BUSINESS_NAME" default:"AGS MOBILES & ACCESSORIES"`
	BusinessAddress string `envconfig:"BUSINESS_ADDRESS" default:"Punnaiyakonam, Oorambu"`
	BusinessPhone   string `envconfig:"BUSINESS_PHONE" default:"9876543210"`
	BusinessFooter  string `envconfig:"BUSINESS_FOOTER" default:"Thank you! Visit Again"`
	Timezone        string `envconfig:"TIMEZONE" default:"Asia/Kolkata"`
	Locale          string `envconfig:"LOCALE" default:"en-IN"`
	Currency        string `envconfig:"CURRENCY" default:"₹"`

	SessionIdleTTL time.Duration `envconfig:"SESSION_IDLE_TTL" default:"12h"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

// Load reads an optional .env file, then the environment. Real environment
// variables win over .env entries.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	cfg.ManagerPIN = strings.TrimSpace(cfg.ManagerPIN)
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	if cfg.AccessTokenTTLMinutes < 1 {
		cfg.AccessTokenTTLMinutes = 480
	}
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

// Location falls back to the host zone when Timezone is unknown.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c Config) IsAdmin(username string) bool {
	for _, admin := range c.Admins {
		if strings.EqualFold(strings.TrimSpace(admin), username) {
			return true
		}
	}
	return false
}

// OperatorNames returns configured usernames in sorted order.
func (c Config) OperatorNames() []string {
	names := make([]string, 0, len(c.Operators))
	for name := range c.Operators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
