package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"seclab/variant"

	"github.com/joho/godotenv"
)

const placeholderKey = "CHANGE_ME_IN_PRODUCTION"

type Config struct {
	AppName        string       `json:"app_name"`
	ListenIP       string       `json:"listen_ip"`
	ListenPort     int          `json:"listen_port"`
	Variant        variant.Mode `json:"variant"`
	DatabasePath   string       `json:"database_path"`
	SessionKey     string       `json:"session_key"`
	SessionTTL     Duration     `json:"session_ttl"`
	SweepInterval  Duration     `json:"sweep_interval"`
	PasswordHasher string       `json:"password_hasher"`
	BcryptCost     int          `json:"bcrypt_cost"`
	SecureCookies  bool         `json:"secure_cookies"`
	TrustedOrigins []string     `json:"trusted_origins"`
	LogLevel       string       `json:"log_level"`
	LogFormat      string       `json:"log_format"`
}

// Duration reads a time.Duration from a JSON string such as "30m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func Default() Config {
	return Config{
		AppName:        "seclab",
		ListenIP:       "0.0.0.0",
		ListenPort:     5000,
		Variant:        variant.Good,
		DatabasePath:   "./seclab-{variant}.db",
		SessionTTL:     Duration{30 * time.Minute},
		SweepInterval:  Duration{5 * time.Minute},
		PasswordHasher: "argon2id",
		BcryptCost:     12,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// LoadConfig reads the JSON file at path over the defaults, then applies a
// .env file from the working directory and SECLAB_* environment variables.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.ensureSessionKey(); err != nil {
		return nil, err
	}
	return &cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("SECLAB_VARIANT"); v != "" {
		if err := c.Variant.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("SECLAB_VARIANT: %w", err)
		}
	}
	if v := os.Getenv("SECLAB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SECLAB_PORT: %w", err)
		}
		c.ListenPort = port
	}
	if v := os.Getenv("SECLAB_DB"); v != "" {
		c.DatabasePath = v
	}
	// Override with environment variable if present
	if v := os.Getenv("SECLAB_SESSION_KEY"); v != "" {
		c.SessionKey = v
	}
	if v := os.Getenv("SECLAB_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return nil
}

// If no key is provided or it's the placeholder, generate a secure random one
func (c *Config) ensureSessionKey() error {
	if c.SessionKey != "" && c.SessionKey != placeholderKey {
		return nil
	}
	slog.Warn("no session key configured, generating a random key; sessions will be invalidated on restart")
	randomKey := make([]byte, 32)
	if _, err := rand.Read(randomKey); err != nil {
		return err
	}
	c.SessionKey = hex.EncodeToString(randomKey)
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		errs = append(errs, fmt.Errorf("listen_port %d out of range", c.ListenPort))
	}
	if c.Variant != variant.Good && c.Variant != variant.Bad {
		errs = append(errs, fmt.Errorf("unknown variant %v", c.Variant))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path is empty"))
	}
	if c.SessionTTL.Duration < 0 {
		errs = append(errs, fmt.Errorf("session_ttl %v is negative", c.SessionTTL))
	}
	switch c.PasswordHasher {
	case "argon2id", "bcrypt":
	default:
		errs = append(errs, fmt.Errorf("password_hasher %q (want argon2id or bcrypt)", c.PasswordHasher))
	}
	if c.PasswordHasher == "bcrypt" && (c.BcryptCost < 4 || c.BcryptCost > 31) {
		errs = append(errs, fmt.Errorf("bcrypt_cost %d out of range", c.BcryptCost))
	}
	return errors.Join(errs...)
}

// DBPath is DatabasePath with any "{variant}" replaced by the variant name,
// so each variant keeps its own database file.
func (c *Config) DBPath() string {
	return strings.ReplaceAll(c.DatabasePath, "{variant}", c.Variant.String())
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ListenIP, c.ListenPort)
}
