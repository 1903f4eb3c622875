package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	seederrors "github.com/mouradhm/mongo-seed/pkg/errors"
	"github.com/mouradhm/mongo-seed/pkg/models"
)

// Config holds everything a seed run needs, sourced from the environment
type Config struct {
	MongoURI       string        `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	AdminUser      string        `env:"MONGO_ADMIN_USER"`
	AdminPassword  string        `env:"MONGO_ADMIN_PASSWORD"`
	AuthDatabase   string        `env:"MONGO_AUTH_DATABASE" envDefault:"admin"`
	TargetDatabase string        `env:"MONGO_DATABASE" envDefault:"mongo"`
	ConnectTimeout time.Duration `env:"MONGO_CONNECT_TIMEOUT" envDefault:"10s"`

	// ManifestPath points at a seed manifest; empty selects the built-in one
	ManifestPath string `env:"SEED_MANIFEST"`
	Policy       string `env:"SEED_POLICY" envDefault:"skip-nonempty"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the .env file.
func Load(envFiles ...string) (*Config, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return nil, seederrors.NewConfigError("failed to read .env file").WithCause(err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, seederrors.NewConfigError("failed to load configuration from environment").WithCause(err)
	}
	return cfg, nil
}

func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Validate checks that the configuration can drive a seed run. It does not
// modify the config; a zero ConnectTimeout is defaulted when the client is built.
func (c *Config) Validate() error {
	if c.AdminUser == "" || c.AdminPassword == "" {
		return seederrors.NewConfigError("MONGO_ADMIN_USER and MONGO_ADMIN_PASSWORD must be set").
			WithCause(seederrors.ErrMissingCredentials)
	}
	if c.AuthDatabase == "" {
		return seederrors.NewConfigError("auth database name is empty")
	}
	if c.TargetDatabase == "" {
		return seederrors.NewConfigError("target database name is empty")
	}
	if _, err := models.ParseSeedPolicy(c.Policy); err != nil {
		return seederrors.NewConfigError(err.Error()).WithCause(seederrors.ErrUnknownPolicy)
	}
	return nil
}

// Credential returns the admin credential described by the config
func (c *Config) Credential() models.Credential {
	return models.Credential{
		Username:     c.AdminUser,
		Password:     c.AdminPassword,
		AuthDatabase: c.AuthDatabase,
	}
}

// SeedPolicy returns the parsed seed policy, defaulting to skip-nonempty
func (c *Config) SeedPolicy() models.SeedPolicy {
	p, err := models.ParseSeedPolicy(c.Policy)
	if err != nil {
		return models.PolicySkipNonEmpty
	}
	return p
}

// Redacted returns the config as log fields with the password masked
func (c *Config) Redacted() map[string]interface{} {
	password := ""
	if c.AdminPassword != "" {
		password = "****"
	}
	return map[string]interface{}{
		"uri":             c.MongoURI,
		"user":            c.AdminUser,
		"password":        password,
		"auth_database":   c.AuthDatabase,
		"target_database": c.TargetDatabase,
		"connect_timeout": c.ConnectTimeout.String(),
		"manifest":        c.manifestLabel(),
		"policy":          c.Policy,
	}
}

func (c *Config) manifestLabel() string {
	if c.ManifestPath == "" {
		return "built-in"
	}
	return c.ManifestPath
}

// String implements fmt.Stringer without leaking the password
func (c *Config) String() string {
	return fmt.Sprintf("mongo=%s db=%s auth=%s@%s manifest=%s policy=%s",
		c.MongoURI, c.TargetDatabase, c.AdminUser, c.AuthDatabase, c.manifestLabel(), c.Policy)
}
