package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Backend   BackendConfig   `yaml:"backend"`
	State     StateConfig     `yaml:"state"`
	Providers ProvidersConfig `yaml:"providers"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	BaseURL        string        `yaml:"base_url"`
	CookieName     string        `yaml:"cookie_name"`
	CookieDomain   string        `yaml:"cookie_domain"`
	CookieSecure   bool          `yaml:"cookie_secure"`
	CookieSameSite string        `yaml:"cookie_same_site"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
}

// BackendConfig points at the repository backend that validates assertions
// and mints tokens. DefaultRepository is the fallback used when a federated
// callback carries no repository context of its own.
type BackendConfig struct {
	URL               string        `yaml:"url"`
	Timeout           time.Duration `yaml:"timeout"`
	DefaultRepository string        `yaml:"default_repository"`
	TokenHeader       string        `yaml:"token_header"`
	PreserveHost      bool          `yaml:"preserve_host"`
}

type StateConfig struct {
	Type  string       `yaml:"type"`
	Redis *RedisConfig `yaml:"redis,omitempty"`
}

type RedisConfig struct {
	Address    string `yaml:"address"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	PoolSize   int    `yaml:"pool_size"`
	MaxRetries int    `yaml:"max_retries"`
}

// ProvidersConfig enumerates the four federation protocols. A section left
// out or marked disabled is reported as such by capability discovery and
// rejected by the orchestrator.
type ProvidersConfig struct {
	OIDC      OIDCConfig      `yaml:"oidc"`
	SAML      SAMLConfig      `yaml:"saml"`
	Google    GoogleConfig    `yaml:"google"`
	Microsoft MicrosoftConfig `yaml:"microsoft"`
}

type OIDCConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Issuer       string   `yaml:"issuer"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Scopes       []string `yaml:"scopes"`
	RedirectURL  string   `yaml:"redirect_url"`
}

type SAMLConfig struct {
	Enabled        bool   `yaml:"enabled"`
	EntityID       string `yaml:"entity_id"`
	ACSURL         string `yaml:"acs_url"`
	SSOURL         string `yaml:"sso_url"`
	SLOURL         string `yaml:"slo_url"`
	IDPMetadataURL string `yaml:"idp_metadata_url,omitempty"`
	IDPMetadataXML string `yaml:"idp_metadata_xml,omitempty"`
}

// GoogleConfig and MicrosoftConfig leave the issuer and authority
// overridable for non-standard deployments; both default to the vendor's
// public endpoint.
type GoogleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	ClientID string `yaml:"client_id"`
	Issuer   string `yaml:"issuer,omitempty"`
}

type MicrosoftConfig struct {
	Enabled   bool   `yaml:"enabled"`
	ClientID  string `yaml:"client_id"`
	TenantID  string `yaml:"tenant_id"`
	Authority string `yaml:"authority,omitempty"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// envOverrides are the deployment-time variables that may override file
// values; secrets in particular are expected to arrive this way rather than
// sit in the config file.
type envOverrides struct {
	BackendURL        string `env:"BACKEND_URL"`
	DefaultRepository string `env:"DEFAULT_REPOSITORY"`
	OIDCClientID      string `env:"OIDC_CLIENT_ID"`
	OIDCClientSecret  string `env:"OIDC_CLIENT_SECRET"`
	GoogleClientID    string `env:"GOOGLE_CLIENT_ID"`
	MicrosoftClientID string `env:"MICROSOFT_CLIENT_ID"`
	MicrosoftTenantID string `env:"MICROSOFT_TENANT_ID"`
	SAMLSSOURL        string `env:"SAML_SSO_URL"`
	RedisPassword     string `env:"REDIS_PASSWORD"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.CookieName == "" {
		c.Server.CookieName = "authbroker-session"
	}
	if c.Server.CookieSameSite == "" {
		c.Server.CookieSameSite = "lax"
	}
	if c.Server.SessionTTL == 0 {
		c.Server.SessionTTL = 24 * time.Hour
	}

	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = 30 * time.Second
	}
	if c.Backend.TokenHeader == "" {
		c.Backend.TokenHeader = "X-Auth-Token"
	}

	if c.State.Type == "" {
		c.State.Type = "memory"
	}
	if c.State.Type == "redis" && c.State.Redis != nil {
		if c.State.Redis.PoolSize == 0 {
			c.State.Redis.PoolSize = 10
		}
		if c.State.Redis.MaxRetries == 0 {
			c.State.Redis.MaxRetries = 3
		}
	}

	if len(c.Providers.OIDC.Scopes) == 0 {
		c.Providers.OIDC.Scopes = []string{"openid", "profile", "email"}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

func (c *Config) applyEnvOverrides() error {
	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return err
	}

	if ov.BackendURL != "" {
		c.Backend.URL = ov.BackendURL
	}
	if ov.DefaultRepository != "" {
		c.Backend.DefaultRepository = ov.DefaultRepository
	}
	if ov.OIDCClientID != "" {
		c.Providers.OIDC.ClientID = ov.OIDCClientID
	}
	if ov.OIDCClientSecret != "" {
		c.Providers.OIDC.ClientSecret = ov.OIDCClientSecret
	}
	if ov.GoogleClientID != "" {
		c.Providers.Google.ClientID = ov.GoogleClientID
	}
	if ov.MicrosoftClientID != "" {
		c.Providers.Microsoft.ClientID = ov.MicrosoftClientID
	}
	if ov.MicrosoftTenantID != "" {
		c.Providers.Microsoft.TenantID = ov.MicrosoftTenantID
	}
	if ov.SAMLSSOURL != "" {
		c.Providers.SAML.SSOURL = ov.SAMLSSOURL
	}
	if ov.RedisPassword != "" && c.State.Redis != nil {
		c.State.Redis.Password = ov.RedisPassword
	}

	return nil
}
