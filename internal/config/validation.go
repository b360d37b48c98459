package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.validateBackend(); err != nil {
		return fmt.Errorf("backend config: %w", err)
	}

	if err := c.validateState(); err != nil {
		return fmt.Errorf("state config: %w", err)
	}

	if err := c.validateProviders(); err != nil {
		return fmt.Errorf("providers config: %w", err)
	}

	if err := c.validateLogging(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Server.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}

	if _, err := url.Parse(c.Server.BaseURL); err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}

	sameSite := strings.ToLower(c.Server.CookieSameSite)
	if sameSite != "lax" && sameSite != "strict" && sameSite != "none" {
		return fmt.Errorf("invalid cookie_same_site: %s (must be lax, strict, or none)", c.Server.CookieSameSite)
	}

	if c.Server.SessionTTL < time.Minute {
		return fmt.Errorf("session_ttl must be at least 1 minute")
	}

	return nil
}

func (c *Config) validateBackend() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("url is required")
	}

	if _, err := url.Parse(c.Backend.URL); err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if c.Backend.DefaultRepository == "" {
		return fmt.Errorf("default_repository is required")
	}

	if c.Backend.Timeout < 0 {
		return fmt.Errorf("timeout must be positive")
	}

	return nil
}

func (c *Config) validateState() error {
	if c.State.Type != "memory" && c.State.Type != "redis" {
		return fmt.Errorf("invalid type: %s (must be memory or redis)", c.State.Type)
	}

	if c.State.Type == "redis" {
		if c.State.Redis == nil {
			return fmt.Errorf("redis config is required when type is redis")
		}
		if c.State.Redis.Address == "" {
			return fmt.Errorf("redis address is required")
		}
	}

	return nil
}

func (c *Config) validateProviders() error {
	if err := c.validateOIDC(); err != nil {
		return err
	}
	if err := c.validateSAML(); err != nil {
		return err
	}
	if err := c.validateGoogle(); err != nil {
		return err
	}
	if err := c.validateMicrosoft(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateOIDC() error {
	cfg := c.Providers.OIDC
	if !cfg.Enabled {
		return nil
	}

	if cfg.Issuer == "" {
		return fmt.Errorf("oidc: issuer is required")
	}
	if _, err := url.Parse(cfg.Issuer); err != nil {
		return fmt.Errorf("oidc: invalid issuer URL: %w", err)
	}
	if cfg.ClientID == "" {
		return fmt.Errorf("oidc: client_id is required")
	}
	if cfg.ClientSecret == "" {
		return fmt.Errorf("oidc: client_secret is required")
	}
	if cfg.RedirectURL == "" {
		return fmt.Errorf("oidc: redirect_url is required")
	}

	hasOpenID := false
	for _, scope := range cfg.Scopes {
		if scope == "openid" {
			hasOpenID = true
			break
		}
	}
	if !hasOpenID {
		return fmt.Errorf("oidc: 'openid' scope is required")
	}

	return nil
}

func (c *Config) validateSAML() error {
	cfg := c.Providers.SAML
	if !cfg.Enabled {
		return nil
	}

	if cfg.EntityID == "" {
		return fmt.Errorf("saml: entity_id is required")
	}
	if cfg.ACSURL == "" {
		return fmt.Errorf("saml: acs_url is required")
	}
	if _, err := url.Parse(cfg.ACSURL); err != nil {
		return fmt.Errorf("saml: invalid acs_url: %w", err)
	}

	if cfg.SSOURL == "" && cfg.IDPMetadataURL == "" && cfg.IDPMetadataXML == "" {
		return fmt.Errorf("saml: one of sso_url, idp_metadata_url or idp_metadata_xml is required")
	}
	if cfg.IDPMetadataURL != "" {
		if _, err := url.Parse(cfg.IDPMetadataURL); err != nil {
			return fmt.Errorf("saml: invalid idp_metadata_url: %w", err)
		}
	}

	return nil
}

func (c *Config) validateGoogle() error {
	cfg := c.Providers.Google
	if !cfg.Enabled {
		return nil
	}

	if cfg.ClientID == "" {
		return fmt.Errorf("google: client_id is required")
	}

	return nil
}

func (c *Config) validateMicrosoft() error {
	cfg := c.Providers.Microsoft
	if !cfg.Enabled {
		return nil
	}

	if cfg.ClientID == "" {
		return fmt.Errorf("microsoft: client_id is required")
	}
	if cfg.TenantID == "" {
		return fmt.Errorf("microsoft: tenant_id is required")
	}

	return nil
}

func (c *Config) validateLogging() error {
	level := strings.ToLower(c.Logging.Level)
	if level != "debug" && level != "info" && level != "warn" && level != "error" {
		return fmt.Errorf("invalid level: %s", c.Logging.Level)
	}

	format := strings.ToLower(c.Logging.Format)
	if format != "json" && format != "text" {
		return fmt.Errorf("invalid format: %s (must be json or text)", c.Logging.Format)
	}

	return nil
}
