package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/cmswift/authbroker/internal/backend"
	"github.com/cmswift/authbroker/internal/capability"
	"github.com/cmswift/authbroker/internal/config"
	"github.com/cmswift/authbroker/internal/credential"
	"github.com/cmswift/authbroker/internal/federation/google"
	"github.com/cmswift/authbroker/internal/federation/microsoft"
	"github.com/cmswift/authbroker/internal/federation/oidc"
	"github.com/cmswift/authbroker/internal/federation/saml"
	"github.com/cmswift/authbroker/internal/flow"
	"github.com/cmswift/authbroker/internal/server"
	"github.com/cmswift/authbroker/internal/session"
	"github.com/cmswift/authbroker/internal/state"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "/etc/authbroker/config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("authbroker v%s\n", version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	logger.Info("starting authbroker", "version", version)

	store, err := state.New(cfg.State)
	if err != nil {
		return fmt.Errorf("failed to create state store: %w", err)
	}
	logger.Info("state store initialized", "type", cfg.State.Type)

	be := backend.New(cfg.Backend)
	credentials := credential.New(be)
	sess := session.NewStore(store, credentials, be, cfg.Backend.TokenHeader, cfg.Server.SessionTTL, logger)
	if tok := sess.Current(); tok != nil {
		logger.Info("restored persisted session", "repository", tok.RepositoryID, "username", tok.Username)
	}

	discovery := capability.NewDiscovery(cfg.Backend.URL, nil, logger)

	ctx := context.Background()

	var oidcClient *oidc.Client
	if cfg.Providers.OIDC.Enabled {
		oidcClient, err = oidc.NewClient(ctx, cfg.Providers.OIDC, be, store, logger)
		if err != nil {
			return fmt.Errorf("failed to create OIDC client: %w", err)
		}
		logger.Info("provider initialized", "type", "oidc", "issuer", cfg.Providers.OIDC.Issuer)
	}

	var samlClient *saml.Client
	if cfg.Providers.SAML.Enabled {
		samlClient, err = saml.NewClient(ctx, cfg.Providers.SAML, cfg.Backend.DefaultRepository, be, store, logger)
		if err != nil {
			return fmt.Errorf("failed to create SAML client: %w", err)
		}
		logger.Info("provider initialized", "type", "saml", "entity_id", cfg.Providers.SAML.EntityID)
	}

	var googleClient *google.Client
	if cfg.Providers.Google.Enabled {
		googleClient = google.NewClient(cfg.Providers.Google, be, logger)
		logger.Info("provider initialized", "type", "google")
	}

	var microsoftClient *microsoft.Client
	if cfg.Providers.Microsoft.Enabled {
		microsoftClient = microsoft.NewClient(cfg.Providers.Microsoft, be, logger)
		logger.Info("provider initialized", "type", "microsoft", "tenant", cfg.Providers.Microsoft.TenantID)
	}

	flows := flow.New(sess, oidcClient, samlClient, googleClient, microsoftClient, cfg.Backend.DefaultRepository, logger)

	srv, err := server.New(*cfg, store, sess, flows, discovery, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
