package server

import (
	"net/http"

	"github.com/cmswift/authbroker/internal/flow"
	"github.com/cmswift/authbroker/internal/handlers"
	"github.com/cmswift/authbroker/internal/middleware"
	"github.com/cmswift/authbroker/internal/proxy"
)

func (s *Server) setupRoutes() (http.Handler, error) {
	mux := http.NewServeMux()

	authHandler := handlers.NewAuthHandler(s.flows, s.logger)
	capabilityHandler := handlers.NewCapabilityHandler(s.discovery, s.logger)
	healthHandler := handlers.NewHealthHandler(s.store, s.logger)
	sessionGate := middleware.NewSessionGate(s.session, s.logger)

	reverseProxy, err := proxy.NewReverseProxy(s.cfg.Backend, s.session, s.logger)
	if err != nil {
		return nil, err
	}

	mux.HandleFunc("/login", authHandler.HandleLogin)
	mux.HandleFunc("/logout", authHandler.HandleLogout)
	mux.HandleFunc("/auth/config", capabilityHandler.ServeHTTP)

	mux.HandleFunc("/auth/oidc/login", authHandler.HandleOIDCLogin)
	mux.HandleFunc("/auth/saml/login", authHandler.HandleSAMLLogin)
	mux.HandleFunc("/auth/saml/logout", authHandler.HandleSAMLLogout)

	mux.HandleFunc("/auth/google/token", authHandler.HandleGoogleToken)
	mux.HandleFunc("/auth/microsoft/token", authHandler.HandleMicrosoftToken)

	// Redirect flows come back on a fresh page load; the dispatch table
	// decides once, here, which resume handler owns each callback path.
	resumeHandlers := map[flow.Kind]http.HandlerFunc{
		flow.KindOIDC: authHandler.HandleOIDCCallback,
		flow.KindSAML: authHandler.HandleSAMLACS,
	}
	for _, path := range []string{flow.PathOIDCCallback, flow.PathSAMLACS} {
		kind, ok := s.flows.ResumeKindFor(path)
		if !ok {
			continue
		}
		mux.HandleFunc(path, resumeHandlers[kind])
	}

	mux.HandleFunc("/healthz", healthHandler.ServeHTTP)

	// The sign-in screen itself must be reachable without a session.
	mux.Handle("/auth/login", reverseProxy)

	mux.Handle("/", sessionGate.RequireSession(reverseProxy))

	handler := middleware.Recovery(s.logger)(
		middleware.Logging(s.logger)(
			addSecurityHeaders(mux),
		),
	)

	return handler, nil
}

func addSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}
