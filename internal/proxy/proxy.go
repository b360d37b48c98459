// Package proxy forwards UI traffic to the document backend with the
// current session attached as request headers.
package proxy

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/cmswift/authbroker/internal/config"
	"github.com/cmswift/authbroker/internal/session"
)

type ReverseProxy struct {
	proxy   *httputil.ReverseProxy
	session *session.Store
}

func NewReverseProxy(cfg config.BackendConfig, sess *session.Store, logger *slog.Logger) (*ReverseProxy, error) {
	backendURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, err
	}

	rp := httputil.NewSingleHostReverseProxy(backendURL)

	originalDirector := rp.Director
	rp.Director = func(req *http.Request) {
		originalDirector(req)
		req.URL.Scheme = backendURL.Scheme
		req.URL.Host = backendURL.Host

		// With preserve_host the backend sees the Host the browser sent,
		// or the one an upstream proxy recorded; otherwise its own.
		if cfg.PreserveHost {
			if fwd := req.Header.Get("X-Forwarded-Host"); fwd != "" {
				req.Host = fwd
			}
		} else {
			req.Host = backendURL.Host
		}
	}

	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("proxy error",
			"error", err,
			"backend", backendURL.String(),
			"path", r.URL.Path,
		)
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
	}

	return &ReverseProxy{
		proxy:   rp,
		session: sess,
	}, nil
}

func (rp *ReverseProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Both the custom token header and the basic-auth pair go out, so
	// either server-side extraction strategy succeeds. With no session the
	// map is empty and the request goes out unauthenticated; gating
	// protected paths is the session gate's job, not the proxy's.
	for name, value := range rp.session.AuthHeaders() {
		r.Header.Set(name, value)
	}

	rp.proxy.ServeHTTP(w, r)
}
