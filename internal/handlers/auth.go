package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/cmswift/authbroker/internal/authtoken"
	"github.com/cmswift/authbroker/internal/flow"
)

// AuthHandler exposes the sign-in flows to the web UI.
type AuthHandler struct {
	flows  *flow.Orchestrator
	logger *slog.Logger
}

func NewAuthHandler(flows *flow.Orchestrator, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{flows: flows, logger: logger}
}

type loginRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	RepositoryID string `json:"repositoryId"`
}

type tokenResponse struct {
	Token        string `json:"token"`
	RepositoryID string `json:"repositoryId"`
	Username     string `json:"username"`
	AuthMethod   string `json:"authMethod"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// HandleLogin runs the password flow.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "unreadable login request"})
		return
	}

	tok, err := h.flows.Login(r.Context(), req.Username, req.Password, req.RepositoryID)
	if err != nil {
		h.fail(w, "password login failed", err)
		return
	}

	writeToken(w, tok)
}

// HandleLogout clears the session. Always succeeds from the UI's point of
// view; server-side teardown is best effort.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.flows.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// HandleOIDCLogin starts the authorization-code redirect flow.
func (h *AuthHandler) HandleOIDCLogin(w http.ResponseWriter, r *http.Request) {
	authURL, err := h.flows.BeginOIDC(r.Context(), r.URL.Query().Get("repositoryId"))
	if err != nil {
		h.fail(w, "OIDC initiation failed", err)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleOIDCCallback resumes the flow on the return page load.
func (h *AuthHandler) HandleOIDCCallback(w http.ResponseWriter, r *http.Request) {
	tok, err := h.flows.ResumeOIDC(r.Context(), r.URL)
	if err != nil {
		h.logger.Error("OIDC callback failed", "error", err)
		http.Redirect(w, r, "/auth/login?error="+url.QueryEscape(flow.UserMessage(err)), http.StatusFound)
		return
	}

	h.logger.Info("authentication successful", "method", tok.Method, "repository", tok.RepositoryID)
	http.Redirect(w, r, "/", http.StatusFound)
}

// HandleSAMLLogin starts the SP-initiated SSO redirect.
func (h *AuthHandler) HandleSAMLLogin(w http.ResponseWriter, r *http.Request) {
	redirectURL, err := h.flows.BeginSAML(r.Context(), r.URL.Query().Get("repositoryId"))
	if err != nil {
		h.fail(w, "SAML initiation failed", err)
		return
	}

	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// HandleSAMLACS is the assertion consumer endpoint the IdP posts back to.
func (h *AuthHandler) HandleSAMLACS(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "unreadable SAML response"})
		return
	}

	samlResponse := r.PostForm.Get("SAMLResponse")
	if samlResponse == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "missing SAMLResponse"})
		return
	}

	tok, err := h.flows.ResumeSAML(r.Context(), samlResponse, r.FormValue("RelayState"))
	if err != nil {
		h.logger.Error("SAML callback failed", "error", err)
		http.Redirect(w, r, "/auth/login?error="+url.QueryEscape(flow.UserMessage(err)), http.StatusFound)
		return
	}

	h.logger.Info("authentication successful", "method", tok.Method, "repository", tok.RepositoryID)
	http.Redirect(w, r, "/", http.StatusFound)
}

// HandleSAMLLogout redirects to the IdP's Single Logout endpoint when one
// is configured; otherwise it is a no-op back to the sign-in screen.
func (h *AuthHandler) HandleSAMLLogout(w http.ResponseWriter, r *http.Request) {
	if sloURL := h.flows.SAMLLogoutURL(); sloURL != "" {
		http.Redirect(w, r, sloURL, http.StatusFound)
		return
	}
	http.Redirect(w, r, "/auth/login", http.StatusFound)
}

type popupTokenRequest struct {
	IDToken      string `json:"id_token"`
	RepositoryID string `json:"repositoryId"`
}

// HandleGoogleToken converts the ID token a completed Google popup handed
// to the browser.
func (h *AuthHandler) HandleGoogleToken(w http.ResponseWriter, r *http.Request) {
	h.handlePopupToken(w, r, h.flows.ConvertGoogle)
}

// HandleMicrosoftToken converts the ID token from a Microsoft popup.
func (h *AuthHandler) HandleMicrosoftToken(w http.ResponseWriter, r *http.Request) {
	h.handlePopupToken(w, r, h.flows.ConvertMicrosoft)
}

func (h *AuthHandler) handlePopupToken(w http.ResponseWriter, r *http.Request, convert func(ctx context.Context, idToken, repositoryID string) (*authtoken.AuthToken, error)) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req popupTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "unreadable token request"})
		return
	}

	tok, err := convert(r.Context(), req.IDToken, req.RepositoryID)
	if err != nil {
		h.fail(w, "popup token conversion failed", err)
		return
	}

	writeToken(w, tok)
}

func (h *AuthHandler) fail(w http.ResponseWriter, logMsg string, err error) {
	h.logger.Error(logMsg, "error", err)
	writeJSON(w, statusFor(err), errorResponse{Message: flow.UserMessage(err)})
}

func statusFor(err error) int {
	switch authtoken.KindOf(err) {
	case authtoken.KindRejected:
		return http.StatusUnauthorized
	case authtoken.KindMissingToken:
		return http.StatusBadRequest
	case authtoken.KindDisabled:
		return http.StatusForbidden
	case authtoken.KindNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeToken(w http.ResponseWriter, tok *authtoken.AuthToken) {
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:        tok.Token,
		RepositoryID: tok.RepositoryID,
		Username:     tok.Username,
		AuthMethod:   string(tok.Method),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
