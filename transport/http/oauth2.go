package http

import (
	"encoding/json"
	"net/http"

	"github.com/dexidp/sso/oauth2login"
	"github.com/dexidp/sso/storage"
)

func (s *Server) resolveServiceForCallback(w http.ResponseWriter, r *http.Request, serviceID, provider, callbackURL string) (storage.Service, bool) {
	if s.oauth == nil {
		writeJSON(s.logger, w, http.StatusServiceUnavailable, errorBody{Error: "no oauth2 provider configured"})
		return storage.Service{}, false
	}

	svc, err := s.driver.ServiceRead(r.Context(), serviceID)
	if err != nil {
		if err == storage.ErrNotFound {
			writeJSON(s.logger, w, http.StatusBadRequest, errorBody{Error: "bad_request"})
		} else {
			s.logger.Error("read service for oauth2 callback validation", "err", err)
			writeJSON(s.logger, w, http.StatusInternalServerError, errorBody{Error: "driver"})
		}
		return storage.Service{}, false
	}

	if err := oauth2login.ValidateServiceCallback(svc, provider, callbackURL); err != nil {
		writeJSON(s.logger, w, http.StatusBadRequest, errorBody{Error: "bad_request"})
		return storage.Service{}, false
	}

	return svc, true
}

type oauth2LoginURLRequest struct {
	ServiceID   string `json:"service_id"`
	Provider    string `json:"provider"`
	CallbackURL string `json:"callback_url"`
	State       string `json:"state"`
}

type oauth2LoginURLResponse struct {
	URL string `json:"url"`
}

// handleOAuth2LoginURL returns the authorization URL a caller should
// redirect the browser to. It validates the callback URL against the
// service's configuration before doing so, so a provider cannot be
// coaxed into returning an authorization code for a callback the service
// never registered.
func (s *Server) handleOAuth2LoginURL(w http.ResponseWriter, r *http.Request) {
	var req oauth2LoginURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(s.logger, w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	if _, ok := s.resolveServiceForCallback(w, r, req.ServiceID, req.Provider, req.CallbackURL); !ok {
		return
	}

	url, err := s.oauth.LoginURL(req.Provider, req.CallbackURL, req.State)
	if err != nil {
		writeJSON(s.logger, w, http.StatusBadRequest, errorBody{Error: "bad_request"})
		return
	}

	writeJSON(s.logger, w, http.StatusOK, oauth2LoginURLResponse{URL: url})
}

type oauth2LoginRequest struct {
	ServiceID   string `json:"service_id"`
	Provider    string `json:"provider"`
	CallbackURL string `json:"callback_url"`
	Code        string `json:"code"`
}

// handleOAuth2Login completes a provider's authorization code flow and
// finishes the login on the authenticated service, in two steps: first
// resolving a verified email from the provider, then handing that email to
// the engine. The engine itself never talks to the provider.
func (s *Server) handleOAuth2Login(w http.ResponseWriter, r *http.Request) {
	var req oauth2LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(s.logger, w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	if _, ok := s.resolveServiceForCallback(w, r, req.ServiceID, req.Provider, req.CallbackURL); !ok {
		return
	}

	email, err := s.oauth.Exchange(r.Context(), req.Provider, req.CallbackURL, req.Code)
	if err != nil {
		s.logger.Warn("oauth2 provider exchange failed", "provider", req.Provider, "err", err)
		writeJSON(s.logger, w, http.StatusBadRequest, errorBody{Error: "bad_request"})
		return
	}

	_, pair, err := s.engine.OAuth2Login(r.Context(), serviceKey(r), auditMeta(r), req.ServiceID, email, s.ttl.AccessToken, s.ttl.RefreshToken)
	if err != nil {
		writeError(s.logger, w, err)
		return
	}

	writeJSON(s.logger, w, http.StatusOK, userTokenResponse{
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	})
}
