package http

import (
	"encoding/json"
	"net/http"
)

type tokenRequest struct {
	Token string `json:"token"`
}

type tokenVerifyResponse struct {
	UserID    string `json:"user_id"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

func (s *Server) handleTokenVerify(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(s.logger, w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	partial, err := s.engine.TokenVerify(r.Context(), serviceKey(r), auditMeta(r), req.Token)
	if err != nil {
		writeError(s.logger, w, err)
		return
	}

	writeJSON(s.logger, w, http.StatusOK, tokenVerifyResponse{
		UserID:    partial.UserID,
		Token:     partial.Token,
		ExpiresAt: partial.ExpiresAt,
	})
}

func (s *Server) handleTokenRefresh(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(s.logger, w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	pair, err := s.engine.TokenRefresh(r.Context(), serviceKey(r), auditMeta(r), req.Token, s.ttl.AccessToken, s.ttl.RefreshToken)
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

func (s *Server) handleTokenRevoke(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(s.logger, w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	n, err := s.engine.TokenRevoke(r.Context(), serviceKey(r), auditMeta(r), req.Token)
	if err != nil {
		writeError(s.logger, w, err)
		return
	}

	writeJSON(s.logger, w, http.StatusOK, countResponse{Count: n})
}
