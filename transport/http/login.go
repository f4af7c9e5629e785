package http

import (
	"encoding/json"
	"net/http"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userTokenResponse struct {
	AccessToken      string `json:"access_token"`
	AccessExpiresAt  int64  `json:"access_expires_at"`
	RefreshToken     string `json:"refresh_token"`
	RefreshExpiresAt int64  `json:"refresh_expires_at"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(s.logger, w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	pair, err := s.engine.Login(r.Context(), serviceKey(r), auditMeta(r), req.Email, req.Password, s.ttl.AccessToken, s.ttl.RefreshToken)
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
