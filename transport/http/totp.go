package http

import (
	"encoding/json"
	"net/http"
)

type totpRequest struct {
	UserID string `json:"user_id"`
	Code   string `json:"code"`
}

func (s *Server) handleTotp(w http.ResponseWriter, r *http.Request) {
	var req totpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(s.logger, w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	if err := s.engine.Totp(r.Context(), serviceKey(r), auditMeta(r), req.UserID, req.Code); err != nil {
		writeError(s.logger, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
