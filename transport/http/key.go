package http

import (
	"encoding/json"
	"net/http"
)

type keyRequest struct {
	KeyValue string `json:"key_value"`
}

type keyVerifyResponse struct {
	UserID   string `json:"user_id"`
	KeyValue string `json:"key_value"`
}

func (s *Server) handleKeyVerify(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(s.logger, w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	uk, err := s.engine.KeyVerify(r.Context(), serviceKey(r), auditMeta(r), req.KeyValue)
	if err != nil {
		writeError(s.logger, w, err)
		return
	}

	writeJSON(s.logger, w, http.StatusOK, keyVerifyResponse{UserID: uk.UserID, KeyValue: uk.KeyValue})
}

func (s *Server) handleKeyRevoke(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(s.logger, w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	n, err := s.engine.KeyRevoke(r.Context(), serviceKey(r), auditMeta(r), req.KeyValue)
	if err != nil {
		writeError(s.logger, w, err)
		return
	}

	writeJSON(s.logger, w, http.StatusOK, countResponse{Count: n})
}
