package http

import (
	"encoding/json"
	"net/http"
)

type updateEmailRequest struct {
	Auth     callerAuthRequest `json:"auth"`
	Password string            `json:"password"`
	NewEmail string            `json:"new_email"`
}

type updateEmailResponse struct {
	User        userResponse `json:"user"`
	OldEmail    string       `json:"old_email"`
	RevokeToken string       `json:"revoke_token"`
}

func (s *Server) handleUpdateEmail(w http.ResponseWriter, r *http.Request) {
	var req updateEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(s.logger, w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	user, oldEmail, revokeToken, err := s.engine.UpdateEmail(r.Context(), serviceKey(r), auditMeta(r), req.Auth.toEngine(), req.Password, req.NewEmail, s.ttl.AccountRevokeToken)
	if err != nil {
		writeError(s.logger, w, err)
		return
	}

	writeJSON(s.logger, w, http.StatusOK, updateEmailResponse{
		User:        toUserResponse(user),
		OldEmail:    oldEmail,
		RevokeToken: revokeToken,
	})
}

func (s *Server) handleUpdateEmailRevoke(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(s.logger, w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	n, err := s.engine.UpdateEmailRevoke(r.Context(), serviceKey(r), auditMeta(r), req.Token)
	if err != nil {
		writeError(s.logger, w, err)
		return
	}

	writeJSON(s.logger, w, http.StatusOK, countResponse{Count: n})
}
