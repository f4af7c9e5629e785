package http

import (
	"encoding/json"
	"net/http"

	"github.com/dexidp/sso/engine"
)

type resetPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordResponse struct {
	User       userResponse `json:"user"`
	ResetToken string       `json:"reset_token"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(s.logger, w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	user, token, err := s.engine.ResetPassword(r.Context(), serviceKey(r), auditMeta(r), req.Email, s.ttl.PasswordResetToken)
	if err != nil {
		writeError(s.logger, w, err)
		return
	}

	writeJSON(s.logger, w, http.StatusOK, resetPasswordResponse{User: toUserResponse(user), ResetToken: token})
}

type resetPasswordConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (s *Server) handleResetPasswordConfirm(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(s.logger, w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	n, err := s.engine.ResetPasswordConfirm(r.Context(), serviceKey(r), auditMeta(r), req.Token, req.NewPassword)
	if err != nil {
		writeError(s.logger, w, err)
		return
	}

	writeJSON(s.logger, w, http.StatusOK, countResponse{Count: n})
}

type callerAuthRequest struct {
	KeyValue string `json:"key_value,omitempty"`
	Token    string `json:"token,omitempty"`
}

func (c callerAuthRequest) toEngine() engine.CallerAuth {
	return engine.CallerAuth{KeyValue: c.KeyValue, Token: c.Token}
}

type updatePasswordRequest struct {
	Auth        callerAuthRequest `json:"auth"`
	Password    string            `json:"password"`
	NewPassword string            `json:"new_password"`
}

type updatePasswordResponse struct {
	User        userResponse `json:"user"`
	RevokeToken string       `json:"revoke_token"`
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req updatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(s.logger, w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	user, revokeToken, err := s.engine.UpdatePassword(r.Context(), serviceKey(r), auditMeta(r), req.Auth.toEngine(), req.Password, req.NewPassword, s.ttl.AccountRevokeToken)
	if err != nil {
		writeError(s.logger, w, err)
		return
	}

	writeJSON(s.logger, w, http.StatusOK, updatePasswordResponse{User: toUserResponse(user), RevokeToken: revokeToken})
}

func (s *Server) handleUpdatePasswordRevoke(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(s.logger, w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	n, err := s.engine.UpdatePasswordRevoke(r.Context(), serviceKey(r), auditMeta(r), req.Token)
	if err != nil {
		writeError(s.logger, w, err)
		return
	}

	writeJSON(s.logger, w, http.StatusOK, countResponse{Count: n})
}
