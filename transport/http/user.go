package http

import "github.com/dexidp/sso/storage"

// userResponse is the caller-visible projection of storage.User: it never
// includes PasswordHash.
type userResponse struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Locale string `json:"locale,omitempty"`
}

func toUserResponse(u storage.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Name: u.Name, Locale: u.Locale}
}
