package engine

// UserToken is the access/refresh pair minted by login, token_refresh and
// oauth2_login.
type UserToken struct {
	AccessToken      string
	AccessExpiresAt  int64
	RefreshToken     string
	RefreshExpiresAt int64
}

// UserTokenPartial is the result of verifying a single access token: no new
// token is minted, so there is nothing to pair it with.
type UserTokenPartial struct {
	UserID    string
	Token     string
	ExpiresAt int64
}

// UserKey identifies the subject a presented opaque key resolves to.
type UserKey struct {
	UserID   string
	KeyValue string
}

// CallerAuth carries the two mutually exclusive ways an end user can
// authenticate to update_email/update_password: a long-lived opaque key, or
// a short-lived access token. Exactly one must be set.
type CallerAuth struct {
	KeyValue string
	Token    string
}
