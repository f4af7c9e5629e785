// Package jwtcodec encodes and decodes the access, refresh, reset-password
// and revoke tokens the engine mints, wrapping go-jose the way a rotating
// signer package would. Unlike a globally rotating signing keypair, the
// signing key here is always a single user's Token-type key value, so this
// package carries no rotation state of its own.
package jwtcodec

import (
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"github.com/dexidp/sso/storage"
)

// claims is the wire shape of every token this package mints. x5t and cki
// reuse JOSE header-ish field names as ordinary claims, matching the fixed
// wire convention every client of this codec must agree on.
type claims struct {
	jwt.Claims
	ClaimsType storage.ClaimsType `json:"x5t"`
	CsrfKey    string             `json:"cki,omitempty"`
}

// Encode mints a signed JWT for userID, scoped to serviceID, carrying
// claimsType and an optional CSRF key, signed with signingKey (the raw bytes
// of a user's Token-type Key.Value, used as opaque HMAC key material, not
// hex-decoded). It returns the compact serialization and the token's
// absolute expiry.
func Encode(serviceID, userID string, claimsType storage.ClaimsType, csrfKey, signingKey string, ttl time.Duration) (token string, exp int64, err error) {
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: []byte(signingKey)}, nil)
	if err != nil {
		return "", 0, fmt.Errorf("jwtcodec: new signer: %w", err)
	}

	now := time.Now().UTC()
	expiry := now.Add(ttl)
	c := claims{
		Claims: jwt.Claims{
			Issuer:   serviceID,
			Subject:  userID,
			Audience: jwt.Audience{serviceID},
			IssuedAt: jwt.NewNumericDate(now),
			Expiry:   jwt.NewNumericDate(expiry),
		},
		ClaimsType: claimsType,
		CsrfKey:    csrfKey,
	}

	token, err = jwt.Signed(signer).Claims(c).Serialize()
	if err != nil {
		return "", 0, fmt.Errorf("jwtcodec: sign: %w", err)
	}
	return token, expiry.Unix(), nil
}

// DecodeUnsafe parses token WITHOUT verifying its signature, cross-checking
// only that its audience and issuer match serviceID. It exists solely to
// discover which user's signing key the caller must load before a real
// Decode can run; its result must never be trusted as proof of anything.
func DecodeUnsafe(serviceID, token string) (userID string, claimsType storage.ClaimsType, err error) {
	parsed, err := jwt.ParseSigned(token, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return "", "", fmt.Errorf("jwtcodec: parse: %w", err)
	}

	var c claims
	if err := parsed.UnsafeClaimsWithoutVerification(&c); err != nil {
		return "", "", fmt.Errorf("jwtcodec: unsafe claims: %w", err)
	}

	if c.Issuer != serviceID || len(c.Audience) != 1 || c.Audience[0] != serviceID {
		return "", "", fmt.Errorf("jwtcodec: service mismatch")
	}
	return c.Subject, c.ClaimsType, nil
}

// Decode fully verifies token: signature against signingKey, audience and
// issuer against serviceID, subject against userID, expiry against now, and
// claims type against expectedType. It returns the token's absolute expiry
// and, for claim types that carry one, the CSRF key.
func Decode(serviceID, userID string, expectedType storage.ClaimsType, signingKey, token string) (exp int64, csrfKey string, err error) {
	parsed, err := jwt.ParseSigned(token, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return 0, "", fmt.Errorf("jwtcodec: parse: %w", err)
	}

	var c claims
	if err := parsed.Claims([]byte(signingKey), &c); err != nil {
		return 0, "", fmt.Errorf("jwtcodec: signature verification failed: %w", err)
	}

	expected := jwt.Expected{
		Issuer:   serviceID,
		Subject:  userID,
		Audience: jwt.Audience{serviceID},
	}
	if err := c.Claims.ValidateWithLeeway(expected, 0); err != nil {
		return 0, "", fmt.Errorf("jwtcodec: claims invalid: %w", err)
	}
	if c.ClaimsType != expectedType {
		return 0, "", fmt.Errorf("jwtcodec: unexpected claims type %q", c.ClaimsType)
	}
	if c.Expiry == nil {
		return 0, "", fmt.Errorf("jwtcodec: missing expiry")
	}
	return c.Expiry.Time().Unix(), c.CsrfKey, nil
}
