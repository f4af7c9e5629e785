// Package totp implements the TOTP second factor: shared secret generation,
// provisioning URIs for enrollment QR codes, and code verification against
// a one-step clock skew window.
package totp

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Verifier checks TOTP codes against a shared secret with a fixed issuer
// name and a one-step clock skew allowance.
type Verifier struct {
	issuer string
}

// New returns a Verifier that stamps generated secrets with issuer.
func New(issuer string) *Verifier {
	return &Verifier{issuer: issuer}
}

// GenerateSecret mints a new TOTP key for accountName (typically the user's
// email), to be stored as a Totp-type key's value.
func (v *Verifier) GenerateSecret(accountName string) (*otp.Key, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      v.issuer,
		AccountName: accountName,
	})
	if err != nil {
		return nil, fmt.Errorf("totp: generate secret: %w", err)
	}
	return key, nil
}

// Validate reports whether code is a valid TOTP for secret at the current
// time, allowing one step (30s) of clock skew in either direction.
func (v *Verifier) Validate(secret, code string) bool {
	ok, err := totp.ValidateCustom(code, secret, time.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false
	}
	return ok
}

// ProvisioningURI renders key as a QR code image, base64-encoded PNG, for
// first-time enrollment.
func ProvisioningURI(key *otp.Key) (string, error) {
	img, err := key.Image(300, 300)
	if err != nil {
		return "", fmt.Errorf("totp: generate QR code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("totp: encode QR code: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
