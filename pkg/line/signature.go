package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// ErrInvalidSignature is returned when X-Line-Signature does not match the
// request body.
var ErrInvalidSignature = errors.New("line: invalid signature")

// Sign returns the base64 HMAC-SHA256 of body under secret, as sent in the
// X-Line-Signature header.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks signature against body. It returns ErrInvalidSignature on
// mismatch or malformed input.
func Verify(secret string, body []byte, signature string) error {
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil || signature == "" {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrInvalidSignature
	}
	return nil
}
