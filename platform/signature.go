package platform

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// SignHex returns "sha256=" followed by the hex HMAC-SHA256 of body.
func SignHex(secret, body []byte) string {
	return "sha256=" + hex.EncodeToString(mac(secret, body))
}

// SignBase64 returns "sha256=" followed by the base64 HMAC-SHA256 of body.
func SignBase64(secret, body []byte) string {
	return "sha256=" + base64.StdEncoding.EncodeToString(mac(secret, body))
}

// VerifyHex checks a "sha256=<hex>" signature header in constant time.
func VerifyHex(secret, body []byte, header string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	return hmac.Equal(got, mac(secret, body))
}

// VerifyBase64 checks a "sha256=<base64>" signature header in constant
// time.
func VerifyBase64(secret, body []byte, header string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return false
	}
	return hmac.Equal(got, mac(secret, body))
}

// EqualToken compares a shared secret in constant time. An empty
// expected token matches nothing.
func EqualToken(expected, got string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

func mac(secret, body []byte) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write(body)
	return h.Sum(nil)
}
