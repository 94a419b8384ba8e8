package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignHMACSHA256 returns the lowercase hex HMAC-SHA256 of msg.
func SignHMACSHA256(secret, msg []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMACSHA256 compares signature (optionally carrying prefix, e.g.
// "sha256=" or "v0=") against the HMAC of msg in constant time.
func VerifyHMACSHA256(secret, msg []byte, signature, prefix string) bool {
	if len(secret) == 0 || signature == "" {
		return false
	}
	if prefix != "" {
		if !strings.HasPrefix(signature, prefix) {
			return false
		}
		signature = strings.TrimPrefix(signature, prefix)
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(msg)
	return hmac.Equal(got, mac.Sum(nil))
}
