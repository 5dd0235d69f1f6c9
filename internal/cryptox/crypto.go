// Package cryptox wraps the keyed hashing used to store refresh tokens.
package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HMACHex returns the hex-encoded HMAC-SHA256 of msg under key.
func HMACHex(key []byte, msg string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

// EqualHex compares two encoded digests in constant time.
func EqualHex(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
