package common

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// Sha256Hex is the lowercase hex SHA-256 of b. Used for replay keys.
func Sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HMACSHA512Hex signs b with key the way Paystack signs webhook bodies.
func HMACSHA512Hex(key string, b []byte) string {
	mac := hmac.New(sha512.New, []byte(key))
	mac.Write(b)
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidHMACSHA512 reports whether signature is the hex HMAC-SHA512 of b under
// key. The comparison is constant time; malformed hex is never valid.
func ValidHMACSHA512(key string, b []byte, signature string) bool {
	if key == "" {
		return false
	}
	provided, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(provided) == 0 {
		return false
	}
	mac := hmac.New(sha512.New, []byte(key))
	mac.Write(b)
	return hmac.Equal(mac.Sum(nil), provided)
}
