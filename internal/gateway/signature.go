// Webhook signature cryptography.
//
// Paystack signs every webhook delivery with HMAC-SHA512 over the exact raw
// request body, hex-encoded in the x-paystack-signature header. The raw bytes
// must never be re-serialized before hashing: any reordering or whitespace
// change produces a different digest.
package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// SignatureHeader is the HTTP header carrying the gateway's webhook signature.
const SignatureHeader = "x-paystack-signature"

// ComputeSignature returns the lowercase hex HMAC-SHA512 digest of body keyed
// by secret. It matches what the gateway computes byte-for-byte.
func ComputeSignature(body []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether provided is a valid signature for body
// under secret. The comparison is constant-time; an empty provided signature
// never verifies.
func VerifySignature(body []byte, provided, secret string) bool {
	if provided == "" {
		return false
	}
	expected := ComputeSignature(body, secret)
	return hmac.Equal([]byte(expected), []byte(provided))
}
