package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the gateway's hex HMAC-SHA256 of the raw body.
const SignatureHeader = "X-Gateway-Signature"

// VerifySignature checks that rawBody was signed with secret. The digest is
// computed over the exact request bytes; hex case in the header is accepted
// either way. Returns false on missing secret, missing header or empty body.
func VerifySignature(rawBody []byte, signatureHeader, secret string) bool {
	if secret == "" || signatureHeader == "" || len(rawBody) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	got := strings.ToLower(strings.TrimSpace(signatureHeader))
	return hmac.Equal([]byte(got), []byte(expected))
}

// Sign produces the hex signature for a body. Used by the local test harness
// and by tests; the gateway computes the production equivalent.
func Sign(rawBody []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}
