package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Envelope is the wire format delivered to merchant endpoints. The signature
// covers the serialized envelope byte for byte, so the body is marshaled
// exactly once and the same bytes are signed, sent, and audited.
type Envelope struct {
	Event     string         `json:"event"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Marshal serializes the envelope to the exact bytes placed on the wire.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Sign computes the hex-encoded HMAC-SHA256 of body under the merchant's
// shared secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches body under secret. Comparison is
// constant time.
func Verify(secret string, body []byte, signature string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}
