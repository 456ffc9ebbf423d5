package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// DefaultTolerance is the accepted clock skew between the declared
// timestamp and the receiver's wall clock.
const DefaultTolerance = 300 * time.Second

// Verifier authenticates inbound webhook deliveries. The signature is
// HMAC-SHA256 over timestamp+body; the timestamp header doubles as a
// freshness check against replayed captures.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier creates a verifier for the shared secret. A non-positive
// tolerance falls back to DefaultTolerance.
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{
		secret:    []byte(secret),
		tolerance: tolerance,
		now:       time.Now,
	}
}

// Verify checks the signature and timestamp headers against the raw
// request body. It fails closed: missing headers, a non-numeric
// timestamp, a stale timestamp, or a signature mismatch all return
// false. Comparison is constant-time.
func (v *Verifier) Verify(body []byte, signature, timestamp string) bool {
	if signature == "" || timestamp == "" {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}

	skew := v.now().Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	if time.Duration(skew)*time.Second > v.tolerance {
		return false
	}

	expected := v.Sign(body, timestamp)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign computes the hex-encoded HMAC-SHA256 of timestamp+body.
func (v *Verifier) Sign(body []byte, timestamp string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
