package auth

import (
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedVerifier(secret string, tolerance time.Duration, now time.Time) *Verifier {
	v := NewVerifier(secret, tolerance)
	v.now = func() time.Time { return now }
	return v
}

func TestVerifyValidSignature(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := fixedVerifier("topsecret", 300*time.Second, now)

	body := []byte(`{"type":"ORDER_STATUS_UPDATE","shop_id":"shop1"}`)
	ts := strconv.FormatInt(now.Unix(), 10)
	sig := v.Sign(body, ts)

	assert.True(t, v.Verify(body, sig, ts))
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := fixedVerifier("topsecret", 300*time.Second, now)

	body := []byte(`{"order_id":"o1"}`)
	ts := strconv.FormatInt(now.Unix(), 10)
	sig := v.Sign(body, ts)

	// Flipping any single bit of the body must break verification.
	for i := 0; i < len(body); i++ {
		tampered := make([]byte, len(body))
		copy(tampered, body)
		tampered[i] ^= 0x01
		assert.False(t, v.Verify(tampered, sig, ts), "bit flip at byte %d accepted", i)
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := fixedVerifier("topsecret", 300*time.Second, now)

	body := []byte(`{"order_id":"o1"}`)
	ts := strconv.FormatInt(now.Unix(), 10)
	sig := v.Sign(body, ts)

	for i := 0; i < len(sig); i++ {
		tampered := []byte(sig)
		if tampered[i] == 'a' {
			tampered[i] = 'b'
		} else {
			tampered[i] = 'a'
		}
		assert.False(t, v.Verify(body, string(tampered), ts))
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	now := time.Unix(1700000000, 0)
	signer := fixedVerifier("secret-a", 300*time.Second, now)
	v := fixedVerifier("secret-b", 300*time.Second, now)

	body := []byte(`{"order_id":"o1"}`)
	ts := strconv.FormatInt(now.Unix(), 10)
	sig := signer.Sign(body, ts)

	assert.False(t, v.Verify(body, sig, ts))
}

func TestVerifyToleranceBoundary(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := fixedVerifier("topsecret", 300*time.Second, now)
	body := []byte(`{"order_id":"o1"}`)

	tests := []struct {
		name   string
		offset int64
		want   bool
	}{
		{"exactly at tolerance", -300, true},
		{"one second past tolerance", -301, false},
		{"future within tolerance", 300, true},
		{"future past tolerance", 301, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := strconv.FormatInt(now.Unix()+tt.offset, 10)
			sig := v.Sign(body, ts)
			assert.Equal(t, tt.want, v.Verify(body, sig, ts))
		})
	}
}

func TestVerifyFailsClosed(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := fixedVerifier("topsecret", 300*time.Second, now)
	body := []byte(`{"order_id":"o1"}`)
	ts := strconv.FormatInt(now.Unix(), 10)
	sig := v.Sign(body, ts)

	assert.False(t, v.Verify(body, "", ts), "missing signature")
	assert.False(t, v.Verify(body, sig, ""), "missing timestamp")
	assert.False(t, v.Verify(body, sig, "not-a-number"), "garbage timestamp")
}

func TestSignIsDeterministic(t *testing.T) {
	v := NewVerifier("topsecret", 0)
	require.Equal(t, DefaultTolerance, v.tolerance)

	body := []byte("payload")
	assert.Equal(t, v.Sign(body, "123"), v.Sign(body, "123"))
	assert.NotEqual(t, v.Sign(body, "123"), v.Sign(body, "124"))
	assert.Len(t, v.Sign(body, "123"), 64)
}

func TestSignatureCoversTimestamp(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := fixedVerifier("topsecret", 300*time.Second, now)
	body := []byte(`{"order_id":"o1"}`)

	// A signature computed for one timestamp must not verify against
	// another, or a captured delivery could be replayed with a fresh
	// timestamp header.
	oldTS := strconv.FormatInt(now.Unix()-200, 10)
	newTS := strconv.FormatInt(now.Unix(), 10)
	sig := v.Sign(body, oldTS)

	assert.True(t, v.Verify(body, sig, oldTS))
	assert.False(t, v.Verify(body, sig, newTS), fmt.Sprintf("signature for ts=%s accepted with ts=%s", oldTS, newTS))
}
