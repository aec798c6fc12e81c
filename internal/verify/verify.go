// Package verify implements HMAC-SHA256 webhook signature verification
// with a bounded replay window.
package verify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// SchemePrefix is the provider's signature scheme tag. Signatures are
// accepted with or without it and emitted with it.
const SchemePrefix = "v1,"

// DefaultMaxAge bounds how far a webhook timestamp may drift from the
// local clock, in either direction.
const DefaultMaxAge = 300 * time.Second

// Result is the outcome of a verification. Err is a short operator-facing
// reason and never contains the secret or the expected signature.
type Result struct {
	Valid bool
	Err   string
}

// Verifier checks webhook signatures. It holds no state beyond its
// configuration; the clock is injectable for tests.
type Verifier struct {
	maxAge time.Duration
	now    func() time.Time
}

// New creates a Verifier. maxAge <= 0 selects DefaultMaxAge.
func New(maxAge time.Duration) *Verifier {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Verifier{maxAge: maxAge, now: time.Now}
}

// Verify checks that signature is a valid HMAC-SHA256 of
// "{timestamp}.{payload}" under secret and that timestamp falls within
// the replay window.
func (v *Verifier) Verify(payload, signature, timestamp, secret string) Result {
	if payload == "" {
		return Result{Err: "missing payload"}
	}
	if signature == "" {
		return Result{Err: "missing signature"}
	}
	if timestamp == "" {
		return Result{Err: "missing timestamp"}
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return Result{Err: "timestamp is not numeric"}
	}

	now := v.now().Unix()
	if now-ts > int64(v.maxAge/time.Second) {
		return Result{Err: "timestamp too old"}
	}
	if ts-now > int64(v.maxAge/time.Second) {
		return Result{Err: "timestamp too new"}
	}

	expected := Sign(payload, timestamp, secret)
	provided := strings.TrimPrefix(signature, SchemePrefix)
	candidate := strings.TrimPrefix(expected, SchemePrefix)

	if !hmac.Equal([]byte(provided), []byte(candidate)) {
		return Result{Err: "signature mismatch"}
	}
	return Result{Valid: true}
}

// Sign computes the scheme-tagged signature for a payload. Exposed so
// tests and local tooling can produce valid webhooks.
func Sign(payload, timestamp, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "." + payload))
	return SchemePrefix + hex.EncodeToString(mac.Sum(nil))
}
