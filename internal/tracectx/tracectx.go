// Package tracectx parses and formats W3C trace-context tokens carried in
// broker message headers, so a request's trace survives the asynchronous
// hop between the gateway and workers.
package tracectx

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Token layout: "00-<32 hex traceId>-<16 hex spanId>-<2 hex flags>".
const (
	version     = "00"
	traceIDLen  = 32
	spanIDLen   = 16
	flagsLen    = 2
	tokenLen    = len(version) + 1 + traceIDLen + 1 + spanIDLen + 1 + flagsLen
	flagSampled = 0x01
)

// ErrInvalidToken is returned for any token that deviates from the W3C
// traceparent format. Malformed worker payloads must degrade gracefully,
// so parsing never panics and never returns a partially filled token.
var ErrInvalidToken = errors.New("invalid trace context token")

// Token is a parsed trace-context token.
//
// TraceID is preserved end-to-end across the broker hop; a fresh SpanID is
// minted at each hop boundary while remaining part of the same trace.
type Token struct {
	TraceID string
	SpanID  string
	Flags   byte
}

// Parse decodes a traceparent token.
//
// A token is valid only if it has the fixed "00" version prefix, a 32-char
// lowercase-hex non-all-zero trace id, a 16-char lowercase-hex non-all-zero
// span id, and a 2-char hex flags field. Any deviation yields
// ErrInvalidToken.
func Parse(s string) (Token, error) {
	if len(s) != tokenLen {
		return Token{}, fmt.Errorf("%w: length %d, want %d", ErrInvalidToken, len(s), tokenLen)
	}

	parts := strings.Split(s, "-")
	if len(parts) != 4 {
		return Token{}, fmt.Errorf("%w: want 4 dash-separated fields", ErrInvalidToken)
	}
	if parts[0] != version {
		return Token{}, fmt.Errorf("%w: unsupported version %q", ErrInvalidToken, parts[0])
	}

	traceID, spanID, flagsHex := parts[1], parts[2], parts[3]
	if len(traceID) != traceIDLen || !isHex(traceID) || allZero(traceID) {
		return Token{}, fmt.Errorf("%w: bad trace id", ErrInvalidToken)
	}
	if len(spanID) != spanIDLen || !isHex(spanID) || allZero(spanID) {
		return Token{}, fmt.Errorf("%w: bad span id", ErrInvalidToken)
	}
	if len(flagsHex) != flagsLen || !isHex(flagsHex) {
		return Token{}, fmt.Errorf("%w: bad flags", ErrInvalidToken)
	}

	flags, err := hex.DecodeString(flagsHex)
	if err != nil {
		return Token{}, fmt.Errorf("%w: bad flags", ErrInvalidToken)
	}

	return Token{TraceID: traceID, SpanID: spanID, Flags: flags[0]}, nil
}

// String formats the token as a traceparent header value.
func (t Token) String() string {
	return version + "-" + t.TraceID + "-" + t.SpanID + "-" + hex.EncodeToString([]byte{t.Flags})
}

// Sampled reports whether the sampled flag bit is set.
func (t Token) Sampled() bool {
	return t.Flags&flagSampled != 0
}

// NewRoot mints a fresh token with random trace and span ids, used when a
// request arrives with no incoming trace context.
func NewRoot(sampled bool) (Token, error) {
	traceID, err := randomHex(traceIDLen)
	if err != nil {
		return Token{}, err
	}
	spanID, err := randomHex(spanIDLen)
	if err != nil {
		return Token{}, err
	}

	var flags byte
	if sampled {
		flags = flagSampled
	}

	return Token{TraceID: traceID, SpanID: spanID, Flags: flags}, nil
}

// Child derives a token for the next hop: same trace id and flags, fresh
// random span id.
func (t Token) Child() (Token, error) {
	spanID, err := randomHex(spanIDLen)
	if err != nil {
		return Token{}, err
	}

	return Token{TraceID: t.TraceID, SpanID: spanID, Flags: t.Flags}, nil
}

// randomHex returns n lowercase hex characters from a cryptographically
// strong source. Collision resistance matters at high request volume.
func randomHex(n int) (string, error) {
	buf := make([]byte, n/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	return hex.EncodeToString(buf), nil
}

func isHex(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}

	return true
}

func allZero(s string) bool {
	for _, r := range s {
		if r != '0' {
			return false
		}
	}

	return true
}
