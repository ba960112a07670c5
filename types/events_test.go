package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"event":"authenticate","data":{"userIdentity":"a@example.com"}}`))
	require.NoError(t, err)
	require.Equal(t, EventAuthenticate, env.Event)
	require.JSONEq(t, `{"userIdentity":"a@example.com"}`, string(env.Data))
}

func TestDecodeEnvelopeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "hello"},
		{"json array", `[1,2,3]`},
		{"missing event", `{"data":{}}`},
		{"empty event", `{"event":"","data":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEnvelope([]byte(tt.raw))
			require.ErrorIs(t, err, ErrMalformedEnvelope)
		})
	}
}

func TestDecodeAuthenticate(t *testing.T) {
	payload, err := DecodeAuthenticate(json.RawMessage(`{"userIdentity":"a@example.com"}`))
	require.NoError(t, err)
	require.Equal(t, "a@example.com", payload.UserIdentity)

	_, err = DecodeAuthenticate(json.RawMessage(`{}`))
	require.ErrorIs(t, err, ErrMalformedEnvelope)

	_, err = DecodeAuthenticate(json.RawMessage(`"just a string"`))
	require.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestDecodeSubmitRequest(t *testing.T) {
	payload, err := DecodeSubmitRequest(json.RawMessage(`{"targetUrl":"https://example.com"}`))
	require.NoError(t, err)
	require.Equal(t, "https://example.com", payload.TargetURL)

	_, err = DecodeSubmitRequest(json.RawMessage(`{"targetUrl":""}`))
	require.ErrorIs(t, err, ErrMalformedEnvelope)

	_, err = DecodeSubmitRequest(json.RawMessage(`null`))
	require.ErrorIs(t, err, ErrMalformedEnvelope)
}
