package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event names recognized on the connection protocol.
//
// Inbound: only EventAuthenticate is accepted before authentication;
// EventSubmitRequest is accepted after. Anything else is a protocol
// violation. Outbound: EventRequestUpdate carries a full CrawlRequest,
// EventError carries a human-readable message before the connection is
// closed.
const (
	EventAuthenticate  = "authenticate"
	EventSubmitRequest = "submitRequest"
	EventRequestUpdate = "requestUpdate"
	EventError         = "error"
)

// ErrMalformedEnvelope is returned when an inbound frame is not a valid
// protocol envelope or its payload fails validation.
var ErrMalformedEnvelope = errors.New("malformed protocol envelope")

// Envelope is the protocol frame exchanged on a connection: an event name
// plus an event-specific JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// AuthenticateData is the payload of an inbound authenticate event.
type AuthenticateData struct {
	UserIdentity string `json:"userIdentity"`
}

// SubmitRequestData is the payload of an inbound submitRequest event.
type SubmitRequestData struct {
	TargetURL string `json:"targetUrl"`
}

// RequestUpdateData is the payload of an outbound requestUpdate event.
type RequestUpdateData struct {
	Record CrawlRequest `json:"record"`
}

// ErrorData is the payload of an outbound error event.
type ErrorData struct {
	Message string `json:"message"`
}

// DecodeEnvelope parses a raw inbound frame into an Envelope.
//
// Returns ErrMalformedEnvelope (wrapped with detail) for frames that are
// not JSON objects or carry an empty event name. The payload itself is not
// interpreted here; each event's payload is validated by its typed decoder
// so components only ever see payloads checked once at the boundary.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("%w: missing event name", ErrMalformedEnvelope)
	}

	return env, nil
}

// DecodeAuthenticate validates and decodes an authenticate payload.
func DecodeAuthenticate(data json.RawMessage) (AuthenticateData, error) {
	var payload AuthenticateData
	if err := json.Unmarshal(data, &payload); err != nil {
		return AuthenticateData{}, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	if payload.UserIdentity == "" {
		return AuthenticateData{}, fmt.Errorf("%w: missing userIdentity", ErrMalformedEnvelope)
	}

	return payload, nil
}

// DecodeSubmitRequest validates and decodes a submitRequest payload.
func DecodeSubmitRequest(data json.RawMessage) (SubmitRequestData, error) {
	var payload SubmitRequestData
	if err := json.Unmarshal(data, &payload); err != nil {
		return SubmitRequestData{}, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	if payload.TargetURL == "" {
		return SubmitRequestData{}, fmt.Errorf("%w: missing targetUrl", ErrMalformedEnvelope)
	}

	return payload, nil
}
