package gateway

import "errors"

// Sentinel errors returned by the Gateway.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNATSConnectionRequired is returned when the NATS connection is nil.
	ErrNATSConnectionRequired = errors.New("NATS connection is required")

	// ErrAlreadyStarted is returned when Start is called on a running gateway.
	ErrAlreadyStarted = errors.New("gateway already started")

	// ErrNotStarted is returned when Stop is called on a gateway that was
	// never started.
	ErrNotStarted = errors.New("gateway not started")

	// ErrStoreUnavailable is returned when the request ledger is
	// unreachable. A submission failing with this error published nothing;
	// no work item ever exists without a durable ledger entry.
	ErrStoreUnavailable = errors.New("request ledger unavailable")

	// ErrInvalidTargetURL is returned when a submitted target URL fails
	// validation.
	ErrInvalidTargetURL = errors.New("invalid target URL")
)
