package provisioning

import "errors"

// Failure classes reported by the orchestrators. Errors returned by the
// orchestrators wrap one of these, so callers can classify them with
// errors.Is.
var (
	// ErrInfrastructure means creating or destroying resources failed outright.
	ErrInfrastructure = errors.New("infrastructure error")
	// ErrAvailabilityTimeout means a reachability or readiness wait ran out.
	ErrAvailabilityTimeout = errors.New("availability timeout")
	// ErrConfiguration means remote provisioning failed or was not verified.
	ErrConfiguration = errors.New("configuration error")
	// ErrSelection means the requested nodes matched nothing to bring up.
	ErrSelection = errors.New("selection error")
)
