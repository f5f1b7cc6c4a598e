// Package retry provides bounded retry and polling helpers.
//
// [WithExponentialBackoff] retries transient failures of Hetzner Cloud API
// calls and SSH dials. [Poll] drives the fixed-cadence wait loops of the
// orchestrators. Both accept an injectable [Sleeper] so callers can run
// without real delays in tests.
package retry
