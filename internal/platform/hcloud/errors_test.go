package hcloud

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

func TestErrorClassification(t *testing.T) {
	apiErr := func(code hcloud.ErrorCode) error {
		return hcloud.Error{Code: code, Message: string(code)}
	}

	tests := []struct {
		name      string
		err       error
		retryable bool
		invalid   bool
		notFound  bool
	}{
		{name: "nil error"},
		{name: "generic error", err: errors.New("something went wrong")},
		{name: "locked", err: apiErr(hcloud.ErrorCodeLocked), retryable: true},
		{name: "conflict", err: apiErr(hcloud.ErrorCodeConflict), retryable: true},
		{name: "resource unavailable", err: apiErr(hcloud.ErrorCodeResourceUnavailable), retryable: true},
		{name: "rate limited", err: apiErr(hcloud.ErrorCodeRateLimitExceeded), retryable: true},
		{name: "not found", err: apiErr(hcloud.ErrorCodeNotFound), invalid: true, notFound: true},
		{name: "invalid input", err: apiErr(hcloud.ErrorCodeInvalidInput), invalid: true},
		{name: "invalid server type", err: apiErr(hcloud.ErrorCodeInvalidServerType), invalid: true},
		{name: "name taken", err: apiErr(hcloud.ErrorCodeUniquenessError), invalid: true},
		{name: "wrapped locked", err: fmt.Errorf("delete: %w", apiErr(hcloud.ErrorCodeLocked)), retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.retryable {
				t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.retryable)
			}
			if got := isInvalidParameter(tt.err); got != tt.invalid {
				t.Errorf("isInvalidParameter(%v) = %v, want %v", tt.err, got, tt.invalid)
			}
			if got := IsNotFound(tt.err); got != tt.notFound {
				t.Errorf("IsNotFound(%v) = %v, want %v", tt.err, got, tt.notFound)
			}
		})
	}
}

func TestNetworkZone(t *testing.T) {
	tests := map[string]string{
		"fsn1": "eu-central",
		"nbg1": "eu-central",
		"hel1": "eu-central",
		"ash":  "us-east",
		"hil":  "us-west",
		"sin":  "ap-southeast",
		"":     "eu-central",
	}
	for location, want := range tests {
		if got := NetworkZone(location); got != want {
			t.Errorf("NetworkZone(%q) = %q, want %q", location, got, want)
		}
	}
}
