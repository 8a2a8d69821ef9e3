package core

import (
	"context"
)

// Protocol defines the venue-specific request construction and signing contract.
// Response normalization is not part of it because it needs the market catalog.
type Protocol interface {
	// Name returns the exchange identifier (e.g., "kkex").
	Name() string

	// Version returns the API version being used.
	Version() string

	// BaseURL returns the API base URL for public or private endpoints.
	BaseURL(private bool) string

	// BuildRequest constructs an unsigned request for the specified operation.
	// Missing required parameters are reported as validation errors.
	BuildRequest(ctx context.Context, op Operation, params Params) (*Request, error)

	// SignRequest turns a private request into its authenticated wire form.
	// Public requests are left untouched.
	SignRequest(req *Request, creds Credentials, nonce int64) error

	// SupportedOperations returns the list of operations this protocol supports.
	SupportedOperations() []Operation
}
