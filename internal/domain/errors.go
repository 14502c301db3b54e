package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrNotFound = errors.New("domain: not found")

	// ErrConflict signals a uniqueness violation. On tenant mappings this
	// is the designed outcome of concurrent bootstrap: the losing
	// transaction aborts and the caller retries into the fast path.
	ErrConflict = errors.New("domain: conflict")

	// ErrInvalidUser rejects user records missing an org id or external
	// user id before any write happens.
	ErrInvalidUser = errors.New("domain: invalid user")

	// ErrPublicTenant rejects any attempt to bootstrap the reserved
	// public tenant.
	ErrPublicTenant = errors.New("domain: cannot bootstrap public tenant")

	// ErrMappingMissing reports a tenant that should have a mapping after
	// bootstrap but does not.
	ErrMappingMissing = errors.New("domain: tenant mapping missing")
)
