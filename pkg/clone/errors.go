package clone

import "errors"

// Error taxonomy classes (spec.md §7). Wrap one of these with %w so callers
// can errors.Is against the class while the message still carries the
// specific detail.
var (
	// ErrValidation covers option conflicts, malformed depth, empty guessed
	// directory, non-empty destination — always fatal.
	ErrValidation = errors.New("validation error")

	// ErrEnvironment covers missing/unreadable source, unsupported
	// reference-repository kind, shallow/grafted reference — always fatal.
	ErrEnvironment = errors.New("environment error")

	// ErrTransport covers an unreachable remote or a transport lacking a
	// required capability — always fatal.
	ErrTransport = errors.New("transport error")

	// ErrConnectivity means the remote did not send all needed objects —
	// always fatal.
	ErrConnectivity = errors.New("connectivity error")

	// ErrRefStore means a ref transaction commit failed — always fatal.
	ErrRefStore = errors.New("ref store error")

	// ErrPrimer covers primer download/index/install failure. Recoverable
	// (falls back to a full clone) unless the invocation is in --resume
	// mode, in which case it is fatal.
	ErrPrimer = errors.New("primer error")

	// ErrCheckout means working-tree population failed. Partially
	// recoverable: the repository is left usable and the process exits
	// non-zero.
	ErrCheckout = errors.New("checkout error")
)
