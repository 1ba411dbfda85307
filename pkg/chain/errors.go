// Copyright 2025 Lattice Relay

package chain

import "errors"

var (
	// ErrUnsupportedOperation is returned by a chain-kind adapter for an
	// operation the upstream source never implemented for that kind (see
	// DESIGN.md, Open Question 2: query_client_message is only implemented
	// for ParachainLike chains).
	ErrUnsupportedOperation = errors.New("chain: operation not supported by this chain kind")

	// ErrNotFound is returned by a query whose target does not exist at the
	// requested height (e.g. a packet commitment already cleared).
	ErrNotFound = errors.New("chain: queried value not found at height")

	// ErrClientFrozen marks a destination client of the source that has been
	// frozen by prior misbehaviour evidence; classify maps it to
	// chain-rejected. None of this module's Submit implementations return it.
	ErrClientFrozen = errors.New("chain: destination client is frozen")
)
