// Copyright 2025 Lattice Relay
//
// Proof bundles: a key, the value stored at that key, and the Merkle/storage
// proof rooted at a known state root for a specific height (spec.md §3,
// Proof bundle). Shaped after the teacher's Merkle inclusion-proof carrier
// (pkg/merkle.InclusionProof in the teacher repo: LeafHash/LeafIndex/
// MerkleRoot/Path/TreeSize), generalized from "leaf in a batch" to "key under
// a commitment prefix at a height". Verifying a bundle against a chain's
// light-client algorithm is an external collaborator (spec.md §1) — this
// package only carries the data.

package proof

import (
	"errors"

	"github.com/lattice-relay/relay/pkg/height"
)

// ErrEmptyPath is returned by constructors when no proof path is supplied.
var ErrEmptyPath = errors.New("proof: empty proof path")

// Position indicates which side of a proof-tree node a sibling hash sits on.
type Position string

const (
	Left  Position = "left"
	Right Position = "right"
)

// PathNode is one step of a Merkle/storage proof from a leaf up to a root.
type PathNode struct {
	Hash     []byte
	Position Position
}

// Bundle is a key, its value, and the proof that the value is committed at
// Root for Height, under CommitmentPrefix.
type Bundle struct {
	CommitmentPrefix []byte
	Key              []byte
	Value            []byte
	Height           height.Height
	Root             []byte
	Path             []PathNode
}

// New constructs a Bundle, rejecting an empty proof path: a bundle with no
// path cannot be anything but a mistake, since every queried key on a real
// chain carries at least one proof step.
func New(prefix, key, value []byte, h height.Height, root []byte, path []PathNode) (Bundle, error) {
	if len(path) == 0 {
		return Bundle{}, ErrEmptyPath
	}
	return Bundle{
		CommitmentPrefix: prefix,
		Key:              key,
		Value:            value,
		Height:           h,
		Root:             root,
		Path:             path,
	}, nil
}
