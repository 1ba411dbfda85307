// Copyright 2025 Lattice Relay
//
// Core IBC data model: packet fingerprints, client/connection/channel state
// machines, and the two payload shapes (client messages, proof bundles) that
// flow through the pipeline. Mirrors spec.md §3 — the standard IBC handshake
// and packet-lifecycle vocabulary, kept deliberately small: verification of
// these payloads against a light client is an external collaborator, not a
// concern of this package.

package ibc

import (
	"fmt"

	"github.com/lattice-relay/relay/pkg/height"
	"github.com/lattice-relay/relay/pkg/proof"
)

// PacketFingerprint uniquely identifies a packet within a channel.
type PacketFingerprint struct {
	SourcePort    string
	SourceChannel string
	Sequence      uint64
}

func (f PacketFingerprint) String() string {
	return fmt.Sprintf("%s/%s/%d", f.SourcePort, f.SourceChannel, f.Sequence)
}

// Packet is the full packet record: fingerprint plus destination routing and
// timeout fields.
type Packet struct {
	PacketFingerprint
	DestPort         string
	DestChannel      string
	Data             []byte
	TimeoutHeight    height.Height
	TimeoutTimestamp uint64 // unix nanoseconds, 0 means "no timestamp timeout"
}

// TimedOut reports whether the packet has timed out given the destination's
// latest observed height and wall-clock time (unix nanoseconds).
func (p Packet) TimedOut(destLatestHeight height.Height, destLatestTimeNano uint64) bool {
	if !p.TimeoutHeight.IsZero() && destLatestHeight.GTE(p.TimeoutHeight) {
		return true
	}
	if p.TimeoutTimestamp != 0 && destLatestTimeNano >= p.TimeoutTimestamp {
		return true
	}
	return false
}

// ClientMessageKind distinguishes a normal header update from misbehaviour
// evidence (spec.md §3, Client message).
type ClientMessageKind int

const (
	ClientMessageNormalUpdate ClientMessageKind = iota
	ClientMessageMisbehaviour
)

func (k ClientMessageKind) String() string {
	switch k {
	case ClientMessageNormalUpdate:
		return "normal_update"
	case ClientMessageMisbehaviour:
		return "misbehaviour"
	default:
		return "unknown"
	}
}

// ClientMessage is an opaque payload (headers + finality proofs) that
// advances a light client by one step, or freezes it with conflicting
// evidence.
type ClientMessage struct {
	Kind ClientMessageKind

	// Update carries the normal-update payload (set when Kind is
	// ClientMessageNormalUpdate).
	Update *Header

	// Misbehaviour carries two conflicting finality proofs for the same
	// height (set when Kind is ClientMessageMisbehaviour).
	Misbehaviour *MisbehaviourEvidence
}

// Header is a chain-kind-opaque finality header: the concrete encoding is
// owned by the chain-kind adapter (parachain justification, Cosmos signed
// header, Ethereum block header + receipt root, etc).
type Header struct {
	ChainKind string
	Height    height.Height
	Raw       []byte
}

func (h Header) IsHeader() bool { return len(h.Raw) > 0 }

// MisbehaviourEvidence bundles two conflicting finality claims for the same
// height, as produced by the misbehaviour detector (spec.md §4.6).
type MisbehaviourEvidence struct {
	Height    height.Height
	ProofA    Header
	ProofB    Header
	ClientID  string
}

// UpdateType controls whether an absent update may be skipped (spec.md §3).
type UpdateType int

const (
	UpdateOptional UpdateType = iota
	UpdateMandatory
)

// ConnectionState mirrors the standard IBC connection handshake progression.
type ConnectionState int

const (
	ConnectionUninitialized ConnectionState = iota
	ConnectionInit
	ConnectionTryOpen
	ConnectionOpen
)

// ChannelState mirrors the standard IBC channel handshake progression, with a
// closing tail.
type ChannelState int

const (
	ChannelUninitialized ChannelState = iota
	ChannelInit
	ChannelTryOpen
	ChannelOpen
	ChannelCloseInitiated
	ChannelClosed
)

// ConnectionEnd is the queried view of one side of a connection.
type ConnectionEnd struct {
	State              ConnectionState
	ClientID           string
	CounterpartyClient string
	CounterpartyConn   string
	DelayBlocks        uint64
	DelayTime          uint64 // nanoseconds
	CommitmentPrefix   []byte
}

// ChannelEnd is the queried view of one side of a channel.
type ChannelEnd struct {
	State            ChannelState
	Ordering         string // "ordered" | "unordered"
	ConnectionID     string
	CounterpartyPort string
	CounterpartyChan string
	Version          string
}

// ClientState is the opaque, chain-kind-specific tracked state of a
// counterparty's consensus, as last known to the querying chain.
type ClientState struct {
	ChainKind   string
	LatestHeight height.Height
	Frozen      bool
	Raw         []byte
}

// ConsensusState is a trusted snapshot of the counterparty's state root and
// timestamp at a given height.
type ConsensusState struct {
	Height    height.Height
	Timestamp uint64 // unix nanoseconds
	Root      []byte
	Raw       []byte
}

// ProofBundle re-exports pkg/proof's bundle type for convenience at IBC
// message call sites.
type ProofBundle = proof.Bundle
