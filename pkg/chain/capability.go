// Copyright 2025 Lattice Relay
//
// Chain capability: the polymorphic contract the relay engine drives,
// uniform over ParachainLike/CosmosLike/EvmLike chain kinds and the
// transparent Wrapped (meta-client) decorator (spec.md §4.1). Grounded on the
// teacher's ChainExecutionStrategy interface
// (_examples/certenIO-certen-validator/pkg/chain/strategy/interface.go), which
// is the same shape for a different purpose: one interface dispatched at
// runtime over a tagged chain-platform enum, implemented per platform in its
// own subpackage. Chain-specific RPC adapters, and cryptographic proof
// verification, are external collaborators (spec.md §1): this interface only
// names the operations the pipeline needs, it does not verify anything.

package chain

import (
	"context"
	"time"

	"github.com/lattice-relay/relay/pkg/height"
	"github.com/lattice-relay/relay/pkg/ibc"
	"github.com/lattice-relay/relay/pkg/proof"
)

// Kind tags which concrete chain family a Chain implementation belongs to.
type Kind string

const (
	ParachainLike Kind = "parachain"
	CosmosLike    Kind = "cosmos"
	EvmLike       Kind = "ethereum"
	Wrapped       Kind = "wrapped"
)

// ChannelFilter identifies one (port, channel) pair on the channel
// whitelist.
type ChannelFilter struct {
	PortID    string
	ChannelID string
}

// Chain is the full capability surface spec.md §4.1 describes. A Chain value
// is shared by multiple tasks; implementations must guard their mutable
// fields (client id, connection id, whitelist) with a mutex or present a
// clone-on-write snapshot, per spec.md §5.
type Chain interface {
	// Identity / config (pure).
	Kind() Kind
	Name() string
	ClientID() string
	ConnectionID() string
	ClientType() string
	ConnectionPrefix() []byte
	ChannelWhitelist() []ChannelFilter
	ExpectedBlockTime() time.Duration
	BlockMaxWeight() uint64
	AccountID() string

	// Mutators.
	SetClientID(id string)
	SetConnectionID(id string)
	SetChannelWhitelist(filters []ChannelFilter)

	// Streams.
	FinalityNotifications(ctx context.Context) (<-chan ibc.FinalityEvent, error)
	IBCEvents(ctx context.Context) (<-chan ibc.Event, error)

	// Queries at height.
	QueryClientState(ctx context.Context, at height.Height, clientID string) (*ibc.ClientState, error)
	QueryConsensusState(ctx context.Context, at height.Height, clientID string, consensusHeight height.Height) (*ibc.ConsensusState, error)
	QueryConnectionEnd(ctx context.Context, at height.Height, connectionID string) (*ibc.ConnectionEnd, error)
	QueryChannelEnd(ctx context.Context, at height.Height, portID, channelID string) (*ibc.ChannelEnd, error)
	QueryPacketCommitment(ctx context.Context, at height.Height, portID, channelID string, seq uint64) (*proof.Bundle, error)
	QueryPacketReceipt(ctx context.Context, at height.Height, portID, channelID string, seq uint64) (*proof.Bundle, error)
	QueryPacketAcknowledgement(ctx context.Context, at height.Height, portID, channelID string, seq uint64) (*proof.Bundle, error)
	QueryNextSequenceRecv(ctx context.Context, at height.Height, portID, channelID string) (uint64, *proof.Bundle, error)
	QueryRawProof(ctx context.Context, at height.Height, key []byte) (*proof.Bundle, error)

	// QuerySendPacket reconstructs the full packet record (payload data,
	// timeout height, timeout timestamp) for a previously committed send,
	// keyed by the chain's own local (portID, channelID, seq) (spec.md §4.3
	// step 3: "Load the packet via S.query_send_packets"). A chain kind that
	// cannot recover the original send (e.g. it only ever stores the
	// commitment hash, not the packet body) must return
	// ErrUnsupportedOperation rather than a zero-valued Packet, so the
	// scanner can tell "no timeout configured" apart from "data
	// unavailable" and surface the latter as a scan error instead of
	// silently treating the packet as never timing out.
	QuerySendPacket(ctx context.Context, at height.Height, portID, channelID string, seq uint64) (ibc.Packet, error)

	QueryPacketCommitments(ctx context.Context, at height.Height, portID, channelID string) ([]uint64, error)
	QueryPacketAcknowledgements(ctx context.Context, at height.Height, portID, channelID string, seqs []uint64) ([]uint64, error)
	QueryUnreceivedPackets(ctx context.Context, at height.Height, portID, channelID string, seqs []uint64) ([]uint64, error)
	QueryUnreceivedAcknowledgements(ctx context.Context, at height.Height, portID, channelID string, seqs []uint64) ([]uint64, error)

	// Time/height.
	LatestHeightAndTimestamp(ctx context.Context) (height.Height, uint64, error)
	QueryTimestampAt(ctx context.Context, at height.Height) (uint64, error)
	QueryClientUpdateTimeAndHeight(ctx context.Context, clientID string, consensusHeight height.Height) (uint64, height.Height, error)

	// Construction.
	InitializeClientState(ctx context.Context) (*ibc.ClientState, *ibc.ConsensusState, error)

	// Submission.
	EstimateWeight(ctx context.Context, msgs []*ibc.Message) (uint64, error)
	Submit(ctx context.Context, msgs []*ibc.Message) (txHash string, err error)
	QueryClientIDFromTxHash(ctx context.Context, txHash string) (string, error)
	QueryClientMessage(ctx context.Context, ev ibc.ClientUpdateEvent) (*ibc.ClientMessage, error)

	// Finality-aware build: the central hot-path method (spec.md §4.1).
	QueryLatestIBCEvents(ctx context.Context, f ibc.FinalityEvent, counterparty Chain) (*ibc.ClientMessage, []ibc.Event, ibc.UpdateType, error)

	// Decision.
	IsUpdateRequired(myLatestHeight, counterpartyViewOfMe height.Height) bool
}
