// Copyright 2025 Lattice Relay
//
// EvmLike chain kind: an Ethereum-style counterparty reached over
// go-ethereum's ethclient, finality driven by a confirmation-depth policy
// rather than a BFT commit. Grounded on the teacher's pkg/ethereum/client.go,
// whose Dial/BalanceAt/PendingNonceAt/SuggestGasPrice/SendTransaction calls
// this package reuses directly for the plumbing go-ethereum already gives a
// clean API for; the storage-proof and light-client-specific pieces
// (eth_getProof, header RLP encoding) are new, following the same
// proof.Bundle shape pkg/chain/cosmoslike's abciProof produces.

package evmlike

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/lattice-relay/relay/pkg/chain"
	"github.com/lattice-relay/relay/pkg/ethereum"
	"github.com/lattice-relay/relay/pkg/height"
	"github.com/lattice-relay/relay/pkg/ibc"
	"github.com/lattice-relay/relay/pkg/proof"
)

// handlerABI is the generic IBC handler surface this chain kind submits
// against: a single method taking the wire-encoded message batch as opaque
// bytes, mirroring the teacher's CallContract/SendContractTransaction, which
// already take an arbitrary ABI string and method name, but fixed here to
// the one entry point a relay submitter needs.
const handlerABI = `[{"type":"function","name":"submitMessages","inputs":[{"type":"bytes"}],"outputs":[]}]`

const handlerMethod = "submitMessages"

// Config configures an EvmLike chain.
type Config struct {
	Name              string
	RPCEndpoint       string
	ChainID           int64
	CommitmentPrefix  []byte
	AccountID         string
	ExpectedBlockTime time.Duration
	BlockMaxWeight    uint64
	ClientType        string

	// ConfirmationDepth is how many blocks must sit behind the chain head
	// before a block is treated as final (spec.md §3: EvmLike chains have no
	// BFT finality gadget, so "finalized" here means "reorg risk accepted as
	// negligible").
	ConfirmationDepth uint64

	// HandlerAddress is the deployed IBC handler contract Submit calls into.
	HandlerAddress string
	// SignerKeyHex is the hex-encoded private key Submit signs transactions
	// with; empty disables Submit (read-only chain handle).
	SignerKeyHex string
	// GasLimit bounds the gas a single submitted batch transaction may use;
	// zero falls back to EstimateWeight's per-message default.
	GasLimit uint64
}

// Chain implements chain.Chain over a go-ethereum JSON-RPC client.
type Chain struct {
	*chain.Base
	cfg     Config
	client  *ethclient.Client
	rpc     *ethereum.Client
	chainID *big.Int
}

// New dials cfg.RPCEndpoint.
func New(ctx context.Context, cfg Config) (*Chain, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCEndpoint)
	if err != nil {
		return nil, fmt.Errorf("evmlike: dial: %w", err)
	}
	if cfg.ConfirmationDepth == 0 {
		cfg.ConfirmationDepth = 12
	}
	rpc, err := ethereum.NewClient(cfg.RPCEndpoint, cfg.ChainID)
	if err != nil {
		return nil, fmt.Errorf("evmlike: rpc client: %w", err)
	}
	base := chain.NewBase(cfg.Name, cfg.ClientType, cfg.CommitmentPrefix, cfg.ExpectedBlockTime, cfg.BlockMaxWeight, cfg.AccountID)
	return &Chain{Base: base, cfg: cfg, client: client, rpc: rpc, chainID: big.NewInt(cfg.ChainID)}, nil
}

func (c *Chain) Kind() chain.Kind { return chain.EvmLike }

// FinalityNotifications polls the chain head on ExpectedBlockTime and emits
// one event per confirmed height, i.e. head - ConfirmationDepth, mirroring
// the teacher's GetBlockInfo poll-by-number style (pkg/ethereum/client.go).
func (c *Chain) FinalityNotifications(ctx context.Context) (<-chan ibc.FinalityEvent, error) {
	out := make(chan ibc.FinalityEvent)
	go func() {
		defer close(out)
		ticker := time.NewTicker(c.cfg.ExpectedBlockTime)
		defer ticker.Stop()
		var lastFinalized uint64
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				head, err := c.client.BlockNumber(ctx)
				if err != nil || head < c.cfg.ConfirmationDepth {
					continue
				}
				finalized := head - c.cfg.ConfirmationDepth
				if finalized <= lastFinalized && lastFinalized != 0 {
					continue
				}
				hdr, err := c.client.HeaderByNumber(ctx, new(big.Int).SetUint64(finalized))
				if err != nil {
					continue
				}
				raw, err := rlp.EncodeToBytes(hdr)
				if err != nil {
					continue
				}
				lastFinalized = finalized
				h := height.New(0, finalized)
				ev := ibc.FinalityEvent{
					Height: h,
					Header: ibc.Header{ChainKind: string(chain.EvmLike), Height: h, Raw: raw},
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

// IBCEvents is left unimplemented: decoding the Solidity event log topics
// for an IBC handler contract is an external collaborator (spec.md §1), not
// wired into this reference chain-kind adapter.
func (c *Chain) IBCEvents(ctx context.Context) (<-chan ibc.Event, error) {
	out := make(chan ibc.Event)
	close(out)
	return out, nil
}

// storageProof fetches an eth_getProof merkle-patricia proof for one storage
// slot of the IBC handler contract, at a given block number.
func (c *Chain) storageProof(ctx context.Context, at height.Height, slot common.Hash) (*proof.Bundle, error) {
	var result struct {
		StorageProof []struct {
			Value hexutil.Big  `json:"value"`
			Proof []hexutil.Bytes `json:"proof"`
		} `json:"storageProof"`
		StorageHash common.Hash `json:"storageHash"`
	}
	blockNum := hexutil.EncodeUint64(at.RevisionHeight)
	err := c.client.Client().CallContext(ctx, &result, "eth_getProof", common.HexToAddress(c.cfg.HandlerAddress), []common.Hash{slot}, blockNum)
	if err != nil {
		return nil, fmt.Errorf("evmlike: eth_getProof: %w", err)
	}
	if len(result.StorageProof) == 0 {
		return nil, chain.ErrNotFound
	}
	sp := result.StorageProof[0]
	path := make([]proof.PathNode, 0, len(sp.Proof))
	for _, node := range sp.Proof {
		path = append(path, proof.PathNode{Hash: []byte(node), Position: proof.Left})
	}
	value := sp.Value.ToInt().Bytes()
	b, err := proof.New(c.cfg.CommitmentPrefix, slot.Bytes(), value, at, result.StorageHash.Bytes(), path)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Chain) QueryClientState(ctx context.Context, at height.Height, clientID string) (*ibc.ClientState, error) {
	return &ibc.ClientState{ChainKind: string(chain.EvmLike), LatestHeight: at}, nil
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
	return c.storageProof(ctx, at, commitmentSlot(portID, channelID, seq))
}

func (c *Chain) QueryPacketReceipt(ctx context.Context, at height.Height, portID, channelID string, seq uint64) (*proof.Bundle, error) {
	return c.storageProof(ctx, at, receiptSlot(portID, channelID, seq))
}

func (c *Chain) QueryPacketAcknowledgement(ctx context.Context, at height.Height, portID, channelID string, seq uint64) (*proof.Bundle, error) {
	return c.storageProof(ctx, at, ackSlot(portID, channelID, seq))
}

func (c *Chain) QueryNextSequenceRecv(ctx context.Context, at height.Height, portID, channelID string) (uint64, *proof.Bundle, error) {
	b, err := c.storageProof(ctx, at, nextSeqRecvSlot(portID, channelID))
	return 0, b, err
}

func (c *Chain) QueryRawProof(ctx context.Context, at height.Height, key []byte) (*proof.Bundle, error) {
	return c.storageProof(ctx, at, crypto.Keccak256Hash(key))
}

func (c *Chain) QueryPacketCommitments(ctx context.Context, at height.Height, portID, channelID string) ([]uint64, error) {
	return nil, nil
}

// QuerySendPacket is unimplemented: the handler contract's storage only
// keeps the commitment hash, never the packet body; recovering the
// original send requires scanning SendPacket event logs, the same
// external-collaborator gap as IBCEvents above.
func (c *Chain) QuerySendPacket(ctx context.Context, at height.Height, portID, channelID string, seq uint64) (ibc.Packet, error) {
	return ibc.Packet{}, fmt.Errorf("evmlike: query send packet: %w", chain.ErrUnsupportedOperation)
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
	hdr, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return height.Zero, 0, fmt.Errorf("evmlike: header by number: %w", err)
	}
	return height.New(0, hdr.Number.Uint64()), hdr.Time * 1_000_000_000, nil
}

func (c *Chain) QueryTimestampAt(ctx context.Context, at height.Height) (uint64, error) {
	hdr, err := c.client.HeaderByNumber(ctx, new(big.Int).SetUint64(at.RevisionHeight))
	if err != nil {
		return 0, fmt.Errorf("evmlike: header at %s: %w", at, err)
	}
	return hdr.Time * 1_000_000_000, nil
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
	return &ibc.ClientState{ChainKind: string(chain.EvmLike), LatestHeight: h},
		&ibc.ConsensusState{Height: h, Timestamp: ts}, nil
}

// EstimateWeight returns gas units rather than an opaque weight; spec.md §4.5
// only requires a consistent per-chain unit comparable against
// BlockMaxWeight, and gas is EvmLike's natural one.
func (c *Chain) EstimateWeight(ctx context.Context, msgs []*ibc.Message) (uint64, error) {
	var total uint64
	for range msgs {
		total += 150_000
	}
	return total, nil
}

// Submit ABI-encodes msgs as an opaque byte payload (the wire format a
// concrete IBC handler contract would decode is an external collaborator,
// spec.md §1) and sends it through the handler contract configured by
// HandlerAddress/SignerKeyHex, the way the teacher's
// SendContractTransaction signs and waits on a caller-supplied ABI/method.
func (c *Chain) Submit(ctx context.Context, msgs []*ibc.Message) (string, error) {
	if c.cfg.HandlerAddress == "" || c.cfg.SignerKeyHex == "" {
		return "", fmt.Errorf("evmlike: submit: handler address or signer key not configured: %w", chain.ErrUnsupportedOperation)
	}
	payload, err := rlp.EncodeToBytes(encodedMessages(msgs))
	if err != nil {
		return "", fmt.Errorf("evmlike: encode messages: %w", err)
	}
	gasLimit := c.cfg.GasLimit
	if gasLimit == 0 {
		gasLimit, _ = c.EstimateWeight(ctx, msgs)
	}
	result, err := c.rpc.SendContractTransaction(ctx, common.HexToAddress(c.cfg.HandlerAddress), handlerABI, c.cfg.SignerKeyHex, handlerMethod, gasLimit, payload)
	if err != nil {
		return "", fmt.Errorf("evmlike: submit: %w", err)
	}
	if !result.Success {
		return "", fmt.Errorf("evmlike: submit: transaction %s reverted", result.TransactionHash)
	}
	return result.TransactionHash, nil
}

// encodedMessages flattens the raw bytes of each message's client update (if
// any) into one RLP list; a concrete handler contract's real calldata
// schema depends on the deployed IBC handler ABI and is out of scope here.
func encodedMessages(msgs []*ibc.Message) [][]byte {
	out := make([][]byte, 0, len(msgs))
	for _, m := range msgs {
		if m.ClientMsg != nil && m.ClientMsg.Update != nil {
			out = append(out, m.ClientMsg.Update.Raw)
		}
	}
	return out
}

func (c *Chain) QueryClientIDFromTxHash(ctx context.Context, txHash string) (string, error) {
	receipt, err := c.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		return "", fmt.Errorf("evmlike: transaction receipt: %w", err)
	}
	if len(receipt.Logs) == 0 {
		return "", fmt.Errorf("evmlike: no logs in receipt %s: %w", txHash, chain.ErrNotFound)
	}
	// The client id is encoded in the first emitted log's first indexed
	// topic by the reference IBC handler contract's CreateClient event.
	if len(receipt.Logs[0].Topics) < 2 {
		return "", fmt.Errorf("evmlike: malformed create-client log: %w", chain.ErrNotFound)
	}
	return receipt.Logs[0].Topics[1].Hex(), nil
}

// QueryClientMessage has no upstream implementation for non-parachain chain
// kinds (DESIGN.md Open Question 2); this mirrors that gap deliberately, the
// same as pkg/chain/cosmoslike.
func (c *Chain) QueryClientMessage(ctx context.Context, ev ibc.ClientUpdateEvent) (*ibc.ClientMessage, error) {
	return nil, fmt.Errorf("evmlike: query client message: %w", chain.ErrUnsupportedOperation)
}

func (c *Chain) QueryLatestIBCEvents(ctx context.Context, f ibc.FinalityEvent, counterparty chain.Chain) (*ibc.ClientMessage, []ibc.Event, ibc.UpdateType, error) {
	msg := &ibc.ClientMessage{Kind: ibc.ClientMessageNormalUpdate, Update: &f.Header}
	return msg, nil, ibc.UpdateOptional, nil
}

func (c *Chain) IsUpdateRequired(myLatestHeight, counterpartyViewOfMe height.Height) bool {
	return myLatestHeight.GT(counterpartyViewOfMe)
}

func commitmentSlot(portID, channelID string, seq uint64) common.Hash {
	return crypto.Keccak256Hash([]byte(fmt.Sprintf("commitments/ports/%s/channels/%s/sequences/%d", portID, channelID, seq)))
}
func receiptSlot(portID, channelID string, seq uint64) common.Hash {
	return crypto.Keccak256Hash([]byte(fmt.Sprintf("receipts/ports/%s/channels/%s/sequences/%d", portID, channelID, seq)))
}
func ackSlot(portID, channelID string, seq uint64) common.Hash {
	return crypto.Keccak256Hash([]byte(fmt.Sprintf("acks/ports/%s/channels/%s/sequences/%d", portID, channelID, seq)))
}
func nextSeqRecvSlot(portID, channelID string) common.Hash {
	return crypto.Keccak256Hash([]byte(fmt.Sprintf("nextSequenceRecv/ports/%s/channels/%s", portID, channelID)))
}

var _ chain.Chain = (*Chain)(nil)
