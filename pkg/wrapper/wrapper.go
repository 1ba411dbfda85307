// Copyright 2025 Lattice Relay
//
// Wrapper: the transparent Wrapped (meta-client) chain-capability decorator
// (spec.md §4.1). Forwards every Chain operation to an inner chain
// unchanged except Submit, where outgoing messages of a whitelisted type
// have their client state / consensus state / client message re-wrapped as
// a meta payload keyed by a wasm code id, per the table in spec.md §4.1.
// Grounded on the teacher's decorator-shaped wrapper in
// pkg/batch/anchor_manager_wrapper.go, which forwards an AnchorManager
// interface unchanged except for the one method (submission) that needs the
// extra indirection — the same "wrap one seam, pass the rest through" shape
// used here for the wasm meta-client.

package wrapper

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/lattice-relay/relay/pkg/chain"
	"github.com/lattice-relay/relay/pkg/height"
	"github.com/lattice-relay/relay/pkg/ibc"
)

// MetaPayload is the wasm meta-client envelope: a generic light-client
// runtime hosts the inner chain-kind-specific payload, addressed by code
// id.
type MetaPayload struct {
	CodeID        string
	ClientType    string
	InitialHeight height.Height // set only on CreateClient's consensus state, per spec.md §4.1 table
	Inner         []byte
}

// Chain wraps an inner chain.Chain with the meta-client re-wrapping rules.
// It embeds the inner chain so identity/config/query/stream methods forward
// unchanged without restating every method.
type Chain struct {
	chain.Chain
	codeID     string
	clientType string
}

// New returns a Wrapped chain forwarding to inner, tagging outgoing client
// payloads with codeID/clientType.
func New(inner chain.Chain, codeID, clientType string) *Chain {
	if err := chain.GlobalCodeIDRegistry().Register(codeID, clientType); err != nil {
		// Construction has no error return here, like every other Chain
		// constructor in this module at this layer. A registration
		// conflict is discarded: the registry keeps its first binding for
		// codeID, this wrapper still tags payloads with its own
		// codeID/clientType, and Submit does not report the conflict.
		_ = err
	}
	return &Chain{Chain: inner, codeID: codeID, clientType: clientType}
}

func (c *Chain) Kind() chain.Kind { return chain.Wrapped }

// ClientType reports the outer (wasm) client type rather than the inner
// chain's, since that is what the counterparty's light client is actually
// configured with.
func (c *Chain) ClientType() string { return c.clientType }

// Submit re-wraps each outgoing message per spec.md §4.1's table, then
// forwards to the inner chain's Submit.
func (c *Chain) Submit(ctx context.Context, msgs []*ibc.Message) (string, error) {
	wrapped := make([]*ibc.Message, len(msgs))
	for i, m := range msgs {
		wrapped[i] = c.rewrap(m)
	}
	return c.Chain.Submit(ctx, wrapped)
}

// rewrap applies the per-message-type wrapping rule. Messages not named in
// spec.md §4.1's table pass through unchanged, including ConnectionOpenTry
// (DESIGN.md Open Question 1: upstream leaves this wrapping commented out,
// so this module keeps it unwrapped rather than guessing).
func (c *Chain) rewrap(m *ibc.Message) *ibc.Message {
	out := *m
	switch m.Type {
	case ibc.MsgCreateClient:
		if m.Handshake != nil && m.Handshake.ClientState != nil {
			out.Handshake = cloneHandshake(m.Handshake)
			out.Handshake.ClientState = c.wrapClientState(m.Handshake.ClientState)
		}
		// The accompanying consensus state, when present on the same
		// message, is wrapped with InitialHeight=1 per spec.md §4.1's
		// table; this module carries consensus state on ClientMsg.Update
		// for CreateClient, wrapped the same way as an UpdateClient
		// header below, since both are "opaque light-client payload"
		// shapes at this layer.
		if m.ClientMsg != nil {
			out.ClientMsg = c.wrapClientMessage(m.ClientMsg, true)
		}
	case ibc.MsgUpdateClient:
		if m.ClientMsg != nil {
			out.ClientMsg = c.wrapClientMessage(m.ClientMsg, false)
		}
	case ibc.MsgConnectionOpenAck:
		if m.Handshake != nil && m.Handshake.ClientState != nil {
			out.Handshake = cloneHandshake(m.Handshake)
			out.Handshake.ClientState = c.wrapClientState(m.Handshake.ClientState)
		}
	case ibc.MsgConnectionOpenTry:
		// Pass through unchanged in this revision (spec.md §9, DESIGN.md
		// Open Question 1).
	}
	return &out
}

func (c *Chain) wrapClientState(cs *ibc.ClientState) *ibc.ClientState {
	payload := MetaPayload{CodeID: c.codeID, ClientType: c.clientType, Inner: cs.Raw}
	return &ibc.ClientState{
		ChainKind:    string(chain.Wrapped),
		LatestHeight: cs.LatestHeight,
		Frozen:       cs.Frozen,
		Raw:          encodeMetaPayload(payload),
	}
}

func (c *Chain) wrapClientMessage(msg *ibc.ClientMessage, isCreate bool) *ibc.ClientMessage {
	if msg.Kind == ibc.ClientMessageMisbehaviour && msg.Misbehaviour != nil {
		return &ibc.ClientMessage{
			Kind: ibc.ClientMessageMisbehaviour,
			Misbehaviour: &ibc.MisbehaviourEvidence{
				Height:   msg.Misbehaviour.Height,
				ClientID: msg.Misbehaviour.ClientID,
				ProofA:   c.wrapHeader(msg.Misbehaviour.ProofA, isCreate),
				ProofB:   c.wrapHeader(msg.Misbehaviour.ProofB, isCreate),
			},
		}
	}
	if msg.Update == nil {
		return msg
	}
	h := c.wrapHeader(*msg.Update, isCreate)
	return &ibc.ClientMessage{Kind: msg.Kind, Update: &h}
}

func (c *Chain) wrapHeader(h ibc.Header, isCreate bool) ibc.Header {
	payload := MetaPayload{CodeID: c.codeID, ClientType: c.clientType, Inner: h.Raw}
	if isCreate {
		payload.InitialHeight = height.New(0, 1)
	}
	return ibc.Header{ChainKind: string(chain.Wrapped), Height: h.Height, Raw: encodeMetaPayload(payload)}
}

func cloneHandshake(h *ibc.HandshakePayload) *ibc.HandshakePayload {
	cp := *h
	return &cp
}

const metaPayloadPrefix = "wasm:"

// encodeMetaPayload serializes the wasm meta-client envelope. A real
// adapter encodes this as the ICS-08 wasm wrapper protobuf; this module
// carries a pipe-delimited marker encoding since protobuf serialization of
// specific light-client messages is an external collaborator (spec.md §1).
func encodeMetaPayload(p MetaPayload) []byte {
	return []byte(fmt.Sprintf("%s%s|%s|%s|%s", metaPayloadPrefix, p.CodeID, p.ClientType, p.InitialHeight, hex.EncodeToString(p.Inner)))
}

// DecodeMetaPayload reverses encodeMetaPayload's marker encoding; ok is
// false for bytes that are not a meta payload. The client type is read from
// the payload itself; chain.GlobalCodeIDRegistry is not consulted.
func DecodeMetaPayload(raw []byte) (MetaPayload, bool) {
	s := strings.TrimPrefix(string(raw), metaPayloadPrefix)
	if s == string(raw) {
		return MetaPayload{}, false
	}
	parts := strings.SplitN(s, "|", 4)
	if len(parts) != 4 {
		return MetaPayload{}, false
	}
	inner, err := hex.DecodeString(parts[3])
	if err != nil {
		return MetaPayload{}, false
	}
	var rev, h uint64
	if _, err := fmt.Sscanf(parts[2], "%d-%d", &rev, &h); err != nil {
		return MetaPayload{}, false
	}
	return MetaPayload{
		CodeID:        parts[0],
		ClientType:    parts[1],
		InitialHeight: height.New(rev, h),
		Inner:         inner,
	}, true
}

var _ chain.Chain = (*Chain)(nil)
