package wrapper

import (
	"context"
	"testing"

	"github.com/lattice-relay/relay/pkg/chain"
	"github.com/lattice-relay/relay/pkg/height"
	"github.com/lattice-relay/relay/pkg/ibc"
)

type fakeChain struct {
	chain.Chain
	submitted []*ibc.Message
}

func (f *fakeChain) Submit(ctx context.Context, msgs []*ibc.Message) (string, error) {
	f.submitted = msgs
	return "tx-hash", nil
}

func TestSubmitWrapsCreateClientPayload(t *testing.T) {
	inner := &fakeChain{}
	w := New(inner, "code-1", "08-wasm")

	msg := &ibc.Message{
		Type: ibc.MsgCreateClient,
		Handshake: &ibc.HandshakePayload{
			ClientState: &ibc.ClientState{ChainKind: "parachain", LatestHeight: height.New(0, 10), Raw: []byte("inner-client-state")},
		},
		ClientMsg: &ibc.ClientMessage{Kind: ibc.ClientMessageNormalUpdate, Update: &ibc.Header{Raw: []byte("inner-consensus-state")}},
	}

	if _, err := w.Submit(context.Background(), []*ibc.Message{msg}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(inner.submitted) != 1 {
		t.Fatalf("expected one forwarded message, got %d", len(inner.submitted))
	}
	got := inner.submitted[0]

	if got.Handshake.ClientState.ChainKind != string(chain.Wrapped) {
		t.Errorf("wrapped client state ChainKind = %s, want %s", got.Handshake.ClientState.ChainKind, chain.Wrapped)
	}
	payload, ok := DecodeMetaPayload(got.Handshake.ClientState.Raw)
	if !ok {
		t.Fatal("expected the wrapped client state to decode as a meta payload")
	}
	if payload.CodeID != "code-1" || payload.ClientType != "08-wasm" {
		t.Errorf("unexpected meta payload: %+v", payload)
	}
	if string(payload.Inner) != "inner-client-state" {
		t.Errorf("Inner = %q, want %q", payload.Inner, "inner-client-state")
	}

	updatePayload, ok := DecodeMetaPayload(got.ClientMsg.Update.Raw)
	if !ok {
		t.Fatal("expected the wrapped consensus header to decode as a meta payload")
	}
	if updatePayload.InitialHeight != height.New(0, 1) {
		t.Errorf("InitialHeight = %v, want 0-1 for a CreateClient consensus state", updatePayload.InitialHeight)
	}
}

func TestSubmitWrapsUpdateClientHeaderWithoutInitialHeight(t *testing.T) {
	inner := &fakeChain{}
	w := New(inner, "code-2", "08-wasm")

	msg := &ibc.Message{
		Type:      ibc.MsgUpdateClient,
		ClientMsg: &ibc.ClientMessage{Kind: ibc.ClientMessageNormalUpdate, Update: &ibc.Header{Raw: []byte("header-bytes")}},
	}
	if _, err := w.Submit(context.Background(), []*ibc.Message{msg}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	got := inner.submitted[0]
	payload, ok := DecodeMetaPayload(got.ClientMsg.Update.Raw)
	if !ok {
		t.Fatal("expected a decodable meta payload")
	}
	if !payload.InitialHeight.IsZero() {
		t.Errorf("InitialHeight = %v, want zero for a plain UpdateClient header", payload.InitialHeight)
	}
}

func TestSubmitLeavesConnectionOpenTryUnwrapped(t *testing.T) {
	inner := &fakeChain{}
	w := New(inner, "code-3", "08-wasm")

	cs := &ibc.ClientState{Raw: []byte("plain")}
	msg := &ibc.Message{Type: ibc.MsgConnectionOpenTry, Handshake: &ibc.HandshakePayload{ClientState: cs}}
	if _, err := w.Submit(context.Background(), []*ibc.Message{msg}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	got := inner.submitted[0]
	if got.Handshake.ClientState != cs {
		t.Error("expected ConnectionOpenTry's client state to pass through unwrapped")
	}
}

func TestSubmitPassesThroughUnrelatedMessageTypes(t *testing.T) {
	inner := &fakeChain{}
	w := New(inner, "code-4", "08-wasm")

	msg := &ibc.Message{Type: ibc.MsgRecvPacket, Packet: &ibc.Packet{}}
	if _, err := w.Submit(context.Background(), []*ibc.Message{msg}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if inner.submitted[0].Type != ibc.MsgRecvPacket {
		t.Errorf("expected RecvPacket to pass through unchanged")
	}
}

func TestKindReportsWrapped(t *testing.T) {
	w := New(&fakeChain{}, "code-5", "08-wasm")
	if w.Kind() != chain.Wrapped {
		t.Errorf("Kind() = %s, want %s", w.Kind(), chain.Wrapped)
	}
	if w.ClientType() != "08-wasm" {
		t.Errorf("ClientType() = %s, want 08-wasm", w.ClientType())
	}
}

func TestDecodeMetaPayloadRejectsUnwrappedBytes(t *testing.T) {
	if _, ok := DecodeMetaPayload([]byte("not-a-meta-payload")); ok {
		t.Error("expected DecodeMetaPayload to reject bytes without the wasm: prefix")
	}
}
