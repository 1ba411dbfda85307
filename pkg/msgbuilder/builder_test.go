package msgbuilder

import (
	"context"
	"testing"

	"github.com/lattice-relay/relay/pkg/chain"
	"github.com/lattice-relay/relay/pkg/height"
	"github.com/lattice-relay/relay/pkg/ibc"
)

// fakeChain implements only the chain.Chain methods the builder calls; every
// other method panics via the nil embedded interface if a test exercises a
// path that shouldn't reach it.
type fakeChain struct {
	chain.Chain
	name      string
	clientID  string
	accountID string

	connEnd     *ibc.ConnectionEnd
	clientState *ibc.ClientState
	channelEnd  *ibc.ChannelEnd
	rawProof    *ibc.ProofBundle
	commitment  *ibc.ProofBundle
	receipt     *ibc.ProofBundle
	receiptErr  error
	ackProof    *ibc.ProofBundle
}

func (f *fakeChain) Name() string      { return f.name }
func (f *fakeChain) ClientID() string  { return f.clientID }
func (f *fakeChain) AccountID() string { return f.accountID }

func (f *fakeChain) QueryConnectionEnd(ctx context.Context, at height.Height, connectionID string) (*ibc.ConnectionEnd, error) {
	return f.connEnd, nil
}

func (f *fakeChain) QueryClientState(ctx context.Context, at height.Height, clientID string) (*ibc.ClientState, error) {
	return f.clientState, nil
}

func (f *fakeChain) QueryChannelEnd(ctx context.Context, at height.Height, portID, channelID string) (*ibc.ChannelEnd, error) {
	return f.channelEnd, nil
}

func (f *fakeChain) QueryRawProof(ctx context.Context, at height.Height, key []byte) (*ibc.ProofBundle, error) {
	return f.rawProof, nil
}

func (f *fakeChain) QueryPacketCommitment(ctx context.Context, at height.Height, portID, channelID string, seq uint64) (*ibc.ProofBundle, error) {
	return f.commitment, nil
}

func (f *fakeChain) QueryPacketReceipt(ctx context.Context, at height.Height, portID, channelID string, seq uint64) (*ibc.ProofBundle, error) {
	return f.receipt, f.receiptErr
}

func (f *fakeChain) QueryPacketAcknowledgement(ctx context.Context, at height.Height, portID, channelID string, seq uint64) (*ibc.ProofBundle, error) {
	return f.ackProof, nil
}

func TestClientUpdateRoutesToDestination(t *testing.T) {
	dest := &fakeChain{clientID: "07-tendermint-1", accountID: "dest-signer"}
	b := New(&fakeChain{}, dest)

	msg := &ibc.ClientMessage{Kind: ibc.ClientMessageNormalUpdate}
	out := b.ClientUpdate(msg)

	if out.Type != ibc.MsgUpdateClient {
		t.Errorf("Type = %s, want MsgUpdateClient", out.Type)
	}
	if out.Signer != "dest-signer" || out.ClientID != "07-tendermint-1" {
		t.Errorf("unexpected routing: signer=%s clientID=%s", out.Signer, out.ClientID)
	}
	if out.ClientMsg != msg {
		t.Error("ClientMsg should be the same value passed in")
	}
}

func TestRecvBuildsProofCarryingMessage(t *testing.T) {
	src := &fakeChain{commitment: &ibc.ProofBundle{Key: []byte("commitment-key")}}
	dest := &fakeChain{clientID: "client-b", accountID: "dest-signer"}
	b := New(src, dest)

	pkt := ibc.Packet{PacketFingerprint: ibc.PacketFingerprint{SourcePort: "transfer", SourceChannel: "channel-0", Sequence: 5}}
	at := height.New(0, 100)

	msg, err := b.Recv(context.Background(), pkt, at)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if msg.Type != ibc.MsgRecvPacket {
		t.Errorf("Type = %s, want MsgRecvPacket", msg.Type)
	}
	if msg.Proof != src.commitment {
		t.Error("expected the source's commitment proof to be attached")
	}
	if msg.ProofHeight != at {
		t.Errorf("ProofHeight = %v, want %v", msg.ProofHeight, at)
	}
	if msg.Packet.Sequence != 5 {
		t.Errorf("Packet.Sequence = %d, want 5", msg.Packet.Sequence)
	}
}

func TestTimeoutToleratesMissingReceipt(t *testing.T) {
	dest := &fakeChain{receiptErr: chain.ErrNotFound}
	src := &fakeChain{clientID: "client-a", accountID: "src-signer"}
	b := New(src, dest)

	pkt := ibc.Packet{PacketFingerprint: ibc.PacketFingerprint{SourcePort: "transfer", SourceChannel: "channel-0", Sequence: 7}}
	msg, err := b.Timeout(context.Background(), pkt, height.New(0, 50), 0)
	if err != nil {
		t.Fatalf("Timeout: unexpected error for a not-found receipt: %v", err)
	}
	if msg.Type != ibc.MsgTimeoutPacket {
		t.Errorf("Type = %s, want MsgTimeoutPacket", msg.Type)
	}
	if msg.Signer != "src-signer" || msg.ClientID != "client-a" {
		t.Errorf("Timeout should route back to source: signer=%s clientID=%s", msg.Signer, msg.ClientID)
	}
}

func TestAcknowledgementCarriesAckBytes(t *testing.T) {
	src := &fakeChain{ackProof: &ibc.ProofBundle{Key: []byte("ack-key")}}
	dest := &fakeChain{clientID: "client-b", accountID: "dest-signer"}
	b := New(src, dest)

	pkt := ibc.Packet{PacketFingerprint: ibc.PacketFingerprint{SourcePort: "transfer", SourceChannel: "channel-0", Sequence: 9}}
	msg, err := b.Acknowledgement(context.Background(), pkt, []byte("ack-payload"), height.New(0, 10))
	if err != nil {
		t.Fatalf("Acknowledgement: %v", err)
	}
	if string(msg.Ack) != "ack-payload" {
		t.Errorf("Ack = %q, want %q", msg.Ack, "ack-payload")
	}
	if msg.Proof != src.ackProof {
		t.Error("expected the source's ack proof to be attached")
	}
}

func TestHandshakeStepRejectsNonHandshakeEvent(t *testing.T) {
	b := New(&fakeChain{}, &fakeChain{})
	_, err := b.HandshakeStep(context.Background(), ibc.Event{Type: ibc.EventSendPacket}, height.New(0, 1))
	if err == nil {
		t.Fatal("expected an error for a non-handshake event type")
	}
}
