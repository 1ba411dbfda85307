package evmlike

import (
	"context"
	"testing"

	"github.com/lattice-relay/relay/pkg/height"
	"github.com/lattice-relay/relay/pkg/ibc"
)

func TestStorageSlotsAreStableAndDistinct(t *testing.T) {
	a := commitmentSlot("transfer", "channel-0", 1)
	b := commitmentSlot("transfer", "channel-0", 1)
	if a != b {
		t.Error("commitmentSlot should be deterministic for the same inputs")
	}
	if commitmentSlot("transfer", "channel-0", 1) == commitmentSlot("transfer", "channel-0", 2) {
		t.Error("commitmentSlot should differ by sequence")
	}
	if commitmentSlot("transfer", "channel-0", 1) == receiptSlot("transfer", "channel-0", 1) {
		t.Error("commitmentSlot and receiptSlot must not collide for the same (port, channel, seq)")
	}
	if receiptSlot("transfer", "channel-0", 1) == ackSlot("transfer", "channel-0", 1) {
		t.Error("receiptSlot and ackSlot must not collide")
	}
	if nextSeqRecvSlot("transfer", "channel-0") == nextSeqRecvSlot("transfer", "channel-1") {
		t.Error("nextSeqRecvSlot should differ by channel")
	}
}

func TestEncodedMessagesKeepsOnlyClientUpdatePayloads(t *testing.T) {
	msgs := []*ibc.Message{
		{Type: ibc.MsgUpdateClient, ClientMsg: &ibc.ClientMessage{Update: &ibc.Header{Raw: []byte("header-a")}}},
		{Type: ibc.MsgRecvPacket, Packet: &ibc.Packet{}},
		{Type: ibc.MsgCreateClient, ClientMsg: &ibc.ClientMessage{Update: &ibc.Header{Raw: []byte("header-b")}}},
	}
	out := encodedMessages(msgs)
	if len(out) != 2 {
		t.Fatalf("expected 2 encoded entries, got %d", len(out))
	}
	if string(out[0]) != "header-a" || string(out[1]) != "header-b" {
		t.Errorf("unexpected encoded payloads: %q", out)
	}
}

func TestEstimateWeightScalesWithMessageCount(t *testing.T) {
	c := &Chain{}
	w0, err := c.EstimateWeight(context.Background(), nil)
	if err != nil {
		t.Fatalf("EstimateWeight: %v", err)
	}
	if w0 != 0 {
		t.Errorf("EstimateWeight(nil) = %d, want 0", w0)
	}
	w3, err := c.EstimateWeight(context.Background(), []*ibc.Message{{}, {}, {}})
	if err != nil {
		t.Fatalf("EstimateWeight: %v", err)
	}
	if w3 != 3*150_000 {
		t.Errorf("EstimateWeight(3 msgs) = %d, want %d", w3, 3*150_000)
	}
}

func TestIsUpdateRequiredOnlyWhenAhead(t *testing.T) {
	c := &Chain{}
	if c.IsUpdateRequired(height.New(0, 10), height.New(0, 10)) {
		t.Error("IsUpdateRequired should be false when counterparty already sees our latest height")
	}
	if !c.IsUpdateRequired(height.New(0, 11), height.New(0, 10)) {
		t.Error("IsUpdateRequired should be true when we are ahead of the counterparty's view")
	}
	if c.IsUpdateRequired(height.New(0, 9), height.New(0, 10)) {
		t.Error("IsUpdateRequired should be false when we are behind the counterparty's view")
	}
}

func TestSubmitRequiresHandlerAddressAndSignerKey(t *testing.T) {
	c := &Chain{cfg: Config{Name: "test-evm"}}
	_, err := c.Submit(context.Background(), []*ibc.Message{})
	if err == nil {
		t.Fatal("Submit: expected an error when handler address/signer key are unset")
	}
}
