package scanner

import (
	"context"
	"errors"
	"testing"

	"github.com/lattice-relay/relay/pkg/chain"
	"github.com/lattice-relay/relay/pkg/height"
	"github.com/lattice-relay/relay/pkg/ibc"
)

func scheduled(kind ibc.MessageType, seq uint64) Scheduled {
	return Scheduled{Kind: kind, Packet: ibc.Packet{PacketFingerprint: ibc.PacketFingerprint{Sequence: seq}}}
}

// fakeChain overrides only the chain.Chain methods scanChannel calls; a
// channel on its whitelist must match across both source and destination for
// Scan to consult it at all.
type fakeChain struct {
	chain.Chain
	whitelist    []chain.ChannelFilter
	latestHeight height.Height
	latestTime   uint64
	timestampAt  uint64
	channelEnd   *ibc.ChannelEnd
	connEnd      *ibc.ConnectionEnd

	commitments []uint64
	unreceived  []uint64
	acks        []uint64
	unrecvAcks  []uint64

	sendPackets map[uint64]ibc.Packet
	sendErr     error

	ackSeqsQueried []uint64
}

func (f *fakeChain) ChannelWhitelist() []chain.ChannelFilter { return f.whitelist }

func (f *fakeChain) LatestHeightAndTimestamp(ctx context.Context) (height.Height, uint64, error) {
	return f.latestHeight, f.latestTime, nil
}

func (f *fakeChain) QueryChannelEnd(ctx context.Context, at height.Height, portID, channelID string) (*ibc.ChannelEnd, error) {
	return f.channelEnd, nil
}

func (f *fakeChain) QueryConnectionEnd(ctx context.Context, at height.Height, connectionID string) (*ibc.ConnectionEnd, error) {
	return f.connEnd, nil
}

func (f *fakeChain) QueryTimestampAt(ctx context.Context, at height.Height) (uint64, error) {
	return f.timestampAt, nil
}

func (f *fakeChain) QueryPacketCommitments(ctx context.Context, at height.Height, portID, channelID string) ([]uint64, error) {
	return f.commitments, nil
}

func (f *fakeChain) QueryUnreceivedPackets(ctx context.Context, at height.Height, portID, channelID string, seqs []uint64) ([]uint64, error) {
	return f.unreceived, nil
}

func (f *fakeChain) QueryPacketAcknowledgements(ctx context.Context, at height.Height, portID, channelID string, seqs []uint64) ([]uint64, error) {
	f.ackSeqsQueried = append([]uint64{}, seqs...)
	return f.acks, nil
}

func (f *fakeChain) QueryUnreceivedAcknowledgements(ctx context.Context, at height.Height, portID, channelID string, seqs []uint64) ([]uint64, error) {
	return f.unrecvAcks, nil
}

func (f *fakeChain) QuerySendPacket(ctx context.Context, at height.Height, portID, channelID string, seq uint64) (ibc.Packet, error) {
	if f.sendErr != nil {
		return ibc.Packet{}, f.sendErr
	}
	return f.sendPackets[seq], nil
}

func testFilter() chain.ChannelFilter {
	return chain.ChannelFilter{PortID: "transfer", ChannelID: "channel-0"}
}

func TestOrderScheduledGroupsByRankThenSequence(t *testing.T) {
	in := []Scheduled{
		scheduled(ibc.MsgRecvPacket, 3),
		scheduled(ibc.MsgTimeoutPacket, 2),
		scheduled(ibc.MsgAcknowledgePacket, 1),
		scheduled(ibc.MsgRecvPacket, 1),
		scheduled(ibc.MsgTimeoutOnClose, 5),
	}
	out := orderScheduled(in)

	wantKinds := []ibc.MessageType{
		ibc.MsgTimeoutPacket, ibc.MsgTimeoutOnClose,
		ibc.MsgAcknowledgePacket,
		ibc.MsgRecvPacket, ibc.MsgRecvPacket,
	}
	if len(out) != len(wantKinds) {
		t.Fatalf("expected %d entries, got %d", len(wantKinds), len(out))
	}
	for i, k := range wantKinds {
		if out[i].Kind != k {
			t.Errorf("entry %d: got kind %s, want %s", i, out[i].Kind, k)
		}
	}
	// Within the Recv bucket, ascending sequence.
	if out[3].Packet.Sequence != 1 || out[4].Packet.Sequence != 3 {
		t.Errorf("expected ascending sequence within Recv bucket, got %d then %d", out[3].Packet.Sequence, out[4].Packet.Sequence)
	}
}

func TestOrderScheduledLeavesEmptyInputEmpty(t *testing.T) {
	if out := orderScheduled(nil); len(out) != 0 {
		t.Fatalf("expected empty output for empty input, got %v", out)
	}
}

func TestScanAckCandidatesComeFromDestinationCommitmentsNotSourceOwnSends(t *testing.T) {
	source := &fakeChain{
		whitelist:   []chain.ChannelFilter{testFilter()},
		commitments: []uint64{10}, // source's own outstanding sends; must NOT be used as the ack filter
		acks:        []uint64{7},
		sendPackets: map[uint64]ibc.Packet{},
	}
	dest := &fakeChain{
		whitelist:   []chain.ChannelFilter{testFilter()},
		channelEnd:  &ibc.ChannelEnd{State: ibc.ChannelOpen},
		connEnd:     &ibc.ConnectionEnd{},
		commitments: []uint64{7}, // destination's own sends: the correct ack candidate set
		unrecvAcks:  []uint64{7},
		sendPackets: map[uint64]ibc.Packet{7: {Data: []byte("payload")}},
	}

	s := New(source, dest)
	out, err := s.Scan(context.Background(), height.New(0, 1))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(source.ackSeqsQueried) != 1 || source.ackSeqsQueried[0] != 7 {
		t.Fatalf("expected ack query filtered by destination's commitments [7], got %v", source.ackSeqsQueried)
	}
	if len(out) != 1 || out[0].Kind != ibc.MsgAcknowledgePacket || out[0].Packet.Sequence != 7 {
		t.Fatalf("expected one AcknowledgePacket for sequence 7, got %+v", out)
	}
	if string(out[0].Packet.Data) != "payload" {
		t.Errorf("expected the real packet data loaded via QuerySendPacket, got %q", out[0].Packet.Data)
	}
}

func TestScanAppliesRealTimeoutFromQuerySendPacket(t *testing.T) {
	source := &fakeChain{
		whitelist:   []chain.ChannelFilter{testFilter()},
		sendPackets: map[uint64]ibc.Packet{5: {TimeoutHeight: height.New(0, 50)}},
	}
	dest := &fakeChain{
		whitelist:    []chain.ChannelFilter{testFilter()},
		unreceived:   []uint64{5},
		channelEnd:   &ibc.ChannelEnd{State: ibc.ChannelOpen},
		connEnd:      &ibc.ConnectionEnd{},
		latestHeight: height.New(0, 100), // past the packet's TimeoutHeight of 50
	}

	s := New(source, dest)
	out, err := s.Scan(context.Background(), height.New(0, 1))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(out) != 1 || out[0].Kind != ibc.MsgTimeoutPacket {
		t.Fatalf("expected a real timeout decision from the queried send packet, got %+v", out)
	}
}

func TestScanSurfacesSendPacketQueryFailureAsChannelError(t *testing.T) {
	source := &fakeChain{
		whitelist:  []chain.ChannelFilter{testFilter()},
		sendErr:    chain.ErrUnsupportedOperation,
	}
	dest := &fakeChain{
		whitelist:  []chain.ChannelFilter{testFilter()},
		unreceived: []uint64{5},
		channelEnd: &ibc.ChannelEnd{State: ibc.ChannelOpen},
		connEnd:    &ibc.ConnectionEnd{},
	}

	s := New(source, dest)
	_, err := s.Scan(context.Background(), height.New(0, 1))
	if !errors.Is(err, chain.ErrUnsupportedOperation) {
		t.Fatalf("expected Scan to surface the send-packet query failure, got %v", err)
	}
}

func TestDelayElapsed(t *testing.T) {
	conn := &ibc.ConnectionEnd{DelayBlocks: 10, DelayTime: 1000}
	proofHeight := height.New(0, 100)

	tests := []struct {
		name           string
		destHeight     height.Height
		sourceTimeNano uint64
		destTimeNano   uint64
		want           bool
	}{
		{"neither elapsed", height.New(0, 105), 500, 1200, false},
		{"height not yet elapsed", height.New(0, 109), 500, 2000, false},
		{"time not yet elapsed", height.New(0, 110), 500, 1000, false},
		{"both elapsed at boundary", height.New(0, 110), 500, 1500, true},
		{"both elapsed well past", height.New(0, 200), 500, 5000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := delayElapsed(conn, proofHeight, tt.sourceTimeNano, tt.destHeight, tt.destTimeNano); got != tt.want {
				t.Errorf("delayElapsed() = %v, want %v", got, tt.want)
			}
		})
	}
}
