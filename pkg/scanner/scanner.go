// Copyright 2025 Lattice Relay
//
// Packet scanner: enumerates sends/acks/timeouts needing relay on one
// channel whitelist, against a destination view (spec.md §4.3). Grounded on
// the teacher's batch collector (pkg/batch/collector.go), which walks a set
// of pending items and classifies each into an outcome bucket under a
// shared mutex-free pass; here the "items" are outstanding packet
// sequences and the "buckets" are Recv/Timeout/Acknowledgement/
// TimeoutOnClose. Per-channel scan failures are aggregated with
// go.uber.org/multierr rather than aborting the whole sweep, mirroring the
// teacher's per-batch partial-failure tolerance.

package scanner

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/lattice-relay/relay/pkg/chain"
	"github.com/lattice-relay/relay/pkg/height"
	"github.com/lattice-relay/relay/pkg/ibc"
)

// Scheduled is one packet-lifecycle message this scan determined is ready to
// build (spec.md §4.3 step 3's "defer to a later iteration" case is simply
// omitted from the result, not returned as an error).
type Scheduled struct {
	Kind   ibc.MessageType // MsgRecvPacket | MsgTimeoutPacket | MsgAcknowledgePacket | MsgTimeoutOnClose
	Packet ibc.Packet
	Ack    []byte
}

// Scanner walks source's whitelisted channels at a finalized height and
// classifies outstanding packet work against destination's current view.
type Scanner struct {
	source      chain.Chain
	destination chain.Chain
}

// New returns a Scanner reading sends from source and gating against
// destination.
func New(source, destination chain.Chain) *Scanner {
	return &Scanner{source: source, destination: destination}
}

// Scan implements spec.md §4.3 steps 1-7 for every (channel, port) on
// source's whitelist that is also present in destination's whitelist — the
// "consulted both ways" double check from SPEC_FULL's supplemented
// features, since a packet relayed to a destination outside its own
// whitelist would violate spec.md §3's whitelist invariant even if source's
// side allowed it.
func (s *Scanner) Scan(ctx context.Context, sourceHeight height.Height) ([]Scheduled, error) {
	destFilters := make(map[chain.ChannelFilter]struct{})
	for _, f := range s.destination.ChannelWhitelist() {
		destFilters[f] = struct{}{}
	}

	var (
		out      []Scheduled
		scanErrs error
	)
	for _, f := range s.source.ChannelWhitelist() {
		if _, ok := destFilters[f]; !ok {
			continue
		}
		scheduled, err := s.scanChannel(ctx, sourceHeight, f)
		if err != nil {
			scanErrs = multierr.Append(scanErrs, fmt.Errorf("scanner: channel %s/%s: %w", f.PortID, f.ChannelID, err))
			continue
		}
		out = append(out, scheduled...)
	}
	return out, scanErrs
}

func (s *Scanner) scanChannel(ctx context.Context, sourceHeight height.Height, f chain.ChannelFilter) ([]Scheduled, error) {
	var out []Scheduled

	destHeight, destTime, err := s.destination.LatestHeightAndTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest destination height: %w", err)
	}

	destChannel, err := s.destination.QueryChannelEnd(ctx, destHeight, f.PortID, f.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("destination channel end: %w", err)
	}
	destPort, destChanID := destChannel.CounterpartyPort, destChannel.CounterpartyChan
	if destChanID == "" {
		destChanID = f.ChannelID
	}
	if destPort == "" {
		destPort = f.PortID
	}

	conn, err := s.destination.QueryConnectionEnd(ctx, destHeight, destChannel.ConnectionID)
	if err != nil {
		return nil, fmt.Errorf("destination connection end: %w", err)
	}

	sourceTime, err := s.source.QueryTimestampAt(ctx, sourceHeight)
	if err != nil {
		return nil, fmt.Errorf("source timestamp at %s: %w", sourceHeight, err)
	}

	commitments, err := s.source.QueryPacketCommitments(ctx, sourceHeight, f.PortID, f.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("query packet commitments: %w", err)
	}
	unreceived, err := s.destination.QueryUnreceivedPackets(ctx, destHeight, destPort, destChanID, commitments)
	if err != nil {
		return nil, fmt.Errorf("query unreceived packets: %w", err)
	}

	for _, seq := range unreceived {
		pkt, err := s.loadSendPacket(ctx, s.source, sourceHeight, f.PortID, f.ChannelID, f.PortID, f.ChannelID, destPort, destChanID, seq)
		if err != nil {
			return nil, fmt.Errorf("load send packet %d: %w", seq, err)
		}
		if pkt.TimedOut(destHeight, destTime) {
			out = append(out, Scheduled{Kind: ibc.MsgTimeoutPacket, Packet: pkt})
			continue
		}
		if !delayElapsed(conn, sourceHeight, sourceTime, destHeight, destTime) {
			// spec.md §4.3 step 3: defer to a later iteration.
			continue
		}
		out = append(out, Scheduled{Kind: ibc.MsgRecvPacket, Packet: pkt})
	}

	// The acknowledgements written on source are for packets source
	// *received from* destination, not for source's own outstanding sends
	// (spec.md §4.3 step 4) — the candidate sequence set is destination's
	// commitments, never source's.
	destCommitments, err := s.destination.QueryPacketCommitments(ctx, destHeight, destPort, destChanID)
	if err != nil {
		return nil, fmt.Errorf("query destination packet commitments: %w", err)
	}
	acks, err := s.source.QueryPacketAcknowledgements(ctx, sourceHeight, f.PortID, f.ChannelID, destCommitments)
	if err != nil {
		return nil, fmt.Errorf("query packet acknowledgements: %w", err)
	}
	unrecvAcks, err := s.destination.QueryUnreceivedAcknowledgements(ctx, destHeight, destPort, destChanID, acks)
	if err != nil {
		return nil, fmt.Errorf("query unreceived acknowledgements: %w", err)
	}
	for _, seq := range unrecvAcks {
		// The packet being acknowledged was originally sent by destination,
		// so its record lives there, keyed by destination's local channel
		// identifiers; the fingerprint destined for msgbuilder's ack-proof
		// query still uses source's own port/channel (that's where the ack
		// commitment itself is stored).
		pkt, err := s.loadSendPacket(ctx, s.destination, destHeight, destPort, destChanID, f.PortID, f.ChannelID, destPort, destChanID, seq)
		if err != nil {
			return nil, fmt.Errorf("load acked packet %d: %w", seq, err)
		}
		out = append(out, Scheduled{Kind: ibc.MsgAcknowledgePacket, Packet: pkt})
	}

	if destChannel.State == ibc.ChannelCloseInitiated || destChannel.State == ibc.ChannelClosed {
		for _, seq := range commitments {
			pkt, err := s.loadSendPacket(ctx, s.source, sourceHeight, f.PortID, f.ChannelID, f.PortID, f.ChannelID, destPort, destChanID, seq)
			if err != nil {
				return nil, fmt.Errorf("load packet %d for timeout-on-close: %w", seq, err)
			}
			out = append(out, Scheduled{Kind: ibc.MsgTimeoutOnClose, Packet: pkt})
		}
	}

	return orderScheduled(out), nil
}

// loadSendPacket reconstructs the full packet record for seq via
// Chain.QuerySendPacket (spec.md §4.3 step 3), so TimedOut and the message
// builder see the real payload data and timeout fields instead of a
// fabricated zero packet. origin is whichever chain actually holds the send
// record (source for its own sends, destination for packets source is
// acknowledging); originPort/originChannel are origin's local identifiers
// for that channel. The fingerprint is then stamped with
// fingerprintPort/fingerprintChannel, which are always source's own local
// identifiers — the pair msgbuilder's proof queries key against, regardless
// of which chain originally sent the packet.
func (s *Scanner) loadSendPacket(ctx context.Context, origin chain.Chain, originHeight height.Height, originPort, originChannel, fingerprintPort, fingerprintChannel, destPort, destChannel string, seq uint64) (ibc.Packet, error) {
	pkt, err := origin.QuerySendPacket(ctx, originHeight, originPort, originChannel, seq)
	if err != nil {
		return ibc.Packet{}, err
	}
	pkt.PacketFingerprint = ibc.PacketFingerprint{
		SourcePort:    fingerprintPort,
		SourceChannel: fingerprintChannel,
		Sequence:      seq,
	}
	pkt.DestPort, pkt.DestChannel = destPort, destChannel
	return pkt, nil
}

// delayElapsed implements spec.md §3's connection-delay invariant: a packet
// proven at source height h with source timestamp t may only be relayed
// once destHeight >= h + delay_blocks AND destTimeNano >= t + delay_time.
func delayElapsed(conn *ibc.ConnectionEnd, proofHeight height.Height, sourceTimeNano uint64, destHeight height.Height, destTimeNano uint64) bool {
	if !destHeight.GTE(proofHeight.Add(conn.DelayBlocks)) {
		return false
	}
	return destTimeNano >= sourceTimeNano+conn.DelayTime
}

// orderScheduled applies spec.md §4.2's packet ordering rule: Timeouts,
// Acknowledgements, Receives within a channel, ascending sequence within
// each category.
func orderScheduled(in []Scheduled) []Scheduled {
	rank := func(k ibc.MessageType) int {
		switch k {
		case ibc.MsgTimeoutPacket, ibc.MsgTimeoutOnClose:
			return 0
		case ibc.MsgAcknowledgePacket:
			return 1
		case ibc.MsgRecvPacket:
			return 2
		default:
			return 3
		}
	}
	out := make([]Scheduled, len(in))
	copy(out, in)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			a, b := out[j-1], out[j]
			if rank(a.Kind) < rank(b.Kind) {
				break
			}
			if rank(a.Kind) == rank(b.Kind) && a.Packet.Sequence <= b.Packet.Sequence {
				break
			}
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
