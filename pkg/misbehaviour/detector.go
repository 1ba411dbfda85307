// Copyright 2025 Lattice Relay
//
// Misbehaviour detector: cross-checks every UpdateClient event observed on a
// destination against the source chain's own finality claim for that
// height, and escalates a mismatch as evidence (spec.md §4.6). Grounded on
// the teacher's consensus_coordinator.go
// (_examples/certenIO-certen-validator/pkg/batch/consensus_coordinator.go),
// which cross-checks independently-collected attestations for the same
// round and flags a conflict — the same "gather two independent claims,
// compare, escalate on mismatch" shape, here applied to finality proofs
// instead of validator attestations.

package misbehaviour

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/lattice-relay/relay/pkg/chain"
	"github.com/lattice-relay/relay/pkg/height"
	"github.com/lattice-relay/relay/pkg/ibc"
	"github.com/lattice-relay/relay/pkg/metrics"
)

// Detector watches one destination chain's UpdateClient events for evidence
// that another relayer submitted a header conflicting with source's own
// finality.
type Detector struct {
	source      chain.Chain
	destination chain.Chain
	logger      *log.Logger

	// selfSubmitted tags UpdateClient transaction hashes this process itself
	// produced, so the detector does not flag its own honest update as
	// conflicting while it is still round-tripping back through the event
	// stream (SUPPLEMENTED FEATURES in SPEC_FULL.md).
	mu            sync.Mutex
	selfSubmitted map[string]struct{}

	metrics *metrics.Registry
}

// New returns a Detector reading destination's UpdateClient events and
// cross-checking them against source's own finality.
func New(source, destination chain.Chain) *Detector {
	return &Detector{
		source:        source,
		destination:   destination,
		logger:        log.New(os.Stderr, "[MisbehaviourDetector] ", log.LstdFlags),
		selfSubmitted: make(map[string]struct{}),
	}
}

// SetMetrics attaches a metrics registry; nil is a valid no-op value (spec.md
// §6's prometheus_endpoint is optional).
func (d *Detector) SetMetrics(m *metrics.Registry) { d.metrics = m }

// NoteSelfSubmitted records a transaction hash this process submitted, so a
// later observation of the same UpdateClient event on the destination's
// event stream is not mistaken for another relayer's update.
func (d *Detector) NoteSelfSubmitted(txHash string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selfSubmitted[txHash] = struct{}{}
}

func (d *Detector) isSelf(txHash string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.selfSubmitted[txHash]
	return ok
}

// Watch consumes destination's IBC event stream and checks every
// UpdateClient event it did not itself emit, submitting evidence to
// destination when a conflict is found. It never returns on a per-event
// error: per spec.md §4.6, "when either proof is not retrievable, the
// detector logs and continues — never halts the relay."
func (d *Detector) Watch(ctx context.Context) error {
	events, err := d.destination.IBCEvents(ctx)
	if err != nil {
		return fmt.Errorf("misbehaviour: subscribe destination events: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Type != ibc.EventUpdateClient || ev.UpdateEvent == nil {
				continue
			}
			if d.isSelf(ev.UpdateEvent.TxHash) {
				continue
			}
			if err := d.Check(ctx, *ev.UpdateEvent); err != nil {
				d.logger.Printf("check %s at %s: %v", ev.UpdateEvent.ClientID, ev.UpdateEvent.Height, err)
			}
		}
	}
}

// Check implements spec.md §4.6 steps 1-3 for a single observed
// UpdateClient event.
func (d *Detector) Check(ctx context.Context, ev ibc.ClientUpdateEvent) error {
	submitted, err := d.destination.QueryClientMessage(ctx, ev)
	if err != nil {
		d.logger.Printf("query submitted client message: %v (continuing)", err)
		return nil
	}
	if submitted.Kind != ibc.ClientMessageNormalUpdate || submitted.Update == nil {
		// "Only the normal-update variant is checked" (spec.md §4.6).
		return nil
	}

	target := ev.Height
	latest, _, err := d.source.LatestHeightAndTimestamp(ctx)
	if err != nil {
		d.logger.Printf("query source latest height: %v (continuing)", err)
		return nil
	}
	if target.GT(latest) {
		target = latest
	}

	ownClaim, err := d.sourceFinalityAt(ctx, target)
	if err != nil {
		d.logger.Printf("query source finality at %s: %v (continuing)", target, err)
		return nil
	}

	if bytes.Equal(submitted.Update.Raw, ownClaim.Raw) {
		return nil
	}

	d.logger.Printf("misbehaviour: conflicting finality for %s at %s", ev.ClientID, target)
	if d.metrics != nil {
		d.metrics.MisbehaviourEvents.WithLabelValues(d.source.Name(), d.destination.Name()).Inc()
	}
	evidence := &ibc.ClientMessage{
		Kind: ibc.ClientMessageMisbehaviour,
		Misbehaviour: &ibc.MisbehaviourEvidence{
			Height:   target,
			ClientID: ev.ClientID,
			ProofA:   *submitted.Update,
			ProofB:   ownClaim,
		},
	}
	msg := &ibc.Message{
		Type:      ibc.MsgUpdateClient,
		Signer:    d.destination.AccountID(),
		ClientID:  ev.ClientID,
		ClientMsg: evidence,
	}
	txHash, err := d.destination.Submit(ctx, []*ibc.Message{msg})
	if err != nil {
		return fmt.Errorf("submit misbehaviour evidence: %w", err)
	}
	d.NoteSelfSubmitted(txHash)
	return nil
}

// sourceFinalityAt fetches source's own claim of its finality at h, as a
// Header comparable against the client message the counterparty accepted.
func (d *Detector) sourceFinalityAt(ctx context.Context, h height.Height) (ibc.Header, error) {
	cs, err := d.source.QueryConsensusState(ctx, h, d.source.ClientID(), h)
	if err != nil {
		return ibc.Header{}, err
	}
	return ibc.Header{ChainKind: string(d.source.Kind()), Height: h, Raw: cs.Root}, nil
}
