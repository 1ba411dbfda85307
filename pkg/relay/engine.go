// Copyright 2025 Lattice Relay
//
// Relay engine: couples two chain handles and drives the two-way finality
// pipeline (spec.md §4.7). Grounded on the teacher's processor.go
// (_examples/certenIO-certen-validator/pkg/batch/processor.go), which runs
// one long-lived goroutine per stage of the anchor pipeline coordinated
// through channels and a shared logger; this package keeps that "N
// long-running goroutines, cancelled together" shape via
// golang.org/x/sync/errgroup, the idiomatic replacement for the teacher's
// hand-rolled sync.WaitGroup + error channel, for the engine's per-direction
// and auxiliary tasks.

package relay

import (
	"context"
	"fmt"
	"log"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/lattice-relay/relay/pkg/chain"
	"github.com/lattice-relay/relay/pkg/classify"
	"github.com/lattice-relay/relay/pkg/ibc"
	"github.com/lattice-relay/relay/pkg/metrics"
	"github.com/lattice-relay/relay/pkg/misbehaviour"
	"github.com/lattice-relay/relay/pkg/msgbuilder"
	"github.com/lattice-relay/relay/pkg/scanner"
	"github.com/lattice-relay/relay/pkg/statecache"
	"github.com/lattice-relay/relay/pkg/submitter"
)

// Options configures the engine's operator-facing policy knobs (spec.md
// §6's common options).
type Options struct {
	SkipOptionalClientUpdates bool
	MaxPacketsToProcess       uint32
	Submitter                 submitter.Config
}

// DefaultOptions returns the engine's default policy.
func DefaultOptions() Options {
	return Options{
		MaxPacketsToProcess: 100,
		Submitter:           submitter.DefaultConfig(),
	}
}

// Engine couples chain A and chain B and runs the two symmetric relay tasks
// plus the auxiliary misbehaviour-watching tasks (spec.md §4.7).
type Engine struct {
	a, b    chain.Chain
	opts    Options
	logger  *log.Logger
	subAB   *submitter.Submitter
	subBA   *submitter.Submitter
	detAB   *misbehaviour.Detector // watches B's view of A
	detBA   *misbehaviour.Detector // watches A's view of B
	metrics *metrics.Registry
	cache   *statecache.Store // optional: nil disables scan-position caching
}

// New returns an Engine for the chain pair (a, b). m may be nil, in which
// case metrics are not recorded (core.prometheus_endpoint unset, spec.md
// §6). Attach a cache with SetCache to skip re-scanning heights already
// recorded from a prior run.
func New(a, b chain.Chain, opts Options, m *metrics.Registry) *Engine {
	detAB := misbehaviour.New(a, b)
	detBA := misbehaviour.New(b, a)
	detAB.SetMetrics(m)
	detBA.SetMetrics(m)
	subAB := submitter.New(b, opts.Submitter)
	subBA := submitter.New(a, opts.Submitter)
	subAB.SetMetrics(m)
	subBA.SetMetrics(m)
	return &Engine{
		a:       a,
		b:       b,
		opts:    opts,
		logger:  log.New(os.Stderr, "[RelayEngine] ", log.LstdFlags),
		subAB:   subAB,
		subBA:   subBA,
		detAB:   detAB,
		detBA:   detBA,
		metrics: m,
	}
}

// SetCache attaches the optional last-observed-height cache (spec.md §6).
func (e *Engine) SetCache(c *statecache.Store) { e.cache = c }

// Run starts the two directional relay tasks and the two misbehaviour
// watchers, and blocks until ctx is cancelled or one task returns a fatal
// (logic-invariant) error (spec.md §5: "Cancellation: tasks are cancellable
// at any suspension point").
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return e.direction(gctx, e.a, e.b, e.subAB, e.detAB) })
	g.Go(func() error { return e.direction(gctx, e.b, e.a, e.subBA, e.detBA) })
	g.Go(func() error { return e.detAB.Watch(gctx) })
	g.Go(func() error { return e.detBA.Watch(gctx) })

	return g.Wait()
}

// direction runs one half of spec.md §4.7's loop: consume source's finality
// notifications, run the pipeline (spec.md §4.2), submit to destination.
func (e *Engine) direction(ctx context.Context, source, destination chain.Chain, sub *submitter.Submitter, det *misbehaviour.Detector) error {
	events, err := source.FinalityNotifications(ctx)
	if err != nil {
		return fmt.Errorf("relay: %s finality notifications: %w", source.Name(), err)
	}
	builder := msgbuilder.New(source, destination)
	scan := scanner.New(source, destination)

	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-events:
			if !ok {
				return nil
			}
			if e.metrics != nil {
				e.metrics.LatestSourceHeight.WithLabelValues(source.Name()).Set(float64(f.Height.RevisionHeight))
			}
			if e.cache != nil {
				if rn, rh, cached, cerr := e.cache.LastScanned(ctx, source.Name(), destination.Name()); cerr == nil && cached {
					if f.Height.RevisionNumber == rn && f.Height.RevisionHeight <= rh {
						continue
					}
				}
			}
			if err := e.runPipeline(ctx, f, source, destination, builder, scan, sub, det); err != nil {
				kind := classify.Classify(err)
				if kind.Fatal() {
					return fmt.Errorf("relay: %s->%s: %w", source.Name(), destination.Name(), err)
				}
				e.logger.Printf("%s->%s: %v (classified %s, continuing)", source.Name(), destination.Name(), err, kind)
				continue
			}
			if e.cache != nil {
				if cerr := e.cache.RecordScanned(ctx, source.Name(), destination.Name(), f.Height.RevisionNumber, f.Height.RevisionHeight); cerr != nil {
					e.logger.Printf("record scan position: %v", cerr)
				}
			}
		}
	}
}

// runPipeline implements spec.md §4.2 steps 1-7 for one finality event.
func (e *Engine) runPipeline(ctx context.Context, f ibc.FinalityEvent, source, destination chain.Chain, builder *msgbuilder.Builder, scan *scanner.Scanner, sub *submitter.Submitter, det *misbehaviour.Detector) error {
	clientMsg, events, updateType, err := source.QueryLatestIBCEvents(ctx, f, destination)
	if err != nil {
		return fmt.Errorf("query latest ibc events: %w", err)
	}

	scheduled, err := scan.Scan(ctx, f.Height)
	if err != nil {
		e.logger.Printf("scan at %s: %v (partial results used)", f.Height, err)
		if e.metrics != nil {
			e.metrics.ScanErrors.WithLabelValues(source.Name(), destination.Name()).Inc()
		}
	}

	if updateType == ibc.UpdateOptional && e.opts.SkipOptionalClientUpdates && len(events) == 0 && len(scheduled) == 0 {
		return nil
	}

	msgs := make([]*ibc.Message, 0, len(events)+len(scheduled)+1)
	if clientMsg != nil {
		msgs = append(msgs, builder.ClientUpdate(clientMsg))
	}

	for _, ev := range events {
		switch ev.Type {
		case ibc.EventConnectionOpenInit, ibc.EventConnectionOpenTry, ibc.EventConnectionOpenAck,
			ibc.EventChannelOpenInit, ibc.EventChannelOpenTry, ibc.EventChannelOpenAck, ibc.EventChannelCloseInit:
			m, err := builder.HandshakeStep(ctx, ev, f.Height)
			if err != nil {
				e.logger.Printf("handshake step for %s: %v", ev.Type, err)
				continue
			}
			msgs = append(msgs, m)
		case ibc.EventWriteAcknowledgement:
			if ev.Packet == nil {
				continue
			}
			m, err := builder.Acknowledgement(ctx, *ev.Packet, ev.Ack, f.Height)
			if err != nil {
				e.logger.Printf("ack message for %s: %v", ev.Packet.PacketFingerprint, err)
				continue
			}
			msgs = append(msgs, m)
		}
	}

	destHeight, _, err := destination.LatestHeightAndTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("destination latest height: %w", err)
	}
	limit := int(e.opts.MaxPacketsToProcess)
	for i, s := range scheduled {
		if limit > 0 && i >= limit {
			e.logger.Printf("max_packets_to_process=%d reached, deferring %d packets to next round", limit, len(scheduled)-i)
			break
		}
		var m *ibc.Message
		var buildErr error
		switch s.Kind {
		case ibc.MsgRecvPacket:
			m, buildErr = builder.Recv(ctx, s.Packet, f.Height)
		case ibc.MsgTimeoutPacket:
			m, buildErr = builder.Timeout(ctx, s.Packet, destHeight, 0)
		case ibc.MsgAcknowledgePacket:
			m, buildErr = builder.Acknowledgement(ctx, s.Packet, s.Ack, f.Height)
		case ibc.MsgTimeoutOnClose:
			m, buildErr = builder.TimeoutOnClose(ctx, s.Packet, destHeight)
		}
		if buildErr != nil {
			e.logger.Printf("build %s for %s: %v", s.Kind, s.Packet.PacketFingerprint, buildErr)
			continue
		}
		msgs = append(msgs, m)
	}

	if len(msgs) == 0 {
		return nil
	}

	results, err := sub.Submit(ctx, msgs)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	dropped := 0
	for _, r := range results {
		if r.TxHash != "" {
			det.NoteSelfSubmitted(r.TxHash)
		}
		dropped += len(r.Dropped)
	}
	if e.metrics != nil {
		if n := len(msgs) - dropped; n > 0 {
			e.metrics.MessagesSubmitted.WithLabelValues(source.Name(), destination.Name(), "batch").Add(float64(n))
		}
		if dropped > 0 {
			e.metrics.MessagesDropped.WithLabelValues(source.Name(), destination.Name(), "batch").Add(float64(dropped))
		}
	}

	if err := e.feedbackIdentifiers(ctx, destination); err != nil {
		e.logger.Printf("feedback identifiers: %v", err)
	}
	return nil
}

// feedbackIdentifiers implements spec.md §4.5 step 4: consult destination's
// own event stream to discover newly generated connection/channel
// identifiers and feed them back into the chain handle.
func (e *Engine) feedbackIdentifiers(ctx context.Context, destination chain.Chain) error {
	events, err := destination.IBCEvents(ctx)
	if err != nil {
		return err
	}
	select {
	case ev, ok := <-events:
		if !ok {
			return nil
		}
		switch ev.Type {
		case ibc.EventConnectionOpenAck, ibc.EventConnectionOpenConfirm:
			if ev.ConnectionID != "" {
				destination.SetConnectionID(ev.ConnectionID)
			}
		case ibc.EventChannelOpenAck, ibc.EventChannelOpenConfirm:
			if ev.ChannelID != "" && ev.PortID != "" {
				existing := destination.ChannelWhitelist()
				destination.SetChannelWhitelist(append(existing, chain.ChannelFilter{PortID: ev.PortID, ChannelID: ev.ChannelID}))
			}
		}
	default:
	}
	return nil
}
