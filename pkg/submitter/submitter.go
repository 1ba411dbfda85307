// Copyright 2025 Lattice Relay
//
// Submitter: batches an ordered message list under a destination's weight
// cap, submits, and retries transient failures (spec.md §4.5). Grounded on the teacher's batch collector/scheduler pair
// (pkg/batch/collector.go, pkg/batch/scheduler.go) for the shape of "batch
// accumulation id via uuid + per-named-component *log.Logger"; transient
// retry is grounded on
// other_examples/f675eeec_furychain-furya-relayer__relayer-strategies.go.go,
// which wraps its submission call in retry.Do with attempt/delay/error
// hooks for exactly this RPC-submission-retry concern.

package submitter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/lattice-relay/relay/pkg/chain"
	"github.com/lattice-relay/relay/pkg/classify"
	"github.com/lattice-relay/relay/pkg/ibc"
	"github.com/lattice-relay/relay/pkg/metrics"
)

// ErrBatchStranded is returned when splitting a message list under the
// weight cap would separate a packet message from the client-update its
// proof height depends on (spec.md §4.5 step 2: "if splitting would strand
// a proof, the batch is the unit of retry").
var ErrBatchStranded = errors.New("submitter: cannot split batch without stranding a dependent proof")

// Config configures a Submitter.
type Config struct {
	MaxAttempts  uint
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Logger       *log.Logger
}

// DefaultConfig returns the submitter's default retry policy.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Logger:       log.New(os.Stderr, "[Submitter] ", log.LstdFlags),
	}
}

// Result records the outcome of submitting one batch.
type Result struct {
	BatchID string
	TxHash  string
	Dropped []*ibc.Message // messages classified chain-rejected and skipped (spec.md §7)
}

// Submitter serializes submissions to one destination chain, per spec.md
// §4.5 ("at-most-one-in-flight per destination") and §5 ("the
// per-destination serialisation point owns signing and nonce assignment").
type Submitter struct {
	destination chain.Chain
	cfg         Config

	// mu enforces the single in-flight submission per destination; it is
	// held only across the (blocking) submit call, never across unrelated
	// work, so other tasks may still queue the next batch behind it.
	mu sync.Mutex

	metrics *metrics.Registry
}

// New returns a Submitter for destination.
func New(destination chain.Chain, cfg Config) *Submitter {
	if cfg.Logger == nil {
		cfg.Logger = DefaultConfig().Logger
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	return &Submitter{destination: destination, cfg: cfg}
}

// SetMetrics attaches a metrics registry; nil is a valid no-op value (spec.md
// §6's prometheus_endpoint is optional).
func (s *Submitter) SetMetrics(m *metrics.Registry) { s.metrics = m }

// Submit batches msgs under destination's weight cap (spec.md §4.5 steps
// 1-2) and submits each batch in order, retrying transient failures per
// batch. A batch whose submission is classified chain-rejected is dropped
// whole (reported in its Result's Dropped) rather than failing the whole
// submission (spec.md §7).
func (s *Submitter) Submit(ctx context.Context, msgs []*ibc.Message) ([]Result, error) {
	if len(msgs) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batches, err := s.split(ctx, msgs)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(batches))
	for _, batch := range batches {
		res, err := s.submitBatch(ctx, batch)
		if err != nil {
			return results, fmt.Errorf("submitter: batch: %w", err)
		}
		results = append(results, res)
	}
	return results, nil
}

// split implements spec.md §4.5 steps 1-2: one transaction if the whole
// list fits under the weight cap, otherwise maximal ordered prefixes.
func (s *Submitter) split(ctx context.Context, msgs []*ibc.Message) ([][]*ibc.Message, error) {
	total, err := s.destination.EstimateWeight(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("estimate weight: %w", err)
	}
	weightCap := s.destination.BlockMaxWeight()
	if total <= weightCap {
		return [][]*ibc.Message{msgs}, nil
	}

	var batches [][]*ibc.Message
	var current []*ibc.Message
	var currentWeight uint64
	for i, m := range msgs {
		w, err := s.destination.EstimateWeight(ctx, []*ibc.Message{m})
		if err != nil {
			return nil, fmt.Errorf("estimate weight for message %d: %w", i, err)
		}
		if len(current) > 0 && currentWeight+w > weightCap {
			if dependsOnClientUpdate(m) && !hasClientUpdate(current) {
				return nil, fmt.Errorf("%w: message %d at batch boundary", ErrBatchStranded, i)
			}
			batches = append(batches, current)
			current = nil
			currentWeight = 0
		}
		current = append(current, m)
		currentWeight += w
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches, nil
}

func (s *Submitter) submitBatch(ctx context.Context, batch []*ibc.Message) (Result, error) {
	batchID := uuid.NewString()
	live := batch

	var txHash string
	err := retry.Do(
		func() error {
			h, err := s.destination.Submit(ctx, live)
			if err != nil {
				kind := classify.Classify(err)
				if kind == classify.KindChainRejected {
					return retry.Unrecoverable(err)
				}
				return err
			}
			txHash = h
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.cfg.MaxAttempts),
		retry.Delay(s.cfg.InitialDelay),
		retry.MaxDelay(s.cfg.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.cfg.Logger.Printf("batch %s attempt %d failed: %v", batchID, n+1, err)
			if s.metrics != nil {
				s.metrics.SubmitRetries.WithLabelValues(s.destination.Name()).Inc()
			}
		}),
	)
	if err != nil {
		if classify.Classify(err) == classify.KindChainRejected {
			// The whole batch is dropped; no part of it is retried
			// here since partial re-submission risks
			// duplicate receives (spec.md §3 invariant). The caller's next
			// scan will re-derive whatever is still outstanding.
			s.cfg.Logger.Printf("batch %s rejected: %v", batchID, err)
			return Result{BatchID: batchID, Dropped: batch}, nil
		}
		return Result{BatchID: batchID}, err
	}
	s.cfg.Logger.Printf("batch %s submitted as %s (%d messages)", batchID, txHash, len(batch))
	return Result{BatchID: batchID, TxHash: txHash}, nil
}

func dependsOnClientUpdate(m *ibc.Message) bool {
	switch m.Type {
	case ibc.MsgCreateClient, ibc.MsgUpdateClient:
		return false
	default:
		return m.Proof != nil
	}
}

func hasClientUpdate(batch []*ibc.Message) bool {
	for _, m := range batch {
		if m.Type == ibc.MsgUpdateClient || m.Type == ibc.MsgCreateClient {
			return true
		}
	}
	return false
}
