package classify

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lattice-relay/relay/pkg/chain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"deadline exceeded", context.DeadlineExceeded, KindTransient},
		{"canceled", context.Canceled, KindTransient},
		{"wrapped deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), KindTransient},
		{"not found sentinel", chain.ErrNotFound, KindStaleProof},
		{"client frozen sentinel", chain.ErrClientFrozen, KindChainRejected},
		{"unsupported operation sentinel", chain.ErrUnsupportedOperation, KindLogicInvariant},
		{"already consumed marker", errors.New("sequence already consumed"), KindChainRejected},
		{"invalid proof marker", errors.New("invalid proof supplied"), KindChainRejected},
		{"reverted marker", errors.New("transaction 0xdead reverted"), KindChainRejected},
		{"proof height marker", errors.New("proof height is behind"), KindStaleProof},
		{"consensus state not found marker", errors.New("consensus state not found at height"), KindStaleProof},
		{"connection refused marker", errors.New("dial tcp: connection refused"), KindTransient},
		{"websocket marker", errors.New("websocket: close 1006"), KindTransient},
		{"opaque error", errors.New("something went sideways"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestKindRetryableAndFatal(t *testing.T) {
	retryable := []Kind{KindTransient, KindStaleProof, KindUnknown}
	for _, k := range retryable {
		if !k.Retryable() {
			t.Errorf("%s.Retryable() = false, want true", k)
		}
	}
	notRetryable := []Kind{KindChainRejected, KindMisbehaviour, KindConfiguration, KindLogicInvariant}
	for _, k := range notRetryable {
		if k.Retryable() {
			t.Errorf("%s.Retryable() = true, want false", k)
		}
	}
	if !KindLogicInvariant.Fatal() {
		t.Error("KindLogicInvariant.Fatal() = false, want true")
	}
	for _, k := range []Kind{KindTransient, KindChainRejected, KindStaleProof, KindMisbehaviour, KindConfiguration, KindUnknown} {
		if k.Fatal() {
			t.Errorf("%s.Fatal() = true, want false", k)
		}
	}
}
