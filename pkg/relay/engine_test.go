package relay

import (
	"context"
	"testing"

	"github.com/lattice-relay/relay/pkg/chain"
	"github.com/lattice-relay/relay/pkg/height"
	"github.com/lattice-relay/relay/pkg/ibc"
	"github.com/lattice-relay/relay/pkg/msgbuilder"
	"github.com/lattice-relay/relay/pkg/scanner"
)

// fakeChain implements only the chain.Chain methods runPipeline's code paths
// touch; an empty ChannelWhitelist means the scanner's real Scan() queries
// nothing, keeping this fake's surface small while still exercising the real
// scanner/msgbuilder/submitter collaborators end to end.
type fakeChain struct {
	chain.Chain
	name      string
	clientID  string
	accountID string

	clientMsg  *ibc.ClientMessage
	events     []ibc.Event
	updateType ibc.UpdateType

	latestHeight height.Height

	submitted [][]*ibc.Message
	submitErr error

	connEnd     *ibc.ConnectionEnd
	clientState *ibc.ClientState
	channelEnd  *ibc.ChannelEnd
	rawProof    *ibc.ProofBundle
}

func (f *fakeChain) Name() string                       { return f.name }
func (f *fakeChain) ClientID() string                   { return f.clientID }
func (f *fakeChain) AccountID() string                  { return f.accountID }
func (f *fakeChain) ChannelWhitelist() []chain.ChannelFilter { return nil }
func (f *fakeChain) SetConnectionID(id string)           {}
func (f *fakeChain) SetChannelWhitelist(fs []chain.ChannelFilter) {}
func (f *fakeChain) BlockMaxWeight() uint64              { return 10_000_000 }

func (f *fakeChain) EstimateWeight(ctx context.Context, msgs []*ibc.Message) (uint64, error) {
	return uint64(len(msgs)) * 1000, nil
}

func (f *fakeChain) QueryLatestIBCEvents(ctx context.Context, ev ibc.FinalityEvent, counterparty chain.Chain) (*ibc.ClientMessage, []ibc.Event, ibc.UpdateType, error) {
	return f.clientMsg, f.events, f.updateType, nil
}

func (f *fakeChain) LatestHeightAndTimestamp(ctx context.Context) (height.Height, uint64, error) {
	return f.latestHeight, 0, nil
}

func (f *fakeChain) IBCEvents(ctx context.Context) (<-chan ibc.Event, error) {
	ch := make(chan ibc.Event)
	close(ch)
	return ch, nil
}

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

func (f *fakeChain) Submit(ctx context.Context, msgs []*ibc.Message) (string, error) {
	f.submitted = append(f.submitted, msgs)
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "0xbatch", nil
}

func newEngine(source, dest *fakeChain, opts Options) (*Engine, *fakeChain, *fakeChain) {
	e := New(source, dest, opts, nil)
	return e, source, dest
}

func TestRunPipelineSkipsWhenOptionalAndEmpty(t *testing.T) {
	source := &fakeChain{name: "chain-a", updateType: ibc.UpdateOptional}
	dest := &fakeChain{name: "chain-b", clientID: "07-client-1", accountID: "relayer-b"}

	opts := DefaultOptions()
	opts.SkipOptionalClientUpdates = true
	e, _, destChain := newEngine(source, dest, opts)

	builder := msgbuilder.New(source, dest)
	scan := scanner.New(source, dest)

	err := e.runPipeline(context.Background(), ibc.FinalityEvent{Height: height.New(0, 1)}, source, dest, builder, scan, e.subAB, e.detAB)
	if err != nil {
		t.Fatalf("runPipeline: %v", err)
	}
	if len(destChain.submitted) != 0 {
		t.Errorf("expected no submission when skipping an empty optional update, got %d batches", len(destChain.submitted))
	}
}

func TestRunPipelineSubmitsClientUpdateAndHandshakeStep(t *testing.T) {
	source := &fakeChain{
		name:       "chain-a",
		clientID:   "07-client-a",
		updateType: ibc.UpdateMandatory,
		clientMsg:  &ibc.ClientMessage{Kind: ibc.ClientMessageNormalUpdate, Update: &ibc.Header{Raw: []byte("header")}},
		events: []ibc.Event{
			{Type: ibc.EventConnectionOpenInit, ConnectionID: "connection-0"},
		},
		connEnd:     &ibc.ConnectionEnd{},
		clientState: &ibc.ClientState{},
		rawProof:    &ibc.ProofBundle{},
	}
	dest := &fakeChain{name: "chain-b", clientID: "07-client-b", accountID: "relayer-b"}

	e, _, destChain := newEngine(source, dest, DefaultOptions())
	builder := msgbuilder.New(source, dest)
	scan := scanner.New(source, dest)

	err := e.runPipeline(context.Background(), ibc.FinalityEvent{Height: height.New(0, 1)}, source, dest, builder, scan, e.subAB, e.detAB)
	if err != nil {
		t.Fatalf("runPipeline: %v", err)
	}
	if len(destChain.submitted) != 1 {
		t.Fatalf("expected one submitted batch, got %d", len(destChain.submitted))
	}
	batch := destChain.submitted[0]
	if len(batch) != 2 {
		t.Fatalf("expected a client update plus one handshake message, got %d", len(batch))
	}
	if batch[0].Type != ibc.MsgUpdateClient {
		t.Errorf("first message Type = %s, want MsgUpdateClient", batch[0].Type)
	}
	if batch[1].Type != ibc.MsgConnectionOpenTry {
		t.Errorf("second message Type = %s, want MsgConnectionOpenTry", batch[1].Type)
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.MaxPacketsToProcess != 100 {
		t.Errorf("MaxPacketsToProcess = %d, want 100", opts.MaxPacketsToProcess)
	}
	if opts.Submitter.MaxAttempts == 0 {
		t.Error("expected a non-zero default submitter MaxAttempts")
	}
}
