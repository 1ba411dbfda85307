// Copyright 2025 Lattice Relay
//
// Bootstrap: the one-time client/connection/channel handshake driver run
// ahead of Engine.Run (spec.md §4.2's "before the main loop starts" setup,
// and the cmd/relayer create-clients/create-connection/create-channel
// subcommands of spec.md §6). Grounded on the teacher's main.go client
// bootstrap sequence (_examples/certenIO-certen-validator/main.go), which
// builds an initial client state, submits a CreateClient transaction, and
// parses the resulting receipt for the assigned identifier before wiring the
// rest of the service — the same "submit, then read the id back off the
// receipt" shape, used here symmetrically for both chains (DESIGN.md Open
// Question 3).

package relay

import (
	"context"
	"fmt"

	"github.com/lattice-relay/relay/pkg/chain"
	"github.com/lattice-relay/relay/pkg/ibc"
	"github.com/lattice-relay/relay/pkg/msgbuilder"
)

// CreateClients submits an InitializeClientState-derived CreateClient
// message on each side of the pair and records the resulting client id on
// the opposite chain handle (spec.md §4.1: "the destination's chain handle
// is the one whose SetClientID is called, since the client lives on the
// chain being updated, tracking its counterparty").
func CreateClients(ctx context.Context, a, b chain.Chain) error {
	if err := createClientOn(ctx, a, b); err != nil {
		return fmt.Errorf("bootstrap: create client for %s on %s: %w", a.Name(), b.Name(), err)
	}
	if err := createClientOn(ctx, b, a); err != nil {
		return fmt.Errorf("bootstrap: create client for %s on %s: %w", b.Name(), a.Name(), err)
	}
	return nil
}

// createClientOn builds source's initial client/consensus state, submits a
// CreateClient message to destination, and records the assigned client id
// back onto destination (spec.md §4.1 table: CreateClient's signer and
// target are both destination).
func createClientOn(ctx context.Context, source, destination chain.Chain) error {
	cs, consensus, err := source.InitializeClientState(ctx)
	if err != nil {
		return fmt.Errorf("initialize client state: %w", err)
	}
	msg := &ibc.Message{
		Type:   ibc.MsgCreateClient,
		Signer: destination.AccountID(),
		Handshake: &ibc.HandshakePayload{
			ClientState: cs,
		},
		ClientMsg: &ibc.ClientMessage{
			Kind:   ibc.ClientMessageNormalUpdate,
			Update: &ibc.Header{ChainKind: string(source.Kind()), Height: consensus.Height, Raw: consensus.Raw},
		},
	}
	txHash, err := destination.Submit(ctx, []*ibc.Message{msg})
	if err != nil {
		return fmt.Errorf("submit create-client: %w", err)
	}
	clientID, err := destination.QueryClientIDFromTxHash(ctx, txHash)
	if err != nil {
		return fmt.Errorf("read client id from %s: %w", txHash, err)
	}
	destination.SetClientID(clientID)
	return nil
}

// CreateConnection drives the four-step connection handshake (OpenInit on
// a, then OpenTry/OpenAck/OpenConfirm alternating sides) to completion,
// waiting on each chain's event stream for the handshake-advancing event
// between steps (spec.md §4.2 step 4's progression, run once up front
// instead of from the steady-state loop).
func CreateConnection(ctx context.Context, a, b chain.Chain) error {
	if _, err := a.Submit(ctx, []*ibc.Message{{
		Type:      ibc.MsgConnectionOpenInit,
		Signer:    a.AccountID(),
		Handshake: &ibc.HandshakePayload{},
	}}); err != nil {
		return fmt.Errorf("bootstrap: connection open init on %s: %w", a.Name(), err)
	}

	if err := advanceHandshake(ctx, a, b, ibc.EventConnectionOpenInit); err != nil {
		return fmt.Errorf("bootstrap: connection open try on %s: %w", b.Name(), err)
	}
	if err := advanceHandshake(ctx, b, a, ibc.EventConnectionOpenTry); err != nil {
		return fmt.Errorf("bootstrap: connection open ack on %s: %w", a.Name(), err)
	}
	if err := advanceHandshake(ctx, a, b, ibc.EventConnectionOpenAck); err != nil {
		return fmt.Errorf("bootstrap: connection open confirm on %s: %w", b.Name(), err)
	}
	return nil
}

// CreateChannel drives the symmetric four-step channel handshake over an
// already-open connection, the same shape as CreateConnection but for
// channel events.
func CreateChannel(ctx context.Context, a, b chain.Chain, portID string) error {
	if _, err := a.Submit(ctx, []*ibc.Message{{
		Type:      ibc.MsgChannelOpenInit,
		Signer:    a.AccountID(),
		Handshake: &ibc.HandshakePayload{PortID: portID},
	}}); err != nil {
		return fmt.Errorf("bootstrap: channel open init on %s: %w", a.Name(), err)
	}

	if err := advanceHandshake(ctx, a, b, ibc.EventChannelOpenInit); err != nil {
		return fmt.Errorf("bootstrap: channel open try on %s: %w", b.Name(), err)
	}
	if err := advanceHandshake(ctx, b, a, ibc.EventChannelOpenTry); err != nil {
		return fmt.Errorf("bootstrap: channel open ack on %s: %w", a.Name(), err)
	}
	if err := advanceHandshake(ctx, a, b, ibc.EventChannelOpenAck); err != nil {
		return fmt.Errorf("bootstrap: channel open confirm on %s: %w", b.Name(), err)
	}
	return nil
}

// advanceHandshake waits for source to emit wantEvent, builds the
// destination-side advancing message via msgbuilder, and submits it.
func advanceHandshake(ctx context.Context, source, destination chain.Chain, wantEvent ibc.EventType) error {
	ev, err := awaitEvent(ctx, source, wantEvent)
	if err != nil {
		return err
	}
	builder := msgbuilder.New(source, destination)
	msg, err := builder.HandshakeStep(ctx, ev, ev.Height)
	if err != nil {
		return fmt.Errorf("build handshake step: %w", err)
	}
	if _, err := destination.Submit(ctx, []*ibc.Message{msg}); err != nil {
		return fmt.Errorf("submit handshake step: %w", err)
	}
	return nil
}

// awaitEvent blocks until source's event stream yields an event of type
// want, or ctx is cancelled.
func awaitEvent(ctx context.Context, source chain.Chain, want ibc.EventType) (ibc.Event, error) {
	events, err := source.IBCEvents(ctx)
	if err != nil {
		return ibc.Event{}, fmt.Errorf("subscribe %s events: %w", source.Name(), err)
	}
	for {
		select {
		case <-ctx.Done():
			return ibc.Event{}, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return ibc.Event{}, fmt.Errorf("event stream closed waiting for %s", want)
			}
			if ev.Type == want {
				return ev, nil
			}
		}
	}
}
