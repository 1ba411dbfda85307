// Copyright 2025 Lattice Relay

package ibc

import "github.com/lattice-relay/relay/pkg/height"

// EventType tags the chain-emitted IBC events the engine reacts to
// (spec.md §4.1 ibc_events(), §4.2 step 3).
type EventType string

const (
	EventConnectionOpenInit    EventType = "connection_open_init"
	EventConnectionOpenTry     EventType = "connection_open_try"
	EventConnectionOpenAck     EventType = "connection_open_ack"
	EventConnectionOpenConfirm EventType = "connection_open_confirm"
	EventChannelOpenInit       EventType = "channel_open_init"
	EventChannelOpenTry        EventType = "channel_open_try"
	EventChannelOpenAck        EventType = "channel_open_ack"
	EventChannelOpenConfirm    EventType = "channel_open_confirm"
	EventChannelCloseInit      EventType = "channel_close_init"
	EventChannelCloseConfirm   EventType = "channel_close_confirm"
	EventSendPacket            EventType = "send_packet"
	EventWriteAcknowledgement  EventType = "write_acknowledgement"
	EventUpdateClient          EventType = "update_client"
)

// Event is one chain-emitted IBC event, observed at a height via
// Chain.IBCEvents().
type Event struct {
	Type     EventType
	Height   height.Height
	TxHash   string
	ClientID string
	ChannelID string
	PortID   string

	// Packet is populated for EventSendPacket / EventWriteAcknowledgement.
	Packet *Packet
	Ack    []byte

	// Connection/channel identifiers discovered by a handshake event, fed
	// back via Chain.SetConnectionID/SetChannelWhitelist per spec.md §4.5.
	ConnectionID string

	// UpdateEvent carries enough to call Chain.QueryClientMessage for
	// misbehaviour detection (spec.md §4.6 step 1).
	UpdateEvent *ClientUpdateEvent
}

// ClientUpdateEvent is the minimal shape needed to reconstruct the
// light-client message that produced an UpdateClient event.
type ClientUpdateEvent struct {
	ClientID string
	Height   height.Height
	TxHash   string
}

// FinalityEvent is one item from Chain.FinalityNotifications(): a claim
// that the chain has finalized up to Height, carrying whatever raw
// finality certificate the chain kind produces (justification, signed
// header, attestation, ...).
type FinalityEvent struct {
	Height height.Height
	Header Header
}
