// Copyright 2025 Lattice Relay
//
// Message types the builder (pkg/msgbuilder) produces and the submitter
// (pkg/submitter) batches and submits. Every message carries (payload, proof,
// proof_height, signer) per spec.md §4.4; the payload shapes below stand in
// for the standard IBC protobuf types named in spec.md §6 — this package
// never serializes them onto the wire (that serialization is an external
// collaborator), it only gives the pipeline a uniform Go value to route,
// order, and weigh.

package ibc

import "github.com/lattice-relay/relay/pkg/height"

// MessageType tags which on-the-wire message a Message carries.
type MessageType string

const (
	MsgCreateClient            MessageType = "CreateClient"
	MsgUpdateClient            MessageType = "UpdateClient"
	MsgConnectionOpenInit      MessageType = "ConnectionOpenInit"
	MsgConnectionOpenTry       MessageType = "ConnectionOpenTry"
	MsgConnectionOpenAck       MessageType = "ConnectionOpenAck"
	MsgConnectionOpenConfirm   MessageType = "ConnectionOpenConfirm"
	MsgChannelOpenInit         MessageType = "ChannelOpenInit"
	MsgChannelOpenTry          MessageType = "ChannelOpenTry"
	MsgChannelOpenAck          MessageType = "ChannelOpenAck"
	MsgChannelOpenConfirm      MessageType = "ChannelOpenConfirm"
	MsgChannelCloseInit        MessageType = "ChannelCloseInit"
	MsgChannelCloseConfirm     MessageType = "ChannelCloseConfirm"
	MsgRecvPacket              MessageType = "RecvPacket"
	MsgAcknowledgePacket       MessageType = "AcknowledgePacket"
	MsgTimeoutPacket           MessageType = "TimeoutPacket"
	MsgTimeoutOnClose          MessageType = "TimeoutOnClose"
)

// Message is a single on-the-wire message bound for one destination chain.
type Message struct {
	Type   MessageType
	Signer string

	// ClientID is the destination-side client id this message targets.
	ClientID string

	// ProofHeight is the source height the attached Proof (if any) is rooted
	// at. Zero when the message carries no proof (e.g. CreateClient).
	ProofHeight height.Height

	// Proof is present for every message except CreateClient/UpdateClient,
	// whose payload already embeds its own finality evidence.
	Proof *ProofBundle

	// ClientMsg carries the client message for CreateClient/UpdateClient.
	ClientMsg *ClientMessage

	// Packet carries the packet payload for Recv/Acknowledge/Timeout*.
	Packet *Packet

	// Ack carries the acknowledgement payload for AcknowledgePacket.
	Ack []byte

	// CloseProof carries the closed-channel proof for TimeoutOnClose, which
	// alone among message types needs two independent proofs in the same
	// message (spec.md §4.3 step 7: "both the non-receipt proof and the
	// closed-channel proof").
	CloseProof *ProofBundle

	// Handshake carries the connection/channel handshake payload fields
	// relevant to the message Type (e.g. ConnectionEnd/ChannelEnd content).
	Handshake *HandshakePayload

	// EstimatedWeight is not set by Chain.EstimateWeight or by the
	// submitter; the submitter calls EstimateWeight directly when batching.
	EstimatedWeight uint64
}

// HandshakePayload carries the counterparty state a handshake-advancing
// message needs to present (spec.md §4.4: "carry the counterparty's client
// state and proofs at h_s").
type HandshakePayload struct {
	ConnectionID  string
	ChannelID     string
	PortID        string
	Counterparty  ConnectionEnd
	CounterpartyChannel ChannelEnd
	ClientState   *ClientState
}

// packetOrderRank returns this message type's rank in the packet ordering
// rule of spec.md §4.2 (Timeouts 0, Acknowledgements 1, Receives 2); ok is
// false for types that do not take part in that rule.
func (t MessageType) packetOrderRank() (rank int, ok bool) {
	switch t {
	case MsgTimeoutPacket, MsgTimeoutOnClose:
		return 0, true
	case MsgAcknowledgePacket:
		return 1, true
	case MsgRecvPacket:
		return 2, true
	default:
		return 0, false
	}
}
