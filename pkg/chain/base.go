// Copyright 2025 Lattice Relay

package chain

import (
	"sync"
	"time"
)

// Base holds the mutable identity fields every chain-kind adapter shares
// (client id, connection id, channel whitelist) behind one mutex, and the
// pure config fields set once at construction. Chain-kind adapters embed
// Base and add their RPC client plumbing; this keeps "internal state guarded
// by a mutex" (spec.md §5) in one place instead of duplicated per kind.
type Base struct {
	mu sync.RWMutex

	name              string
	clientID          string
	connectionID      string
	clientType        string
	connectionPrefix  []byte
	channelWhitelist  []ChannelFilter
	expectedBlockTime time.Duration
	blockMaxWeight    uint64
	accountID         string
}

// NewBase constructs a Base with its immutable fields set.
func NewBase(name, clientType string, connectionPrefix []byte, expectedBlockTime time.Duration, blockMaxWeight uint64, accountID string) *Base {
	return &Base{
		name:              name,
		clientType:        clientType,
		connectionPrefix:  connectionPrefix,
		expectedBlockTime: expectedBlockTime,
		blockMaxWeight:    blockMaxWeight,
		accountID:         accountID,
	}
}

func (b *Base) Name() string       { return b.name }
func (b *Base) ClientType() string { return b.clientType }

func (b *Base) ClientID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.clientID
}

func (b *Base) ConnectionID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connectionID
}

func (b *Base) ConnectionPrefix() []byte { return b.connectionPrefix }

func (b *Base) ChannelWhitelist() []ChannelFilter {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]ChannelFilter, len(b.channelWhitelist))
	copy(out, b.channelWhitelist)
	return out
}

func (b *Base) ExpectedBlockTime() time.Duration { return b.expectedBlockTime }
func (b *Base) BlockMaxWeight() uint64            { return b.blockMaxWeight }
func (b *Base) AccountID() string                 { return b.accountID }

func (b *Base) SetClientID(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clientID = id
}

func (b *Base) SetConnectionID(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connectionID = id
}

func (b *Base) SetChannelWhitelist(filters []ChannelFilter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channelWhitelist = append([]ChannelFilter(nil), filters...)
}

// Whitelisted reports whether (portID, channelID) is on the current
// whitelist (spec.md §3 invariant: "Channel whitelist is the authoritative
// filter").
func (b *Base) Whitelisted(portID, channelID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, f := range b.channelWhitelist {
		if f.PortID == portID && f.ChannelID == channelID {
			return true
		}
	}
	return false
}
