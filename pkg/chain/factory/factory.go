// Copyright 2025 Lattice Relay
//
// Factory: builds a chain.Chain from the relayer's configuration document
// (pkg/config), dispatching on the configured chain kind the way cmd/relayer
// assembles an Engine. Grounded on the teacher's strategy-selection switch in
// pkg/chain/strategy (chosen by an enum field off its own Config), the same
// "one switch, one constructor per platform" shape used here across
// parachainlike/cosmoslike/evmlike plus the optional Wrapped decorator.

package factory

import (
	"context"
	"fmt"

	"github.com/lattice-relay/relay/pkg/chain"
	"github.com/lattice-relay/relay/pkg/chain/cosmoslike"
	"github.com/lattice-relay/relay/pkg/chain/evmlike"
	"github.com/lattice-relay/relay/pkg/chain/parachainlike"
	"github.com/lattice-relay/relay/pkg/config"
	"github.com/lattice-relay/relay/pkg/wrapper"
)

// Build constructs the chain.Chain named by cfg, applying any pre-populated
// client/connection ids and channel whitelist, and wrapping it in the wasm
// meta-client decorator if cfg names a code id.
func Build(ctx context.Context, cfg config.ChainConfig) (chain.Chain, error) {
	var c chain.Chain
	switch cfg.Kind {
	case config.ChainParachain:
		pc, err := parachainlike.New(ctx, parachainlike.Config{
			Name:               cfg.Name,
			WSEndpoint:         cfg.Endpoint,
			CommitmentPrefix:   []byte(cfg.CommitmentPrefix),
			AccountID:          cfg.AccountID,
			ExpectedBlockTime:  cfg.ExpectedBlockTime,
			BlockMaxWeight:     cfg.BlockMaxWeight,
			ClientType:         cfg.ClientType,
			FinalitySampleRate: cfg.FinalitySampleRate,
		})
		if err != nil {
			return nil, fmt.Errorf("factory: %s: %w", cfg.Name, err)
		}
		c = pc
	case config.ChainCosmos:
		cc, err := cosmoslike.New(cosmoslike.Config{
			Name:              cfg.Name,
			RPCEndpoint:       cfg.Endpoint,
			CommitmentPrefix:  []byte(cfg.CommitmentPrefix),
			AccountID:         cfg.AccountID,
			ExpectedBlockTime: cfg.ExpectedBlockTime,
			BlockMaxWeight:    cfg.BlockMaxWeight,
			ClientType:        cfg.ClientType,
		})
		if err != nil {
			return nil, fmt.Errorf("factory: %s: %w", cfg.Name, err)
		}
		c = cc
	case config.ChainEthereum:
		ec, err := evmlike.New(ctx, evmlike.Config{
			Name:              cfg.Name,
			RPCEndpoint:       cfg.Endpoint,
			ChainID:           cfg.EthChainID,
			CommitmentPrefix:  []byte(cfg.CommitmentPrefix),
			AccountID:         cfg.AccountID,
			ExpectedBlockTime: cfg.ExpectedBlockTime,
			BlockMaxWeight:    cfg.BlockMaxWeight,
			ClientType:        cfg.ClientType,
			ConfirmationDepth: cfg.ConfirmationDepth,
			HandlerAddress:    cfg.HandlerAddress,
			SignerKeyHex:      cfg.SignerKeyHex,
			GasLimit:          cfg.GasLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("factory: %s: %w", cfg.Name, err)
		}
		c = ec
	default:
		return nil, fmt.Errorf("factory: unknown chain kind %q", cfg.Kind)
	}

	if cfg.ClientID != "" {
		c.SetClientID(cfg.ClientID)
	}
	if cfg.ConnectionID != "" {
		c.SetConnectionID(cfg.ConnectionID)
	}
	if len(cfg.Channels) > 0 {
		filters := make([]chain.ChannelFilter, 0, len(cfg.Channels))
		for _, ch := range cfg.Channels {
			filters = append(filters, chain.ChannelFilter{PortID: ch.PortID, ChannelID: ch.ChannelID})
		}
		c.SetChannelWhitelist(filters)
	}

	if cfg.WasmCodeID != "" {
		c = wrapper.New(c, cfg.WasmCodeID, cfg.WasmClientType)
	}
	return c, nil
}
