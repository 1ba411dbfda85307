// Copyright 2025 Lattice Relay

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lattice-relay/relay/pkg/chain/factory"
	"github.com/lattice-relay/relay/pkg/config"
	"github.com/lattice-relay/relay/pkg/relay"
)

// buildPair loads the config file and constructs both chain handles.
func buildPair(ctx context.Context) (*config.Config, chainPair, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, chainPair{}, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, chainPair{}, err
	}
	a, err := factory.Build(ctx, cfg.ChainA)
	if err != nil {
		return nil, chainPair{}, fmt.Errorf("build chain_a: %w", err)
	}
	b, err := factory.Build(ctx, cfg.ChainB)
	if err != nil {
		return nil, chainPair{}, fmt.Errorf("build chain_b: %w", err)
	}
	return cfg, chainPair{a: a, b: b}, nil
}

func newCreateClientsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-clients",
		Short: "Create a light client for each chain on its counterparty",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, pair, err := buildPair(ctx)
			if err != nil {
				return err
			}
			return relay.CreateClients(ctx, pair.a, pair.b)
		},
	}
}

func newCreateConnectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-connection",
		Short: "Drive the four-step connection handshake to completion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, pair, err := buildPair(ctx)
			if err != nil {
				return err
			}
			return relay.CreateConnection(ctx, pair.a, pair.b)
		},
	}
}

func newCreateChannelCmd() *cobra.Command {
	var portID string
	cmd := &cobra.Command{
		Use:   "create-channel",
		Short: "Drive the four-step channel handshake to completion on a port",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, pair, err := buildPair(ctx)
			if err != nil {
				return err
			}
			return relay.CreateChannel(ctx, pair.a, pair.b, portID)
		},
	}
	cmd.Flags().StringVar(&portID, "port", "transfer", "port id to open the channel on")
	return cmd
}
