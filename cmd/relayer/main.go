// Copyright 2025 Lattice Relay

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd assembles the relayer CLI (spec.md §6): create-clients,
// create-connection, create-channel bootstrap the chain pair once, relay
// runs the long-lived engine. Grounded on the pack's tokenize-x-tx-chain
// cobra style (x/pse/client/cli/query.go: a parent command with RunE
// subcommands and cobra.NoArgs where no positional args apply), adapted from
// a cosmos-sdk module's query tree to this module's bootstrap/run tree.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "relayer",
		Short: "Relay IBC packets and client updates between two chains",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "relayer.yaml", "path to the relayer config file")
	viper.BindPFlag("config", root.PersistentFlags().Lookup("config"))

	root.AddCommand(newCreateClientsCmd())
	root.AddCommand(newCreateConnectionCmd())
	root.AddCommand(newCreateChannelCmd())
	root.AddCommand(newRelayCmd())
	return root
}
