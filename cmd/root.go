package cmd

import (
	"fmt"
	"github.com/ValentinKolb/dAFT/cmd/graph"
	"github.com/ValentinKolb/dAFT/cmd/serve"
	"github.com/ValentinKolb/dAFT/cmd/util"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "daft",
		Short: "forwarding graph control plane",
		Long: fmt.Sprintf(`dAFT (v%s)

A control plane for forwarding graphs written in Go. Graphs are built
in sandboxes with all-or-nothing inserts and removes, and sandboxes can
be served locally or replicated with RAFT consensus.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dAFT",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dAFT v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(graph.GraphCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
