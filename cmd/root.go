package cmd

import (
	"os"

	"github.com/encodeous/dvnet/state"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dvnet",
	Short: "Distance-vector routing daemon",
	Long: `dvnet keeps a distance-vector table for every node of a statically configured network.
Nodes exchange their vectors with neighbours and converge on shortest paths using distributed Bellman-Ford.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "init",
		Title: "Initialize dvnet",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "dv",
		Title: "dvnet Commands",
	})
	rootCmd.PersistentFlags().StringVarP(&state.NodeConfigPath, "node-config", "n", state.NodeConfigPath, "node-specific config")
	rootCmd.PersistentFlags().StringVarP(&state.CentralConfigPath, "central-config", "c", state.CentralConfigPath, "network-global config")
}
