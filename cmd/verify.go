package cmd

import (
	"fmt"
	"os"

	"github.com/encodeous/dvnet/core"
	"github.com/encodeous/dvnet/state"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Validates the configuration and prints the initial distance table",
	RunE: func(cmd *cobra.Command, args []string) error {
		ccfg, err := core.ReadCentralConfig(state.CentralConfigPath)
		if err != nil {
			return err
		}
		err = state.CentralConfigValidator(ccfg)
		if err != nil {
			return err
		}
		fmt.Println("Central config is valid")

		ncfg, err := core.ReadNodeConfig(state.NodeConfigPath)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return err
		}
		err = state.NodeConfigValidator(ncfg, ccfg)
		if err != nil {
			return err
		}
		tbl, err := state.NewDVTable(ccfg.Topology(ncfg.Id))
		if err != nil {
			return err
		}
		defer tbl.Destroy()
		fmt.Printf("Node config is valid, initial table of node %d:\n", ncfg.Id)
		fmt.Print(tbl.Render())
		return nil
	},
	SilenceUsage: true,
	GroupID:      "dv",
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
