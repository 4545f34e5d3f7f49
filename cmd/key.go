package cmd

import (
	"fmt"

	"github.com/encodeous/dvnet/state"
	"github.com/spf13/cobra"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Generates a new network key for authenticating advertisements",
	RunE: func(cmd *cobra.Command, args []string) error {
		key := state.GenerateKey()
		str, err := key.MarshalText()
		if err != nil {
			return err
		}
		fmt.Println(string(str))
		return nil
	},
	GroupID: "init",
}

func init() {
	rootCmd.AddCommand(keyCmd)
}
