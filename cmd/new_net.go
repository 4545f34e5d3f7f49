package cmd

import (
	"fmt"
	"net/netip"
	"os"

	"github.com/encodeous/dvnet/state"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

func writeNew(path string, v any) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	out, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0600)
}

// netCmd represents the new-net command
var netCmd = &cobra.Command{
	Use:   "new-net",
	Short: "Create a new ring network with a central configuration and a node config for its first node",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("nodes")
		port, _ := cmd.Flags().GetUint16("port")
		if n < 1 {
			return fmt.Errorf("need at least one node")
		}

		key := state.GenerateKey()
		ccfg := state.CentralCfg{Key: &key}
		for i := 1; i <= n; i++ {
			ccfg.Nodes = append(ccfg.Nodes, state.NodeCfg{
				Id:       state.NodeId(i),
				Endpoint: netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), port+uint16(i-1)),
				Prefixes: []netip.Prefix{netip.PrefixFrom(netip.AddrFrom4([4]byte{10, 0, 0, byte(i)}), 32)},
			})
		}
		for i := 1; i < n; i++ {
			ccfg.Links = append(ccfg.Links, state.Link{A: state.NodeId(i), B: state.NodeId(i + 1), Cost: 1})
		}
		if n > 2 {
			ccfg.Links = append(ccfg.Links, state.Link{A: state.NodeId(n), B: 1, Cost: 1})
		}
		if err := state.CentralConfigValidator(&ccfg); err != nil {
			return err
		}

		err := writeNew(state.CentralConfigPath, &ccfg)
		if err != nil {
			return err
		}
		err = writeNew(state.NodeConfigPath, &state.LocalCfg{Id: 1})
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %s and %s\n", state.CentralConfigPath, state.NodeConfigPath)
		return nil
	},
	SilenceUsage: true,
	GroupID:      "init",
}

func init() {
	rootCmd.AddCommand(netCmd)

	netCmd.Flags().IntP("nodes", "N", 3, "number of nodes in the ring")
	netCmd.Flags().Uint16P("port", "p", state.DefaultPort, "port of the first node, the others count up from it")
}
