package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/encodeous/dvnet/core"
	"github.com/encodeous/dvnet/state"
	"github.com/spf13/cobra"
)

func socketFor(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("socket"); p != "" {
		return p, nil
	}
	ncfg, err := core.ReadNodeConfig(state.NodeConfigPath)
	if err != nil {
		return "", fmt.Errorf("no --socket given and failed to read node config: %w", err)
	}
	return core.SocketPath(ncfg), nil
}

var inspectCmd = &cobra.Command{
	Use:     "inspect",
	Aliases: []string{"i"},
	Short:   "Inspects the current state of a running node",
	RunE: func(cmd *cobra.Command, args []string) error {
		sock, err := socketFor(cmd)
		if err != nil {
			return err
		}
		result, err := core.IPCGet(sock, "inspect")
		if err != nil {
			return err
		}
		fmt.Print(result)
		return nil
	},
	SilenceUsage: true,
	GroupID:      "dv",
}

var linkCmd = &cobra.Command{
	Use:   "link <neighbour> <cost>",
	Short: "Sets the cost of the direct link to a neighbour on a running node",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sock, err := socketFor(cmd)
		if err != nil {
			return err
		}
		result, err := core.IPCGet(sock, "link "+strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Print(result)
		if strings.HasPrefix(result, "error: ") {
			return fmt.Errorf("node rejected the command")
		}
		return nil
	},
	SilenceUsage: true,
	GroupID:      "dv",
}

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Streams routing events from a running node",
	RunE: func(cmd *cobra.Command, args []string) error {
		sock, err := socketFor(cmd)
		if err != nil {
			return err
		}
		return core.IPCStream(sock, "trace", os.Stdout)
	},
	SilenceUsage: true,
	GroupID:      "dv",
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(traceCmd)
	traceCmd.Flags().StringP("socket", "s", "", "ipc socket of the node, defaults to the one derived from the node config")
	inspectCmd.Flags().StringP("socket", "s", "", "ipc socket of the node, defaults to the one derived from the node config")
	linkCmd.Flags().StringP("socket", "s", "", "ipc socket of the node, defaults to the one derived from the node config")
}
