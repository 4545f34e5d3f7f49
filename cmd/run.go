package cmd

import (
	"github.com/encodeous/dvnet/core"
	"github.com/encodeous/dvnet/state"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run dvnet",
	Long:  `This will run a dvnet node on the current host, advertising its distance vector to its neighbours over UDP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		logPath, _ := cmd.Flags().GetString("log-path")
		return core.Bootstrap(state.CentralConfigPath, state.NodeConfigPath, logPath, verbose)
	},
	SilenceUsage: true,
	GroupID:      "dv",
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	runCmd.Flags().String("log-path", "", "Also write logs to this file")
	runCmd.Flags().BoolVarP(&state.DBG_log_router, "lroute", "r", false, "Write router events to console")
	runCmd.Flags().BoolVarP(&state.DBG_log_transport, "ltransport", "p", false, "Write received packets to console")
	runCmd.Flags().BoolVarP(&state.DBG_log_route_table, "ltable", "t", false, "Outputs distance table to the console on every change")
	runCmd.Flags().BoolVarP(&state.DBG_log_route_changes, "lrchange", "g", false, "Outputs route changes to the console")
	runCmd.Flags().BoolVar(&state.DBG_debug, "debug", false, "Serve pprof and metrics on :6060")
	runCmd.Flags().BoolVar(&state.DBG_trace, "trace", false, "Write an execution trace to trace.out")
}
