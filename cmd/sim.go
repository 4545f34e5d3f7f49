package cmd

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/encodeous/dvnet/core"
	"github.com/encodeous/dvnet/state"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Simulates the whole network in memory and prints every node's tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		ccfg, err := core.ReadCentralConfig(state.CentralConfigPath)
		if err != nil {
			return err
		}
		dur, _ := cmd.Flags().GetDuration("duration")
		interval, _ := cmd.Flags().GetDuration("interval")
		poison, _ := cmd.Flags().GetBool("poison-reverse")
		verbose, _ := cmd.Flags().GetBool("verbose")

		state.AdvertiseDelay = interval
		state.NeighbourDeadThreshold = 4 * interval

		sim := core.NewSimulation(*ccfg)
		sim.PoisonReverse = poison
		if verbose {
			sim.LogLevel = slog.LevelDebug
		}
		err = sim.Start()
		if err != nil {
			return err
		}
		time.Sleep(dur)

		ids := ccfg.NodeIds()
		slices.Sort(ids)
		var errs error
		for _, id := range ids {
			res, err := sim.Query(id, func(r *core.DvRouter) any {
				return core.Inspect(r)
			})
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			fmt.Println(res)
		}
		return multierr.Append(errs, sim.Stop())
	},
	SilenceUsage: true,
	GroupID:      "dv",
}

func init() {
	rootCmd.AddCommand(simCmd)

	simCmd.Flags().DurationP("duration", "d", 2*time.Second, "how long to let the network converge")
	simCmd.Flags().DurationP("interval", "i", 100*time.Millisecond, "periodic advertisement interval")
	simCmd.Flags().Bool("poison-reverse", false, "advertise with poison reverse")
	simCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
}
