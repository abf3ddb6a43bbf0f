// Command tilesched runs the cache-aware memory scheduler over a block of
// the tiled tensor IR described in YAML.
//
// # Usage
//
//	# Schedule block.yaml against a 64 KiB cache and print the result:
//	tilesched schedule --input block.yaml --mem-kib 64
//
//	# Write the scheduled block back out as YAML:
//	tilesched schedule --input block.yaml --mem-kib 64 --output scheduled.yaml
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/tilesched/internal/must"
	"github.com/gomlx/tilesched/ir"
	"github.com/gomlx/tilesched/ir/alias"
	"github.com/gomlx/tilesched/schedule"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var (
	flagInput     string
	flagOutput    string
	flagMemKiB    uint64
	flagAlignment uint64
	flagMemLoc    string
	flagXferLoc   string
)

// version is overridden at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "tilesched",
	Short: "Cache-aware memory scheduler for the tiled tensor IR",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the tilesched version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tilesched %s\n", version)
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Schedule a block's statements into cache memory",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(flagInput)
		if err != nil {
			return errors.Wrapf(err, "reading %q", flagInput)
		}
		block, err := ir.UnmarshalBlock(data)
		if err != nil {
			return err
		}

		opts := schedule.Options{
			MemLoc:    ir.Location{Name: flagMemLoc},
			MemKiB:    flagMemKiB,
			Alignment: flagAlignment,
			XferLoc:   ir.Location{Name: flagXferLoc},
		}
		if err = schedule.Schedule(alias.NewMap(block), block, opts); err != nil {
			var exhausted *schedule.ResourceExhaustedError
			if errors.As(err, &exhausted) {
				return errors.Errorf(
					"scheduling failed: %v -- raise --mem-kib (currently %s) or retile the block",
					exhausted, humanize.IBytes(opts.MemKiB*1024))
			}
			return err
		}

		if flagOutput == "" {
			fmt.Println(block)
			return nil
		}
		out := must.M1(ir.MarshalBlock(block))
		return errors.Wrapf(os.WriteFile(flagOutput, out, 0644), "writing %q", flagOutput)
	},
}

func main() {
	klog.InitFlags(nil)
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	scheduleCmd.Flags().StringVar(&flagInput, "input", "", "YAML file with the block to schedule.")
	scheduleCmd.Flags().StringVar(&flagOutput, "output", "",
		"Where to write the scheduled block as YAML. Empty prints a readable rendering to stdout.")
	scheduleCmd.Flags().Uint64Var(&flagMemKiB, "mem-kib", 64, "Cache capacity in KiB, per unit.")
	scheduleCmd.Flags().Uint64Var(&flagAlignment, "alignment", 0,
		"Fallback-plan alignment in bytes. Zero uses the default of 4.")
	scheduleCmd.Flags().StringVar(&flagMemLoc, "mem-loc", "CACHE", "Locality name for cache-entry refinements.")
	scheduleCmd.Flags().StringVar(&flagXferLoc, "xfer-loc", "DMA", "Locality name for generated swap blocks.")
	must.M(scheduleCmd.MarkFlagRequired("input"))
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		klog.Errorf("%+v", err)
		os.Exit(1)
	}
}
