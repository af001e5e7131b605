package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/MRamiBalles/WaterBucketGame/server/internal/domain/rules"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/engine"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/platform/config"
)

// newCheckCmd validates a puzzle without starting the server.
func newCheckCmd(configPath *string) *cobra.Command {
	var strictWin bool
	cmd := &cobra.Command{
		Use:   "check CAPACITY_A CAPACITY_B TARGET",
		Short: "Report whether a puzzle would be accepted",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			vals := make([]int, len(args))
			for i, a := range args {
				n, err := strconv.Atoi(a)
				if err != nil {
					return fmt.Errorf("argument %d: %w", i+1, err)
				}
				vals[i] = n
			}

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			puzzle := engine.Config{
				CapacityA:         vals[0],
				CapacityB:         vals[1],
				Target:            vals[2],
				TimeLimit:         cfg.Game.TimeLimit,
				StrictWin:         strictWin,
				StrictSolvability: cfg.Game.StrictSolvability,
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "heuristic: %v\n", rules.IsSolvable(puzzle.CapacityA, puzzle.CapacityB, puzzle.Target))
			fmt.Fprintf(out, "reachable: %v (gcd %d)\n",
				rules.IsReachable(puzzle.CapacityA, puzzle.CapacityB, puzzle.Target),
				rules.GCD(puzzle.CapacityA, puzzle.CapacityB))
			if err := puzzle.Validate(); err != nil {
				fmt.Fprintf(out, "rejected: %v\n", err)
				return err
			}
			fmt.Fprintln(out, "accepted")
			return nil
		},
	}
	cmd.Flags().BoolVar(&strictWin, "strict-win", false, "require the other bucket to be empty")
	return cmd
}

// newInitConfigCmd writes the default configuration file.
func newInitConfigCmd(configPath *string) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write the default configuration to --config",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force {
				if _, err := os.Stat(*configPath); err == nil {
					return fmt.Errorf("%s already exists (use --force)", *configPath)
				}
			}
			if err := config.Save(*configPath, config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", *configPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
