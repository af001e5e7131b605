// Package main is the entry point for the water bucket game server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MRamiBalles/WaterBucketGame/server/internal/platform/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "bucket-server",
		Short:         "Authoritative server for the water bucket bomb puzzle",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the YAML config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newCheckCmd(&configPath),
		newInitConfigCmd(&configPath),
	)
	return root
}
