package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "pea",
		Short: "Pea worker process",
		Long:  "Run a single Pea: load its Executor, bind its transport, drive its request loop",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to daemon config file")
	rootCmd.AddCommand(daemonCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
