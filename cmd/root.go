package cmd

import (
	"fmt"
	"github.com/ValentinKolb/feedstore/cmd/perf"
	"github.com/ValentinKolb/feedstore/cmd/util"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "feedstore",
		Short: "in-memory feed cache",
		Long: fmt.Sprintf(`feedstore (v%s)

A thread-safe, in-memory cache for a single feed snapshot written in Go.
Reads run in parallel, inserts and deletes run exclusively and in program order.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of feedstore",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("feedstore v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	util.SetupStoreFlags(RootCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
