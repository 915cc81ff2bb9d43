// Command hvacform serves the HVAC contact form API and records or
// transcribes voice notes from the command line.
package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:           "hvacform",
	Short:         "HVAC contact form backend with voice-note transcription",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: ./config.yml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file path (default: ./.env)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
