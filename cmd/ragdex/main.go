package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/ragdex/internal/version"
)

var rootCmd = &cobra.Command{
	Use:          "ragdex",
	Short:        "Local retrieval index: chunk, embed, store, query",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("ragdex version %s (%s)\n", version.Version, version.Commit)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
