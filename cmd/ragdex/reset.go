package main

import (
	"errors"

	"github.com/spf13/cobra"
)

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all stored entries",
	Long:  "Clears every entry from the vector store. Entry IDs restart at 1.",
	RunE:  runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "skip confirmation")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, _ []string) error {
	if !resetForce {
		return errors.New("refusing to clear the store without --force")
	}

	ctx := cmd.Context()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	count := a.store.Count()
	if err := a.store.Reset(ctx); err != nil {
		return err
	}

	cmd.Printf("Removed %d entries.\n", count)
	return nil
}
