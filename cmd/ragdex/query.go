package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

var (
	queryNum  int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Search the index for similar chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryNum, "num-matches", "n", 0, "number of matches (0 = default)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.query.Query(ctx, args[0], queryNum)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return outputQueryJSON(cmd, results)
	}
	return outputQueryTable(cmd, results)
}

func outputQueryJSON(cmd *cobra.Command, results []domain.QueryResult) error {
	type match struct {
		ID       int64           `json:"id"`
		Text     string          `json:"text"`
		Score    float64         `json:"score"`
		Rank     int             `json:"rank"`
		Metadata domain.Metadata `json:"metadata,omitempty"`
	}
	out := make([]match, len(results))
	for i, r := range results {
		out[i] = match{
			ID:       r.Entry.ID,
			Text:     r.Entry.Text,
			Score:    r.Score,
			Rank:     r.Rank,
			Metadata: r.Entry.Metadata,
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputQueryTable(cmd *cobra.Command, results []domain.QueryResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for _, r := range results {
		source := ""
		if s, ok := r.Entry.Metadata["source"].(string); ok {
			source = s
		}

		cmd.Printf("  [%d] (%.4f)\n", r.Rank, r.Score)
		if source != "" {
			cmd.Printf("      Source: %s\n", source)
		}
		cmd.Printf("      %s\n", snippet(r.Entry.Text, 200))
		cmd.Println()
	}
	return nil
}

// snippet truncates text to at most n bytes on a rune boundary.
func snippet(text string, n int) string {
	if len(text) <= n {
		return text
	}
	runes := []rune(text)
	for i := range runes {
		if len(string(runes[:i+1])) > n {
			return string(runes[:i]) + "…"
		}
	}
	return text
}
