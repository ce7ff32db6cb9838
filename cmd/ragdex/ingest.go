package main

import (
	"errors"

	"github.com/spf13/cobra"

	ingestuc "github.com/kailas-cloud/ragdex/internal/usecase/ingest"
)

var (
	ingestText      string
	ingestSource    string
	ingestMaxTokens int
	ingestOverlap   float64
	ingestTags      []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest a document into the index",
	Long: `Extracts text from a file (.txt, .md, .pdf), splits it into
token windows, embeds every chunk and stores the vectors.
Use --text to ingest a raw string instead of a file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestText, "text", "", "ingest this string instead of a file")
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "source name for raw text ingestion")
	ingestCmd.Flags().IntVar(&ingestMaxTokens, "max-tokens", 0, "max tokens per chunk (0 = config default)")
	ingestCmd.Flags().Float64Var(&ingestOverlap, "overlap", -1, "overlap fraction in [0,1) (-1 = config default)")
	ingestCmd.Flags().StringSliceVar(&ingestTags, "tag", nil, "tag attached to every chunk (repeatable)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && ingestText == "" {
		return errors.New("either a file argument or --text is required")
	}
	if len(args) > 0 && ingestText != "" {
		return errors.New("a file argument and --text are mutually exclusive")
	}

	ctx := cmd.Context()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := ingestuc.Options{
		MaxTokens:       ingestMaxTokens,
		OverlapFraction: ingestOverlap,
		Tags:            ingestTags,
	}

	var res ingestuc.Result
	if len(args) > 0 {
		res, err = a.ingest.IngestFile(ctx, args[0], opts)
	} else {
		res, err = a.ingest.IngestText(ctx, ingestText, ingestSource, opts)
	}
	if err != nil {
		return err
	}

	cmd.Printf("Ingested %s: %d chunks (document %s)\n", res.Source, res.ChunkCount, res.DocumentID)
	return nil
}
