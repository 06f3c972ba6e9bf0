package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"legal-rag/internal/indexer"
)

var ingestRoot string

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index the legal corpus into the configured store",
	Long: `Ingest walks the corpus directory, chunks every markdown file by article,
embeds each chunk with every configured provider and writes it to the store.
Files whose content hash did not change are skipped.

Example:
  legalctl ingest --root ./corpus
  legalctl ingest --json > coverage.json`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestRoot, "root", "", "corpus directory (default: CORPUS_PATH)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	root := ingestRoot
	if root == "" {
		root = a.Config.CorpusPath
	}

	stats, err := a.Indexer.IndexCorpus(ctx, root, a.ModelNames)
	if stats != nil {
		if jsonOutput {
			if werr := writeJSON(cmd.OutOrStdout(), stats); werr != nil {
				return werr
			}
		} else {
			printCoverage(cmd, stats)
		}
	}
	return err
}

func printCoverage(cmd *cobra.Command, stats *indexer.IndexingCoverageStats) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Documents: %d processed, %d unchanged, %d failed, %d empty\n",
		stats.DocsProcessed, stats.DocsUnchanged, stats.DocsFailed, stats.DocsWith0Chunks)
	fmt.Fprintf(out, "Chunks:    %d embedded of %d (%d skipped)\n",
		stats.ChunksEmbedded, stats.ChunksAttempted, stats.ChunksSkipped)
	fmt.Fprintf(out, "Tokens:    min %d, max %d, mean %.1f, p95 %d\n",
		stats.ChunkTokenStats.Min, stats.ChunkTokenStats.Max, stats.ChunkTokenStats.Mean, stats.ChunkTokenStats.P95)
	for reason, n := range stats.ChunksSkippedReasons {
		fmt.Fprintf(out, "  %s: %d\n", reason, n)
	}
	fmt.Fprintf(out, "Index version: %s (%s)\n", stats.IndexVersion, stats.ChunkerVersion)
}
