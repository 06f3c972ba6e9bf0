package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"legal-rag/internal/citation"
	"legal-rag/internal/service"
)

var (
	sourceFiles []string
	enforce     bool
)

// checkCitationsCmd represents the check-citations command
var checkCitationsCmd = &cobra.Command{
	Use:   "check-citations <answer|->",
	Short: "Validate that an answer cites its sources before explaining",
	Long: `check-citations runs the citation validator on an answer and, with --enforce,
applies the single repair the validator chooses. Sources are given as files in
rank order: the first file backs [Source-1].

It needs no store or provider configuration.`,
	Example: `  legalctl check-citations "La légitime défense [Source-1] ..." --source art39.txt
  cat answer.txt | legalctl check-citations - --source art39.txt --enforce`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckCitations,
}

func init() {
	rootCmd.AddCommand(checkCitationsCmd)
	checkCitationsCmd.Flags().StringArrayVar(&sourceFiles, "source", nil, "source text file, in rank order (repeatable)")
	checkCitationsCmd.Flags().BoolVar(&enforce, "enforce", false, "repair the answer when validation fails")
}

func runCheckCitations(cmd *cobra.Command, args []string) error {
	answer, err := readInput(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}
	sources, err := readFiles(sourceFiles)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	svc := service.NewConsultService(nil, citation.NewChecker(citation.DefaultPatterns()))
	res, err := svc.CheckCitations(ctx, service.CitationCheckRequest{Answer: answer, Sources: sources, Enforce: enforce})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, res)
	}

	v := res.Validation
	fmt.Fprintf(out, "Verdict: %s (%d citations, %d words before the first)\n", v.Issue, v.CitationCount, v.WordsBeforeFirst)
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "! %s: %s\n", w.Label, w.Reason)
	}
	if res.Enforcement != nil && res.Enforcement.Applied {
		fmt.Fprintf(out, "Repaired with %s (%s -> %s):\n%s\n", res.Enforcement.Strategy, res.Enforcement.Before, res.Enforcement.After, res.Enforcement.Text)
	}
	return nil
}
