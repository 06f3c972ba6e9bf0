package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"legal-rag/internal/rag"
	"legal-rag/internal/service"
)

var (
	allowRelaxed bool
	categories   []string
	maxResults   int
	operation    string
)

// retrieveCmd represents the retrieve command
var retrieveCmd = &cobra.Command{
	Use:   "retrieve <question|->",
	Short: "Show the ranked legal sources for a question without generating an answer",
	Example: `  legalctl retrieve "الدفاع الشرعي"
  legalctl retrieve "Article 39 du code pénal" --category codes --max 5`,
	Args: cobra.ExactArgs(1),
	RunE: runRetrieve,
}

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask <question|->",
	Short: "Answer a legal question, citing the sources first",
	Example: `  legalctl ask "Quelles sont les conditions de la légitime défense ?"
  echo "ما هي عقوبة إصدار شيك بدون رصيد؟" | legalctl ask -`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(retrieveCmd, askCmd)
	for _, c := range []*cobra.Command{retrieveCmd, askCmd} {
		c.Flags().BoolVar(&allowRelaxed, "relaxed", false, "allow the secondary quality gate thresholds")
		c.Flags().StringSliceVar(&categories, "category", nil, "prioritised corpus categories (repeatable)")
		c.Flags().IntVar(&maxResults, "max", 0, "maximum number of sources")
	}
	askCmd.Flags().StringVar(&operation, "operation", rag.OperationConsultation, "generation plan (consultation or analysis)")
}

func buildRequest(cmd *cobra.Command, arg string) (service.ConsultRequest, error) {
	question, err := readInput(arg, cmd.InOrStdin())
	if err != nil {
		return service.ConsultRequest{}, err
	}
	return service.ConsultRequest{
		Question:     question,
		Operation:    operation,
		AllowRelaxed: allowRelaxed,
		Categories:   categories,
		MaxResults:   maxResults,
	}, nil
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	req, err := buildRequest(cmd, args[0])
	if err != nil {
		return err
	}
	req.Operation = ""

	ctx, cancel := commandContext()
	defer cancel()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	rc, err := a.Service.Retrieve(ctx, req)
	if err != nil && !errors.Is(err, rag.ErrQualityGateEmpty) {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), rc)
	}
	printRanked(cmd.OutOrStdout(), rc)
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	req, err := buildRequest(cmd, args[0])
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	answer, err := a.Service.Consult(ctx, req)
	if errors.Is(err, rag.ErrQualityGateEmpty) {
		fmt.Fprintf(cmd.OutOrStdout(), "No legal source passed the quality gate (threshold %.2f); no answer was generated.\n", answer.Context.Threshold)
		if !req.AllowRelaxed {
			fmt.Fprintln(cmd.OutOrStdout(), "Retry with --relaxed to accept weaker matches.")
		}
		return nil
	}
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), answer)
	}
	printAnswer(cmd.OutOrStdout(), answer)
	return nil
}

func printRanked(w io.Writer, rc rag.RankedContext) {
	gate := "primary"
	if rc.Relaxed {
		gate = "relaxed"
	}
	fmt.Fprintf(w, "Query: %s (%s, %s)\n", rc.Query.Original, rc.Query.Language, rc.Query.Class)
	if rc.Query.Expanded != "" {
		fmt.Fprintf(w, "Expanded: %s\n", rc.Query.Expanded)
	}
	fmt.Fprintf(w, "Gate: %s threshold %.2f, %d of %d candidates kept\n", gate, rc.Threshold, len(rc.Results), rc.Stats.Candidates)
	for i, r := range rc.Results {
		fmt.Fprintf(w, "\n[%d] %s", i+1, r.Chunk.Title)
		if len(r.Chunk.Articles) > 0 {
			fmt.Fprintf(w, " art. %s", strings.Join(r.Chunk.Articles, ", "))
		}
		fmt.Fprintf(w, " (%s)\n", r.Chunk.Category)
		fmt.Fprintf(w, "    vector %.3f  fused %.4f  lexical %.3f  pairwise %.3f  final %.3f\n",
			r.VectorScore, r.FusedScore, r.LexicalScore, r.PairwiseScore, r.Score)
		if r.Abrogated {
			fmt.Fprintf(w, "    REPEALED (%s), score before demotion %.3f\n", r.AbrogationMarker, r.PreAbrogationScore)
		}
	}
}

func printAnswer(w io.Writer, answer rag.GroundedAnswer) {
	fmt.Fprintln(w, answer.Answer)
	fmt.Fprintf(w, "\n-- %s in %s", answer.Provider, answer.GenerationTime.Round(time.Millisecond))
	if answer.Enforced {
		fmt.Fprintf(w, ", citations repaired (%s -> %s)", answer.CitationIssue, answer.FinalIssue)
	}
	fmt.Fprintln(w)

	for i, s := range answer.Sources {
		fmt.Fprintf(w, "[Source-%d] %s", i+1, s.Chunk.Title)
		if len(s.Chunk.Articles) > 0 {
			fmt.Fprintf(w, " art. %s", strings.Join(s.Chunk.Articles, ", "))
		}
		fmt.Fprintln(w)
	}
	for _, warn := range answer.AbrogationWarnings {
		fmt.Fprintf(w, "! %s: %s / %s\n", warn.Reference, warn.Message.FR, warn.Message.AR)
	}
	for _, warn := range answer.CitationWarnings {
		fmt.Fprintf(w, "! citation %s: %s\n", warn.Label, warn.Reason)
	}
}
