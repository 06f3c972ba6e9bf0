package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legal-rag/internal/citation"
	"legal-rag/internal/service"
)

// run executes the root command with args and returns its stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	sourceFiles, enforce, jsonOutput = nil, false, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeSource(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.txt")
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	return path
}

func TestCheckCitations_Valid(t *testing.T) {
	out, err := run(t, "", "check-citations",
		`[Source-1] "N'est pas punissable celui qui agit en légitime défense." La loi exige une agression actuelle.`)
	require.NoError(t, err)
	assert.Contains(t, out, "Verdict: valid (1 citations, 0 words before the first)")
}

func TestCheckCitations_EnforceFromStdin(t *testing.T) {
	source := writeSource(t, "N'est pas punissable celui qui commet un acte commandé par la nécessité actuelle de la légitime défense.")

	out, err := run(t, "La légitime défense suppose une agression actuelle.", "check-citations", "-", "--source", source, "--enforce", "--json")
	require.NoError(t, err)

	var res service.CitationCheckResponse
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, citation.IssueNoCitations, res.Validation.Issue)
	require.NotNil(t, res.Enforcement)
	assert.True(t, res.Enforcement.Applied)
	assert.Equal(t, citation.IssueValid, res.Enforcement.After)
	assert.True(t, strings.HasPrefix(res.Enforcement.Text, `[Source-1] "`))
}

func TestCheckCitations_UnknownSourceWarns(t *testing.T) {
	source := writeSource(t, "texte")

	out, err := run(t, "", "check-citations", `[Source-3] "texte" explication`, "--source", source)
	require.NoError(t, err)
	assert.Contains(t, out, "! [Source-3]: source not in context")
}

func TestCheckCitations_Errors(t *testing.T) {
	_, err := run(t, "   ", "check-citations", "-")
	var verr *service.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = run(t, "", "check-citations", "texte", "--source", filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)

	_, err = run(t, "", "check-citations")
	assert.Error(t, err, "the answer argument is required")
}

func TestReadInput(t *testing.T) {
	got, err := readInput("question", strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.Equal(t, "question", got)

	got, err = readInput("-", strings.NewReader("ما هي شروط الطلاق؟"))
	require.NoError(t, err)
	assert.Equal(t, "ما هي شروط الطلاق؟", got)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"ingest", "retrieve", "ask", "check-citations"} {
		assert.True(t, names[want], want)
	}
}
