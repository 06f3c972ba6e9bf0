package corpus

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeFile(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte("# Titre\n\nArticle 1 - texte."), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "codes/code-penal.md")
	writeFile(t, root, "Jurisprudence/cassation/arret-2019.md")
	writeFile(t, root, "readme.md")
	writeFile(t, root, "codes/notes.txt")
	writeFile(t, root, ".git/ignored.md")

	files, err := Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })

	want := []struct{ rel, category string }{
		{"Jurisprudence/cassation/arret-2019.md", "jurisprudence"},
		{"codes/code-penal.md", "codes"},
		{"readme.md", UncategorizedCategory},
	}
	if len(files) != len(want) {
		t.Fatalf("Scan() found %d files, want %d: %+v", len(files), len(want), files)
	}
	for i, w := range want {
		if files[i].RelPath != w.rel || files[i].Category != w.category {
			t.Errorf("files[%d] = %+v, want %s (%s)", i, files[i], w.rel, w.category)
		}
		if files[i].AbsPath == "" {
			t.Errorf("files[%d] has no absolute path", i)
		}
	}
}

func TestScan_MissingRoot(t *testing.T) {
	if _, err := Scan(context.Background(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Scan() of a missing root should fail")
	}
}

func TestFile_SourceType(t *testing.T) {
	tests := map[string]string{
		"codes":         "code",
		"jurisprudence": "ruling",
		"lois":          "law",
		"other":         "text",
	}
	for category, want := range tests {
		if got := (File{Category: category}).SourceType(); got != want {
			t.Errorf("SourceType(%s) = %q, want %q", category, got, want)
		}
	}
}
