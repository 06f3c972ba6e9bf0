package indexer

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

const (
	minChunkSize = 80
	maxChunkSize = 1500 // runes; most articles fit whole
)

// articleStart matches a line opening a legal article in French or Arabic.
var articleStart = regexp.MustCompile(`(?im)^\s*(?:article|art\.|الفصل|فصل|المادة)\s*(\d+)`)

// sentenceEnd matches the end of a French or Arabic sentence followed by whitespace.
var sentenceEnd = regexp.MustCompile(`[.;:؛!?؟]\s+`)

// TokenCounter counts model tokens in a chunk.
type TokenCounter interface {
	Count(text string) int
}

// LegalChunker chunks legal markdown using goldmark AST parsing. Each article is its own chunk;
// headings give the chunk its place in the code (book, title, chapter).
type LegalChunker struct {
	parser goldmark.Markdown
	tokens TokenCounter
}

// NewLegalChunker creates a new chunker. A nil counter estimates four runes per token.
func NewLegalChunker(tokens TokenCounter) *LegalChunker {
	return &LegalChunker{
		parser: goldmark.New(goldmark.WithExtensions(extension.Table)),
		tokens: tokens,
	}
}

// unit is the text gathered under one heading path up to the next heading or article opening.
type unit struct {
	headingPath string
	paragraphs  []string
}

func (u *unit) text() string {
	return strings.Join(u.paragraphs, "\n")
}

// ChunkMarkdown parses a legal document and returns its title and chunks.
func (c *LegalChunker) ChunkMarkdown(content []byte, filename string) (title string, chunks []Chunk, err error) {
	if len(content) == 0 {
		return extractTitleFromFilename(filename), []Chunk{}, nil
	}

	doc := c.parser.Parser().Parse(text.NewReader(content))
	title = documentTitle(doc, content, filename)

	units := collectUnits(doc, content, title)
	if len(units) == 0 {
		units = []unit{{headingPath: "# " + title, paragraphs: []string{strings.TrimSpace(string(content))}}}
	}

	for _, u := range foldShortUnits(units) {
		body := u.text()
		articles := chunkArticles(Chunk{HeadingPath: u.headingPath, Text: body})
		for _, part := range splitText(body, maxChunkSize) {
			chunks = append(chunks, Chunk{
				Index:       len(chunks),
				HeadingPath: u.headingPath,
				Text:        part,
				Articles:    articles,
				TokenCount:  c.countTokens(part),
			})
		}
	}
	return title, chunks, nil
}

func (c *LegalChunker) countTokens(text string) int {
	if c.tokens != nil {
		return c.tokens.Count(text)
	}
	n := int(float64(utf8.RuneCountInString(text))/TokensPerRune + 0.5)
	if n < 1 && text != "" {
		n = 1
	}
	return n
}

// collectUnits walks the top-level blocks. A heading closes the current unit and updates the
// heading path; a paragraph opening an article closes it too, keeping the path.
func collectUnits(doc ast.Node, src []byte, title string) []unit {
	var (
		units   []unit
		current *unit
		stack   []string // heading path parts, indexed by level-1
	)
	flush := func() {
		if current != nil && len(current.paragraphs) > 0 {
			units = append(units, *current)
		}
		current = nil
	}
	path := func() string {
		var parts []string
		for _, p := range stack {
			if p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			return "# " + title
		}
		return strings.Join(parts, " > ")
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			flush()
			for len(stack) < h.Level {
				stack = append(stack, "")
			}
			stack = stack[:h.Level]
			stack[h.Level-1] = strings.Repeat("#", h.Level) + " " + inlineText(h, src)
			continue
		}

		body := blockText(n, src)
		if body == "" {
			continue
		}
		if current != nil && len(current.paragraphs) > 0 && opensArticle(n, body) {
			flush()
		}
		if current == nil {
			current = &unit{headingPath: path()}
		}
		current.paragraphs = append(current.paragraphs, body)
	}
	flush()
	return units
}

func opensArticle(n ast.Node, body string) bool {
	if _, ok := n.(*ast.Paragraph); !ok {
		return false
	}
	loc := articleStart.FindStringIndex(body)
	return loc != nil && loc[0] == 0
}

// foldShortUnits prepends a short unit that opens no article (a chapter preamble, a lone sentence
// under a heading) to the unit that follows it. The folded result is not folded again.
func foldShortUnits(units []unit) []unit {
	out := make([]unit, 0, len(units))
	for i := 0; i < len(units); i++ {
		u := units[i]
		if i+1 < len(units) && utf8.RuneCountInString(u.text()) < minChunkSize && !articleStart.MatchString(u.text()) {
			next := units[i+1]
			next.paragraphs = append(append([]string{}, u.paragraphs...), next.paragraphs...)
			out = append(out, next)
			i++
			continue
		}
		out = append(out, u)
	}
	return out
}

// splitText cuts text into pieces of at most max runes, preferring line then sentence boundaries.
func splitText(body string, max int) []string {
	if utf8.RuneCountInString(body) <= max {
		return []string{body}
	}

	var (
		parts []string
		buf   strings.Builder
		size  int
	)
	emit := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			parts = append(parts, s)
		}
		buf.Reset()
		size = 0
	}
	add := func(piece string, sep string) {
		n := utf8.RuneCountInString(piece)
		if size > 0 && size+n+len(sep) > max {
			emit()
		}
		if size > 0 {
			buf.WriteString(sep)
			size += len(sep)
		}
		buf.WriteString(piece)
		size += n
	}

	for _, line := range strings.Split(body, "\n") {
		if utf8.RuneCountInString(line) <= max {
			add(line, "\n")
			continue
		}
		for _, sentence := range splitSentences(line) {
			if utf8.RuneCountInString(sentence) <= max {
				add(sentence, " ")
				continue
			}
			emit()
			runes := []rune(sentence)
			for start := 0; start < len(runes); start += max {
				end := min(start+max, len(runes))
				parts = append(parts, string(runes[start:end]))
			}
		}
	}
	emit()
	return parts
}

func splitSentences(line string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(line, -1) {
		out = append(out, strings.TrimSpace(line[start:loc[1]]))
		start = loc[1]
	}
	if rest := strings.TrimSpace(line[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

// chunkArticles returns the article numbers opened in the chunk's text or named by its headings,
// in order of appearance and without duplicates.
func chunkArticles(chunk Chunk) []string {
	var sources []string
	for _, part := range strings.Split(chunk.HeadingPath, " > ") {
		sources = append(sources, strings.TrimLeft(part, "# "))
	}
	sources = append(sources, chunk.Text)

	var out []string
	seen := make(map[string]bool)
	for _, src := range sources {
		for _, m := range articleStart.FindAllStringSubmatch(src, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				out = append(out, m[1])
			}
		}
	}
	return out
}

// documentTitle is the first level-1 heading, else the first level-2 heading, else the filename.
func documentTitle(doc ast.Node, src []byte, filename string) string {
	var h2 string
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok {
			continue
		}
		if h.Level == 1 {
			return inlineText(h, src)
		}
		if h.Level == 2 && h2 == "" {
			h2 = inlineText(h, src)
		}
	}
	if h2 != "" {
		return h2
	}
	return extractTitleFromFilename(filename)
}

// extractTitleFromFilename extracts title from filename by removing extension and capitalizing words.
func extractTitleFromFilename(filename string) string {
	name := filepath.Base(filename)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	words := strings.Fields(name)
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// blockText renders a block node as plain text: list items and table rows on their own lines.
func blockText(n ast.Node, src []byte) string {
	switch node := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		return inlineText(node, src)
	case *ast.List:
		var lines []string
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			if t := blockChildrenText(item, src); t != "" {
				lines = append(lines, "- "+t)
			}
		}
		return strings.Join(lines, "\n")
	case *ast.Blockquote:
		return blockChildrenText(node, src)
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		var b strings.Builder
		lines := node.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(src))
		}
		return strings.TrimSpace(b.String())
	case *east.Table:
		var rows []string
		for row := node.FirstChild(); row != nil; row = row.NextSibling() {
			var cells []string
			for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
				cells = append(cells, inlineText(cell, src))
			}
			rows = append(rows, strings.Join(cells, " | "))
		}
		return strings.Join(rows, "\n")
	default:
		return ""
	}
}

func blockChildrenText(n ast.Node, src []byte) string {
	var parts []string
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if t := blockText(child, src); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// inlineText concatenates the text of the inline descendants of n. Soft line breaks become spaces.
func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(src))
			if v.HardLineBreak() {
				b.WriteByte('\n')
			} else if v.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(v.Value)
		case *ast.AutoLink:
			b.Write(v.Label(src))
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
