package rag

import "time"

// Language is the detected language of a query.
type Language string

const (
	LangArabic    Language = "ar"
	LangFrench    Language = "fr"
	LangBilingual Language = "bilingual"
)

// QueryClass tells whether a query is dominated by exact legal terms or by meaning.
type QueryClass string

const (
	ClassKeyword  QueryClass = "keyword"
	ClassSemantic QueryClass = "semantic"
)

// Query is a user question plus the attributes derived by the preprocessor.
type Query struct {
	// Original is the question exactly as the user typed it (trimmed).
	Original string `json:"original"`
	// Expanded is the reformulated question, used only for the semantic path.
	Expanded string `json:"expanded,omitempty"`
	// Language is the detected script/language.
	Language Language `json:"language"`
	// Class is the keyword vs semantic classification.
	Class QueryClass `json:"class"`
	// Degraded is set when the expansion call failed and the original was used.
	Degraded bool `json:"degraded,omitempty"`
}

// SemanticText returns the text used for embeddings: the expansion when present, else the original.
func (q Query) SemanticText() string {
	if q.Expanded != "" {
		return q.Expanded
	}
	return q.Original
}

// Chunk is an indexed slice of a legal document. It is read-only to the pipeline.
type Chunk struct {
	ID         string   `json:"id"`
	DocumentID string   `json:"document_id"`
	Title      string   `json:"title,omitempty"`
	Category   string   `json:"category"`
	Language   string   `json:"language,omitempty"`
	Text       string   `json:"text"`
	TokenCount int      `json:"token_count,omitempty"`
	Articles   []string `json:"articles,omitempty"`
	SourceType string   `json:"source_type,omitempty"`
}

// SearchResult is one entry of a ranked list returned by a single search call.
type SearchResult struct {
	Chunk Chunk
	// Score is the store's ranking score (possibly a lexical/vector blend).
	Score float64
	// VectorScore is the raw vector similarity.
	VectorScore float64
	Provider    Provider
	// Category is the forced category filter, empty for general searches.
	Category string
	// Rank is the 1-based position within the source list.
	Rank int
}

// Forced reports whether the result came from a category-forced search.
func (r SearchResult) Forced() bool {
	return r.Category != ""
}

// Boost records a multiplier applied to a fused score.
type Boost struct {
	Name       string  `json:"name"`
	Multiplier float64 `json:"multiplier"`
}

// FusedResult is the per-chunk aggregate built by fusion and carried through re-ranking and gating.
type FusedResult struct {
	Chunk Chunk `json:"chunk"`
	// RRFScore is the raw reciprocal rank fusion sum.
	RRFScore float64 `json:"rrf_score"`
	// FusedScore is RRFScore times the category and domain boosts.
	FusedScore float64 `json:"fused_score"`
	// VectorScore is the best raw similarity seen for the chunk; the quality gate reads it.
	VectorScore   float64 `json:"vector_score"`
	Contributions int     `json:"contributions"`
	Forced        bool    `json:"forced,omitempty"`
	Boosts        []Boost `json:"boosts,omitempty"`
	// OriginalRank is the 1-based position after fusion, used to break ties.
	OriginalRank  int     `json:"original_rank"`
	LexicalScore  float64 `json:"lexical_score"`
	PairwiseScore float64 `json:"pairwise_score"`
	// Score is the current chained score; after gating it is the final score.
	Score              float64 `json:"score"`
	PreAbrogationScore float64 `json:"pre_abrogation_score,omitempty"`
	Abrogated          bool    `json:"abrogated,omitempty"`
	AbrogationMarker   string  `json:"abrogation_marker,omitempty"`
}

// AbrogationFlag records a chunk demoted because its text marks it as repealed or superseded.
type AbrogationFlag struct {
	ChunkID    string   `json:"chunk_id"`
	DocumentID string   `json:"document_id"`
	Title      string   `json:"title,omitempty"`
	Articles   []string `json:"articles,omitempty"`
	Marker     string   `json:"marker"`
	Language   Language `json:"language"`
	Severity   string   `json:"severity"`
	Factor     float64  `json:"factor"`
}

// ProviderStatus reports how one provider behaved during a request.
type ProviderStatus struct {
	Provider string        `json:"provider"`
	Stage    string        `json:"stage"`
	OK       bool          `json:"ok"`
	Error    string        `json:"error,omitempty"`
	Latency  time.Duration `json:"latency"`
}

// RetrievalStats summarises a Retrieve call.
type RetrievalStats struct {
	Searches      int           `json:"searches"`
	FailedSearch  int           `json:"failed_searches"`
	Candidates    int           `json:"candidates"`
	Dropped       int           `json:"dropped"`
	PreprocessDur time.Duration `json:"preprocess_ns"`
	EmbedDur      time.Duration `json:"embed_ns"`
	SearchDur     time.Duration `json:"search_ns"`
	RankDur       time.Duration `json:"rank_ns"`
}

// RankedContext is the gated, ordered context handed to generation.
type RankedContext struct {
	Query       Query            `json:"query"`
	Results     []FusedResult    `json:"results"`
	// Threshold is the gate applied to each result's VectorScore (raw similarity), not to Score.
	Threshold   float64          `json:"threshold"`
	Relaxed     bool             `json:"relaxed,omitempty"`
	Abrogations []AbrogationFlag `json:"abrogations,omitempty"`
	Providers   []ProviderStatus `json:"providers,omitempty"`
	Stats       RetrievalStats   `json:"stats"`
}

// Options are per-request knobs for Retrieve and GenerateGroundedAnswer.
type Options struct {
	// Operation selects the generation plan ("consultation" or "analysis").
	Operation string
	// AllowRelaxed permits the secondary thresholds when the primary gate is empty.
	AllowRelaxed bool
	// Categories overrides the prioritised categories for forced searches.
	Categories []string
	// MaxResults caps the context size; zero uses the configured default.
	MaxResults int
}

// Citation is a marker found in the final answer, resolved against the context.
type Citation struct {
	Label    string `json:"label"`
	Number   int    `json:"number"`
	Quote    string `json:"quote,omitempty"`
	ChunkID  string `json:"chunk_id,omitempty"`
	Verified bool   `json:"verified"`
}

// CitationWarning flags a citation label that could not be matched to a source.
type CitationWarning struct {
	Label  string `json:"label"`
	Reason string `json:"reason"`
}

// BilingualMessage holds the same message in Arabic and French.
type BilingualMessage struct {
	AR string `json:"ar"`
	FR string `json:"fr"`
}

// AbrogationWarning is surfaced to the caller for every abrogation-flagged source.
type AbrogationWarning struct {
	Reference string           `json:"reference"`
	Severity  string           `json:"severity"`
	Message   BilingualMessage `json:"message"`
	Info      AbrogationFlag   `json:"info"`
}

// GroundedAnswer is the result of GenerateGroundedAnswer.
type GroundedAnswer struct {
	Answer             string              `json:"answer"`
	Citations          []Citation          `json:"citations"`
	AbrogationWarnings []AbrogationWarning `json:"abrogation_warnings"`
	CitationWarnings   []CitationWarning   `json:"citation_warnings"`
	Sources            []FusedResult       `json:"sources"`
	Provider           string              `json:"provider"`
	Attempts           []Attempt           `json:"attempts,omitempty"`
	// CitationIssue is the validator verdict on the raw model output.
	CitationIssue string `json:"citation_issue"`
	// Enforced is set when the answer text was repaired.
	Enforced       bool          `json:"enforced,omitempty"`
	FinalIssue     string        `json:"final_issue"`
	Context        RankedContext `json:"-"`
	GenerationTime time.Duration `json:"generation_ns"`
}
